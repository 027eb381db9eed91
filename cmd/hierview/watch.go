package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/recera/hierview/cmd/hierview/internal/config"
	"github.com/recera/hierview/cmd/hierview/internal/records"
	"github.com/recera/hierview/internal/cache"
	"github.com/recera/hierview/pkg/debug"
	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/hierarchy"
	"github.com/recera/hierview/pkg/metrics"
	"github.com/recera/hierview/pkg/scheduler"
	"github.com/recera/hierview/pkg/viewport"
)

type watchServer struct {
	cfg     *config.Config
	path    string
	logger  *slog.Logger
	session *hierarchy.Session
	surface *viewport.Surface
	stats   *metrics.Collectors
	reg     *prometheus.Registry

	wsClients map[*websocket.Conn]bool
	wsMutex   sync.RWMutex
	upgrader  websocket.Upgrader

	// reloadMu orders file and websocket reloads
	reloadMu sync.Mutex

	mu      sync.Mutex
	view    graph.ViewType
	lastErr error
}

// snapshotMessage is the payload of /snapshot and of websocket pushes
type snapshotMessage struct {
	Type      string            `json:"type"`
	Session   string            `json:"session"`
	View      graph.ViewType    `json:"view"`
	Nodes     []graph.Node      `json:"nodes"`
	Edges     []graph.Edge      `json:"edges"`
	Viewport  viewport.Viewport `json:"viewport"`
	ZoomIndex int               `json:"zoomIndex"`
	Memo      cache.Stats       `json:"memo"`
	Error     string            `json:"error,omitempty"`
}

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "watch <records-file>",
		Short: "Watch a records file and serve the live graph",
		Long: `Watches a records file, republishes the graph whenever it changes, and serves
the latest snapshot over HTTP and WebSocket alongside Prometheus metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			// Override addr if provided via CLI (CLI takes precedence)
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runWatch(cmd.Context(), cfg, args[0])
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to serve on")

	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg, os.Stderr)
	loop := scheduler.NewLoop(cfg.SchedulerDelays())
	debug.EnableLogging(logger, loop)
	loop.Start()
	defer loop.Stop()

	s, err := newWatchServer(cfg, path, loop, logger)
	if err != nil {
		return err
	}
	defer s.session.Close()

	if err := s.reload(); err != nil {
		logger.Warn("initial load failed", "path", path, "error", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	go s.watchFiles(ctx, watcher)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.Server.Addr, "records", path, "session", s.session.ID())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		return srv.Shutdown(shutdownCtx)
	}
}

func newWatchServer(cfg *config.Config, path string, sched scheduler.Scheduler, logger *slog.Logger) (*watchServer, error) {
	reg := prometheus.NewRegistry()
	stats := metrics.New(reg)

	session, err := newSession(cfg, sched, logger, stats)
	if err != nil {
		return nil, err
	}

	s := &watchServer{
		cfg:       cfg,
		path:      path,
		logger:    logger,
		session:   session,
		stats:     stats,
		reg:       reg,
		view:      graph.ViewType(cfg.View),
		wsClients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local viewer, any origin
				return true
			},
		},
	}

	s.surface = viewport.NewSurface(cfg.Viewport.Width, cfg.Viewport.Height, func() graph.Snapshot {
		return graph.Snapshot{Nodes: session.Nodes().Get(), Edges: session.Edges().Get()}
	})
	s.surface.SetNodeSize(cfg.Layout.NodeWidth, cfg.Layout.NodeHeight)
	session.OnInit(s.surface)

	session.Nodes().Subscribe(func([]graph.Node) { s.notifyClients("nodes") })
	session.Edges().Subscribe(func([]graph.Edge) { s.notifyClients("edges") })

	return s, nil
}

// routes builds the HTTP API
func (s *watchServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/snapshot", s.serveSnapshot)
	r.Get("/ws", s.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	return r
}

// reload reads the records file and runs a session update
func (s *watchServer) reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	recs, err := records.Load(s.path)
	s.mu.Lock()
	view := s.view
	s.lastErr = err
	s.mu.Unlock()
	if err != nil {
		return err
	}

	d, err := s.session.Update(recs, false, view)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("reloaded",
		"records", len(recs),
		"nodes", d.Nodes,
		"edges", d.Edges,
		"forced", d.ForcedByView,
		"fit", d.FitRequested,
	)
	return nil
}

// setView switches the view type and reloads
func (s *watchServer) setView(view graph.ViewType) error {
	if err := checkView(s.cfg.Processor, view); err != nil {
		return err
	}
	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
	return s.reload()
}

func (s *watchServer) watchFiles(ctx context.Context, watcher *fsnotify.Watcher) {
	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	target := filepath.Clean(s.path)
	pending := false

	for {
		select {
		case <-ctx.Done():
			debounce.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			pending = true
			debounce.Reset(s.cfg.Server.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			if err := s.reload(); err != nil {
				s.logger.Error("reload failed", "path", s.path, "error", err)
				s.notifyClients("error")
			}
		}
	}
}

func (s *watchServer) snapshot(msgType string) snapshotMessage {
	s.mu.Lock()
	view := s.view
	lastErr := s.lastErr
	s.mu.Unlock()

	msg := snapshotMessage{
		Type:      strings.ToUpper(msgType),
		Session:   s.session.ID(),
		View:      view,
		Nodes:     s.session.Nodes().Get(),
		Edges:     s.session.Edges().Get(),
		Viewport:  s.surface.Viewport(),
		ZoomIndex: s.session.ZoomIndex(),
		Memo:      s.session.MemoStats(),
	}
	if lastErr != nil {
		msg.Error = lastErr.Error()
	}
	return msg
}

func (s *watchServer) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot("snapshot")); err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
	}
}

// clientMessage is a command sent by a websocket client
type clientMessage struct {
	Type string         `json:"type"`
	View graph.ViewType `json:"view,omitempty"`
}

func (s *watchServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	// Register client
	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
	}()

	// Handle messages
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", "error", err)
			}
			break
		}

		var cmdErr error
		switch strings.ToUpper(msg.Type) {
		case "HELLO":
		case "ZOOM_IN":
			s.session.ZoomIn()
			applyZoom(s.session, s.surface)
		case "ZOOM_OUT":
			s.session.ZoomOut()
			applyZoom(s.session, s.surface)
		case "ZOOM_RESET":
			s.session.ResetZoom()
			applyZoom(s.session, s.surface)
		case "VIEW":
			cmdErr = s.setView(msg.View)
		case "RELOAD":
			cmdErr = s.reload()
		default:
			cmdErr = fmt.Errorf("unknown message type %q", msg.Type)
		}

		reply := s.snapshot("ack")
		if cmdErr != nil {
			reply.Type = "ERROR"
			reply.Error = cmdErr.Error()
		}
		s.send(conn, reply)
	}
}

// send writes to one client under the broadcast lock, since gorilla
// connections allow a single concurrent writer
func (s *watchServer) send(conn *websocket.Conn, msg snapshotMessage) {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("failed to send message to client", "error", err)
	}
}

func (s *watchServer) notifyClients(msgType string) {
	msg := s.snapshot(msgType)

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for client := range s.wsClients {
		if err := client.WriteJSON(msg); err != nil {
			s.logger.Warn("failed to send message to client", "error", err)
		}
	}
}

func (s *watchServer) closeClients() {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	for client := range s.wsClients {
		client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		client.Close()
	}
}
