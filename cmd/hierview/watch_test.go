package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/hierview/cmd/hierview/internal/config"
	"github.com/recera/hierview/cmd/hierview/internal/records"
	"github.com/recera/hierview/pkg/debug"
	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/scheduler"
)

const orgRecords = `
- id: 1
  name: Ada
- id: 2
  name: Grace
  parentId: 1
- id: 3
  name: Linus
  parentId: 2
  reportsTo: 1
`

func newTestWatchServer(t *testing.T, body string) (*watchServer, *scheduler.Manual, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg := config.DefaultConfig()
	cfg.Server.Debounce = 20 * time.Millisecond
	sched := scheduler.NewManual(cfg.SchedulerDelays())

	s, err := newWatchServer(cfg, path, sched, debug.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.session.Close)
	return s, sched, path
}

func getSnapshot(t *testing.T, url string) snapshotMessage {
	t.Helper()
	resp, err := http.Get(url + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg snapshotMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	return msg
}

func TestWatchServer_Snapshot(t *testing.T) {
	s, sched, _ := newTestWatchServer(t, orgRecords)
	require.NoError(t, s.reload())
	sched.Flush()

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	msg := getSnapshot(t, ts.URL)
	assert.Equal(t, "SNAPSHOT", msg.Type)
	assert.Len(t, msg.Nodes, 3)
	assert.Len(t, msg.Edges, 2)
	assert.Equal(t, "org", string(msg.View))
	assert.NotEqual(t, 1.0, msg.Viewport.Zoom, "initial fit should have run")
	assert.Empty(t, msg.Error)
}

func TestWatchServer_ReloadErrorIsReported(t *testing.T) {
	s, _, path := newTestWatchServer(t, orgRecords)
	require.NoError(t, s.reload())

	require.NoError(t, os.WriteFile(path, []byte("- name: nobody\n"), 0644))
	assert.Error(t, s.reload())

	snap := s.snapshot("snapshot")
	assert.Contains(t, snap.Error, "invalid record")
	assert.Len(t, snap.Nodes, 3, "published state survives a bad file")
}

func TestWatchServer_ConcurrentReloads(t *testing.T) {
	s, _, _ := newTestWatchServer(t, orgRecords)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view := graph.ViewType("org")
			if i%2 == 1 {
				view = "reporting"
			}
			assert.NoError(t, s.setView(view))
		}(i)
	}
	wg.Wait()
	require.NoError(t, s.setView("org"))

	msg := s.snapshot("snapshot")
	assert.Len(t, msg.Nodes, 3)
	assert.Len(t, msg.Edges, 2)

	recs, err := records.Load(s.path)
	require.NoError(t, err)
	d, err := s.session.Update(recs, false, "org")
	require.NoError(t, err)
	assert.False(t, d.Published(), "pushed state matches the controller")
}

func TestWatchServer_Metrics(t *testing.T) {
	s, _, _ := newTestWatchServer(t, orgRecords)
	require.NoError(t, s.reload())
	require.NoError(t, s.reload())

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Contains(t, string(body), "hierview_recomputes_total 1")
	assert.Contains(t, string(body), "hierview_recompute_cache_hits_total 1")
	assert.Contains(t, string(body), `hierview_published_total{collection="nodes"} 1`)
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) snapshotMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg snapshotMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestWatchServer_WebSocket(t *testing.T) {
	s, sched, _ := newTestWatchServer(t, orgRecords)
	require.NoError(t, s.reload())
	sched.Flush()

	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "HELLO"}))
	ack := readUntil(t, conn, "ACK")
	assert.Len(t, ack.Nodes, 3)
	assert.Equal(t, 3, ack.ZoomIndex)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "ZOOM_IN"}))
	ack = readUntil(t, conn, "ACK")
	assert.Equal(t, 4, ack.ZoomIndex)
	assert.Equal(t, 1.25, ack.Viewport.Zoom)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "VIEW", View: "reporting"}))
	edges := readUntil(t, conn, "EDGES")
	assert.Equal(t, "reporting", string(edges.View))
	ack = readUntil(t, conn, "ACK")
	assert.Equal(t, "e-1-3", ack.Edges[1].ID)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "VIEW", View: "sideways"}))
	errMsg := readUntil(t, conn, "ERROR")
	assert.Contains(t, errMsg.Error, "sideways")
}

func TestWatchServer_WatchFiles(t *testing.T) {
	s, _, path := newTestWatchServer(t, orgRecords)
	require.NoError(t, s.reload())

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()
	require.NoError(t, watcher.Add(filepath.Dir(path)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.watchFiles(ctx, watcher)

	more := orgRecords + "- id: 4\n  name: Ken\n  parentId: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(more), 0644))

	assert.Eventually(t, func() bool {
		return len(s.session.Nodes().Get()) == 4
	}, 2*time.Second, 10*time.Millisecond)
}
