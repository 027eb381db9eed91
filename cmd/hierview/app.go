package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/recera/hierview/cmd/hierview/internal/config"
	"github.com/recera/hierview/pkg/debug"
	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/hierarchy"
	"github.com/recera/hierview/pkg/metrics"
	"github.com/recera/hierview/pkg/processor/builtin"
	"github.com/recera/hierview/pkg/scheduler"
	"github.com/recera/hierview/pkg/viewport"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	processor  string
	view       string
	direction  string
	logLevel   string
	logFormat  string
}

func (o *globalOptions) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", config.FileName, "Path to the config file")
	f.StringVarP(&o.processor, "processor", "p", "", "Processor to use (orgchart, entitytree)")
	f.StringVar(&o.view, "view", "", "View type to render")
	f.StringVarP(&o.direction, "direction", "d", "", "Layout direction (TB or LR)")
	f.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&o.logFormat, "log-format", "", "Log format (text or json)")
}

// load reads the config file and applies flag overrides (flags take precedence)
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.processor != "" {
		cfg.Processor = o.processor
	}
	if o.view != "" {
		cfg.View = o.view
	} else if checkView(cfg.Processor, graph.ViewType(cfg.View)) != nil {
		// Switching processor by flag alone starts on its default view
		if views := builtin.Views(cfg.Processor); len(views) > 0 {
			cfg.View = string(views[0])
		}
	}
	if o.direction != "" {
		cfg.Layout.Direction = o.direction
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the configured logger writing to w
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := debug.ParseLevel(cfg.Log.Level)
	return debug.NewLogger(level, debug.Format(cfg.Log.Format), w)
}

// newSession wires a session for cfg's processor and view
func newSession(cfg *config.Config, sched scheduler.Scheduler, logger *slog.Logger, stats *metrics.Collectors) (*hierarchy.Session, error) {
	proc, err := builtin.Registry(cfg.LayoutOptions()).Lookup(cfg.Processor)
	if err != nil {
		return nil, err
	}
	if err := checkView(cfg.Processor, graph.ViewType(cfg.View)); err != nil {
		return nil, err
	}

	return hierarchy.New(hierarchy.Config{
		Processor:    proc,
		Direction:    cfg.Direction(),
		PreserveZoom: cfg.Viewport.PreserveZoom,
		Fit:          cfg.FitOptions(),
		ZoomSteps:    cfg.Zoom.Steps,
		ZoomIndex:    *cfg.Zoom.DefaultIndex,
		Scheduler:    sched,
		MemoSize:     cfg.Memo.Size,
		MemoStrategy: cfg.MemoStrategy(),
		Logger:       logger,
		Metrics:      stats,
	})
}

// applyZoom pushes the stepper's current scale to the surface, keeping the pan
func applyZoom(session *hierarchy.Session, h viewport.Handle) {
	vp := h.Viewport()
	vp.Zoom = session.ZoomScale()
	h.SetViewport(vp)
}

func checkView(processorName string, view graph.ViewType) error {
	views := builtin.Views(processorName)
	for _, v := range views {
		if v == view {
			return nil
		}
	}
	return fmt.Errorf("processor %s has no view %q (views: %v)", processorName, view, views)
}
