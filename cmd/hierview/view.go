package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/recera/hierview/cmd/hierview/internal/config"
	"github.com/recera/hierview/cmd/hierview/internal/records"
	"github.com/recera/hierview/cmd/hierview/internal/ui"
	"github.com/recera/hierview/pkg/debug"
	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/processor"
	"github.com/recera/hierview/pkg/processor/builtin"
	"github.com/recera/hierview/pkg/scheduler"
	"github.com/recera/hierview/pkg/viewport"
)

func newViewCommand(opts *globalOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "view <records-file>",
		Short: "Browse the graph in the terminal",
		Long: `Opens an interactive terminal viewer. Use + and - to step the zoom, 0 to
reset it, v to switch views, d to flip the layout direction and r to reload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return runView(cfg, args[0], logFile)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to a file (the terminal is owned by the viewer)")

	return cmd
}

func runView(cfg *config.Config, path, logFile string) error {
	// The viewer owns the terminal, so logs go to a file or nowhere
	var logw io.Writer = io.Discard
	if logFile != "" {
		f, err := tea.LogToFile(logFile, "hierview")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logw = f
	}
	logger := newLogger(cfg, logw)

	loop := scheduler.NewLoop(cfg.SchedulerDelays())
	debug.EnableLogging(logger, loop)
	loop.Start()
	defer loop.Stop()

	session, err := newSession(cfg, loop, logger, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	surface := viewport.NewSurface(cfg.Viewport.Width, cfg.Viewport.Height, func() graph.Snapshot {
		return graph.Snapshot{Nodes: session.Nodes().Get(), Edges: session.Edges().Get()}
	})
	surface.SetNodeSize(cfg.Layout.NodeWidth, cfg.Layout.NodeHeight)
	session.OnInit(surface)

	model := ui.New(ui.Options{
		Session:    session,
		Surface:    surface,
		Load:       func() ([]processor.Record, error) { return records.Load(path) },
		Views:      builtin.Views(cfg.Processor),
		View:       graph.ViewType(cfg.View),
		NodeWidth:  cfg.Layout.NodeWidth,
		NodeHeight: cfg.Layout.NodeHeight,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("viewer failed: %w", err)
	}
	return nil
}
