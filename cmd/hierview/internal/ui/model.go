package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/hierarchy"
	"github.com/recera/hierview/pkg/processor"
	"github.com/recera/hierview/pkg/viewport"
)

// Options configures the viewer
type Options struct {
	Session *hierarchy.Session
	Surface *viewport.Surface

	// Load reads the current records
	Load func() ([]processor.Record, error)

	// Views are cycled with the view key, starting at View
	Views []graph.ViewType
	View  graph.ViewType

	// NodeWidth and NodeHeight are the node box size in graph units
	NodeWidth  float64
	NodeHeight float64

	// CellWidth and CellHeight are the surface units per terminal cell
	CellWidth  float64
	CellHeight float64

	// Refresh is how often the canvas repaints to pick up timed fits
	Refresh time.Duration
}

// Model represents the viewer state
type Model struct {
	opts Options
	keys KeyMap
	help help.Model

	// Window dimensions
	width  int
	height int

	view     graph.ViewType
	showHelp bool
	quitting bool

	statusMessage string
	err           error
}

type tickMsg time.Time

type reloadMsg struct{}

// footerLines is the space kept below the canvas
const footerLines = 3

// New creates a viewer model
func New(opts Options) Model {
	if opts.CellWidth <= 0 {
		opts.CellWidth = 8
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = 16
	}
	if opts.Refresh <= 0 {
		opts.Refresh = 100 * time.Millisecond
	}
	if opts.View == "" && len(opts.Views) > 0 {
		opts.View = opts.Views[0]
	}

	return Model{
		opts: opts,
		keys: DefaultKeyMap,
		help: help.New(),
		view: opts.View,
	}
}

// Init loads the records and starts the repaint ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return reloadMsg{} },
		m.tick(),
	)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.opts.Surface != nil {
			rows := max(m.height-footerLines, 1)
			m.opts.Surface.Resize(float64(m.width)*m.opts.CellWidth, float64(rows)*m.opts.CellHeight)
		}
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		return m, m.tick()

	case reloadMsg:
		m.reload()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.opts.Session

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp

	case key.Matches(msg, m.keys.ZoomIn):
		s.ZoomIn()
		m.applyZoom()

	case key.Matches(msg, m.keys.ZoomOut):
		s.ZoomOut()
		m.applyZoom()

	case key.Matches(msg, m.keys.ZoomReset):
		s.ResetZoom()
		m.applyZoom()

	case key.Matches(msg, m.keys.Fit):
		if !s.Coordinator().FitNow() {
			m.statusMessage = "no surface to fit"
		}

	case key.Matches(msg, m.keys.View):
		m.view = m.nextView()
		m.reload()

	case key.Matches(msg, m.keys.Direction):
		dir := graph.DirectionLR
		if s.Direction() == graph.DirectionLR {
			dir = graph.DirectionTB
		}
		if err := s.SetDirection(dir); err != nil {
			m.err = err
			return m, nil
		}
		m.reload()

	case key.Matches(msg, m.keys.Reload):
		m.reload()
	}

	return m, nil
}

// reload reads records and runs a session update
func (m *Model) reload() {
	if m.opts.Load == nil {
		return
	}
	recs, err := m.opts.Load()
	if err != nil {
		m.err = err
		return
	}

	d, err := m.opts.Session.Update(recs, false, m.view)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil

	switch {
	case d.ForcedByView:
		m.statusMessage = fmt.Sprintf("switched to %s", m.view)
	case d.Published():
		m.statusMessage = fmt.Sprintf("published %d nodes", d.NodeCount)
	default:
		m.statusMessage = "no changes"
	}
}

// applyZoom pushes the stepper's scale to the surface, keeping the pan
func (m *Model) applyZoom() {
	if m.opts.Surface == nil {
		return
	}
	vp := m.opts.Surface.Viewport()
	vp.Zoom = m.opts.Session.ZoomScale()
	m.opts.Surface.SetViewport(vp)
}

func (m Model) nextView() graph.ViewType {
	views := m.opts.Views
	for i, v := range views {
		if v == m.view {
			return views[(i+1)%len(views)]
		}
	}
	if len(views) > 0 {
		return views[0]
	}
	return m.view
}

// CurrentView returns the view type being shown
func (m Model) CurrentView() graph.ViewType {
	return m.view
}

// Err returns the last load or processing error
func (m Model) Err() error {
	return m.err
}
