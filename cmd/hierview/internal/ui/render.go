package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/recera/hierview/pkg/graph"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#3b82f6")
	mutedColor   = lipgloss.Color("#94a3b8")
	errorColor   = lipgloss.Color("#ef4444")
	accentColor  = lipgloss.Color("#f59e0b")

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	nodeStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)
)

// View renders the canvas and the status footer
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	rows := max(m.height-footerLines, 1)
	canvas := m.renderCanvas(m.width, rows)

	footer := []string{m.renderStatus()}
	if m.err != nil {
		footer = append(footer, errorStyle.Render("error: "+m.err.Error()))
	} else {
		footer = append(footer, mutedStyle.Render(m.statusMessage))
	}
	if m.showHelp {
		footer = append(footer, m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		footer = append(footer, m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, canvas, strings.Join(footer, "\n"))
}

func (m Model) renderStatus() string {
	s := m.opts.Session
	nodes := s.Nodes().Get()
	edges := s.Edges().Get()
	steps := s.ZoomSteps()

	status := fmt.Sprintf("%s | %s | zoom %d/%d (%.2fx) | %d nodes %d edges",
		m.view, s.Direction(), s.ZoomIndex()+1, len(steps), s.ZoomScale(), len(nodes), len(edges))
	if m.opts.Surface != nil {
		vp := m.opts.Surface.Viewport()
		status += fmt.Sprintf(" | view %.2fx", vp.Zoom)
	}
	return statusStyle.Render(status)
}

// renderCanvas draws edges as dotted lines between node centres and node
// labels on top, clipped to cols x rows
func (m Model) renderCanvas(cols, rows int) string {
	grid := make([][]rune, rows)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", cols))
	}
	marks := make([][]bool, rows)
	for i := range marks {
		marks[i] = make([]bool, cols)
	}

	if m.opts.Surface == nil {
		return joinGrid(grid, marks)
	}

	nodes := m.opts.Session.Nodes().Get()
	byID := make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	for _, e := range m.opts.Session.Edges().Get() {
		src, ok1 := byID[e.Source]
		dst, ok2 := byID[e.Target]
		if !ok1 || !ok2 || src.Position == nil || dst.Position == nil {
			continue
		}
		x0, y0 := m.cellCentre(*src.Position)
		x1, y1 := m.cellCentre(*dst.Position)
		steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0)))
		for i := 0; i <= steps; i++ {
			t := 0.0
			if steps > 0 {
				t = float64(i) / float64(steps)
			}
			plot(grid, int(x0+(x1-x0)*t), int(y0+(y1-y0)*t), '.')
		}
	}

	for _, n := range nodes {
		if n.Position == nil {
			continue
		}
		sx, sy := m.opts.Surface.Project(*n.Position)
		col := int(math.Floor(sx / m.opts.CellWidth))
		row := int(math.Floor(sy / m.opts.CellHeight))
		width := max(int(m.opts.NodeWidth*m.opts.Surface.Viewport().Zoom/m.opts.CellWidth), 3)

		label := []rune("[" + nodeLabel(n) + "]")
		if len(label) > width {
			label = append(label[:width-1], ']')
		}
		for i, r := range label {
			if plot(grid, col+i, row, r) {
				marks[row][col+i] = true
			}
		}
	}

	return joinGrid(grid, marks)
}

// cellCentre returns the terminal cell at the centre of a node box
func (m Model) cellCentre(p graph.Position) (float64, float64) {
	sx, sy := m.opts.Surface.Project(graph.Position{
		X: p.X + m.opts.NodeWidth/2,
		Y: p.Y + m.opts.NodeHeight/2,
	})
	return sx / m.opts.CellWidth, sy / m.opts.CellHeight
}

func plot(grid [][]rune, col, row int, r rune) bool {
	if row < 0 || row >= len(grid) || col < 0 || col >= len(grid[row]) {
		return false
	}
	grid[row][col] = r
	return true
}

// joinGrid renders rows, styling runs of node cells
func joinGrid(grid [][]rune, marks [][]bool) string {
	lines := make([]string, len(grid))
	for y, row := range grid {
		var b strings.Builder
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && marks[y][x] == marks[y][start] {
				continue
			}
			run := string(row[start:x])
			if marks[y][start] {
				run = nodeStyle.Render(run)
			}
			b.WriteString(run)
			start = x
		}
		lines[y] = b.String()
	}
	return strings.Join(lines, "\n")
}

func nodeLabel(n graph.Node) string {
	if label, ok := n.Data["label"].(string); ok && label != "" {
		return label
	}
	return n.ID
}
