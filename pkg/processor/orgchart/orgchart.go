// Package orgchart turns employee records into an organizational chart.
//
// Two views are supported over the same records: ViewOrg links each employee
// to parentId, ViewReporting links to reportsTo and falls back to parentId.
// Highlighted employees get an accent border and accent incoming edge.
package orgchart

import (
	"fmt"
	"hash/fnv"

	"github.com/mitchellh/mapstructure"

	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/layout"
	"github.com/recera/hierview/pkg/processor"
)

const (
	// ViewOrg is the structural org chart
	ViewOrg graph.ViewType = "org"
	// ViewReporting is the reporting-line chart
	ViewReporting graph.ViewType = "reporting"
)

// NodeType is the node type emitted for employees
const NodeType = "employee"

const (
	accentColor = "#f59e0b"
	borderColor = "#cbd5e1"
	edgeColor   = "#b1b1b7"
)

var palette = []string{"#e0f2fe", "#dcfce7", "#fef9c3", "#fce7f3", "#ede9fe", "#ffedd5"}

// Employee is the mapped form of an employee record
type Employee struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Title       string `mapstructure:"title"`
	Department  string `mapstructure:"department"`
	ParentID    string `mapstructure:"parentId"`
	ReportsTo   string `mapstructure:"reportsTo"`
	Highlighted bool   `mapstructure:"highlighted"`
}

// Processor builds org charts
type Processor struct {
	layout layout.Tree
}

// New creates an org chart processor laid out with opts
func New(opts layout.Options) *Processor {
	return &Processor{layout: layout.NewTree(opts)}
}

// MapData decodes a record into an Employee. Numeric ids are accepted.
func (p *Processor) MapData(rec processor.Record) (processor.Mapped, error) {
	var e Employee
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &e,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return nil, fmt.Errorf("%w: %v", processor.ErrInvalidRecord, err)
	}
	if e.ID == "" {
		return nil, fmt.Errorf("%w: missing id", processor.ErrInvalidRecord)
	}
	return e, nil
}

// ProcessData builds nodes for every employee and an edge to each employee's
// manager for the chosen view. Links to unknown managers are dropped.
func (p *Processor) ProcessData(mapped []processor.Mapped, view graph.ViewType) (graph.Snapshot, error) {
	employees := make([]Employee, 0, len(mapped))
	known := make(map[string]bool, len(mapped))
	for i, m := range mapped {
		e, ok := m.(Employee)
		if !ok {
			return graph.Snapshot{}, fmt.Errorf("%w: item %d is %T, not an Employee", processor.ErrInvalidRecord, i, m)
		}
		if known[e.ID] {
			return graph.Snapshot{}, fmt.Errorf("%w: duplicate id %q", processor.ErrInvalidRecord, e.ID)
		}
		known[e.ID] = true
		employees = append(employees, e)
	}

	out := graph.Empty()
	for _, e := range employees {
		out.Nodes = append(out.Nodes, graph.Node{
			ID:    e.ID,
			Type:  NodeType,
			Data:  nodeData(e),
			Style: nodeStyle(e),
		})

		manager := managerFor(e, view)
		if manager == "" || !known[manager] {
			continue
		}
		stroke := edgeColor
		if e.Highlighted {
			stroke = accentColor
		}
		out.Edges = append(out.Edges, graph.Edge{
			ID:     "e-" + manager + "-" + e.ID,
			Source: manager,
			Target: e.ID,
			Type:   "smoothstep",
			Style:  map[string]any{"stroke": stroke},
		})
	}
	return out, nil
}

// ApplyLayout positions the chart with a tree layout
func (p *Processor) ApplyLayout(s graph.Snapshot, dir graph.Direction) (graph.Snapshot, error) {
	return p.layout.Apply(s, dir)
}

func managerFor(e Employee, view graph.ViewType) string {
	if view == ViewReporting && e.ReportsTo != "" {
		return e.ReportsTo
	}
	return e.ParentID
}

func nodeData(e Employee) map[string]any {
	data := map[string]any{"label": e.Name}
	if e.Title != "" {
		data["title"] = e.Title
	}
	if e.Department != "" {
		data["department"] = e.Department
	}
	return data
}

func nodeStyle(e Employee) map[string]any {
	style := map[string]any{
		"background": DepartmentColor(e.Department),
		"border":     "1px solid " + borderColor,
	}
	if e.Highlighted {
		style["border"] = "2px solid " + accentColor
	}
	return style
}

// DepartmentColor picks a stable background for a department
func DepartmentColor(department string) string {
	if department == "" {
		return "#ffffff"
	}
	h := fnv.New32a()
	h.Write([]byte(department))
	return palette[h.Sum32()%uint32(len(palette))]
}
