// Package entitytree turns legal-entity records into an entity tree.
package entitytree

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/layout"
	"github.com/recera/hierview/pkg/processor"
)

const (
	// ViewTree shows every entity, inactive ones faded
	ViewTree graph.ViewType = "tree"
	// ViewActive hides inactive entities and the links touching them
	ViewActive graph.ViewType = "active"
)

// NodeType is the node type emitted for entities
const NodeType = "entity"

var typeColors = map[string]string{
	"company":    "#dbeafe",
	"branch":     "#dcfce7",
	"department": "#fef3c7",
	"team":       "#f3e8ff",
}

// Entity is the mapped form of an entity record
type Entity struct {
	ID             string `mapstructure:"id"`
	Name           string `mapstructure:"name"`
	Type           string `mapstructure:"type"`
	ParentEntityID string `mapstructure:"parentEntityId"`
	// Active defaults to true when the record omits it
	Active *bool `mapstructure:"active"`
}

// IsActive reports whether the entity is active
func (e Entity) IsActive() bool {
	return e.Active == nil || *e.Active
}

// Processor builds entity trees
type Processor struct {
	layout layout.Tree
}

// New creates an entity tree processor laid out with opts
func New(opts layout.Options) *Processor {
	return &Processor{layout: layout.NewTree(opts)}
}

// MapData decodes a record into an Entity
func (p *Processor) MapData(rec processor.Record) (processor.Mapped, error) {
	var e Entity
	if err := mapstructure.WeakDecode(map[string]any(rec), &e); err != nil {
		return nil, fmt.Errorf("%w: %v", processor.ErrInvalidRecord, err)
	}
	if e.ID == "" {
		return nil, fmt.Errorf("%w: missing id", processor.ErrInvalidRecord)
	}
	return e, nil
}

// ProcessData builds one node per visible entity and a link to its parent
func (p *Processor) ProcessData(mapped []processor.Mapped, view graph.ViewType) (graph.Snapshot, error) {
	entities := make([]Entity, 0, len(mapped))
	for i, m := range mapped {
		e, ok := m.(Entity)
		if !ok {
			return graph.Snapshot{}, fmt.Errorf("%w: item %d is %T, not an Entity", processor.ErrInvalidRecord, i, m)
		}
		if view == ViewActive && !e.IsActive() {
			continue
		}
		entities = append(entities, e)
	}

	visible := make(map[string]bool, len(entities))
	for _, e := range entities {
		visible[e.ID] = true
	}

	out := graph.Empty()
	for _, e := range entities {
		style := map[string]any{"background": colorFor(e.Type)}
		if !e.IsActive() {
			style["opacity"] = 0.5
		}
		out.Nodes = append(out.Nodes, graph.Node{
			ID:    e.ID,
			Type:  NodeType,
			Data:  map[string]any{"label": e.Name, "entityType": e.Type},
			Style: style,
		})

		if e.ParentEntityID == "" || !visible[e.ParentEntityID] {
			continue
		}
		out.Edges = append(out.Edges, graph.Edge{
			ID:     e.ParentEntityID + "->" + e.ID,
			Source: e.ParentEntityID,
			Target: e.ID,
			Type:   "step",
		})
	}
	return out, nil
}

// ApplyLayout positions the tree
func (p *Processor) ApplyLayout(s graph.Snapshot, dir graph.Direction) (graph.Snapshot, error) {
	return p.layout.Apply(s, dir)
}

func colorFor(entityType string) string {
	if c, ok := typeColors[entityType]; ok {
		return c
	}
	return "#f1f5f9"
}
