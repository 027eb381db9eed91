// Package builtin registers the processors shipped with hierview.
package builtin

import (
	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/layout"
	"github.com/recera/hierview/pkg/processor"
	"github.com/recera/hierview/pkg/processor/entitytree"
	"github.com/recera/hierview/pkg/processor/orgchart"
)

const (
	// OrgChart is the registry name of the org chart processor
	OrgChart = "orgchart"
	// EntityTree is the registry name of the entity tree processor
	EntityTree = "entitytree"
)

// Registry returns a registry holding the built-in processors laid out with opts
func Registry(opts layout.Options) *processor.Registry {
	r := processor.NewRegistry()
	r.Register(OrgChart, func() processor.Processor { return orgchart.New(opts) })
	r.Register(EntityTree, func() processor.Processor { return entitytree.New(opts) })
	return r
}

// Views returns the view types a built-in processor understands, default first
func Views(name string) []graph.ViewType {
	switch name {
	case OrgChart:
		return []graph.ViewType{orgchart.ViewOrg, orgchart.ViewReporting}
	case EntityTree:
		return []graph.ViewType{entitytree.ViewTree, entitytree.ViewActive}
	default:
		return nil
	}
}
