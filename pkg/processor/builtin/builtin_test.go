package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recera/hierview/pkg/layout"
	"github.com/recera/hierview/pkg/processor"
	"github.com/recera/hierview/pkg/processor/orgchart"
)

func TestRegistry(t *testing.T) {
	r := Registry(layout.DefaultOptions())
	assert.Equal(t, []string{EntityTree, OrgChart}, r.Names())

	p, err := r.Lookup(OrgChart)
	require.NoError(t, err)
	_, ok := p.(processor.Layouter)
	assert.True(t, ok)
	assert.IsType(t, &orgchart.Processor{}, p)
}

func TestViews(t *testing.T) {
	assert.Equal(t, orgchart.ViewOrg, Views(OrgChart)[0])
	assert.Len(t, Views(EntityTree), 2)
	assert.Nil(t, Views("other"))
}
