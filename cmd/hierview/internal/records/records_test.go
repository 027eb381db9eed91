package records

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"yaml list", "- id: 1\n  name: Ada\n- id: 2\n  parentId: 1\n", 2},
		{"json list", `[{"id": 1, "name": "Ada"}]`, 1},
		{"wrapped", "records:\n  - id: a\n", 1},
		{"empty file", "", 0},
		{"empty list", "[]", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := Parse([]byte(tt.in))
			require.NoError(t, err)
			assert.NotNil(t, recs)
			assert.Len(t, recs, tt.want)
		})
	}
}

func TestParse_NestedMapsAreStringKeyed(t *testing.T) {
	recs, err := Parse([]byte("- id: 1\n  meta:\n    team: core\n"))
	require.NoError(t, err)

	meta, ok := recs[0]["meta"].(map[string]any)
	require.True(t, ok, "got %T", recs[0]["meta"])
	assert.Equal(t, "core", meta["team"])
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("just a string"))
	assert.ErrorIs(t, err, ErrNotAList)

	_, err = Parse([]byte("other: 1"))
	assert.ErrorIs(t, err, ErrNotAList)

	_, err = Parse([]byte("- [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "x"}]`), 0644))

	recs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x", recs[0]["id"])

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
