package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/recera/hierview/cmd/hierview/internal/config"
)

func TestRunRender_JSON(t *testing.T) {
	var out, logs bytes.Buffer
	require.NoError(t, runRender(config.DefaultConfig(), "testdata/org.yaml", "json", &out, &logs))

	var got renderOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Len(t, got.Nodes, 4)
	assert.Len(t, got.Edges, 3)
	assert.Equal(t, "org", string(got.View))
	assert.NotEmpty(t, got.Session)
	for _, n := range got.Nodes {
		require.NotNil(t, n.Position, "node %s", n.ID)
	}
	assert.NotEqual(t, 1.0, got.Viewport.Zoom, "the initial fit runs before output")
	assert.Contains(t, logs.String(), "update")
}

func TestRunRender_YAMLEntityTree(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Processor = "entitytree"
	cfg.View = "active"
	cfg.Layout.Direction = "LR"

	var out bytes.Buffer
	require.NoError(t, runRender(cfg, "testdata/entities.json", "yaml", &out, &bytes.Buffer{}))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Len(t, got["nodes"], 3, "inactive entity hidden")
	assert.Equal(t, "active", got["view"])
}

func TestRunRender_Errors(t *testing.T) {
	cfg := config.DefaultConfig()
	var out bytes.Buffer

	assert.Error(t, runRender(cfg, "testdata/org.yaml", "xml", &out, &out))
	assert.Error(t, runRender(cfg, "testdata/missing.yaml", "json", &out, &out))

	cfg.Processor = "sunburst"
	err := runRender(cfg, "testdata/org.yaml", "json", &out, &out)
	assert.ErrorContains(t, err, "unknown processor")
}

func TestGlobalOptions_FlagsOverrideConfig(t *testing.T) {
	opts := &globalOptions{}
	cmd := &cobra.Command{Use: "test"}
	opts.bind(cmd)

	require.NoError(t, cmd.ParseFlags([]string{
		"--config", filepath.Join(t.TempDir(), "none.yaml"),
		"--processor", "entitytree",
		"--direction", "LR",
	}))

	cfg, err := opts.load()
	require.NoError(t, err)
	assert.Equal(t, "entitytree", cfg.Processor)
	assert.Equal(t, "tree", cfg.View, "processor switch falls back to its default view")
	assert.Equal(t, "LR", cfg.Layout.Direction)

	opts.direction = "sideways"
	_, err = opts.load()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "layout.direction"))
}

func TestCheckView(t *testing.T) {
	assert.NoError(t, checkView("orgchart", "reporting"))
	assert.Error(t, checkView("orgchart", "active"))
	assert.Error(t, checkView("nothing", "org"))
}
