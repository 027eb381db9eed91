package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recera/hierview/internal/cache"
	"github.com/recera/hierview/pkg/debug"
	"github.com/recera/hierview/pkg/graph"
	"github.com/recera/hierview/pkg/layout"
	"github.com/recera/hierview/pkg/scheduler"
	"github.com/recera/hierview/pkg/viewport"
	"github.com/recera/hierview/pkg/zoom"
)

// FileName is the config file looked up when no path is given
const FileName = "hierview.yaml"

// Config represents the hierview.yaml configuration
type Config struct {
	// Processor names a built-in processor ("orgchart" or "entitytree")
	Processor string `yaml:"processor,omitempty"`

	// View is the initial view type
	View string `yaml:"view,omitempty"`

	Layout   *LayoutConfig   `yaml:"layout,omitempty"`
	Zoom     *ZoomConfig     `yaml:"zoom,omitempty"`
	Viewport *ViewportConfig `yaml:"viewport,omitempty"`
	Delays   *DelayConfig    `yaml:"delays,omitempty"`
	Memo     *MemoConfig     `yaml:"memo,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
	Server   *ServerConfig   `yaml:"server,omitempty"`
}

// LayoutConfig contains tree layout settings
type LayoutConfig struct {
	// Direction is "TB" or "LR"
	Direction  string  `yaml:"direction,omitempty"`
	NodeWidth  float64 `yaml:"nodeWidth,omitempty"`
	NodeHeight float64 `yaml:"nodeHeight,omitempty"`
	RankSep    float64 `yaml:"rankSep,omitempty"`
	NodeSep    float64 `yaml:"nodeSep,omitempty"`
}

// ZoomConfig contains the zoom step table
type ZoomConfig struct {
	Steps []float64 `yaml:"steps,omitempty"`

	// DefaultIndex is where the stepper starts and where reset returns to
	DefaultIndex *int `yaml:"defaultIndex,omitempty"`
}

// ViewportConfig contains fit-to-content settings
type ViewportConfig struct {
	PreserveZoom bool    `yaml:"preserveZoom"`
	Padding      float64 `yaml:"padding,omitempty"`
	MinZoom      float64 `yaml:"minZoom,omitempty"`
	MaxZoom      float64 `yaml:"maxZoom,omitempty"`

	// Width and Height size the headless surface
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`
}

// DelayConfig contains the settle delays before viewport work runs
type DelayConfig struct {
	Fit         time.Duration `yaml:"fit,omitempty"`
	PreserveFit time.Duration `yaml:"preserveFit,omitempty"`
	RestoreZoom time.Duration `yaml:"restoreZoom,omitempty"`
	ZoomReset   time.Duration `yaml:"zoomReset,omitempty"`
}

// MemoConfig contains the recompute memo settings
type MemoConfig struct {
	// Size bounds the memo; negative disables it
	Size int `yaml:"size,omitempty"`

	// Strategy is "lru", "lfu" or "fifo"
	Strategy string `yaml:"strategy,omitempty"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// ServerConfig contains the watch server settings
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`

	// Debounce coalesces bursts of file events
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Load loads configuration from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = FileName
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(&config)

	return &config, nil
}

// Save writes configuration to path
func Save(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	lo := layout.DefaultOptions()
	fit := viewport.DefaultFitOptions()
	delays := scheduler.DefaultDelays()
	index := zoom.DefaultIndex

	return &Config{
		Processor: "orgchart",
		View:      "org",
		Layout: &LayoutConfig{
			Direction:  string(graph.DirectionTB),
			NodeWidth:  lo.NodeWidth,
			NodeHeight: lo.NodeHeight,
			RankSep:    lo.RankSep,
			NodeSep:    lo.NodeSep,
		},
		Zoom: &ZoomConfig{
			Steps:        append([]float64(nil), zoom.DefaultSteps...),
			DefaultIndex: &index,
		},
		Viewport: &ViewportConfig{
			PreserveZoom: false,
			Padding:      fit.Padding,
			MinZoom:      fit.MinZoom,
			MaxZoom:      fit.MaxZoom,
			Width:        1200,
			Height:       800,
		},
		Delays: &DelayConfig{
			Fit:         delays[scheduler.TagFit],
			PreserveFit: delays[scheduler.TagPreserveFit],
			RestoreZoom: delays[scheduler.TagRestoreZoom],
			ZoomReset:   delays[scheduler.TagZoomReset],
		},
		Memo: &MemoConfig{
			Size:     cache.DefaultConfig().MaxEntries,
			Strategy: cache.LRU.String(),
		},
		Log: &LogConfig{
			Level:  "info",
			Format: string(debug.FormatText),
		},
		Server: &ServerConfig{
			Addr:     "localhost:8090",
			Debounce: 100 * time.Millisecond,
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Processor == "" {
		config.Processor = defaults.Processor
	}
	if config.View == "" {
		config.View = defaults.View
	}

	if config.Layout == nil {
		config.Layout = defaults.Layout
	} else {
		if config.Layout.Direction == "" {
			config.Layout.Direction = defaults.Layout.Direction
		}
		if config.Layout.NodeWidth == 0 {
			config.Layout.NodeWidth = defaults.Layout.NodeWidth
		}
		if config.Layout.NodeHeight == 0 {
			config.Layout.NodeHeight = defaults.Layout.NodeHeight
		}
		if config.Layout.RankSep == 0 {
			config.Layout.RankSep = defaults.Layout.RankSep
		}
		if config.Layout.NodeSep == 0 {
			config.Layout.NodeSep = defaults.Layout.NodeSep
		}
	}

	if config.Zoom == nil {
		config.Zoom = defaults.Zoom
	} else {
		// A custom table without an index starts at its first step
		if config.Zoom.Steps == nil {
			config.Zoom.Steps = defaults.Zoom.Steps
			if config.Zoom.DefaultIndex == nil {
				config.Zoom.DefaultIndex = defaults.Zoom.DefaultIndex
			}
		}
		if config.Zoom.DefaultIndex == nil {
			first := 0
			config.Zoom.DefaultIndex = &first
		}
	}

	if config.Viewport == nil {
		config.Viewport = defaults.Viewport
	} else {
		if config.Viewport.Padding == 0 {
			config.Viewport.Padding = defaults.Viewport.Padding
		}
		if config.Viewport.MinZoom == 0 {
			config.Viewport.MinZoom = defaults.Viewport.MinZoom
		}
		if config.Viewport.MaxZoom == 0 {
			config.Viewport.MaxZoom = defaults.Viewport.MaxZoom
		}
		if config.Viewport.Width == 0 {
			config.Viewport.Width = defaults.Viewport.Width
		}
		if config.Viewport.Height == 0 {
			config.Viewport.Height = defaults.Viewport.Height
		}
	}

	if config.Delays == nil {
		config.Delays = defaults.Delays
	} else {
		if config.Delays.Fit == 0 {
			config.Delays.Fit = defaults.Delays.Fit
		}
		if config.Delays.PreserveFit == 0 {
			config.Delays.PreserveFit = defaults.Delays.PreserveFit
		}
		if config.Delays.RestoreZoom == 0 {
			config.Delays.RestoreZoom = defaults.Delays.RestoreZoom
		}
		if config.Delays.ZoomReset == 0 {
			config.Delays.ZoomReset = defaults.Delays.ZoomReset
		}
	}

	if config.Memo == nil {
		config.Memo = defaults.Memo
	} else {
		if config.Memo.Size == 0 {
			config.Memo.Size = defaults.Memo.Size
		}
		if config.Memo.Strategy == "" {
			config.Memo.Strategy = defaults.Memo.Strategy
		}
	}

	if config.Log == nil {
		config.Log = defaults.Log
	} else {
		if config.Log.Level == "" {
			config.Log.Level = defaults.Log.Level
		}
		if config.Log.Format == "" {
			config.Log.Format = defaults.Log.Format
		}
	}

	if config.Server == nil {
		config.Server = defaults.Server
	} else {
		if config.Server.Addr == "" {
			config.Server.Addr = defaults.Server.Addr
		}
		if config.Server.Debounce == 0 {
			config.Server.Debounce = defaults.Server.Debounce
		}
	}
}

// Validate validates the configuration. It expects defaults to be applied.
func (c *Config) Validate() error {
	var errs []error

	if !graph.Direction(c.Layout.Direction).Valid() {
		errs = append(errs, fmt.Errorf("layout.direction must be TB or LR, got %q", c.Layout.Direction))
	}
	if c.Layout.NodeWidth < 0 || c.Layout.NodeHeight < 0 {
		errs = append(errs, errors.New("layout node size must not be negative"))
	}

	if err := zoom.ValidateSteps(c.Zoom.Steps); err != nil {
		errs = append(errs, fmt.Errorf("zoom.steps: %w", err))
	} else if i := *c.Zoom.DefaultIndex; i < 0 || i >= len(c.Zoom.Steps) {
		errs = append(errs, fmt.Errorf("zoom.defaultIndex %d is outside the %d steps", i, len(c.Zoom.Steps)))
	}

	if c.Viewport.Padding < 0 {
		errs = append(errs, errors.New("viewport.padding must not be negative"))
	}
	if c.Viewport.MinZoom > c.Viewport.MaxZoom {
		errs = append(errs, fmt.Errorf("viewport.minZoom %g exceeds maxZoom %g", c.Viewport.MinZoom, c.Viewport.MaxZoom))
	}

	for name, d := range map[string]time.Duration{
		"fit":         c.Delays.Fit,
		"preserveFit": c.Delays.PreserveFit,
		"restoreZoom": c.Delays.RestoreZoom,
		"zoomReset":   c.Delays.ZoomReset,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("delays.%s must not be negative", name))
		}
	}

	if _, err := cache.ParseStrategy(c.Memo.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("memo.strategy: %w", err))
	}

	if _, err := debug.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if f := debug.Format(c.Log.Format); f != debug.FormatText && f != debug.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Direction returns the configured layout direction
func (c *Config) Direction() graph.Direction {
	return graph.Direction(c.Layout.Direction)
}

// LayoutOptions returns the tree layout options
func (c *Config) LayoutOptions() layout.Options {
	return layout.Options{
		NodeWidth:  c.Layout.NodeWidth,
		NodeHeight: c.Layout.NodeHeight,
		RankSep:    c.Layout.RankSep,
		NodeSep:    c.Layout.NodeSep,
	}
}

// FitOptions returns the fit-to-content options
func (c *Config) FitOptions() viewport.FitOptions {
	return viewport.FitOptions{
		Padding: c.Viewport.Padding,
		MinZoom: c.Viewport.MinZoom,
		MaxZoom: c.Viewport.MaxZoom,
	}
}

// SchedulerDelays returns the delay per scheduler tag
func (c *Config) SchedulerDelays() scheduler.Delays {
	return scheduler.Delays{
		scheduler.TagFit:         c.Delays.Fit,
		scheduler.TagPreserveFit: c.Delays.PreserveFit,
		scheduler.TagRestoreZoom: c.Delays.RestoreZoom,
		scheduler.TagZoomReset:   c.Delays.ZoomReset,
	}
}

// MemoStrategy returns the memo eviction strategy
func (c *Config) MemoStrategy() cache.EvictionStrategy {
	s, _ := cache.ParseStrategy(c.Memo.Strategy)
	return s
}
