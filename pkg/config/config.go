// Package config handles loading and saving burrow configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/burrow/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/burrow/pkg/graphtree"
)

// maxRecentDatabases caps the recent-databases list.
const maxRecentDatabases = 8

// RenderConfig holds the default tree rendering options. String fields use
// the same names the in-app option cycling shows; unknown values fall back
// to defaults during validation.
type RenderConfig struct {
	AttributeOrder    string `yaml:"attribute_order,omitempty"`    // schema, alpha
	ReferencePosition string `yaml:"reference_position,omitempty"` // end, start, inline
	AttributeLayout   string `yaml:"attribute_layout,omitempty"`   // row, list
	ShowCycles        *bool  `yaml:"show_cycles,omitempty"`
	ShowSystemColumns bool   `yaml:"show_system_columns,omitempty"`
	PreviewLimit      int    `yaml:"preview_limit,omitempty"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	Theme         string `yaml:"theme,omitempty"` // dark, light, auto
	CompactHeader bool   `yaml:"compact_header,omitempty"`
}

// Config is the top-level configuration for burrow.
type Config struct {
	Render          RenderConfig `yaml:"render,omitempty"`
	UI              UIConfig     `yaml:"ui,omitempty"`
	RecentDatabases []string     `yaml:"recent_databases,omitempty"` // most recent first
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Render: RenderConfig{
			AttributeOrder:    graphtree.OrderSchema.String(),
			ReferencePosition: graphtree.RefsEnd.String(),
			AttributeLayout:   graphtree.LayoutRow.String(),
			PreviewLimit:      graphtree.DefaultPreviewLimit,
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// Options maps the configured render settings onto engine options.
// Unparseable strings keep the engine defaults.
func (c Config) Options() graphtree.Options {
	opts := graphtree.DefaultOptions()
	opts.AttributeOrder, _ = graphtree.ParseAttributeOrder(c.Render.AttributeOrder)
	opts.ReferencePosition, _ = graphtree.ParseReferencePosition(c.Render.ReferencePosition)
	opts.AttributeLayout, _ = graphtree.ParseAttributeLayout(c.Render.AttributeLayout)
	if c.Render.ShowCycles != nil {
		opts.ShowCycles = *c.Render.ShowCycles
	}
	opts.ShowSystemColumns = c.Render.ShowSystemColumns
	if c.Render.PreviewLimit > 0 {
		opts.BackRefPreviewLimit = c.Render.PreviewLimit
	}
	return opts
}

// Validate replaces unknown or out-of-range settings with defaults and
// returns one warning per replacement.
func (c *Config) Validate() []string {
	var warnings []string
	if _, ok := graphtree.ParseAttributeOrder(c.Render.AttributeOrder); !ok {
		warnings = append(warnings, fmt.Sprintf("unknown attribute_order %q, using %q", c.Render.AttributeOrder, graphtree.OrderSchema))
		c.Render.AttributeOrder = graphtree.OrderSchema.String()
	}
	if _, ok := graphtree.ParseReferencePosition(c.Render.ReferencePosition); !ok {
		warnings = append(warnings, fmt.Sprintf("unknown reference_position %q, using %q", c.Render.ReferencePosition, graphtree.RefsEnd))
		c.Render.ReferencePosition = graphtree.RefsEnd.String()
	}
	if _, ok := graphtree.ParseAttributeLayout(c.Render.AttributeLayout); !ok {
		warnings = append(warnings, fmt.Sprintf("unknown attribute_layout %q, using %q", c.Render.AttributeLayout, graphtree.LayoutRow))
		c.Render.AttributeLayout = graphtree.LayoutRow.String()
	}
	if c.Render.PreviewLimit < 0 {
		warnings = append(warnings, fmt.Sprintf("preview_limit %d is not positive, using %d", c.Render.PreviewLimit, graphtree.DefaultPreviewLimit))
		c.Render.PreviewLimit = graphtree.DefaultPreviewLimit
	}
	switch c.UI.Theme {
	case "", "dark", "light", "auto":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown theme %q, using auto", c.UI.Theme))
		c.UI.Theme = "auto"
	}
	return warnings
}

// RememberDatabase moves path to the front of the recent list, dropping
// duplicates and anything beyond the cap.
func (c *Config) RememberDatabase(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	recent := make([]string, 0, maxRecentDatabases)
	recent = append(recent, path)
	for _, p := range c.RecentDatabases {
		if p == path {
			continue
		}
		recent = append(recent, p)
		if len(recent) == maxRecentDatabases {
			break
		}
	}
	c.RecentDatabases = recent
}

// ConfigDir returns the XDG config directory for burrow.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "burrow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "burrow")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	// Out-of-range values degrade to defaults rather than failing the load.
	cfg.Validate()

	for i := range cfg.RecentDatabases {
		cfg.RecentDatabases[i] = expandHome(cfg.RecentDatabases[i])
	}

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
