package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RemoteConfig describes the remote appointment store the engine syncs with.
type RemoteConfig struct {
	// BaseURL is the root of the REST API, e.g. "https://clinic.example.com".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// TokenEnv names the environment variable holding the bearer token for
	// the remote store. Empty means unauthenticated requests.
	TokenEnv string `yaml:"token_env" json:"token_env"`
	// TimeoutSeconds bounds each request to the remote store.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// GridConfig holds the pixel constants of the week grid. The browser UI reads
// these from /api/week so that both sides agree on the geometry.
type GridConfig struct {
	// HalfHourHeight is the height in pixels of one 30-minute cell.
	HalfHourHeight int `yaml:"half_hour_height" json:"half_hour_height"`
	// HeaderHeight is the height in pixels of the day-header strip above the grid.
	HeaderHeight int `yaml:"header_height" json:"header_height"`
	// TimeColWidth is the width in pixels of the time gutter on the left.
	TimeColWidth int `yaml:"time_col_width" json:"time_col_width"`
}

// BlockedConfig defines one recurring blocked period (lunch break, weekly
// closure) drawn behind appointments. Rule is an RFC 5545 RRULE string whose
// DTSTART supplies the time of day.
type BlockedConfig struct {
	Label           string `yaml:"label" json:"label"`
	Rule            string `yaml:"rrule" json:"rrule"`
	DurationMinutes int    `yaml:"duration_minutes" json:"duration_minutes"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Remote is the appointment store boundary.
	Remote RemoteConfig `yaml:"remote" json:"remote"`

	// LabelField selects which wire field carries the appointment label when
	// writing to the remote store. Supported values: "title" (default),
	// "notes". Reads accept either regardless.
	LabelField string `yaml:"label_field" json:"label_field"`

	// RefreshCron is a cron-style schedule for re-fetching the visible week,
	// so an optimistic state that outlived a failed or hung commit converges
	// back to the server's.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// SnapMinutes is the snapping granularity for drag and resize gestures.
	SnapMinutes int `yaml:"snap_minutes" json:"snap_minutes"`

	// Grid holds the pixel geometry of the week view.
	Grid GridConfig `yaml:"grid" json:"grid"`

	// Treatments is the suggestion list offered by the create form.
	Treatments []string `yaml:"treatments" json:"treatments"`

	// Blocked lists recurring closed periods rendered behind appointments.
	Blocked []BlockedConfig `yaml:"blocked" json:"blocked"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1:8080",
		Remote: RemoteConfig{
			BaseURL:        "http://127.0.0.1:6060",
			TokenEnv:       "DENTCAL_API_TOKEN",
			TimeoutSeconds: 15,
		},
		LabelField:  "title",
		RefreshCron: "*/5 * * * *",
		SnapMinutes: 5,
		Grid: GridConfig{
			HalfHourHeight: 40,
			HeaderHeight:   60,
			TimeColWidth:   60,
		},
		Treatments: []string{
			"RCT",
			"Filling",
			"Cleaning",
			"Cap Measurement",
			"Cap Fixing",
			"Ortho",
		},
		Blocked:   []BlockedConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = def.Remote.BaseURL
	}
	if c.Remote.TokenEnv == "" {
		c.Remote.TokenEnv = def.Remote.TokenEnv
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = def.Remote.TimeoutSeconds
	}

	// LabelField default & validation.
	switch c.LabelField {
	case "title", "notes":
		// ok
	default:
		// Unknown value; fall back to title to avoid writing a field the
		// remote store does not know.
		c.LabelField = "title"
	}

	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.SnapMinutes <= 0 {
		c.SnapMinutes = def.SnapMinutes
	}
	if c.Grid.HalfHourHeight <= 0 {
		c.Grid.HalfHourHeight = def.Grid.HalfHourHeight
	}
	if c.Grid.HeaderHeight <= 0 {
		c.Grid.HeaderHeight = def.Grid.HeaderHeight
	}
	if c.Grid.TimeColWidth <= 0 {
		c.Grid.TimeColWidth = def.Grid.TimeColWidth
	}
	if c.Treatments == nil {
		c.Treatments = def.Treatments
	}
	if c.Blocked == nil {
		c.Blocked = []BlockedConfig{}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".dentcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
