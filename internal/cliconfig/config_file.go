package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FilePanel is one [[panel]] table in the config file.
type FilePanel struct {
	Name    string `toml:"name"`
	Address string `toml:"address"`
	GridX   int    `toml:"grid_x"`
	GridY   int    `toml:"grid_y"`
}

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Panels []FilePanel `toml:"panel"`

	TileWidth  int `toml:"tile_width"`
	TileHeight int `toml:"tile_height"`
	Columns    int `toml:"columns"`
	Rows       int `toml:"rows"`

	ChunkSize int `toml:"chunk_size"`

	ConnectTimeout   string `toml:"connect_timeout"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	AckTimeout       string `toml:"ack_timeout"`

	// A pointer keeps an explicit zero, which disables reconnects,
	// distinct from an absent key.
	ReconnectAttempts *int   `toml:"reconnect_attempts"`
	ReconnectDelay    string `toml:"reconnect_delay"`
	ReconnectMaxDelay string `toml:"reconnect_max_delay"`

	FrameInterval string `toml:"frame_interval"`

	Verbose *bool `toml:"verbose"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.bklight/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".bklight", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	// The panel list has no flag equivalent; the file is its only
	// bulk source.
	if len(fc.Panels) > 0 && len(cfg.Panels) == 0 {
		cfg.Panels = make([]PanelConfig, len(fc.Panels))
		for i, p := range fc.Panels {
			cfg.Panels[i] = PanelConfig{Name: p.Name, Address: p.Address, GridX: p.GridX, GridY: p.GridY}
		}
	}

	s.setInt("tile-width", fc.TileWidth, &cfg.TileWidth)
	s.setInt("tile-height", fc.TileHeight, &cfg.TileHeight)
	s.setInt("columns", fc.Columns, &cfg.Columns)
	s.setInt("rows", fc.Rows, &cfg.Rows)
	s.setInt("chunk-size", fc.ChunkSize, &cfg.ChunkSize)
	s.setIntPtr("reconnect-attempts", fc.ReconnectAttempts, &cfg.ReconnectAttempts)

	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("handshake-timeout", fc.HandshakeTimeout, &cfg.HandshakeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("ack-timeout", fc.AckTimeout, &cfg.AckTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", fc.ReconnectDelay, &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-max-delay", fc.ReconnectMaxDelay, &cfg.ReconnectMaxDelay); err != nil {
		return err
	}
	if err := s.setDuration("frame-interval", fc.FrameInterval, &cfg.FrameInterval); err != nil {
		return err
	}

	s.setBool("verbose", fc.Verbose, &cfg.Verbose)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
