package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (BKLIGHT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	// A single-panel setup can be addressed entirely from the
	// environment.
	if addr := os.Getenv("BKLIGHT_ADDRESS"); addr != "" && len(cfg.Panels) == 0 {
		cfg.Panels = []PanelConfig{{Address: addr}}
	}

	if err := s.setIntFromString("tile-width", os.Getenv("BKLIGHT_TILE_WIDTH"), &cfg.TileWidth); err != nil {
		return err
	}
	if err := s.setIntFromString("tile-height", os.Getenv("BKLIGHT_TILE_HEIGHT"), &cfg.TileHeight); err != nil {
		return err
	}
	if err := s.setIntFromString("columns", os.Getenv("BKLIGHT_COLUMNS"), &cfg.Columns); err != nil {
		return err
	}
	if err := s.setIntFromString("rows", os.Getenv("BKLIGHT_ROWS"), &cfg.Rows); err != nil {
		return err
	}
	if err := s.setIntFromString("chunk-size", os.Getenv("BKLIGHT_CHUNK_SIZE"), &cfg.ChunkSize); err != nil {
		return err
	}
	if err := s.setNonNegativeIntFromString("reconnect-attempts", os.Getenv("BKLIGHT_RECONNECT_ATTEMPTS"), &cfg.ReconnectAttempts); err != nil {
		return err
	}

	if err := s.setDuration("connect-timeout", os.Getenv("BKLIGHT_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("handshake-timeout", os.Getenv("BKLIGHT_HANDSHAKE_TIMEOUT"), &cfg.HandshakeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("ack-timeout", os.Getenv("BKLIGHT_ACK_TIMEOUT"), &cfg.AckTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", os.Getenv("BKLIGHT_RECONNECT_DELAY"), &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-max-delay", os.Getenv("BKLIGHT_RECONNECT_MAX_DELAY"), &cfg.ReconnectMaxDelay); err != nil {
		return err
	}
	if err := s.setDuration("frame-interval", os.Getenv("BKLIGHT_FRAME_INTERVAL"), &cfg.FrameInterval); err != nil {
		return err
	}

	s.setBoolFromString("verbose", os.Getenv("BKLIGHT_VERBOSE"), &cfg.Verbose)

	return nil
}
