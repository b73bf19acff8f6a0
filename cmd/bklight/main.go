package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/cliconfig"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/bklight"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

const helpDescription = `
Drive BLE RGB LED matrix panels directly, without the vendor app.

Highlights:
  - Streams frames over GATT with MTU-sized chunking and delivery acks.
  - Tiles a single image across a grid of panels, sent concurrently.
  - Reconnects dropped panels with exponential backoff.
  - Configure via file ($HOME/.bklight/config.toml), BKLIGHT_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  bklight send cat.png --address AA:BB:CC:DD:EE:FF
  bklight watch dashboard.png --config ~/.bklight/config.toml
  bklight serve --listen :8089
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// flagState carries the pieces every subcommand needs to resolve its
// final configuration.
type flagState struct {
	cfg     cliconfig.Config
	cfgPath string
	address string
}

func main() {
	state := &flagState{cfg: cliconfig.DefaultConfig()}

	zl := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "bklight",
		Short:   "Drive BLE RGB LED matrix panels directly, without the vendor app",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
	}

	pf := root.PersistentFlags()
	pf.StringVar(&state.cfgPath, "config", "", "path to config file (default: $HOME/.bklight/config.toml)")
	pf.StringVar(&state.address, "address", "", "panel MAC address (single-panel shortcut)")
	pf.IntVar(&state.cfg.TileWidth, "tile-width", state.cfg.TileWidth, "panel width in pixels")
	pf.IntVar(&state.cfg.TileHeight, "tile-height", state.cfg.TileHeight, "panel height in pixels")
	pf.IntVar(&state.cfg.Columns, "columns", state.cfg.Columns, "grid columns")
	pf.IntVar(&state.cfg.Rows, "rows", state.cfg.Rows, "grid rows")
	pf.IntVar(&state.cfg.ChunkSize, "chunk-size", state.cfg.ChunkSize, "maximum bytes per BLE write")
	pf.DurationVar(&state.cfg.ConnectTimeout, "connect-timeout", state.cfg.ConnectTimeout, "BLE connection timeout")
	pf.DurationVar(&state.cfg.HandshakeTimeout, "handshake-timeout", state.cfg.HandshakeTimeout, "handshake ack timeout")
	pf.DurationVar(&state.cfg.AckTimeout, "ack-timeout", state.cfg.AckTimeout, "frame delivery ack timeout")
	pf.IntVar(&state.cfg.ReconnectAttempts, "reconnect-attempts", state.cfg.ReconnectAttempts, "reconnect attempts after a drop (0 disables)")
	pf.DurationVar(&state.cfg.ReconnectDelay, "reconnect-delay", state.cfg.ReconnectDelay, "initial reconnect backoff delay")
	pf.DurationVar(&state.cfg.ReconnectMaxDelay, "reconnect-max-delay", state.cfg.ReconnectMaxDelay, "maximum reconnect backoff delay")
	pf.DurationVar(&state.cfg.FrameInterval, "frame-interval", state.cfg.FrameInterval, "minimum spacing between streamed frames")
	pf.BoolVarP(&state.cfg.Verbose, "verbose", "v", state.cfg.Verbose, "enable debug logging")

	root.AddCommand(newSendCmd(state), newWatchCmd(state), newServeCmd(state))

	if err := root.Execute(); err != nil {
		zl.Error().Err(err).Msg("bklight")
		os.Exit(1)
	}
}

// resolveConfig finishes the config in precedence order: defaults,
// then file, then environment, then explicitly set flags.
func resolveConfig(cmd *cobra.Command, state *flagState) (cliconfig.Config, error) {
	cfg := state.cfg

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	cmd.InheritedFlags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := state.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}

	// The --address shortcut wins over any configured panel list.
	if state.address != "" {
		cfg.Panels = []cliconfig.PanelConfig{{Address: state.address}}
		cfg.Columns, cfg.Rows = 1, 1
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openDisplay builds the display with a console logger at the
// configured verbosity.
func openDisplay(cfg cliconfig.Config) (*bklight.Display, log.Logger, error) {
	zl := cliconfig.Logger()
	if cfg.Verbose {
		zl = zl.Level(zerolog.DebugLevel)
	} else {
		zl = zl.Level(zerolog.InfoLevel)
	}
	logger := log.NewZerologAdapterWithLogger(zl)

	d, err := bklight.Open(cfg, bklight.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return d, logger, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// reportResult logs per-panel outcomes and returns an error when any
// panel did not get the frame.
func reportResult(logger log.Logger, result bklight.CompositeResult) error {
	for name, outcome := range result {
		switch {
		case outcome.Err != nil:
			logger.Error("panel failed",
				log.String("panel", name),
				log.String("reason", outcome.Reason.String()),
				log.Err(outcome.Err))
		default:
			logger.Info("panel", log.String("panel", name), log.String("status", outcome.Status.String()))
		}
	}
	if !result.AllDelivered() {
		delivered, failed, skipped := result.Counts()
		return fmt.Errorf("delivered %d, failed %d, skipped %d", delivered, failed, skipped)
	}
	return nil
}
