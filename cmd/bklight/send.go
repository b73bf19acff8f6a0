package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/content"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

func newSendCmd(state *flagState) *cobra.Command {
	var (
		mode   string
		rotate int
		mirror bool
		invert bool
	)

	cmd := &cobra.Command{
		Use:   "send IMAGE",
		Short: "Send a single image to the display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, state)
			if err != nil {
				return err
			}

			fitMode, err := content.ParseFitMode(mode)
			if err != nil {
				return err
			}

			d, logger, err := openDisplay(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := d.Connect(ctx); err != nil {
				// Partial connectivity still produces a report below.
				logger.Warn("not all panels connected", log.Err(err))
			}
			if d.ReadyCount() == 0 {
				return fmt.Errorf("no panels available")
			}

			w, h := d.CanvasSize()
			frame, err := content.Load(args[0], w, h, content.Options{
				Mode:   fitMode,
				Rotate: rotate,
				Mirror: mirror,
				Invert: invert,
			})
			if err != nil {
				return err
			}

			result, err := d.SendImage(ctx, frame)
			if err != nil {
				return err
			}
			return reportResult(logger, result)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "stretch", "image fit mode: stretch, contain, cover")
	cmd.Flags().IntVar(&rotate, "rotate", 0, "clockwise rotation in degrees (multiple of 90)")
	cmd.Flags().BoolVar(&mirror, "mirror", false, "flip the image horizontally")
	cmd.Flags().BoolVar(&invert, "invert", false, "invert colors")

	return cmd
}
