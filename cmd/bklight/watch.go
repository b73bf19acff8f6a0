package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/content"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/bklight"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

func newWatchCmd(state *flagState) *cobra.Command {
	var (
		mode   string
		rotate int
		mirror bool
		invert bool
	)

	cmd := &cobra.Command{
		Use:   "watch IMAGE",
		Short: "Watch an image file and resend it on every change",
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
			contentOpts := content.Options{Mode: fitMode, Rotate: rotate, Mirror: mirror, Invert: invert}

			path, err := filepath.Abs(args[0])
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
				logger.Warn("not all panels connected", log.Err(err))
			}
			if d.ReadyCount() == 0 {
				return fmt.Errorf("no panels available")
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			// Watch the directory: editors replace files rather than
			// writing them in place, which a file-level watch misses.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
			}

			sender := newFrameSender(d, logger, cfg.FrameInterval)

			// Initial frame before the first change.
			sender.sendFile(ctx, path, contentOpts)

			logger.Info("watching", log.String("path", path))
			debounce := cfg.FrameInterval
			if debounce <= 0 {
				debounce = 100 * time.Millisecond
			}
			var timer *time.Timer
			defer func() {
				if timer != nil {
					timer.Stop()
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != path {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(debounce, func() {
						sender.sendFile(ctx, path, contentOpts)
					})

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Error("watcher error", log.Err(err))
				}
			}
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "stretch", "image fit mode: stretch, contain, cover")
	cmd.Flags().IntVar(&rotate, "rotate", 0, "clockwise rotation in degrees (multiple of 90)")
	cmd.Flags().BoolVar(&mirror, "mirror", false, "flip the image horizontally")
	cmd.Flags().BoolVar(&invert, "invert", false, "invert colors")

	return cmd
}

// frameSender serializes frame pushes and enforces the minimum
// interval between them.
type frameSender struct {
	display  *bklight.Display
	logger   log.Logger
	interval time.Duration
	last     time.Time
}

func newFrameSender(d *bklight.Display, logger log.Logger, interval time.Duration) *frameSender {
	return &frameSender{display: d, logger: logger, interval: interval}
}

func (s *frameSender) sendFile(ctx context.Context, path string, opts content.Options) {
	w, h := s.display.CanvasSize()
	frame, err := content.Load(path, w, h, opts)
	if err != nil {
		s.logger.Error("load image", log.String("path", path), log.Err(err))
		return
	}
	s.send(ctx, frame)
}

func (s *frameSender) send(ctx context.Context, frame *bklight.FrameBuffer) {
	if wait := s.interval - time.Since(s.last); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
	s.last = time.Now()

	result, err := s.display.SendImage(ctx, frame)
	if err != nil {
		s.logger.Error("send frame", log.Err(err))
		return
	}
	delivered, failed, skipped := result.Counts()
	s.logger.Info("frame sent",
		log.Int("delivered", delivered),
		log.Int("failed", failed),
		log.Int("skipped", skipped))
}
