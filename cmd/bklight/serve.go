package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/bklight"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func newServeCmd(state *flagState) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept raw frames over WebSocket and push them to the display",
		Long: `Serve starts an HTTP server with two endpoints:

  /stream  WebSocket. Each binary message is one raw frame: width x
           height x 3 bytes of row-major RGB for the full canvas.
  /healthz Reports the display layout and how many panels are ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, state)
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

			w, h := d.CanvasSize()
			frameLen := w * h * 3

			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
				rw.Header().Set("Content-Type", "application/json")
				json.NewEncoder(rw).Encode(map[string]any{
					"width":  w,
					"height": h,
					"ready":  d.ReadyCount(),
					"panels": len(cfg.Panels),
				})
			})
			mux.HandleFunc("/stream", func(rw http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(rw, r, nil)
				if err != nil {
					logger.Error("websocket upgrade", log.Err(err))
					return
				}
				defer conn.Close()
				logger.Info("stream client connected", log.String("remote", r.RemoteAddr))

				sender := newFrameSender(d, logger, cfg.FrameInterval)
				for {
					msgType, data, err := conn.ReadMessage()
					if err != nil {
						logger.Info("stream client gone", log.Err(err))
						return
					}
					if msgType != websocket.BinaryMessage {
						continue
					}
					if len(data) != frameLen {
						logger.Warn("bad frame size",
							log.Int("got", len(data)),
							log.Int("want", frameLen))
						continue
					}

					frame, err := bklight.NewFrameBuffer(w, h)
					if err != nil {
						logger.Error("frame alloc", log.Err(err))
						return
					}
					copyFrame(frame, data, w, h)
					sender.send(r.Context(), frame)
				}
			})

			srv := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logger.Info("serving", log.String("listen", listen))

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8089", "listen address")

	return cmd
}

func copyFrame(frame *bklight.FrameBuffer, data []byte, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			frame.SetPixel(x, y, data[i], data[i+1], data[i+2])
		}
	}
}
