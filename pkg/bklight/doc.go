// Package bklight drives BLE-attached RGB LED matrix panels directly,
// without the vendor's phone app. It can be used from the bklight CLI
// or embedded as a library in other Go programs.
//
// # Basic Usage
//
//	cfg := bklight.DefaultConfig()
//	cfg.Panels = []bklight.PanelConfig{{Address: "AA:BB:CC:DD:EE:FF"}}
//
//	d, err := bklight.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	if err := d.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	frame, _ := bklight.NewFrameBuffer(d.CanvasSize())
//	frame.Fill(255, 0, 0)
//	result, err := d.SendImage(ctx, frame)
//
// A display spanning several panels is configured by placing each
// panel on a grid; SendImage slices the composite frame and fans the
// tiles out to every connected panel concurrently.
package bklight
