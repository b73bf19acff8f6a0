package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/ports"
	"github.com/kacper-serewis/Bk-Light-AppBypass/pkg/log"
)

// GATT identity of the panel firmware. The write characteristic
// carries outbound packets, the notify characteristic carries the
// controller's status notifications.
var (
	serviceUUID = mustUUID("0000fff0-0000-1000-8000-00805f9b34fb")
	writeUUID   = mustUUID("0000fff2-0000-1000-8000-00805f9b34fb")
	notifyUUID  = mustUUID("0000fff1-0000-1000-8000-00805f9b34fb")
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Dialer opens GATT links to panel controllers addressed by MAC. A
// single Dialer is shared by all sessions; the underlying adapter is
// enabled on first use.
type Dialer struct {
	adapter *bluetooth.Adapter
	logger  log.Logger

	enableOnce sync.Once
	enableErr  error

	mu    sync.Mutex
	links map[string]*deviceLink
}

// NewDialer wraps the host's default Bluetooth adapter.
func NewDialer(logger log.Logger) *Dialer {
	if logger == nil {
		logger = &log.NoopLogger{}
	}
	return &Dialer{
		adapter: bluetooth.DefaultAdapter,
		logger:  logger,
		links:   map[string]*deviceLink{},
	}
}

func (d *Dialer) enable() error {
	d.enableOnce.Do(func() {
		if err := d.adapter.Enable(); err != nil {
			d.enableErr = fmt.Errorf("enable bluetooth adapter: %w", err)
			return
		}
		// The stack reports disconnects through a single adapter-wide
		// handler, so fan them out to the affected link here.
		d.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			if connected {
				return
			}
			addr := normalizeAddr(device.Address.String())
			d.mu.Lock()
			link := d.links[addr]
			delete(d.links, addr)
			d.mu.Unlock()
			if link != nil {
				d.logger.Warn("link dropped by remote", log.String("address", addr))
				link.markDropped()
			}
		})
	})
	return d.enableErr
}

// Dial connects to the controller at address, discovers the vendor
// service and returns a ready-to-use link. The context bounds the
// connection attempt only.
func (d *Dialer) Dial(ctx context.Context, address string) (ports.Link, error) {
	if err := d.enable(); err != nil {
		return nil, err
	}

	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", address, err)
	}
	target := bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}

	device, err := d.connect(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}

	link, err := d.openLink(device)
	if err != nil {
		_ = device.Disconnect()
		return nil, fmt.Errorf("open link %s: %w", address, err)
	}

	addr := normalizeAddr(address)
	d.mu.Lock()
	d.links[addr] = link
	d.mu.Unlock()

	d.logger.Info("connected",
		log.String("address", addr),
		log.Int("chunk_size", link.ChunkSize()))
	return link, nil
}

// connect runs the blocking adapter connect in a goroutine so the
// caller's context keeps its authority over the attempt.
func (d *Dialer) connect(ctx context.Context, target bluetooth.Address) (bluetooth.Device, error) {
	type result struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		device, err := d.adapter.Connect(target, bluetooth.ConnectionParams{})
		ch <- result{device, err}
	}()

	select {
	case r := <-ch:
		return r.device, r.err
	case <-ctx.Done():
		// Abandoned attempt: if it eventually succeeds, drop the
		// surplus connection.
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.device.Disconnect()
			}
		}()
		return bluetooth.Device{}, ctx.Err()
	}
}

func (d *Dialer) openLink(device bluetooth.Device) (*deviceLink, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return nil, fmt.Errorf("discover service: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("vendor service %s not present", serviceUUID)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{writeUUID, notifyUUID})
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}
	if len(chars) < 2 {
		return nil, fmt.Errorf("vendor characteristics incomplete: got %d of 2", len(chars))
	}

	return newDeviceLink(device, chars[0], chars[1]), nil
}

func normalizeAddr(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
