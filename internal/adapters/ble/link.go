package ble

import (
	"context"
	"errors"
	"sync"

	"tinygo.org/x/bluetooth"
)

var errLinkClosed = errors.New("ble: link closed")

// fallbackChunkSize is used when the ATT MTU cannot be read. Every BLE
// stack supports at least the default 23 byte MTU minus the 3 byte ATT
// header.
const fallbackChunkSize = 20

// deviceLink is a live GATT connection to one panel controller.
type deviceLink struct {
	device bluetooth.Device
	write  bluetooth.DeviceCharacteristic
	notify bluetooth.DeviceCharacteristic

	chunkSize int

	closeOnce sync.Once
	done      chan struct{}
}

func newDeviceLink(device bluetooth.Device, write, notify bluetooth.DeviceCharacteristic) *deviceLink {
	l := &deviceLink{
		device:    device,
		write:     write,
		notify:    notify,
		chunkSize: fallbackChunkSize,
		done:      make(chan struct{}),
	}
	if mtu, err := write.GetMTU(); err == nil && int(mtu) > 3 {
		l.chunkSize = int(mtu) - 3
	}
	return l
}

func (l *deviceLink) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-l.done:
		return errLinkClosed
	default:
	}
	_, err := l.write.WriteWithoutResponse(p)
	return err
}

func (l *deviceLink) Subscribe(fn func([]byte)) error {
	return l.notify.EnableNotifications(fn)
}

func (l *deviceLink) ChunkSize() int { return l.chunkSize }

func (l *deviceLink) Done() <-chan struct{} { return l.done }

// markDropped records a remote-initiated disconnect.
func (l *deviceLink) markDropped() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *deviceLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.device.Disconnect()
		close(l.done)
	})
	return err
}
