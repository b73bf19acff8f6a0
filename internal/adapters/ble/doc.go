// Package ble connects panel sessions to real hardware through the
// host Bluetooth adapter. It implements the ports.LinkDialer and
// ports.Link contracts on top of tinygo.org/x/bluetooth.
package ble
