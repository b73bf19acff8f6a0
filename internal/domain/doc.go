// Package domain contains the core types shared across the bk-light
// transport layer.
//
// # Entities
//
//   - [PanelIdentity]: a configured panel and its place in the composite grid
//   - [FrameBuffer]: a fixed-size RGB bitmap at a panel's native resolution
//   - [EncodedFrame]: the wire representation of one frame, ready to stream
//   - [SessionState]: the transport session state machine states
//   - [AckEvent]: a notification marker emitted by the panel firmware
//   - [Outcome] / [CompositeResult]: per-panel delivery reporting
//
// The package has no dependencies on BLE, configuration, or logging; it only
// defines the vocabulary the other layers speak.
package domain
