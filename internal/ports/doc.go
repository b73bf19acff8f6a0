// Package ports defines the interfaces (ports) that connect the transport
// core to infrastructure adapters.
//
// Ports are the boundary between the session state machine and the outside
// world. The session layer depends only on these interfaces; the BLE adapter
// (internal/adapters/ble) implements them against a real radio, and tests
// implement them in-memory.
//
// # Port Interfaces
//
//   - [Link]: one established connection to a panel's GATT characteristics
//   - [LinkDialer]: establishes links by device address
package ports
