// Package protocol implements the vendor wire format of the bk-light panel
// firmware: frame encoding, the handshake command, and parsing of the
// notification markers the device emits on its status characteristic.
//
// The firmware ships no public specification. The byte tables in opcodes.go
// were captured once from observed traffic and are treated as an opaque,
// versionless contract; nothing outside this package sees raw opcodes.
package protocol
