package protocol

// Byte tables captured from observed traffic. Revision 3 firmware; earlier
// revisions are not supported.
//
// Every host-to-device command and device-to-host marker starts with the
// two-byte vendor tag 'B' 'K' followed by an opcode.

const (
	tag0 = 0x42 // 'B'
	tag1 = 0x4B // 'K'
)

// Host-to-device opcodes (control characteristic).
const (
	opHello = 0x01 // handshake: announce host, request ready marker
	opFrame = 0x02 // full-frame payload follows
)

// Device-to-host opcodes (status characteristic notifications).
const (
	markReady    = 0x81 // handshake complete, device accepts a frame
	markProgress = 0x85 // chunk progress, uint16 LE chunk index follows
	markDone     = 0x86 // frame transfer complete
	markError    = 0xEE // transfer rejected, error code follows
)

// helloRevision is the protocol revision byte the hello command announces.
const helloRevision = 0x03

// Hello returns the handshake command written to the control characteristic
// after link-up.
func Hello() []byte {
	return []byte{tag0, tag1, opHello, helloRevision}
}
