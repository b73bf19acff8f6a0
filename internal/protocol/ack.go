package protocol

import (
	"encoding/binary"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
)

// ParseAck decodes a status characteristic notification into an AckEvent.
// Unrecognized payloads return ok=false and are ignored by the session;
// firmware chatter on the status characteristic is not an error.
func ParseAck(p []byte) (domain.AckEvent, bool) {
	if len(p) < 3 || p[0] != tag0 || p[1] != tag1 {
		return domain.AckEvent{}, false
	}

	switch p[2] {
	case markReady:
		return domain.AckEvent{Kind: domain.AckReady}, true

	case markProgress:
		if len(p) < 5 {
			return domain.AckEvent{}, false
		}
		return domain.AckEvent{
			Kind:  domain.AckProgress,
			Chunk: int(binary.LittleEndian.Uint16(p[3:5])),
		}, true

	case markDone:
		return domain.AckEvent{Kind: domain.AckDone}, true

	case markError:
		ev := domain.AckEvent{Kind: domain.AckError}
		if len(p) >= 4 {
			ev.Code = p[3]
		}
		return ev, true

	default:
		return domain.AckEvent{}, false
	}
}
