// Package packet encodes and decodes the mixer wire protocol: audio frames,
// silence-collapsed audio frames and lane volume changes.
//
// Layouts (all single-byte integers):
//
//	audio         0x10 | lane name (3) | ext len N | ext (N) | PCM s16le (frame bytes)
//	silent audio  0x11 | lane name (3) | ext len N | ext (N)
//	volume modify 0x20 | lane id | volume percent
package packet

import (
	"fmt"

	"github.com/Raikerian/go-lane-mixer/pkg/audio"
)

// Packet type identifiers (byte 0 of every packet).
const (
	AudioPacketTypeID        byte = 0x10
	SilentAudioPacketTypeID  byte = 0x11
	VolumeModifyPacketTypeID byte = 0x20
)

// Field limits.
const (
	LaneNameLen    = 3
	MaxExtBytesLen = 255

	// audioHeaderLen covers type id, lane name and the ext length byte.
	audioHeaderLen = 1 + LaneNameLen + 1

	VolumeModifyPacketLen = 3
)

// Kind identifies which layout a raw packet claims to follow.
type Kind int

const (
	KindUnknown Kind = iota
	KindAudio
	KindSilentAudio
	KindVolumeModify
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindSilentAudio:
		return "silent_audio"
	case KindVolumeModify:
		return "volume_modify"
	default:
		return "unknown"
	}
}

// Classify reads the type id of raw without validating the rest of the layout.
func Classify(raw []byte) (Kind, error) {
	if len(raw) == 0 {
		return KindUnknown, fmt.Errorf("%w: empty packet", audio.ErrMalformedPacket)
	}

	switch raw[0] {
	case AudioPacketTypeID:
		return KindAudio, nil
	case SilentAudioPacketTypeID:
		return KindSilentAudio, nil
	case VolumeModifyPacketTypeID:
		return KindVolumeModify, nil
	default:
		return KindUnknown, fmt.Errorf("%w: unknown packet type id 0x%02x", audio.ErrMalformedPacket, raw[0])
	}
}
