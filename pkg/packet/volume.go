package packet

import (
	"fmt"

	"github.com/Raikerian/go-lane-mixer/pkg/audio"
)

// EncodeVolumeModify builds a volume-modify packet for laneID.
// Both values must fit in one byte.
func EncodeVolumeModify(laneID, volumePercent int) ([]byte, error) {
	if laneID < 0 || laneID > 255 {
		return nil, fmt.Errorf("%w: lane id must be in 0-255, got %d", audio.ErrInvalidArgument, laneID)
	}
	if volumePercent < 0 || volumePercent > 255 {
		return nil, fmt.Errorf("%w: volume percent must be in 0-255, got %d", audio.ErrInvalidArgument, volumePercent)
	}

	return []byte{VolumeModifyPacketTypeID, byte(laneID), byte(volumePercent)}, nil
}

// DecodeVolumeModify unpacks a volume-modify packet.
func DecodeVolumeModify(raw []byte) (laneID, volumePercent int, err error) {
	if err := checkVolumeModifyPacket(raw); err != nil {
		return 0, 0, err
	}
	return int(raw[1]), int(raw[2]), nil
}

// IsVolumeModifyPacket reports whether raw is a well-formed volume-modify
// packet. Only an empty buffer is an error.
func IsVolumeModifyPacket(raw []byte) (bool, error) {
	if len(raw) == 0 {
		return false, fmt.Errorf("%w: empty packet", audio.ErrMalformedPacket)
	}
	return checkVolumeModifyPacket(raw) == nil, nil
}

func checkVolumeModifyPacket(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty packet", audio.ErrMalformedPacket)
	}
	if raw[0] != VolumeModifyPacketTypeID {
		return fmt.Errorf("%w: not a volume modify packet (type id 0x%02x)", audio.ErrMalformedPacket, raw[0])
	}
	if len(raw) != VolumeModifyPacketLen {
		return fmt.Errorf("%w: volume modify packet must be %d bytes, got %d",
			audio.ErrMalformedPacket, VolumeModifyPacketLen, len(raw))
	}
	return nil
}
