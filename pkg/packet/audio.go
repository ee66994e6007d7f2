package packet

import (
	"fmt"
	"strings"

	"github.com/Raikerian/go-lane-mixer/pkg/audio"
)

// DefaultSilenceThresholdDBFS is the level under which frames are sent as
// silent audio packets.
const DefaultSilenceThresholdDBFS = -20.0

// AudioPacket is a decoded audio or silent audio packet.
type AudioPacket struct {
	LaneName string // padding trimmed
	ExtBytes []byte
	PCM      []int16 // always Format.FrameLen() samples
	Silent   bool
}

// Codec encodes and decodes audio packets for one fixed audio format.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	format           audio.Format
	silenceThreshold float64
}

// NewCodec returns a codec framing audio in format. Frames quieter than
// silenceThresholdDBFS are encoded as silent audio packets.
func NewCodec(format audio.Format, silenceThresholdDBFS float64) *Codec {
	return &Codec{
		format:           format,
		silenceThreshold: silenceThresholdDBFS,
	}
}

// Format returns the audio format the codec frames.
func (c *Codec) Format() audio.Format { return c.format }

// SilenceThreshold returns the configured silence threshold in dBFS.
func (c *Codec) SilenceThreshold() float64 { return c.silenceThreshold }

// EncodeAudio encodes one frame using the codec's silence threshold.
func (c *Codec) EncodeAudio(pcm []int16, laneName string, ext []byte) ([]byte, error) {
	return c.EncodeAudioThreshold(pcm, laneName, ext, c.silenceThreshold)
}

// EncodeAudioThreshold encodes one frame as an audio packet, or as a silent
// audio packet when its level is below thresholdDBFS.
func (c *Codec) EncodeAudioThreshold(pcm []int16, laneName string, ext []byte, thresholdDBFS float64) ([]byte, error) {
	if len(pcm) != c.format.FrameLen() {
		return nil, fmt.Errorf("%w: audio frame must be %d samples, got %d",
			audio.ErrInvalidArgument, c.format.FrameLen(), len(pcm))
	}
	if err := validateLaneName(laneName); err != nil {
		return nil, err
	}
	if len(ext) > MaxExtBytesLen {
		return nil, fmt.Errorf("%w: ext bytes must be at most %d bytes, got %d",
			audio.ErrInvalidArgument, MaxExtBytesLen, len(ext))
	}

	silent := audio.DBFS(pcm) < thresholdDBFS

	size := audioHeaderLen + len(ext)
	typeID := SilentAudioPacketTypeID
	if !silent {
		size += c.format.FrameBytes()
		typeID = AudioPacketTypeID
	}

	out := make([]byte, 0, size)
	out = append(out, typeID)
	out = append(out, padLaneName(laneName)...)
	out = append(out, byte(len(ext)))
	out = append(out, ext...)
	if !silent {
		out = audio.AppendPCMInt16LE(out, pcm)
	}

	return out, nil
}

// DecodeAudio decodes an audio or silent audio packet. Silent packets decode
// to an all-zero frame.
func (c *Codec) DecodeAudio(raw []byte) (*AudioPacket, error) {
	if err := c.CheckAudioPacket(raw); err != nil {
		return nil, err
	}

	extLen := int(raw[4])
	pkt := &AudioPacket{
		LaneName: strings.TrimRight(string(raw[1:1+LaneNameLen]), " "),
		ExtBytes: append([]byte{}, raw[audioHeaderLen:audioHeaderLen+extLen]...),
		Silent:   raw[0] == SilentAudioPacketTypeID,
	}

	if pkt.Silent {
		pkt.PCM = c.format.Silence()
		return pkt, nil
	}

	pcm, err := audio.LEToPCMInt16(raw[audioHeaderLen+extLen:])
	if err != nil {
		return nil, err
	}
	if len(pcm) != c.format.FrameLen() {
		return nil, fmt.Errorf("%w: audio frame must be %d samples, got %d",
			audio.ErrMalformedPacket, c.format.FrameLen(), len(pcm))
	}
	pkt.PCM = pcm

	return pkt, nil
}

// IsAudioPacket reports whether raw is a well-formed audio or silent audio
// packet. Only an empty buffer is an error; use CheckAudioPacket to learn
// why a packet was rejected.
func (c *Codec) IsAudioPacket(raw []byte) (bool, error) {
	if len(raw) == 0 {
		return false, fmt.Errorf("%w: empty packet", audio.ErrMalformedPacket)
	}
	return c.CheckAudioPacket(raw) == nil, nil
}

// CheckAudioPacket validates the layout of an audio or silent audio packet.
func (c *Codec) CheckAudioPacket(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty packet", audio.ErrMalformedPacket)
	}
	if raw[0] != AudioPacketTypeID && raw[0] != SilentAudioPacketTypeID {
		return fmt.Errorf("%w: not an audio packet or silent audio packet (type id 0x%02x)",
			audio.ErrMalformedPacket, raw[0])
	}
	if len(raw) < audioHeaderLen {
		return fmt.Errorf("%w: too short, external bytes length missing", audio.ErrMalformedPacket)
	}

	extEnd := audioHeaderLen + int(raw[4])
	if len(raw) < extEnd {
		return fmt.Errorf("%w: too short, external bytes truncated (want %d, got %d)",
			audio.ErrMalformedPacket, extEnd, len(raw))
	}

	if raw[0] == SilentAudioPacketTypeID {
		if len(raw) > extEnd {
			return fmt.Errorf("%w: too long as silent audio packet (want %d, got %d)",
				audio.ErrMalformedPacket, extEnd, len(raw))
		}
		return nil
	}

	want := extEnd + c.format.FrameBytes()
	switch {
	case len(raw) < want:
		return fmt.Errorf("%w: too short as audio packet (want %d, got %d)", audio.ErrMalformedPacket, want, len(raw))
	case len(raw) > want:
		return fmt.Errorf("%w: too long as audio packet (want %d, got %d)", audio.ErrMalformedPacket, want, len(raw))
	}

	return nil
}

func validateLaneName(name string) error {
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			return fmt.Errorf("%w: lane name must be ascii, got %q", audio.ErrInvalidArgument, name)
		}
	}
	if len(name) > LaneNameLen {
		return fmt.Errorf("%w: lane name must be at most %d characters, got %q",
			audio.ErrInvalidArgument, LaneNameLen, name)
	}
	return nil
}

func padLaneName(name string) []byte {
	padded := []byte("   ")
	copy(padded, name)
	return padded
}
