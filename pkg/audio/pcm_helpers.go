package audio

import (
	"encoding/binary"
	"fmt"
)

// PCMInt16ToLE converts int16 samples to raw little-endian bytes.
func PCMInt16ToLE(samples []int16) []byte {
	out := make([]byte, len(samples)*SampleWidth)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*SampleWidth:], uint16(s))
	}
	return out
}

// AppendPCMInt16LE appends the little-endian encoding of samples to dst.
func AppendPCMInt16LE(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// LEToPCMInt16 converts raw little-endian bytes back to int16 samples.
// A trailing partial sample is a framing error.
func LEToPCMInt16(b []byte) ([]int16, error) {
	if len(b)%SampleWidth != 0 {
		return nil, fmt.Errorf("%w: %d PCM bytes is not a multiple of the %d-byte sample width",
			ErrMalformedPacket, len(b), SampleWidth)
	}
	out := make([]int16, len(b)/SampleWidth)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*SampleWidth:]))
	}
	return out, nil
}
