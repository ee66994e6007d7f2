package audio

import "math"

// fullScale is the magnitude of the most negative int16, used to normalise
// samples into [-1, 1).
const fullScale = 32768.0

// RMS returns the root mean square of samples normalised to full scale.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / fullScale
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS returns the level of samples in decibels relative to full scale.
// Empty and all-zero blocks report negative infinity, which sorts below any
// finite silence threshold.
func DBFS(samples []int16) float64 {
	rms := RMS(samples)
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}
