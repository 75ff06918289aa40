// Package scan holds the individual content detectors that feed the upload
// gate: entropy analysis, byte-signature matching, regex pattern scanning,
// filename validation, MIME reconciliation, and format-specific inspection.
// Detectors are pure functions over the candidate bytes and hold no state
// between invocations.
package scan

import "math"

// Entropy computes the Shannon entropy of data in bits per byte, in [0, 8].
// 0 means a single repeated byte value; values approaching 8 indicate
// compressed, encrypted, or packed content. Entropy is a signal only —
// legitimate images and office documents routinely exceed 7.5, so callers
// must apply type-aware thresholds, never a global cutoff.
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var freq [256]float64
	for _, b := range data {
		freq[b]++
	}

	n := float64(len(data))
	entropy := 0.0
	for _, f := range freq {
		if f > 0 {
			p := f / n
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// TailEntropy computes the entropy of the last n bytes of data. Payloads
// appended after a valid format trailer produce a local entropy spike even
// when whole-file entropy looks ordinary.
func TailEntropy(data []byte, n int) float64 {
	if n <= 0 || len(data) == 0 {
		return 0
	}
	if len(data) > n {
		data = data[len(data)-n:]
	}
	return Entropy(data)
}
