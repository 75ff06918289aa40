package scan

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// imageTailWindow is the number of trailing bytes examined for appended
// payloads. Data after a valid image trailer produces a local entropy spike
// there even when whole-file entropy looks legitimate.
const imageTailWindow = 1024

// imageScriptTokens are hex encodings of script-engine tags whose presence
// inside an image marks a polyglot — a file valid as both image and script.
// Tokens shorter than five bytes are excluded: a 2-3 byte needle collides
// with legitimate compressed pixel data at observable rates.
var imageScriptTokens = map[string]string{
	hex.EncodeToString([]byte("<?php")):   "<?php",
	hex.EncodeToString([]byte("eval(")):   "eval(",
	hex.EncodeToString([]byte("<script")): "<script",
}

// InspectImage scans image bytes for embedded script tags and an entropy
// spike in the trailing window. tailEntropyMax is the type-aware threshold
// from config; findings name what matched for the audit trail. Only these
// two regions are inspected — full-file heuristics over compressed image
// data false-positive at unacceptable rates.
func InspectImage(data []byte, tailEntropyMax float64) []string {
	var findings []string

	haystack := hex.EncodeToString(data)
	for token, label := range imageScriptTokens {
		if strings.Contains(haystack, token) {
			findings = append(findings, "embedded script tag: "+label)
		}
	}

	if tail := TailEntropy(data, imageTailWindow); tail > tailEntropyMax {
		findings = append(findings, fmt.Sprintf("tail entropy %.2f exceeds %.2f", tail, tailEntropyMax))
	}

	return findings
}
