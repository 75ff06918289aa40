package scan

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/filegate-project/filegate/internal/core"
)

// Pattern is one compiled detection pattern.
type Pattern struct {
	Name     string
	Tier     int
	Regex    *regexp.Regexp
	Severity core.RiskLevel
}

// Threat is one pattern match found in scanned content.
type Threat struct {
	Name     string         `json:"name"`
	Tier     int            `json:"tier"`
	Severity core.RiskLevel `json:"severity"`
	Match    string         `json:"match"`
}

var (
	patternsOnce sync.Once
	patterns     []Pattern
)

// ScanForMaliciousPatterns applies the full pattern list to text content and
// returns every matched threat, including combinatorial pairs. The full list
// (not a boolean) lets the gate log exactly what triggered and lets tests
// assert on specific reasons.
func ScanForMaliciousPatterns(text string) []Threat {
	if text == "" {
		return nil
	}

	patternsOnce.Do(func() { patterns = compilePatterns() })

	var threats []Threat
	matched := make(map[string]bool)

	for _, p := range patterns {
		loc := p.Regex.FindString(text)
		if loc == "" {
			continue
		}
		threats = append(threats, Threat{
			Name:     p.Name,
			Tier:     p.Tier,
			Severity: p.Severity,
			Match:    truncate(loc, 200),
		})
		matched[p.Name] = true
	}

	// Combinatorial detection: execution primitive + input source / decoder.
	for _, pair := range comboPairs {
		if matched[pair.First] && matched[pair.Second] {
			threats = append(threats, Threat{
				Name:     pair.Name,
				Tier:     TierExec,
				Severity: core.RiskCritical,
				Match:    fmt.Sprintf("%s + %s", pair.First, pair.Second),
			})
		}
	}

	return threats
}

// MaxSeverity returns the highest severity among threats, RiskLow for none.
func MaxSeverity(threats []Threat) core.RiskLevel {
	max := core.RiskLow
	for _, t := range threats {
		if t.Severity > max {
			max = t.Severity
		}
	}
	return max
}

// HasRejectableThreat reports whether the threat list justifies rejection on
// its own: any tier-1 match, any combinatorial match, or a high-severity
// match. Isolated tier-2/3 matches in otherwise plain text stay below the
// threshold — a document merely mentioning base64 is not a backdoor.
func HasRejectableThreat(threats []Threat) bool {
	for _, t := range threats {
		if t.Tier == TierExec || t.Severity >= core.RiskHigh {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
