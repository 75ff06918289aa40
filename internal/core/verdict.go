package core

import "encoding/json"

// ReasonCode identifies why an upload was rejected. Codes are stable,
// machine-readable, and safe to persist in audit records and metrics labels.
type ReasonCode string

const (
	ReasonNone               ReasonCode = "NONE"
	ReasonDangerousExtension ReasonCode = "DANGEROUS_EXTENSION"
	ReasonDoubleExtension    ReasonCode = "DOUBLE_EXTENSION"
	ReasonPathOrNullByte     ReasonCode = "PATH_TRAVERSAL_OR_NULL_BYTE"
	ReasonSuspiciousKeyword  ReasonCode = "SUSPICIOUS_FILENAME_KEYWORD"
	ReasonMimeMismatch       ReasonCode = "MIME_TYPE_MISMATCH"
	ReasonVirusSignature     ReasonCode = "VIRUS_SIGNATURE_DETECTED"
	ReasonWebshellSignature  ReasonCode = "WEBSHELL_SIGNATURE_DETECTED"
	ReasonMaliciousPattern   ReasonCode = "MALICIOUS_CONTENT_PATTERN"
	ReasonPDFActiveContent   ReasonCode = "PDF_ACTIVE_CONTENT"
	ReasonImageEmbedded      ReasonCode = "IMAGE_EMBEDDED_SCRIPT_OR_STEGANOGRAPHY"
	ReasonSizeLimit          ReasonCode = "SIZE_LIMIT_EXCEEDED"
	ReasonIntegrity          ReasonCode = "INTEGRITY_CHECK_FAILED"
	ReasonScanError          ReasonCode = "SECURITY_SCAN_ERROR"
)

// RiskLevel grades how hostile a rejected upload is considered to be.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	case RiskCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "MEDIUM":
		*r = RiskMedium
	case "HIGH":
		*r = RiskHigh
	case "CRITICAL":
		*r = RiskCritical
	default:
		*r = RiskLow
	}
	return nil
}

// Candidate is one inbound upload awaiting a verdict. It lives only for the
// duration of a single gate evaluation and is owned by that invocation.
type Candidate struct {
	Data             []byte
	DeclaredMime     string
	DeclaredFilename string
	DeclaredSize     int64
	SourceIP         string
}

// Verdict is the gate's final decision for one Candidate. Immutable once
// produced. Detail carries the specific signatures/patterns that matched and
// is logged server-side only — it must never reach the uploader.
type Verdict struct {
	Accepted bool       `json:"accepted"`
	Reason   ReasonCode `json:"reason"`
	Detector string     `json:"detector,omitempty"`
	Risk     RiskLevel  `json:"risk"`
	Detail   []string   `json:"detail,omitempty"`
}

// Accept produces the single accepting verdict.
func Accept() *Verdict {
	return &Verdict{Accepted: true, Reason: ReasonNone, Risk: RiskLow}
}

// Reject produces a rejecting verdict attributed to the named detector.
func Reject(reason ReasonCode, detector string, risk RiskLevel, detail ...string) *Verdict {
	return &Verdict{
		Accepted: false,
		Reason:   reason,
		Detector: detector,
		Risk:     risk,
		Detail:   detail,
	}
}
