// Package gate sequences the content detectors into a single fail-fast
// security gate. Stages run in a fixed order and the first rejection ends
// the evaluation — later stages never see the candidate. A panic inside any
// stage converts to a SECURITY_SCAN_ERROR rejection rather than crashing
// the request handler: when scanning itself breaks, the file is not served.
package gate

import (
	"fmt"

	"github.com/filegate-project/filegate/internal/core"
	"github.com/filegate-project/filegate/internal/scan"
	"github.com/rs/zerolog"
)

// Detector is one gate stage. Implementations inspect the candidate and
// return nil to pass it to the next stage, or a rejecting verdict to stop
// evaluation. Additional detectors (e.g., a real AV engine) compose into
// the gate without touching the sequencing contract.
type Detector interface {
	Name() string
	Inspect(c *core.Candidate) *core.Verdict
}

// Gate evaluates upload candidates against its ordered detector chain.
type Gate struct {
	stages []Detector
	logger zerolog.Logger
}

// New builds a Gate with the standard stage order:
// filename → MIME reconciliation → signature → pattern → format-specific →
// size/integrity.
func New(cfg *core.ScanConfig, logger zerolog.Logger) *Gate {
	return &Gate{
		logger: logger.With().Str("component", "gate").Logger(),
		stages: []Detector{
			&filenameDetector{},
			&mimeDetector{},
			&signatureDetector{},
			&patternDetector{},
			&formatDetector{
				genericEntropyMax:   cfg.GenericEntropyMax,
				imageTailEntropyMax: cfg.ImageTailEntropyMax,
			},
			&sizeDetector{},
		},
	}
}

// NewWithStages builds a Gate over an explicit detector chain. Used by
// deployments composing extra detectors and by stage-order tests.
func NewWithStages(logger zerolog.Logger, stages ...Detector) *Gate {
	return &Gate{
		logger: logger.With().Str("component", "gate").Logger(),
		stages: stages,
	}
}

// Evaluate runs the candidate through every stage in order and returns the
// single verdict. The full rejection detail is logged here, server-side;
// callers must not forward Detail to the uploader.
func (g *Gate) Evaluate(c *core.Candidate) *core.Verdict {
	for _, stage := range g.stages {
		verdict := g.runStage(stage, c)
		if verdict == nil {
			continue
		}
		if !verdict.Accepted {
			g.logger.Warn().
				Str("detector", verdict.Detector).
				Str("reason", string(verdict.Reason)).
				Str("risk", verdict.Risk.String()).
				Str("filename", c.DeclaredFilename).
				Str("source_ip", c.SourceIP).
				Strs("detail", verdict.Detail).
				Msg("upload rejected")
			return verdict
		}
	}

	g.logger.Info().
		Str("filename", c.DeclaredFilename).
		Str("mime", c.DeclaredMime).
		Int("size", len(c.Data)).
		Msg("upload accepted")
	return core.Accept()
}

// runStage invokes one detector under a recover so a panicking stage
// cannot crash the gate. A panic is a rejection, never an accept.
func (g *Gate) runStage(stage Detector, c *core.Candidate) (verdict *core.Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error().
				Str("detector", stage.Name()).
				Str("filename", c.DeclaredFilename).
				Interface("panic", rec).
				Msg("detector panicked — rejecting candidate")
			verdict = core.Reject(core.ReasonScanError, stage.Name(), core.RiskHigh,
				fmt.Sprintf("panic: %v", rec))
		}
	}()
	return stage.Inspect(c)
}

// Stages returns the detector names in evaluation order.
func (g *Gate) Stages() []string {
	names := make([]string, 0, len(g.stages))
	for _, s := range g.stages {
		names = append(names, s.Name())
	}
	return names
}

// ─── Stage implementations ──────────────────────────────────────────────────

type filenameDetector struct{}

func (d *filenameDetector) Name() string { return "filename" }

func (d *filenameDetector) Inspect(c *core.Candidate) *core.Verdict {
	reason, detail := scan.ValidateFilename(c.DeclaredFilename)
	if reason != core.ReasonNone {
		risk := core.RiskMedium
		if reason == core.ReasonPathOrNullByte || reason == core.ReasonDoubleExtension {
			risk = core.RiskHigh
		}
		return core.Reject(reason, d.Name(), risk, detail)
	}

	policy, ok := PolicyFor(c.DeclaredMime)
	if !ok {
		return core.Reject(core.ReasonDangerousExtension, d.Name(), core.RiskMedium,
			"declared type not in allow list: "+c.DeclaredMime)
	}
	if !policy.ExtensionAllowed(c.DeclaredFilename) {
		return core.Reject(core.ReasonDangerousExtension, d.Name(), core.RiskMedium,
			"extension does not pair with declared type "+c.DeclaredMime)
	}
	return nil
}

type mimeDetector struct{}

func (d *mimeDetector) Name() string { return "mime_reconciliation" }

func (d *mimeDetector) Inspect(c *core.Candidate) *core.Verdict {
	if scan.ReconcileMime(c.Data, c.DeclaredMime) {
		return nil
	}
	sniffed := scan.SniffMime(c.Data)
	if sniffed == "" {
		sniffed = "undetectable"
	}
	return core.Reject(core.ReasonMimeMismatch, d.Name(), core.RiskHigh,
		fmt.Sprintf("declared %s, sniffed %s", c.DeclaredMime, sniffed))
}

type signatureDetector struct{}

func (d *signatureDetector) Name() string { return "signature" }

func (d *signatureDetector) Inspect(c *core.Candidate) *core.Verdict {
	if ok, label := scan.HasExecutableSignature(c.Data); ok {
		return core.Reject(core.ReasonVirusSignature, d.Name(), core.RiskCritical, label)
	}
	// The hex-level webshell check exists to catch payloads in content that
	// never gets decoded to text. Plain text IS decoded and scanned by the
	// pattern stage, which reports the full threat list; running the hex
	// check there would shadow it with a less specific verdict.
	if c.DeclaredMime != "text/plain" {
		if ok, label := scan.HasWebshellSignature(c.Data); ok {
			return core.Reject(core.ReasonWebshellSignature, d.Name(), core.RiskCritical, label)
		}
	}
	return nil
}

// patternDetector runs the regex scan on plain-text declarations only.
// Binary formats are covered by the signature detector and the
// format-specific inspectors; regexing compressed bytes produces noise,
// not signal.
type patternDetector struct{}

func (d *patternDetector) Name() string { return "pattern" }

func (d *patternDetector) Inspect(c *core.Candidate) *core.Verdict {
	if c.DeclaredMime != "text/plain" {
		return nil
	}
	threats := scan.ScanForMaliciousPatterns(string(c.Data))
	if !scan.HasRejectableThreat(threats) {
		return nil
	}
	detail := make([]string, 0, len(threats))
	for _, t := range threats {
		detail = append(detail, fmt.Sprintf("%s (tier %d): %s", t.Name, t.Tier, t.Match))
	}
	return core.Reject(core.ReasonMaliciousPattern, d.Name(), scan.MaxSeverity(threats), detail...)
}

// formatDetector applies the PDF and image inspectors plus the type-aware
// entropy checks.
type formatDetector struct {
	genericEntropyMax   float64
	imageTailEntropyMax float64
}

func (d *formatDetector) Name() string { return "format_inspection" }

func (d *formatDetector) Inspect(c *core.Candidate) *core.Verdict {
	switch {
	case c.DeclaredMime == "application/pdf":
		if found := scan.InspectPDF(c.Data); len(found) > 0 {
			return core.Reject(core.ReasonPDFActiveContent, d.Name(), core.RiskHigh, found...)
		}
	case isImage(c.DeclaredMime):
		if found := scan.InspectImage(c.Data, d.imageTailEntropyMax); len(found) > 0 {
			return core.Reject(core.ReasonImageEmbedded, d.Name(), core.RiskHigh, found...)
		}
	default:
		// Generic packing/encryption check. The reference threshold sits
		// above the 8.0 maximum, so this fires only when operators lower it
		// after corpus validation.
		if e := scan.Entropy(c.Data); e > d.genericEntropyMax {
			return core.Reject(core.ReasonMaliciousPattern, d.Name(), core.RiskMedium,
				fmt.Sprintf("entropy %.2f exceeds %.2f", e, d.genericEntropyMax))
		}
	}
	return nil
}

type sizeDetector struct{}

func (d *sizeDetector) Name() string { return "size_integrity" }

func (d *sizeDetector) Inspect(c *core.Candidate) *core.Verdict {
	actual := int64(len(c.Data))
	if actual == 0 {
		return core.Reject(core.ReasonIntegrity, d.Name(), core.RiskLow, "zero-byte file")
	}
	if c.DeclaredSize > 0 && c.DeclaredSize != actual {
		return core.Reject(core.ReasonIntegrity, d.Name(), core.RiskMedium,
			fmt.Sprintf("declared %d bytes, received %d", c.DeclaredSize, actual))
	}
	if policy, ok := PolicyFor(c.DeclaredMime); ok && actual > policy.MaxBytes {
		return core.Reject(core.ReasonSizeLimit, d.Name(), core.RiskLow,
			fmt.Sprintf("%d bytes exceeds %d ceiling for %s", actual, policy.MaxBytes, c.DeclaredMime))
	}
	return nil
}
