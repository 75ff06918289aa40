package gate

import (
	"bytes"
	"testing"

	"github.com/filegate-project/filegate/internal/core"
	"github.com/rs/zerolog"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	cfg := core.DefaultConfig()
	return New(&cfg.Scan, zerolog.Nop())
}

func candidate(name, mime string, data []byte) *core.Candidate {
	return &core.Candidate{
		Data:             data,
		DeclaredMime:     mime,
		DeclaredFilename: name,
		DeclaredSize:     int64(len(data)),
		SourceIP:         "198.51.100.10",
	}
}

func docxBytes(size int) []byte {
	data := []byte{0x50, 0x4B, 0x03, 0x04, 0x14, 0x00, 0x06, 0x00}
	return append(data, bytes.Repeat([]byte{0x61, 0x62, 0x63, 0x64}, size/4)...)
}

const mimeDocxTest = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func TestGate_AcceptsValidDocx(t *testing.T) {
	v := testGate(t).Evaluate(candidate("complaint.docx", mimeDocxTest, docxBytes(4096)))
	if !v.Accepted {
		t.Fatalf("valid docx rejected: %s (%v)", v.Reason, v.Detail)
	}
}

func TestGate_AcceptsValidPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF")
	v := testGate(t).Evaluate(candidate("report.pdf", "application/pdf", pdf))
	if !v.Accepted {
		t.Fatalf("valid pdf rejected: %s (%v)", v.Reason, v.Detail)
	}
}

func TestGate_AcceptsPlainText(t *testing.T) {
	v := testGate(t).Evaluate(candidate("letter.txt", "text/plain", []byte("Dear sir or madam,")))
	if !v.Accepted {
		t.Fatalf("plain text rejected: %s (%v)", v.Reason, v.Detail)
	}
}

func TestGate_DoubleExtension_RegardlessOfContent(t *testing.T) {
	// Content is a perfectly valid PDF; the name alone condemns it.
	pdf := []byte("%PDF-1.4\nclean\n%%EOF")
	v := testGate(t).Evaluate(candidate("invoice.pdf.php", "application/pdf", pdf))
	if v.Accepted {
		t.Fatal("double-extension name accepted")
	}
	if v.Reason != core.ReasonDoubleExtension {
		t.Errorf("Reason = %s, want DOUBLE_EXTENSION", v.Reason)
	}
}

func TestGate_PEDeclaredAsPNG_FailsAtMimeStage(t *testing.T) {
	pe := append([]byte{0x4D, 0x5A, 0x90, 0x00}, bytes.Repeat([]byte{0x00}, 64)...)
	v := testGate(t).Evaluate(candidate("shot.png", "image/png", pe))
	if v.Accepted {
		t.Fatal("PE payload accepted")
	}
	// Fail-fast ordering: MIME reconciliation runs before signature
	// detection, so the mismatch is the verdict even though the signature
	// detector would also fire.
	if v.Reason != core.ReasonMimeMismatch {
		t.Errorf("Reason = %s, want MIME_TYPE_MISMATCH", v.Reason)
	}
	if v.Detector != "mime_reconciliation" {
		t.Errorf("Detector = %s, want mime_reconciliation", v.Detector)
	}
}

func TestGate_WebshellText_PatternStageWithThreatList(t *testing.T) {
	payload := []byte(`eval(base64_decode("cGhwaW5mbygpOw=="));`)
	v := testGate(t).Evaluate(candidate("notes.txt", "text/plain", payload))
	if v.Accepted {
		t.Fatal("webshell text accepted")
	}
	if v.Reason != core.ReasonMaliciousPattern {
		t.Errorf("Reason = %s, want MALICIOUS_CONTENT_PATTERN", v.Reason)
	}
	if len(v.Detail) == 0 {
		t.Fatal("threat detail must be non-empty")
	}
	var hasEval, hasB64 bool
	for _, d := range v.Detail {
		if bytes.Contains([]byte(d), []byte("eval")) {
			hasEval = true
		}
		if bytes.Contains([]byte(d), []byte("base64_decode")) {
			hasB64 = true
		}
	}
	if !hasEval || !hasB64 {
		t.Errorf("detail %v must include eval and base64_decode matches", v.Detail)
	}
}

func TestGate_WebshellInsideImage_SignatureStage(t *testing.T) {
	img := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("....$_POST['x']....")...)
	v := testGate(t).Evaluate(candidate("pic.jpg", "image/jpeg", img))
	if v.Accepted {
		t.Fatal("webshell token inside image accepted")
	}
	if v.Reason != core.ReasonWebshellSignature {
		t.Errorf("Reason = %s, want WEBSHELL_SIGNATURE_DETECTED", v.Reason)
	}
}

func TestGate_PDFActiveContent(t *testing.T) {
	pdf := []byte("%PDF-1.4\n<< /OpenAction << /S /JavaScript /JS (app.alert(1)) >> >>\n%%EOF")
	v := testGate(t).Evaluate(candidate("form.pdf", "application/pdf", pdf))
	if v.Accepted {
		t.Fatal("PDF with OpenAction accepted")
	}
	if v.Reason != core.ReasonPDFActiveContent {
		t.Errorf("Reason = %s, want PDF_ACTIVE_CONTENT", v.Reason)
	}
}

func TestGate_DisallowedDeclaredType(t *testing.T) {
	v := testGate(t).Evaluate(candidate("data.bin", "application/octet-stream", []byte("x")))
	if v.Accepted {
		t.Fatal("disallowed declared type accepted")
	}
	if v.Reason != core.ReasonDangerousExtension {
		t.Errorf("Reason = %s, want DANGEROUS_EXTENSION", v.Reason)
	}
}

func TestGate_ExtensionTypePairMismatch(t *testing.T) {
	v := testGate(t).Evaluate(candidate("photo.png", "image/jpeg", []byte{0xFF, 0xD8, 0xFF}))
	if v.Accepted || v.Reason != core.ReasonDangerousExtension {
		t.Errorf("png name with jpeg declaration: got %s, want DANGEROUS_EXTENSION", v.Reason)
	}
}

func TestGate_ZeroByteFile(t *testing.T) {
	c := candidate("empty.txt", "text/plain", nil)
	v := testGate(t).Evaluate(c)
	if v.Accepted || v.Reason != core.ReasonIntegrity {
		t.Errorf("zero-byte file: got %s, want INTEGRITY_CHECK_FAILED", v.Reason)
	}
}

func TestGate_DeclaredSizeMismatch(t *testing.T) {
	c := candidate("letter.txt", "text/plain", []byte("short body"))
	c.DeclaredSize = 99999
	v := testGate(t).Evaluate(c)
	if v.Accepted || v.Reason != core.ReasonIntegrity {
		t.Errorf("size mismatch: got %s, want INTEGRITY_CHECK_FAILED", v.Reason)
	}
}

func TestGate_PerTypeSizeCeiling(t *testing.T) {
	big := bytes.Repeat([]byte("the quick brown fox "), 150*1024) // ~3MB of text
	v := testGate(t).Evaluate(candidate("novel.txt", "text/plain", big))
	if v.Accepted || v.Reason != core.ReasonSizeLimit {
		t.Errorf("3MB text/plain: got %s, want SIZE_LIMIT_EXCEEDED", v.Reason)
	}
}

// ─── Sequencing contract ─────────────────────────────────────────────────────

// canaryDetector records whether it ran and optionally panics or rejects.
type canaryDetector struct {
	name    string
	ran     bool
	panics  bool
	verdict *core.Verdict
}

func (d *canaryDetector) Name() string { return d.name }

func (d *canaryDetector) Inspect(c *core.Candidate) *core.Verdict {
	d.ran = true
	if d.panics {
		panic("canary detonated")
	}
	return d.verdict
}

func TestGate_FailFast_LaterStagesNotRun(t *testing.T) {
	first := &canaryDetector{name: "first", verdict: core.Reject(core.ReasonVirusSignature, "first", core.RiskHigh)}
	second := &canaryDetector{name: "second"}
	g := NewWithStages(zerolog.Nop(), first, second)

	v := g.Evaluate(candidate("x.txt", "text/plain", []byte("x")))
	if v.Accepted {
		t.Fatal("rejecting stage did not stop evaluation")
	}
	if !first.ran {
		t.Error("first stage should have run")
	}
	if second.ran {
		t.Error("second stage ran after a rejection")
	}
}

func TestGate_PanicBecomesScanErrorRejection(t *testing.T) {
	boom := &canaryDetector{name: "boom", panics: true}
	after := &canaryDetector{name: "after"}
	g := NewWithStages(zerolog.Nop(), boom, after)

	v := g.Evaluate(candidate("x.txt", "text/plain", []byte("x")))
	if v.Accepted {
		t.Fatal("panicking stage must reject, not accept")
	}
	if v.Reason != core.ReasonScanError {
		t.Errorf("Reason = %s, want SECURITY_SCAN_ERROR", v.Reason)
	}
	if after.ran {
		t.Error("stage after a panic should not run")
	}
}

func TestGate_StageOrder(t *testing.T) {
	want := []string{"filename", "mime_reconciliation", "signature", "pattern", "format_inspection", "size_integrity"}
	got := testGate(t).Stages()
	if len(got) != len(want) {
		t.Fatalf("stage count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stage[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
