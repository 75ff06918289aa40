package scan

import "bytes"

// magicRule maps a byte-header prefix to the sniffed MIME type and the set
// of declared types it is compatible with. Container formats (OLE2, ZIP)
// are ambiguous at the magic level, so one header may legitimately back
// several declared types.
type magicRule struct {
	prefix  []byte
	sniffed string
	accepts []string
}

var magicRules = []magicRule{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg", []string{"image/jpeg"}},
	{[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png", []string{"image/png"}},
	{[]byte("GIF87a"), "image/gif", []string{"image/gif"}},
	{[]byte("GIF89a"), "image/gif", []string{"image/gif"}},
	{[]byte("%PDF"), "application/pdf", []string{"application/pdf"}},
	// OLE2 compound document: legacy DOC/PPT/XLS share one header.
	{[]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "application/x-ole-storage", []string{
		"application/msword",
		"application/vnd.ms-powerpoint",
		"application/vnd.ms-excel",
	}},
	// ZIP container: OOXML formats only — a bare application/zip declaration
	// is not an accepted upload type.
	{[]byte{0x50, 0x4B, 0x03, 0x04}, "application/zip", []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}},
	// Executables sniff to their own types so any document/image declaration
	// over them reconciles to a mismatch.
	{[]byte{0x4D, 0x5A}, "application/x-msdownload", nil},
	{[]byte{0x7F, 0x45, 0x4C, 0x46}, "application/x-elf", nil},
	{[]byte{0xCA, 0xFE, 0xBA, 0xBE}, "application/x-java-class", nil},
	{[]byte("Rar!\x1a\x07"), "application/x-rar-compressed", nil},
	{[]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, "application/x-7z-compressed", nil},
}

// SniffMime infers the true content type from the byte header alone — never
// from the filename or the declared header, both of which the uploader
// controls. Returns "" when no rule matches.
func SniffMime(data []byte) string {
	for _, rule := range magicRules {
		if bytes.HasPrefix(data, rule.prefix) {
			return rule.sniffed
		}
	}
	return ""
}

// ReconcileMime reports whether the declared MIME type is consistent with
// the sniffed one. The declared type in a multipart upload is entirely
// attacker-controlled; any disagreement with the bytes is treated as an
// active spoofing attempt. An undetectable header is tolerated only for
// plain-text declarations, which legitimately have no magic number.
func ReconcileMime(data []byte, declared string) bool {
	for _, rule := range magicRules {
		if !bytes.HasPrefix(data, rule.prefix) {
			continue
		}
		for _, ok := range rule.accepts {
			if declared == ok {
				return true
			}
		}
		return false
	}

	return declared == "text/plain"
}
