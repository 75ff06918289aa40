package gate

import (
	"path/filepath"
	"strings"
)

// TypePolicy binds one accepted declared MIME type to its permitted
// extensions and size ceiling.
type TypePolicy struct {
	Extensions []string
	MaxBytes   int64
}

const (
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	mb = 1024 * 1024
)

// allowedTypes is the reference upload policy: images, PDF, Word,
// PowerPoint and plain text, each with its own ceiling. Anything not listed
// here is rejected at the validator stage regardless of content.
var allowedTypes = map[string]TypePolicy{
	"image/jpeg":                      {Extensions: []string{".jpg", ".jpeg"}, MaxBytes: 10 * mb},
	"image/png":                       {Extensions: []string{".png"}, MaxBytes: 10 * mb},
	"image/gif":                       {Extensions: []string{".gif"}, MaxBytes: 10 * mb},
	"application/pdf":                 {Extensions: []string{".pdf"}, MaxBytes: 10 * mb},
	"application/msword":              {Extensions: []string{".doc"}, MaxBytes: 10 * mb},
	mimeDocx:                          {Extensions: []string{".docx"}, MaxBytes: 10 * mb},
	"application/vnd.ms-powerpoint":   {Extensions: []string{".ppt"}, MaxBytes: 15 * mb},
	mimePptx:                          {Extensions: []string{".pptx"}, MaxBytes: 15 * mb},
	"text/plain":                      {Extensions: []string{".txt"}, MaxBytes: 2 * mb},
}

// PolicyFor returns the policy for a declared MIME type.
func PolicyFor(declaredMime string) (TypePolicy, bool) {
	p, ok := allowedTypes[declaredMime]
	return p, ok
}

// ExtensionAllowed reports whether the filename's extension pairs with the
// declared type's policy.
func (p TypePolicy) ExtensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range p.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// isImage reports whether the declared type is in the image category, which
// drives format-specific inspection and entropy thresholds.
func isImage(declaredMime string) bool {
	return strings.HasPrefix(declaredMime, "image/")
}
