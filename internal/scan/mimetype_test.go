package scan

import "testing"

const (
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePptx = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

func TestSniffMime(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "image/png"},
		{"gif87", []byte("GIF87a...."), "image/gif"},
		{"gif89", []byte("GIF89a...."), "image/gif"},
		{"pdf", []byte("%PDF-1.7\n"), "application/pdf"},
		{"ole2", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "application/x-ole-storage"},
		{"zip", []byte{0x50, 0x4B, 0x03, 0x04, 0x14}, "application/zip"},
		{"pe", []byte{0x4D, 0x5A, 0x90}, "application/x-msdownload"},
		{"elf", []byte{0x7F, 0x45, 0x4C, 0x46}, "application/x-elf"},
		{"plain text", []byte("hello"), ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffMime(tt.data); got != tt.want {
				t.Errorf("SniffMime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReconcileMime(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		declared string
		want     bool
	}{
		{"jpeg as jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg", true},
		{"jpeg as png", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/png", false},
		{"pe as png", []byte{0x4D, 0x5A, 0x90, 0x00}, "image/png", false},
		{"pe as text", []byte{0x4D, 0x5A, 0x90, 0x00}, "text/plain", false},
		{"pdf as pdf", []byte("%PDF-1.4"), "application/pdf", true},
		{"zip as docx", []byte{0x50, 0x4B, 0x03, 0x04}, mimeDocx, true},
		{"zip as pptx", []byte{0x50, 0x4B, 0x03, 0x04}, mimePptx, true},
		{"zip as zip", []byte{0x50, 0x4B, 0x03, 0x04}, "application/zip", false},
		{"ole2 as doc", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "application/msword", true},
		{"ole2 as ppt", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "application/vnd.ms-powerpoint", true},
		{"ole2 as pdf", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "application/pdf", false},
		{"no magic as text", []byte("just words"), "text/plain", true},
		{"no magic as image", []byte("just words"), "image/jpeg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReconcileMime(tt.data, tt.declared); got != tt.want {
				t.Errorf("ReconcileMime(%s, %q) = %v, want %v", tt.name, tt.declared, got, tt.want)
			}
		})
	}
}
