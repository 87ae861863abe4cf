package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionKey(t *testing.T) {
	key := VersionKey("C7", "E42", "doc-1", "ver-1", "pgr-v1.pdf")
	assert.Equal(t, "uploads/C7/E42/doc-1/ver-1/pgr-v1.pdf", key)

	// Same inputs always produce the same key.
	assert.Equal(t, key, VersionKey("C7", "E42", "doc-1", "ver-1", "pgr-v1.pdf"))

	// Distinct version ids keep keys distinct even for identical filenames.
	other := VersionKey("C7", "E42", "doc-1", "ver-2", "pgr-v1.pdf")
	assert.NotEqual(t, key, other)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report.pdf", "report.pdf"},
		{"unix path", "../../etc/passwd", "passwd"},
		{"windows path", `..\..\boot.ini`, "boot.ini"},
		{"empty", "", "file"},
		{"dot", ".", "file"},
		{"dotdot", "..", "file"},
		{"slash only", "/", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSHA256Hex(t *testing.T) {
	// Known vector for the empty input.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(nil))
	assert.Len(t, SHA256Hex([]byte("hello world")), 64)
	assert.NotEqual(t, SHA256Hex([]byte("a")), SHA256Hex([]byte("b")))
}
