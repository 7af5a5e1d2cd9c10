package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(file, []byte("Jane Doe"), 0600))

	assert.NoError(t, ValidateInputFile(file))
	assert.ErrorContains(t, ValidateInputFile(""), "cannot be empty")
	assert.ErrorContains(t, ValidateInputFile(filepath.Join(dir, "missing.pdf")), "does not exist")
	assert.ErrorContains(t, ValidateInputFile(dir), "is a directory")
}

func TestEnsureDir(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "outputs", "run-1")
	require.NoError(t, EnsureDir(nested))

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, EnsureDir(""))
}

func TestGetFileExtension(t *testing.T) {
	assert.Equal(t, ".pdf", GetFileExtension("Resume.PDF"))
	assert.Equal(t, ".docx", GetFileExtension("/tmp/cv/jane.docx"))
	assert.Equal(t, "", GetFileExtension("README"))
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatFileSize(tt.size))
		})
	}
}
