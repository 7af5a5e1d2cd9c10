// Package utils holds small filesystem helpers shared by the commands.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateInputFile checks that path names a regular, readable file.
func ValidateInputFile(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("file does not exist: %s", path)
	case err != nil:
		return fmt.Errorf("cannot access file %s: %w", path, err)
	case info.IsDir():
		return fmt.Errorf("path is a directory, not a file: %s", path)
	case !info.Mode().IsRegular():
		return fmt.Errorf("not a regular file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read file %s: %w", path, err)
	}
	return f.Close()
}

// EnsureDir creates dir and its parents when missing. An empty dir is the
// working directory and always valid.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}
	return nil
}

// GetFileExtension returns the file extension in lowercase, including the dot.
func GetFileExtension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
