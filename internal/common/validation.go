package common

import (
	"fmt"
	"slices"
	"strings"

	"recruitflow/internal/errors"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 || slices.Contains(supportedFormats, format) {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeUnsupportedFormat,
		fmt.Sprintf("unsupported output format '%s'. Supported formats: %v", format, supportedFormats), nil)
}

// ValidateSources checks the document sources given on the command line.
func ValidateSources(sources []string) error {
	if len(sources) == 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"at least one document source is required", nil)
	}
	for i, source := range sources {
		if strings.TrimSpace(source) == "" {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("document source %d is empty", i+1), nil)
		}
		if source == "s3://" || strings.HasPrefix(source, "s3:///") {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("S3 source %q names no bucket", source), nil)
		}
	}
	return nil
}
