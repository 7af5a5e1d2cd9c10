// Package document turns uploaded CV files into plain text.
package document

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"recruitflow/internal/errors"
	"recruitflow/internal/types"
	"recruitflow/internal/utils"
)

// Converter extracts plain text from documents of the allowed formats.
type Converter struct {
	allowedFormats []string
	maxFileSize    int64
}

// NewConverter creates a converter. Formats are file extensions including the dot.
func NewConverter(allowedFormats []string, maxFileSize int64) *Converter {
	formats := make([]string, 0, len(allowedFormats))
	for _, f := range allowedFormats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		formats = append(formats, f)
	}
	return &Converter{allowedFormats: formats, maxFileSize: maxFileSize}
}

// Supports reports whether the file name has an allowed extension.
func (c *Converter) Supports(name string) bool {
	return slices.Contains(c.allowedFormats, utils.GetFileExtension(name))
}

// Extract returns the plain text of doc. Failures are extraction errors
// carrying the document name.
func (c *Converter) Extract(ctx context.Context, doc types.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := utils.GetFileExtension(doc.Name)
	if !c.Supports(doc.Name) {
		return "", errors.NewExtractionError(errors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported file format %q, allowed: %s", ext, strings.Join(c.allowedFormats, ", ")), nil).
			WithContext("document", doc.Name)
	}
	if c.maxFileSize > 0 && int64(len(doc.Data)) > c.maxFileSize {
		return "", errors.NewExtractionError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("file is %s, limit is %s", utils.FormatFileSize(int64(len(doc.Data))), utils.FormatFileSize(c.maxFileSize)), nil).
			WithContext("document", doc.Name)
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDFText(doc.Data)
	case ".docx", ".doc":
		text, err = extractDocxText(doc.Data)
	case ".html", ".htm":
		text, err = extractHTMLText(doc.Data)
	default:
		text = plainText(doc.Data)
	}
	if err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeCorruptDocument,
			fmt.Sprintf("failed to read %s document", strings.TrimPrefix(ext, ".")), err).
			WithContext("document", doc.Name)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.NewExtractionError(errors.ErrCodeCorruptDocument, "document contains no extractable text", nil).
			WithContext("document", doc.Name)
	}
	return text, nil
}

func plainText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), " ")
}
