package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"recruitflow/internal/document"
	"recruitflow/internal/errors"
	"recruitflow/internal/storage"
	"recruitflow/internal/types"
)

// DocumentLister lists the documents stored under a prefix of a bucket.
type DocumentLister interface {
	ListDocuments(ctx context.Context, prefix string, keep func(name string) bool) ([]types.Document, error)
}

// BucketOpener returns a lister for the named bucket.
type BucketOpener func(ctx context.Context, bucket string) (DocumentLister, error)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger     *errors.Logger
	converter  *document.Converter
	openBucket BucketOpener
}

// NewFileProcessor creates a new file processor instance. converter decides
// which files of a directory or bucket are documents; openBucket may be nil
// when S3 sources are not available.
func NewFileProcessor(logger *errors.Logger, converter *document.Converter, openBucket BucketOpener) *FileProcessor {
	return &FileProcessor{logger: logger, converter: converter, openBucket: openBucket}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	return content, nil
}

// ReadJSON decodes a JSON file into v.
func (fp *FileProcessor) ReadJSON(filename string, v any) error {
	content, err := fp.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Invalid JSON in %s", filename), err)
	}
	return nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError(errors.ErrCodeStorageFailed,
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeStorageFailed,
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}
	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout
	}
	if info, err := os.Stat(filename); err == nil && info.IsDir() {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Invalid output file: %s is a directory", filename), nil)
	}
	return nil
}

// LoadDocuments reads the documents named by sources. A source is a
// directory, a file or an s3://bucket/prefix location. Directories and
// buckets contribute only files of the allowed formats; named files are
// always read and rejected later by the parse stage when unsupported.
func (fp *FileProcessor) LoadDocuments(ctx context.Context, sources ...string) ([]types.Document, error) {
	var docs []types.Document
	for _, source := range sources {
		loaded, err := fp.loadSource(ctx, source)
		if err != nil {
			return nil, err
		}
		fp.logger.Debug("Loaded documents", "source", source, "documents", len(loaded))
		docs = append(docs, loaded...)
	}
	if len(docs) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"no documents found in the given sources", nil).
			WithContext("sources", sources)
	}
	return docs, nil
}

func (fp *FileProcessor) loadSource(ctx context.Context, source string) ([]types.Document, error) {
	if bucket, prefix, ok := storage.ParseURI(source); ok {
		if fp.openBucket == nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("cannot read %s: S3 storage is not enabled", source), nil)
		}
		lister, err := fp.openBucket(ctx, bucket)
		if err != nil {
			return nil, err
		}
		return lister.ListDocuments(ctx, prefix, fp.converter.Supports)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
			fmt.Sprintf("Document source not found: %s", source), err)
	}
	if info.IsDir() {
		return fp.converter.LoadDirectory(source)
	}
	return document.LoadFiles(source), nil
}
