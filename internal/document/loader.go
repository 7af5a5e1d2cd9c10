package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"recruitflow/internal/errors"
	"recruitflow/internal/types"
	"recruitflow/internal/utils"
)

// LoadFiles reads documents from local paths. The document name is the base
// file name. A file that cannot be read becomes a failed document so the rest
// of the batch still runs.
func LoadFiles(paths ...string) []types.Document {
	docs := make([]types.Document, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		if err := utils.ValidateInputFile(path); err != nil {
			docs = append(docs, types.FailedDocument(name,
				errors.NewIOError(errors.ErrCodeFileNotFound, fmt.Sprintf("invalid document %s", path), err)))
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			docs = append(docs, types.FailedDocument(name,
				errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("cannot read document %s", path), err)))
			continue
		}
		docs = append(docs, types.Document{Name: name, Data: data})
	}
	return docs
}

// LoadDirectory reads every supported document directly inside dir, sorted by name.
func (c *Converter) LoadDirectory(dir string) ([]types.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, fmt.Sprintf("cannot read directory %s", dir), err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !c.Supports(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return LoadFiles(paths...), nil
}
