package config

import (
	"os"
	"path/filepath"
	"testing"

	"recruitflow/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()

	systemFile := filepath.Join(tempDir, "system.extract.md")
	userFile := filepath.Join(tempDir, "user.assess.md")
	require.NoError(t, os.WriteFile(systemFile, []byte("  Extract candidate data.\n"), 0600))
	require.NoError(t, os.WriteFile(userFile, []byte("Assess {{.Name}}"), 0600))

	cfg := &Config{}
	cfg.AI.Extract.Prompts.SystemFile = systemFile
	cfg.AI.Assess.Prompts.UserFile = userFile
	cfg.AI.Email.Prompts = PromptConfig{System: "inline wins", SystemFile: systemFile}

	require.NoError(t, cfg.loadPromptsFromFiles())

	assert.Equal(t, "Extract candidate data.", cfg.AI.Extract.Prompts.System)
	assert.Equal(t, "Assess {{.Name}}", cfg.AI.Assess.Prompts.User)
	assert.Equal(t, "inline wins", cfg.AI.Email.Prompts.System)
	assert.Empty(t, cfg.AI.Interview.Prompts.System)
}

func TestLoadPromptsFromFilesErrors(t *testing.T) {
	tempDir := t.TempDir()
	emptyFile := filepath.Join(tempDir, "empty.md")
	require.NoError(t, os.WriteFile(emptyFile, []byte("   \n"), 0600))

	tests := []struct {
		name          string
		file          string
		expectedError string
	}{
		{name: "missing file", file: filepath.Join(tempDir, "missing.md"), expectedError: "not found"},
		{name: "empty file", file: emptyFile, expectedError: "is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.AI.Interview.Prompts.UserFile = tt.file

			err := cfg.loadPromptsFromFiles()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}
