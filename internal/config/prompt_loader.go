package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"recruitflow/internal/errors"
)

// loadPromptsFromFiles reads prompt files into the inline prompt fields.
// Inline prompts already set in the configuration are left untouched.
func (c *Config) loadPromptsFromFiles() error {
	loaded := 0
	for _, op := range Operations {
		opCfg := c.operationConfigs()[op]

		if opCfg.Prompts.System == "" && opCfg.Prompts.SystemFile != "" {
			content, err := loadPromptFromFile(opCfg.Prompts.SystemFile, "system", op)
			if err != nil {
				return err
			}
			opCfg.Prompts.System = content
			loaded++
		}

		if opCfg.Prompts.User == "" && opCfg.Prompts.UserFile != "" {
			content, err := loadPromptFromFile(opCfg.Prompts.UserFile, "user", op)
			if err != nil {
				return err
			}
			opCfg.Prompts.User = content
			loaded++
		}
	}

	if loaded == 0 {
		log.Println("[CONFIG] No custom prompt files loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompt files loaded: %d", loaded)
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid path for %s %s prompt: %s", operation, promptType, filePath), err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("%s %s prompt file not found: %s", operation, promptType, absPath), err)
		}
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to read %s %s prompt file: %s", operation, promptType, absPath), err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("%s %s prompt file is empty: %s", operation, promptType, absPath), nil)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from file: %s (%d characters)",
		operation, promptType, absPath, len(trimmed))
	return trimmed, nil
}
