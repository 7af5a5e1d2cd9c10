package server

import (
	"fmt"
	"sync"
	"time"

	"recruitflow/internal/config"
	"recruitflow/internal/errors"
)

// SecretSource reads versioned secrets, as *config.VaultClient does.
type SecretSource interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// KeysReloadCallback receives the API keys of a new secret version.
type KeysReloadCallback func(keys []string)

// APIKeyWatcher polls the Vault secret holding the server API keys and
// hands every new version to its callback.
type APIKeyWatcher struct {
	mu sync.RWMutex

	client       SecretSource
	secretPath   string
	pollInterval time.Duration
	onReload     KeysReloadCallback
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	reloads     int
}

// NewAPIKeyWatcher creates a watcher. The current version counts as seen
// when the watcher starts, since the configuration already holds its keys.
func NewAPIKeyWatcher(client SecretSource, secretPath string, pollInterval time.Duration, onReload KeysReloadCallback, logger *errors.Logger) *APIKeyWatcher {
	return &APIKeyWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onReload:     onReload,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start records the current secret version and begins polling
func (kw *APIKeyWatcher) Start() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.running {
		return fmt.Errorf("api key watcher is already running")
	}
	if kw.pollInterval <= 0 {
		return fmt.Errorf("api key watcher needs a positive poll interval, got %s", kw.pollInterval)
	}

	secret, err := kw.client.GetSecretV2(kw.secretPath)
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}
	kw.lastVersion = secret.Version

	kw.running = true
	go kw.pollLoop()
	kw.logger.Info("API key watcher started", "secret_path", kw.secretPath, "poll_interval", kw.pollInterval, "version", secret.Version)
	return nil
}

// Stop stops polling
func (kw *APIKeyWatcher) Stop() {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if !kw.running {
		return
	}
	close(kw.stopChan)
	kw.running = false
	kw.logger.Info("API key watcher stopped")
}

func (kw *APIKeyWatcher) pollLoop() {
	ticker := time.NewTicker(kw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := kw.Poll(); err != nil {
				kw.logger.LogError(err, "Failed to check Vault for API key updates")
			}
		case <-kw.stopChan:
			return
		}
	}
}

// Poll reads the secret once and reloads the keys when its version moved on.
// A new version without any key is ignored, so a bad write cannot lock
// every client out.
func (kw *APIKeyWatcher) Poll() error {
	secret, err := kw.client.GetSecretV2(kw.secretPath)
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}

	kw.mu.Lock()
	if secret.Version <= kw.lastVersion {
		kw.mu.Unlock()
		return nil
	}
	kw.lastVersion = secret.Version
	kw.mu.Unlock()

	raw, _ := secret.Data["keys"].(string)
	keys := config.SplitKeys(raw)
	if len(keys) == 0 {
		return fmt.Errorf("secret %s version %d holds no API keys", kw.secretPath, secret.Version)
	}

	kw.mu.Lock()
	kw.reloads++
	kw.mu.Unlock()

	kw.logger.Info("API keys rotated from Vault", "version", secret.Version, "keys", len(keys))
	kw.onReload(keys)
	return nil
}

// Status returns the current status of the watcher for health reporting
func (kw *APIKeyWatcher) Status() map[string]any {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	return map[string]any{
		"running":       kw.running,
		"poll_interval": kw.pollInterval.String(),
		"secret_path":   kw.secretPath,
		"last_version":  kw.lastVersion,
		"reloads":       kw.reloads,
	}
}
