package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"recruitflow/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool         `mapstructure:"enabled"`
	Address   string       `mapstructure:"address"`
	Token     string       `mapstructure:"token"`
	TokenFile string       `mapstructure:"tokenFile"`
	Namespace string       `mapstructure:"namespace"`
	Secrets   VaultSecrets `mapstructure:"secrets"`

	// PollInterval is how often the server re-reads the API keys secret.
	// Zero disables rotation.
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// VaultSecrets holds KVv2 paths of the secrets the application reads.
type VaultSecrets struct {
	// APIKeys holds a "keys" field with comma-separated server API keys.
	APIKeys string `mapstructure:"apiKeys"`
	// GeminiKey holds an "api_key" field.
	GeminiKey string `mapstructure:"geminiKey"`
	// S3Credentials holds "access_key_id" and "secret_access_key" fields.
	S3Credentials string `mapstructure:"s3Credentials"`
}

// secretReader is the part of the Vault logical API used here.
type secretReader interface {
	Read(path string) (*api.Secret, error)
}

// VaultClient reads KVv2 secrets.
type VaultClient struct {
	reader secretReader
	logger *errors.Logger
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// NewVaultClient connects to Vault and verifies it is reachable. It returns
// nil when the integration is disabled.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", apiCfg.Address, err)
	}
	if logger != nil {
		logger.Info("Connected to Vault",
			"address", apiCfg.Address,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return &VaultClient{reader: client.Logical(), logger: logger}, nil
}

// resolveVaultToken prefers the inline token over the token file
func resolveVaultToken(cfg VaultConfig) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.reader.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	version, err := parseVersionValue(metadata["version"], path)
	if err != nil {
		return nil, err
	}

	return &VaultSecret{Data: data, Version: version}, nil
}

func parseVersionValue(raw any, path string) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, raw)
	}
}

// GetStringSecret retrieves one string field of a secret.
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}
	return str, nil
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if !cfg.Vault.Enabled {
		return nil
	}

	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to initialize vault client", err)
	}
	return applySecrets(client, cfg, logger)
}

func applySecrets(client *VaultClient, cfg *Config, logger *errors.Logger) error {
	paths := cfg.Vault.Secrets

	if paths.GeminiKey != "" {
		key, err := client.GetStringSecret(paths.GeminiKey, "api_key")
		if err != nil {
			return fmt.Errorf("failed to load Gemini API key from vault: %w", err)
		}
		if key != "" {
			applyGeminiKeyToConfig(cfg, key)
		}
	}

	if paths.APIKeys != "" {
		raw, err := client.GetStringSecret(paths.APIKeys, "keys")
		if err != nil {
			return fmt.Errorf("failed to load API keys from vault: %w", err)
		}
		if keys := SplitKeys(raw); len(keys) > 0 {
			cfg.Server.APIKeys = keys
		}
	}

	if paths.S3Credentials != "" {
		secret, err := client.GetSecretV2(paths.S3Credentials)
		if err != nil {
			return fmt.Errorf("failed to load S3 credentials from vault: %w", err)
		}
		if err := applyS3Credentials(cfg, secret, paths.S3Credentials); err != nil {
			return err
		}
	}

	if logger != nil {
		logger.Info("Applied secrets from Vault",
			"gemini_key", paths.GeminiKey != "",
			"api_keys", len(cfg.Server.APIKeys),
			"s3_credentials", paths.S3Credentials != "")
	}
	return nil
}

// applyGeminiKeyToConfig sets the key globally and on operations without their own key
func applyGeminiKeyToConfig(cfg *Config, geminiKey string) {
	cfg.AI.APIKey = geminiKey
	for _, opCfg := range cfg.operationConfigs() {
		if opCfg.APIKey == "" {
			opCfg.APIKey = geminiKey
		}
	}
}

func applyS3Credentials(cfg *Config, secret *VaultSecret, path string) error {
	accessKey, _ := secret.Data["access_key_id"].(string)
	secretKey, _ := secret.Data["secret_access_key"].(string)
	if accessKey == "" || secretKey == "" {
		return fmt.Errorf("secret at %s must contain access_key_id and secret_access_key", path)
	}
	cfg.Storage.S3.AccessKeyID = accessKey
	cfg.Storage.S3.SecretAccessKey = secretKey
	return nil
}

// SplitKeys parses a comma-separated key list.
func SplitKeys(raw string) []string {
	var keys []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	return keys
}
