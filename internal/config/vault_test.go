package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"recruitflow/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretReader struct {
	secrets map[string]*api.Secret
	err     error
}

func (f *fakeSecretReader) Read(path string) (*api.Secret, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.secrets[path], nil
}

func kv2(data map[string]any, version any) *api.Secret {
	return &api.Secret{Data: map[string]any{
		"data":     data,
		"metadata": map[string]any{"version": version},
	}}
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
		{name: "missing version", input: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "test/path")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetSecretV2(t *testing.T) {
	tests := []struct {
		name        string
		secret      *api.Secret
		expectError string
	}{
		{
			name:   "valid KVv2 secret",
			secret: kv2(map[string]any{"api_key": "abc"}, "3"),
		},
		{
			name:        "missing secret",
			secret:      nil,
			expectError: "secret not found",
		},
		{
			name:        "KVv1 layout",
			secret:      &api.Secret{Data: map[string]any{"api_key": "abc"}},
			expectError: "missing 'data' field",
		},
		{
			name: "missing metadata",
			secret: &api.Secret{Data: map[string]any{
				"data": map[string]any{"api_key": "abc"},
			}},
			expectError: "missing 'metadata' field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &VaultClient{reader: &fakeSecretReader{secrets: map[string]*api.Secret{"secret/data/gemini": tt.secret}}}

			secret, err := client.GetSecretV2("secret/data/gemini")
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(3), secret.Version)
			assert.Equal(t, "abc", secret.Data["api_key"])
		})
	}
}

func TestGetSecretV2NilClient(t *testing.T) {
	var client *VaultClient
	_, err := client.GetSecretV2("any")
	assert.Error(t, err)
}

func TestApplySecrets(t *testing.T) {
	cfg := Default()
	cfg.AI.Email.APIKey = "email-specific-key"
	cfg.Vault.Secrets = VaultSecrets{
		GeminiKey:     "secret/data/gemini",
		APIKeys:       "secret/data/api",
		S3Credentials: "secret/data/s3",
	}

	client := &VaultClient{reader: &fakeSecretReader{secrets: map[string]*api.Secret{
		"secret/data/gemini": kv2(map[string]any{"api_key": "vault-gemini"}, 1),
		"secret/data/api":    kv2(map[string]any{"keys": "k1, k2,,k3"}, 1),
		"secret/data/s3":     kv2(map[string]any{"access_key_id": "AKID", "secret_access_key": "SECRET"}, 2),
	}}}

	require.NoError(t, applySecrets(client, cfg, errors.Discard()))

	assert.Equal(t, "vault-gemini", cfg.AI.APIKey)
	assert.Equal(t, "vault-gemini", cfg.AI.Extract.APIKey)
	assert.Equal(t, "email-specific-key", cfg.AI.Email.APIKey)
	assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Server.APIKeys)
	assert.Equal(t, "AKID", cfg.Storage.S3.AccessKeyID)
	assert.Equal(t, "SECRET", cfg.Storage.S3.SecretAccessKey)
}

func TestApplySecretsIncompleteS3Credentials(t *testing.T) {
	cfg := Default()
	cfg.Vault.Secrets = VaultSecrets{S3Credentials: "secret/data/s3"}

	client := &VaultClient{reader: &fakeSecretReader{secrets: map[string]*api.Secret{
		"secret/data/s3": kv2(map[string]any{"access_key_id": "AKID"}, 1),
	}}}

	err := applySecrets(client, cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_access_key")
}

func TestApplySecretsReadFailure(t *testing.T) {
	cfg := Default()
	cfg.Vault.Secrets = VaultSecrets{GeminiKey: "secret/data/gemini"}

	client := &VaultClient{reader: &fakeSecretReader{err: fmt.Errorf("permission denied")}}

	err := applySecrets(client, cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestResolveVaultToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token\n"), 0600))

	tests := []struct {
		name        string
		cfg         VaultConfig
		expected    string
		expectError bool
	}{
		{name: "inline token wins", cfg: VaultConfig{Token: "inline", TokenFile: tokenFile}, expected: "inline"},
		{name: "token from file is trimmed", cfg: VaultConfig{TokenFile: tokenFile}, expected: "file-token"},
		{name: "missing token file", cfg: VaultConfig{TokenFile: filepath.Join(t.TempDir(), "nope")}, expectError: true},
		{name: "no token at all", cfg: VaultConfig{}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := resolveVaultToken(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, token)
		})
	}
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = "unchanged"
	require.NoError(t, ApplyVaultSecrets(cfg, nil))
	assert.Equal(t, "unchanged", cfg.AI.APIKey)
}
