package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/canon"
	"github.com/universal-claude-router/ucr/internal/credential"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestStore(t *testing.T) *credential.Store {
	t.Helper()
	s, err := credential.Open(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, err)
	return s
}

const baseConfigJSON = `{
  "version": "1",
  "server": {"host": "0.0.0.0", "port": 8080, "cors": true, "rateLimit": 0, "timeout": "30s"},
  "logging": {"level": "info", "pretty": true},
  "providers": [
    {"id": "anthropic", "name": "Anthropic", "baseUrl": "https://api.anthropic.com", "defaultModel": "claude-3-5-sonnet-20241022", "authType": "apiKey", "apiKey": "${TEST_ANTHROPIC_KEY}", "priority": 10, "enabled": true}
  ],
  "router": {"default": "anthropic", "tokenThreshold": 60000},
  "transformers": [{"provider": "anthropic", "enabled": true}],
  "auth": {"storePath": "~/.ucr/credentials.json"},
  "features": {"healthChecks": true}
}`

func TestLoadExpandsEnvVar(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-live-123")
	path := writeConfig(t, baseConfigJSON)
	m, err := New(path, newTestStore(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Current()
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "sk-live-123", cfg.Providers[0].APIKey)
	assert.Equal(t, "anthropic", cfg.Router.Default)
}

func TestLoadFailsOnUndefinedEnvVar(t *testing.T) {
	path := writeConfig(t, baseConfigJSON)
	m, err := New(path, newTestStore(t), zap.NewNop())
	require.NoError(t, err)
	err = m.Load()
	require.Error(t, err)
}

func TestLoadSubstitutesOAuthFromStore(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("github-copilot", canon.Credential{
		ProviderID:  "github-copilot",
		Kind:        canon.CredOAuth,
		AccessToken: "gho_abc123",
	}))

	body := `{
		"version": "1",
		"server": {"host": "0.0.0.0", "port": 8080},
		"logging": {"level": "info"},
		"providers": [
			{"id": "github-copilot", "name": "Copilot", "baseUrl": "https://api.githubcopilot.com", "authType": "oauth", "apiKey": "${OAUTH_TOKEN}", "priority": 5, "enabled": true}
		],
		"router": {"default": "github-copilot"},
		"auth": {},
		"features": {}
	}`
	path := writeConfig(t, body)
	m, err := New(path, store, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Load())

	cfg := m.Current()
	assert.Equal(t, "gho_abc123", cfg.Providers[0].APIKey)
}

func TestLoadFailsOnMissingOAuthCredential(t *testing.T) {
	body := `{
		"version": "1",
		"server": {"host": "0.0.0.0", "port": 8080},
		"logging": {"level": "info"},
		"providers": [
			{"id": "github-copilot", "name": "Copilot", "baseUrl": "https://api.githubcopilot.com", "authType": "oauth", "apiKey": "${OAUTH_TOKEN}", "priority": 5, "enabled": true}
		],
		"router": {"default": "github-copilot"},
		"auth": {},
		"features": {}
	}`
	path := writeConfig(t, body)
	m, err := New(path, newTestStore(t), zap.NewNop())
	require.NoError(t, err)
	err = m.Load()
	require.Error(t, err)
}

func TestValidateRejectsEmptyProviders(t *testing.T) {
	err := Validate(&Config{})
	require.Error(t, err)
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	c := &Config{Providers: []ProviderConfig{{ID: "a", Enabled: true}, {ID: "a", Enabled: true}}}
	require.Error(t, Validate(c))
}

func TestValidateRejectsUnknownRouterTarget(t *testing.T) {
	c := &Config{
		Providers: []ProviderConfig{{ID: "a", Enabled: true}},
		Router:    RouterConfig{Default: "nonexistent"},
	}
	require.Error(t, Validate(c))
}

func TestEnabledProvidersByPriorityOrdering(t *testing.T) {
	c := &Config{Providers: []ProviderConfig{
		{ID: "low", Enabled: true, Priority: 1},
		{ID: "high", Enabled: true, Priority: 10},
		{ID: "disabled", Enabled: false, Priority: 99},
	}}
	got := c.EnabledProvidersByPriority()
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].ID)
	assert.Equal(t, "low", got[1].ID)
}
