package credential

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-claude-router/ucr/internal/canon"
)

func TestStoreSetGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s, err := Open(path)
	require.NoError(t, err)

	_, err = s.Get("openai")
	var missing *canon.CredentialMissingError
	require.ErrorAs(t, err, &missing)

	cred := canon.Credential{ProviderID: "openai", Kind: canon.CredAPIKey, APIKey: "sk-test"}
	require.NoError(t, s.Set("openai", cred))

	got, err := s.Get("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got.APIKey)

	reopened, err := Open(path)
	require.NoError(t, err)
	got2, err := reopened.Get("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got2.APIKey)

	require.NoError(t, s.Delete("openai"))
	_, err = s.Get("openai")
	require.ErrorAs(t, err, &missing)
}

func TestOpenMissingFileReturnsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "credentials.json")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Get("anything")
	require.Error(t, err)
}
