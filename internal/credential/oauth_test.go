package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOAuthFlowLoginSucceedsOnFirstPoll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/device/code", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"device_code":      "dc123",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://example.com/activate",
			"expires_in":       900,
			"interval":         0,
		})
	})
	polls := 0
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		polls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "tok-abc",
			"refresh_token": "refresh-abc",
			"expires_in":    3600,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path)
	require.NoError(t, err)

	flow := NewOAuthFlow(resty.New(), store, zap.NewNop())

	var gotURI, gotCode string
	err = flow.Login(context.Background(), "github-copilot", DeviceFlowEndpoints{
		DeviceCodeURL: srv.URL + "/device/code",
		TokenURL:      srv.URL + "/login/oauth/access_token",
	}, func(uri, code string) {
		gotURI, gotCode = uri, code
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/activate", gotURI)
	assert.Equal(t, "ABCD-1234", gotCode)
	assert.Equal(t, 1, polls)

	cred, err := store.Get("github-copilot")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", cred.AccessToken)
	assert.Equal(t, "refresh-abc", cred.RefreshToken)
}

func TestOAuthFlowLoginFailsOnError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/device/code", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"device_code":      "dc123",
			"user_code":        "ABCD-1234",
			"verification_uri": "https://example.com/activate",
			"expires_in":       900,
			"interval":         0,
		})
	})
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error":             "access_denied",
			"error_description": "user denied the request",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := Open(path)
	require.NoError(t, err)
	flow := NewOAuthFlow(resty.New(), store, zap.NewNop())

	err = flow.Login(context.Background(), "github-copilot", DeviceFlowEndpoints{
		DeviceCodeURL: srv.URL + "/device/code",
		TokenURL:      srv.URL + "/login/oauth/access_token",
	}, func(uri, code string) {})
	require.Error(t, err)
}
