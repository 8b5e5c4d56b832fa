package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/canon"
)

// DefaultClientID is GitHub Copilot's public device-flow client id,
// used unless the provider config overrides it.
const DefaultClientID = "Iv1.b507a08c87ecfe98"

const (
	grantTypeDeviceCode   = "urn:ietf:params:oauth:grant-type:device_code"
	grantTypeRefreshToken = "refresh_token"
	refreshHorizon        = 5 * time.Minute
)

// DeviceFlowEndpoints names the two endpoints a provider's OAuth device
// flow talks to.
type DeviceFlowEndpoints struct {
	DeviceCodeURL string
	TokenURL      string
	ClientID      string
	Scope         string
}

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// Prompt is called once with the verification URL and user code so the
// caller (the `ucr auth login` CLI command) can present them to a human.
type Prompt func(verificationURI, userCode string)

// OAuthFlow drives the device-code authorization flow for one provider
// using the shared resty client, persisting the resulting credential into
// the store on success.
type OAuthFlow struct {
	rc    *resty.Client
	store *Store
	log   *zap.Logger
}

// NewOAuthFlow builds a flow bound to the given store and resty client.
func NewOAuthFlow(rc *resty.Client, store *Store, log *zap.Logger) *OAuthFlow {
	return &OAuthFlow{rc: rc, store: store, log: log}
}

// Login runs the full device-code flow for providerID against eps,
// blocking until the human authorizes, the device code expires, or ctx is
// canceled.
func (f *OAuthFlow) Login(ctx context.Context, providerID string, eps DeviceFlowEndpoints, prompt Prompt) error {
	if eps.ClientID == "" {
		eps.ClientID = DefaultClientID
	}

	var dc deviceCodeResponse
	resp, err := f.rc.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id": eps.ClientID,
			"scope":     eps.Scope,
		}).
		SetHeader("Accept", "application/json").
		SetResult(&dc).
		Post(eps.DeviceCodeURL)
	if err != nil {
		return fmt.Errorf("request device code: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("device code endpoint returned %d", resp.StatusCode())
	}

	prompt(dc.VerificationURI, dc.UserCode)

	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("device code expired before authorization completed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		var tok tokenResponse
		resp, err := f.rc.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"client_id":   eps.ClientID,
				"device_code": dc.DeviceCode,
				"grant_type":  grantTypeDeviceCode,
			}).
			SetHeader("Accept", "application/json").
			SetResult(&tok).
			Post(eps.TokenURL)
		if err != nil {
			return fmt.Errorf("poll token endpoint: %w", err)
		}
		_ = resp

		switch tok.Error {
		case "":
			// fallthrough to access-token handling below
		case "authorization_pending":
			continue
		case "slow_down":
			interval += 5 * time.Second
			continue
		default:
			desc := tok.ErrorDesc
			if desc == "" {
				desc = tok.Error
			}
			return fmt.Errorf("authorization failed: %s", desc)
		}

		if tok.AccessToken == "" {
			continue
		}

		cred := canon.Credential{
			ProviderID:   providerID,
			Kind:         canon.CredOAuth,
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
		}
		if tok.ExpiresIn > 0 {
			exp := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).UnixMilli()
			cred.ExpiresAtMs = &exp
		}
		if err := f.store.Set(providerID, cred); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
		f.log.Info("oauth login succeeded", zap.String("provider", providerID))
		return nil
	}
}

// NeedsRefresh reports whether providerID's stored credential expires
// within the spec's 5 minute horizon.
func (f *OAuthFlow) NeedsRefresh(providerID string) (bool, error) {
	cred, err := f.store.Get(providerID)
	if err != nil {
		return false, err
	}
	return cred.NeedsRefresh(time.Now(), refreshHorizon), nil
}

// Refresh exchanges a stored refresh token for a new access token and
// overwrites the stored credential.
func (f *OAuthFlow) Refresh(ctx context.Context, providerID string, eps DeviceFlowEndpoints) (canon.Credential, error) {
	if eps.ClientID == "" {
		eps.ClientID = DefaultClientID
	}
	cur, err := f.store.Get(providerID)
	if err != nil {
		return canon.Credential{}, err
	}
	if cur.RefreshToken == "" {
		return canon.Credential{}, fmt.Errorf("provider %s has no refresh token; run auth login again", providerID)
	}

	var tok tokenResponse
	resp, err := f.rc.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     eps.ClientID,
			"refresh_token": cur.RefreshToken,
			"grant_type":    grantTypeRefreshToken,
		}).
		SetHeader("Accept", "application/json").
		SetResult(&tok).
		Post(eps.TokenURL)
	if err != nil {
		return canon.Credential{}, fmt.Errorf("refresh token: %w", err)
	}
	if resp.IsError() || tok.Error != "" {
		return canon.Credential{}, fmt.Errorf("refresh failed: %s", tok.Error)
	}

	cred := canon.Credential{
		ProviderID:   providerID,
		Kind:         canon.CredOAuth,
		AccessToken:  tok.AccessToken,
		RefreshToken: cur.RefreshToken,
	}
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	if tok.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).UnixMilli()
		cred.ExpiresAtMs = &exp
	}
	if err := f.store.Set(providerID, cred); err != nil {
		return canon.Credential{}, fmt.Errorf("persist refreshed credential: %w", err)
	}
	return cred, nil
}
