package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/universal-claude-router/ucr/internal/canon"
	"github.com/universal-claude-router/ucr/internal/credential"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandPass walks raw recursively, replacing every "${NAME}" occurrence
// in string values with the matching process environment variable.
//
// leaveOAuthPlaceholders controls the first-pass behavior: inside a
// providers[] entry whose authType is "oauth", an undefined ${NAME} in the
// apiKey field is left intact rather than erroring, because
// substituteOAuth is expected to fill it in from the credential store
// afterward. On the second pass (leaveOAuthPlaceholders=false) any
// survivor is a hard error.
func expandPass(raw map[string]interface{}, leaveOAuthPlaceholders bool) error {
	if providers, ok := raw["providers"].([]interface{}); ok {
		for _, p := range providers {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			authType, _ := pm["authType"].(string)
			for key, val := range pm {
				s, ok := val.(string)
				if !ok {
					if err := expandOther(val, ""); err != nil {
						return err
					}
					continue
				}
				isOAuthAPIKey := key == "apiKey" && authType == "oauth"
				expanded, err := expandString(s, isOAuthAPIKey && leaveOAuthPlaceholders)
				if err != nil {
					return err
				}
				pm[key] = expanded
			}
		}
	}

	return expandOther(raw, "providers")
}

// expandOther walks every key of raw except skipKey, recursing into
// nested maps and slices, expanding every string leaf with no
// leave-intact exception (only providers[].apiKey gets that).
func expandOther(node interface{}, skipKey string) error {
	switch v := node.(type) {
	case map[string]interface{}:
		for key, val := range v {
			if key == skipKey {
				continue
			}
			switch inner := val.(type) {
			case string:
				expanded, err := expandString(inner, false)
				if err != nil {
					return err
				}
				v[key] = expanded
			default:
				if err := expandOther(val, ""); err != nil {
					return err
				}
			}
		}
	case []interface{}:
		for i, item := range v {
			switch inner := item.(type) {
			case string:
				expanded, err := expandString(inner, false)
				if err != nil {
					return err
				}
				v[i] = expanded
			default:
				if err := expandOther(item, ""); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func expandString(s string, leaveIntact bool) (string, error) {
	var firstErr error
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if leaveIntact {
			return match
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("undefined environment variable %q referenced in config", name)
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// substituteOAuth resolves, for every provider whose authType is "oauth"
// and whose apiKey is still a placeholder, the stored access token from
// the credential store and substitutes it in.
func substituteOAuth(raw map[string]interface{}, creds *credential.Store) error {
	providers, ok := raw["providers"].([]interface{})
	if !ok {
		return nil
	}
	for _, p := range providers {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		authType, _ := pm["authType"].(string)
		if authType != "oauth" {
			continue
		}
		apiKey, _ := pm["apiKey"].(string)
		if !placeholderPattern.MatchString(apiKey) {
			continue
		}
		id, _ := pm["id"].(string)
		cred, err := creds.Get(id)
		if err != nil {
			var missing *canon.CredentialMissingError
			if errors.As(err, &missing) {
				return fmt.Errorf("provider %q requires OAuth credentials: run `ucr auth login %s`", id, id)
			}
			return fmt.Errorf("resolve OAuth credential for %q: %w", id, err)
		}
		pm["apiKey"] = cred.AccessToken
	}
	return nil
}
