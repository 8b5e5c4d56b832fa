// Package config loads, validates, and hot-reloads the proxy's
// configuration document using spf13/viper: reading the JSON config file,
// expanding environment variables and OAuth placeholders, validating the
// result, and publishing it as an immutable snapshot that readers can poll
// or subscribe to without taking a lock.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/canon"
	"github.com/universal-claude-router/ucr/internal/credential"
)

// ServerConfig is the "server" schema block.
type ServerConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	CORS      bool          `mapstructure:"cors"`
	RateLimit int           `mapstructure:"rateLimit"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LoggingConfig is the "logging" schema block.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	File     string `mapstructure:"file"`
	Pretty   bool   `mapstructure:"pretty"`
	Requests bool   `mapstructure:"requests"`
}

// ProviderConfig is one entry of the "providers" schema array.
type ProviderConfig struct {
	ID           string            `mapstructure:"id"`
	Name         string            `mapstructure:"name"`
	BaseURL      string            `mapstructure:"baseUrl"`
	DefaultModel string            `mapstructure:"defaultModel"`
	Models       []string          `mapstructure:"models"`
	AuthType     string            `mapstructure:"authType"`
	APIKey       string            `mapstructure:"apiKey"`
	Priority     int               `mapstructure:"priority"`
	Enabled      bool              `mapstructure:"enabled"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	RetryCount   int               `mapstructure:"retryCount"`
	ExtraHeaders map[string]string `mapstructure:"extraHeaders"`
	// Transformer names the registry key (e.g. "anthropic", "openai",
	// "github-copilot", "gemini", "cohere", "ollama", "replicate") used
	// to translate requests for this provider. Defaults to the
	// provider's own id, so "id: anthropic" resolves with zero extra
	// config; an operator naming a provider something else (e.g. two
	// OpenAI-compatible resellers under different ids) sets this
	// explicitly on each.
	Transformer string `mapstructure:"transformer"`
	// Metadata is an opaque per-provider bag for adapter-specific
	// settings that don't belong in the common schema: Vertex AI's
	// projectId/location, Copilot's editorVersion/editorPluginVersion/
	// userAgent, OpenRouter's httpReferer/xTitle, Replicate's
	// modelVersion.
	Metadata map[string]interface{} `mapstructure:"metadata"`
}

// RouterConfig is the "router" schema block.
type RouterConfig struct {
	Default        string `mapstructure:"default"`
	Think          string `mapstructure:"think"`
	Background     string `mapstructure:"background"`
	LongContext    string `mapstructure:"longContext"`
	WebSearch      string `mapstructure:"webSearch"`
	Image          string `mapstructure:"image"`
	TokenThreshold int    `mapstructure:"tokenThreshold"`
	CustomRouter   string `mapstructure:"customRouter"`
}

// TransformerConfig is one entry of the "transformers" schema array.
type TransformerConfig struct {
	Provider string                 `mapstructure:"provider"`
	Enabled  bool                   `mapstructure:"enabled"`
	Options  map[string]interface{} `mapstructure:"options"`
}

// AuthConfig is the "auth" schema block.
type AuthConfig struct {
	StorePath  string `mapstructure:"storePath"`
	Encryption string `mapstructure:"encryption"`
}

// FeaturesConfig is the "features" schema block.
type FeaturesConfig struct {
	CostTracking  bool `mapstructure:"costTracking"`
	Analytics     bool `mapstructure:"analytics"`
	HealthChecks  bool `mapstructure:"healthChecks"`
	AutoDiscovery bool `mapstructure:"autoDiscovery"`
}

// Config is one fully loaded, validated, and env/oauth-substituted
// configuration document — the unit that gets published as an immutable
// snapshot.
type Config struct {
	Version      string              `mapstructure:"version"`
	Server       ServerConfig        `mapstructure:"server"`
	Logging      LoggingConfig       `mapstructure:"logging"`
	Providers    []ProviderConfig    `mapstructure:"providers"`
	Router       RouterConfig        `mapstructure:"router"`
	Transformers []TransformerConfig `mapstructure:"transformers"`
	Auth         AuthConfig          `mapstructure:"auth"`
	Features     FeaturesConfig      `mapstructure:"features"`
}

// EnabledProvidersByPriority returns the enabled providers sorted by
// priority descending.
func (c *Config) EnabledProvidersByPriority() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// ToCanonProvider converts a loaded ProviderConfig into the canon.Provider
// value the router and transformer registry operate on.
func (p ProviderConfig) ToCanonProvider(order int) canon.Provider {
	transformerName := p.Transformer
	if transformerName == "" {
		transformerName = p.ID
	}
	return canon.Provider{
		ID:              p.ID,
		DisplayName:     p.Name,
		BaseURL:         p.BaseURL,
		DefaultModel:    p.DefaultModel,
		Models:          p.Models,
		AuthType:        canon.AuthKind(p.AuthType),
		APIKey:          p.APIKey,
		Priority:        p.Priority,
		Enabled:         p.Enabled,
		Timeout:         p.Timeout,
		RetryCount:      p.RetryCount,
		ExtraHeaders:    p.ExtraHeaders,
		InsertionOrder:  order,
		TransformerName: transformerName,
		Metadata:        p.Metadata,
	}
}

// Manager owns the viper instance, the credential store used for OAuth
// substitution, and the currently published snapshot. A snapshot is
// immutable once published and swapped atomically on reload, so Current()
// never blocks behind a writer beyond a single pointer exchange.
type Manager struct {
	v        *viper.Viper
	creds    *credential.Store
	log      *zap.Logger
	path     string

	mu       chan struct{} // 1-buffered mutex, see Current/publish
	current  *Config
	subs     []chan *Config
}

// New builds a Manager for the config file at path, binding UCR_HOST,
// UCR_PORT and UCR_LOG_LEVEL as env overrides.
func New(path string, creds *credential.Store, log *zap.Logger) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("UCR")
	_ = v.BindEnv("server.host", "UCR_HOST")
	_ = v.BindEnv("server.port", "UCR_PORT")
	_ = v.BindEnv("logging.level", "UCR_LOG_LEVEL")

	m := &Manager{
		v:     v,
		creds: creds,
		log:   log,
		path:  path,
		mu:    make(chan struct{}, 1),
	}
	m.mu <- struct{}{}
	return m, nil
}

// Current returns the currently published snapshot. Safe for concurrent
// use with Load/reload.
func (m *Manager) Current() *Config {
	<-m.mu
	c := m.current
	m.mu <- struct{}{}
	return c
}

// Subscribe registers a channel that receives every successfully applied
// snapshot (including the first). The router and proxy use this to keep
// their own cached pointer current without polling.
func (m *Manager) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	<-m.mu
	m.subs = append(m.subs, ch)
	if m.current != nil {
		ch <- m.current
	}
	m.mu <- struct{}{}
	return ch
}

func (m *Manager) publish(c *Config) {
	<-m.mu
	m.current = c
	subs := m.subs
	m.mu <- struct{}{}
	for _, ch := range subs {
		select {
		case ch <- c:
		default:
			// drop if the subscriber hasn't drained the previous snapshot yet;
			// the next reload will deliver the latest one anyway.
			select {
			case <-ch:
			default:
			}
			ch <- c
		}
	}
}

// Load runs the full pipeline: read, two-pass env expansion around OAuth
// substitution, validate, and publish.
func (m *Manager) Load() error {
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	raw := m.v.AllSettings()

	if err := expandPass(raw, true); err != nil {
		return fmt.Errorf("expand env (pass 1): %w", err)
	}
	if err := substituteOAuth(raw, m.creds); err != nil {
		return err
	}
	if err := expandPass(raw, false); err != nil {
		return fmt.Errorf("expand env (pass 2): %w", err)
	}

	var cfg Config
	if err := mapstructureDecode(raw, &cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return &canon.ConfigInvalidError{Reason: err.Error()}
	}

	m.publish(&cfg)
	m.log.Info("config loaded", zap.String("path", m.path), zap.Int("providers", len(cfg.Providers)))
	return nil
}
