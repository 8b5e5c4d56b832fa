package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/universal-claude-router/ucr/internal/canon"
	"github.com/universal-claude-router/ucr/internal/config"
	"github.com/universal-claude-router/ucr/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		Providers: []config.ProviderConfig{
			{ID: "anthropic", Name: "Anthropic", BaseURL: "https://api.anthropic.com", Priority: 10, Enabled: true, DefaultModel: "claude-3-5-sonnet"},
			{ID: "openai", Name: "OpenAI", BaseURL: "https://api.openai.com", Priority: 5, Enabled: true, DefaultModel: "gpt-4o"},
			{ID: "deep-thinker", Name: "Deep Thinker", BaseURL: "https://api.example.com", Priority: 1, Enabled: true, DefaultModel: "o1"},
			{ID: "disabled-one", Name: "Disabled", BaseURL: "https://api.example.com", Priority: 99, Enabled: false},
		},
		Router: config.RouterConfig{
			Default: "anthropic",
			Think:   "deep-thinker",
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) *Router {
	t.Helper()
	r := New(logging.Nop(), nil)
	r.Apply(cfg)
	return r
}

func TestRouteDefaultTask(t *testing.T) {
	r := newTestRouter(t, testConfig())
	req := &canon.CanonicalRequest{Model: "whatever", Messages: []canon.Message{textMsg(canon.RoleUser, "hello")}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", res.Provider.ID)
	assert.Equal(t, "claude-3-5-sonnet", res.Model)
	assert.Equal(t, canon.TaskDefault, res.TaskType)
}

func TestRouteThinkTaskUsesTaskRoute(t *testing.T) {
	r := newTestRouter(t, testConfig())
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, "let's think about this step by step")}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "deep-thinker", res.Provider.ID)
	assert.Equal(t, canon.TaskThink, res.TaskType)
}

func TestRouteFallsBackToHighestPriorityWhenTargetMissing(t *testing.T) {
	cfg := testConfig()
	cfg.Router.WebSearch = "not-a-real-provider"
	r := newTestRouter(t, cfg)
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, "search for something")}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", res.Provider.ID) // highest priority (10) among enabled
}

func TestRouteLongContextUsesLongContextRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Router.LongContext = "openai"
	r := newTestRouter(t, cfg)
	long := make([]byte, 60_000)
	for i := range long {
		long[i] = 'x'
	}
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, string(long))}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider.ID)
	assert.Equal(t, canon.TaskLongContext, res.TaskType)
}

func TestRouteTokenThresholdOverridesTaskRoute(t *testing.T) {
	cfg := testConfig()
	cfg.Router.LongContext = "openai"
	cfg.Router.TokenThreshold = 5
	r := newTestRouter(t, cfg)
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, "short text but over token threshold")}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider.ID)
}

func TestRouteNoProviderAvailable(t *testing.T) {
	cfg := &config.Config{Providers: []config.ProviderConfig{{ID: "x", Enabled: false}}}
	r := newTestRouter(t, cfg)
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, "hello")}}
	_, err := r.Route(context.Background(), req)
	require.Error(t, err)
	var npa *canon.NoProviderAvailableError
	assert.ErrorAs(t, err, &npa)
}

func TestCustomRouterHookOverridesSelection(t *testing.T) {
	cfg := testConfig()
	cfg.Router.CustomRouter = `function route(request, ctx) { if (ctx.taskType === "default") { return "openai"; } return null; }`
	r := newTestRouter(t, cfg)
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, "hello")}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider.ID)
}

func TestCustomRouterHookUnknownIDFallsThroughToDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Router.CustomRouter = `function route(request, ctx) { return "nonexistent"; }`
	r := newTestRouter(t, cfg)
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, "hello")}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", res.Provider.ID)
}

func TestCustomRouterHookThrowIsNeverFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Router.CustomRouter = `function route(request, ctx) { throw new Error("boom"); }`
	r := newTestRouter(t, cfg)
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, "hello")}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", res.Provider.ID)
}

func TestInvalidCustomRouterScriptFallsBackToDefaultRouting(t *testing.T) {
	cfg := testConfig()
	cfg.Router.CustomRouter = `this is not valid javascript {{{`
	r := newTestRouter(t, cfg)
	req := &canon.CanonicalRequest{Messages: []canon.Message{textMsg(canon.RoleUser, "hello")}}
	res, err := r.Route(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", res.Provider.ID)
}
