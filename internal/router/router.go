// Package router implements task classification, provider selection with
// a tunable custom-script hook, and the three-tier graceful-degradation
// fallback. The custom-router hook compiles the operator's JavaScript
// once when the config is applied and pulls a goja.Runtime from a
// sync.Pool per request, rather than re-parsing the script on every call.
package router

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/universal-claude-router/ucr/internal/canon"
	"github.com/universal-claude-router/ucr/internal/config"
)

const defaultTokenThreshold = 100_000

// Router resolves a RouteResult for every inbound CanonicalRequest against
// the most recently published config snapshot.
type Router struct {
	log *zap.Logger

	mu      sync.RWMutex
	cfg     *config.Config
	hook    *customHook
	hookSrc string
}

// New builds a Router that tracks snapshots from updates (normally
// Manager.Subscribe()).
func New(log *zap.Logger, updates <-chan *config.Config) *Router {
	r := &Router{log: log}
	if updates != nil {
		go r.watch(updates)
	}
	return r
}

func (r *Router) watch(updates <-chan *config.Config) {
	for cfg := range updates {
		r.Apply(cfg)
	}
}

// Apply installs a new config snapshot, (re)compiling the custom router
// hook if configured. A hook compile failure is logged and the previous
// hook (if any) is kept, never fatal.
func (r *Router) Apply(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg

	src := ""
	if cfg != nil {
		src = cfg.Router.CustomRouter
	}
	if src == r.hookSrc && r.hook != nil {
		return
	}
	r.hookSrc = src
	if src == "" {
		r.hook = nil
		return
	}
	hook, err := newCustomHook(src)
	if err != nil {
		r.log.Error("custom router hook failed to compile, falling back to default routing", zap.Error(err))
		r.hook = nil
		return
	}
	r.hook = hook
}

func (r *Router) snapshot() (*config.Config, *customHook) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg, r.hook
}

// Route classifies the request, then tries the optimal, simple, and
// emergency provider-selection tiers in order, falling through to the
// next tier whenever the current one can't produce a usable provider.
func (r *Router) Route(ctx context.Context, req *canon.CanonicalRequest) (*canon.RouteResult, error) {
	cfg, hook := r.snapshot()
	if cfg == nil {
		return nil, &canon.NoProviderAvailableError{TaskType: canon.TaskDefault}
	}

	enabled := enabledProviders(cfg)
	if len(enabled) == 0 {
		return nil, &canon.NoProviderAvailableError{TaskType: canon.TaskDefault}
	}

	taskType := Classify(req)
	tokenCount := TokenCount(req)

	if result, err := r.optimal(cfg, hook, req, enabled, taskType, tokenCount); err == nil {
		return result, nil
	} else {
		r.log.Warn("optimal routing failed, falling back to simple", zap.Error(err))
	}

	if result, err := r.simple(cfg, enabled, taskType, tokenCount); err == nil {
		return result, nil
	} else {
		r.log.Warn("simple routing failed, falling back to emergency", zap.Error(err))
	}

	return r.emergency(enabled, taskType, tokenCount)
}

// optimal is the task-based path: resolve a provider from the task-type
// route table, then let the operator's custom hook override that choice
// if it names another enabled provider.
func (r *Router) optimal(cfg *config.Config, hook *customHook, req *canon.CanonicalRequest, enabled []canon.Provider, taskType canon.TaskType, tokenCount int) (*canon.RouteResult, error) {
	id := resolveTaskRoute(cfg, taskType, tokenCount)

	if hook != nil {
		if hookID, err := hook.run(req, enabled, taskType, tokenCount); err != nil {
			r.log.Error("custom router hook error, ignoring", zap.Error(err))
		} else if hookID != "" && findProvider(enabled, hookID) != nil {
			id = hookID
		}
	}

	provider := findProvider(enabled, id)
	if provider == nil {
		provider = highestPriority(enabled)
	}
	if provider == nil {
		return nil, &canon.NoProviderAvailableError{TaskType: taskType}
	}
	return buildResult(provider, req, taskType, tokenCount, "optimal"), nil
}

// simple falls back to the configured default provider, or the
// highest-priority enabled provider if no default is configured.
func (r *Router) simple(cfg *config.Config, enabled []canon.Provider, taskType canon.TaskType, tokenCount int) (*canon.RouteResult, error) {
	var provider *canon.Provider
	if cfg.Router.Default != "" {
		provider = findProvider(enabled, cfg.Router.Default)
	}
	if provider == nil {
		provider = highestPriority(enabled)
	}
	if provider == nil {
		return nil, &canon.NoProviderAvailableError{TaskType: taskType}
	}
	return &canon.RouteResult{Provider: provider, Model: resolveModel(provider, ""), TaskType: taskType, TokenCount: tokenCount, Reason: "simple"}, nil
}

// emergency accepts any enabled provider at all; only an empty enabled
// set is a reported failure.
func (r *Router) emergency(enabled []canon.Provider, taskType canon.TaskType, tokenCount int) (*canon.RouteResult, error) {
	provider := highestPriority(enabled)
	if provider == nil {
		return nil, &canon.NoProviderAvailableError{TaskType: taskType}
	}
	return &canon.RouteResult{Provider: provider, Model: resolveModel(provider, ""), TaskType: taskType, TokenCount: tokenCount, Reason: "emergency"}, nil
}

func buildResult(provider *canon.Provider, req *canon.CanonicalRequest, taskType canon.TaskType, tokenCount int, reason string) *canon.RouteResult {
	return &canon.RouteResult{
		Provider:   provider,
		Model:      resolveModel(provider, req.Model),
		TaskType:   taskType,
		TokenCount: tokenCount,
		Reason:     reason,
	}
}

// resolveModel prefers the provider's configured default model, falling
// back to whatever model the client requested.
func resolveModel(provider *canon.Provider, requested string) string {
	if provider.DefaultModel != "" {
		return provider.DefaultModel
	}
	return requested
}

// resolveTaskRoute picks the configured provider id for taskType, before
// the enabled-providers fallback is applied.
func resolveTaskRoute(cfg *config.Config, taskType canon.TaskType, tokenCount int) string {
	threshold := cfg.Router.TokenThreshold
	if threshold <= 0 {
		threshold = defaultTokenThreshold
	}
	if (taskType == canon.TaskLongContext || tokenCount > threshold) && cfg.Router.LongContext != "" {
		return cfg.Router.LongContext
	}

	switch taskType {
	case canon.TaskThink:
		if cfg.Router.Think != "" {
			return cfg.Router.Think
		}
	case canon.TaskBackground:
		if cfg.Router.Background != "" {
			return cfg.Router.Background
		}
	case canon.TaskWebSearch:
		if cfg.Router.WebSearch != "" {
			return cfg.Router.WebSearch
		}
	case canon.TaskImage:
		if cfg.Router.Image != "" {
			return cfg.Router.Image
		}
	case canon.TaskLongContext:
		if cfg.Router.LongContext != "" {
			return cfg.Router.LongContext
		}
	}
	return cfg.Router.Default
}

func enabledProviders(cfg *config.Config) []canon.Provider {
	providers := cfg.EnabledProvidersByPriority()
	out := make([]canon.Provider, 0, len(providers))
	for i, p := range providers {
		out = append(out, p.ToCanonProvider(i))
	}
	return out
}

func findProvider(enabled []canon.Provider, id string) *canon.Provider {
	if id == "" {
		return nil
	}
	for i := range enabled {
		if enabled[i].ID == id {
			return &enabled[i]
		}
	}
	return nil
}

// highestPriority returns the enabled provider with the highest Priority,
// ties broken by insertion order. enabled is already sorted by
// EnabledProvidersByPriority (priority desc, stable), so the first
// element already satisfies this; kept explicit for clarity and so
// emergency()/simple() don't depend on caller ordering.
func highestPriority(enabled []canon.Provider) *canon.Provider {
	if len(enabled) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(enabled); i++ {
		if enabled[i].Priority > enabled[best].Priority {
			best = i
		} else if enabled[i].Priority == enabled[best].Priority && enabled[i].InsertionOrder < enabled[best].InsertionOrder {
			best = i
		}
	}
	return &enabled[best]
}

// ---------------------------------------------------------------------------
// Custom router hook
// ---------------------------------------------------------------------------

// customHook wraps a compiled goja.Program with a pool of runtimes, since
// goja.Runtime is not safe for concurrent use.
type customHook struct {
	program *goja.Program
	pool    sync.Pool
}

func newCustomHook(source string) (*customHook, error) {
	program, err := goja.Compile("customRouter.js", source, false)
	if err != nil {
		return nil, fmt.Errorf("compile custom router script: %w", err)
	}
	h := &customHook{program: program}
	h.pool.New = func() interface{} {
		vm := goja.New()
		vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
		if _, err := vm.RunProgram(program); err != nil {
			return nil
		}
		return vm
	}
	return h, nil
}

type hookProviderView struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

type hookContext struct {
	Providers  []hookProviderView `json:"providers"`
	TaskType   string             `json:"taskType"`
	TokenCount int                `json:"tokenCount"`
}

type hookRequestView struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	System   string `json:"system,omitempty"`
	LastText string `json:"lastText,omitempty"`
}

// run invokes the script's exported "route" function with
// (request, {providers, taskType, tokenCount}) and expects a provider id
// string back. Any panic, exception, or malformed return value is reported
// as an error and must never be fatal to the caller.
func (h *customHook) run(req *canon.CanonicalRequest, enabled []canon.Provider, taskType canon.TaskType, tokenCount int) (id string, err error) {
	vmIface := h.pool.Get()
	vm, _ := vmIface.(*goja.Runtime)
	if vm == nil {
		return "", fmt.Errorf("custom router runtime unavailable")
	}
	defer h.pool.Put(vm)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("custom router script panicked: %v", rec)
		}
	}()

	routeFn, ok := goja.AssertFunction(vm.Get("route"))
	if !ok {
		return "", fmt.Errorf("custom router script does not export a route(request, context) function")
	}

	views := make([]hookProviderView, len(enabled))
	for i, p := range enabled {
		views[i] = hookProviderView{ID: p.ID, Priority: p.Priority, Enabled: p.Enabled}
	}

	lastText := ""
	if last := lastUserMessage(req); last != nil {
		lastText = last.Text()
	}

	reqView := hookRequestView{Model: req.Model, Stream: req.Stream, System: req.System, LastText: lastText}
	ctxView := hookContext{Providers: views, TaskType: string(taskType), TokenCount: tokenCount}

	result, err := routeFn(goja.Undefined(), vm.ToValue(reqView), vm.ToValue(ctxView))
	if err != nil {
		return "", fmt.Errorf("custom router script threw: %w", err)
	}
	if goja.IsUndefined(result) || goja.IsNull(result) {
		return "", nil
	}
	return result.String(), nil
}

// AllProviderIDs returns every provider id in the current snapshot, sorted.
// Not part of the routing algorithm itself.
func (r *Router) AllProviderIDs() []string {
	cfg, _ := r.snapshot()
	if cfg == nil {
		return nil
	}
	ids := make([]string, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}
