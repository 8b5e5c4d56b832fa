// Package health sends lightweight reachability probes to every configured
// provider concurrently, bounded by an errgroup so one slow or hanging
// provider cannot stall the rest.
package health

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/universal-claude-router/ucr/internal/config"
)

const (
	probeTimeout       = 5 * time.Second
	maxConcurrentProbes = 8
)

// Result is one provider's reachability outcome.
type Result struct {
	ProviderID string
	Reachable  bool
	Err        error
}

// ProbeAll concurrently checks that every provider's base URL responds,
// capped at maxConcurrentProbes in flight at once. Individual probe
// failures are recorded in the returned results rather than aborting the
// run; only ctx cancellation stops it early.
func ProbeAll(ctx context.Context, providers []config.ProviderConfig) []Result {
	results := make([]Result, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)

	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{ProviderID: p.ID, Err: err}
				return nil
			}
			results[i] = probeOne(gctx, p)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func probeOne(ctx context.Context, p config.ProviderConfig) Result {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.BaseURL, nil)
	if err != nil {
		return Result{ProviderID: p.ID, Err: err}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{ProviderID: p.ID, Err: err}
	}
	defer resp.Body.Close()

	return Result{ProviderID: p.ID, Reachable: true}
}
