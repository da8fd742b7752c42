// Package dispatch fans one aggregation query out to every requested source
// in parallel, applying the circuit breaker, result cache, per-source rate
// limits, and timeouts. The outcome is partial-success-tolerant: a failing
// source lands in Failed with a classified reason and never aborts the rest.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/carlookout/server/internal/breaker"
	"github.com/carlookout/server/internal/domain/listings"
	"github.com/carlookout/server/internal/metrics"
	"github.com/carlookout/server/internal/rescache"
	"github.com/carlookout/server/internal/sources"
)

// SeenRecorder persists which (source, listing) pairs have been observed so
// later ingestion runs can tell new listings from known ones. A nil recorder
// disables tracking.
type SeenRecorder interface {
	MarkSeen(ctx context.Context, refs []listings.SourceRef) error
}

// Options tune the fan-out.
type Options struct {
	// MaxConcurrent bounds the number of sources queried at once.
	MaxConcurrent int
	// TotalTimeout caps the whole fan-out; sources still pending at expiry
	// are reported failed with reason timeout.
	TotalTimeout time.Duration
	// PerSourceLimit caps listings requested from each source.
	PerSourceLimit int
}

const (
	defaultMaxConcurrent  = 8
	defaultTotalTimeout   = 15 * time.Second
	defaultPerSourceLimit = 100
)

func (o Options) withDefaults() Options {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultMaxConcurrent
	}
	if o.TotalTimeout <= 0 {
		o.TotalTimeout = defaultTotalTimeout
	}
	if o.PerSourceLimit <= 0 {
		o.PerSourceLimit = defaultPerSourceLimit
	}
	return o
}

// Dispatcher implements listings.Dispatcher over the source registry.
type Dispatcher struct {
	registry *sources.Registry
	breaker  *breaker.Breaker
	cache    *rescache.Cache
	seen     SeenRecorder
	opts     Options
	logger   zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(registry *sources.Registry, brk *breaker.Breaker, cache *rescache.Cache, seen SeenRecorder, opts Options, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		breaker:  brk,
		cache:    cache,
		seen:     seen,
		opts:     opts.withDefaults(),
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Sources returns the enabled source IDs in priority order.
func (d *Dispatcher) Sources() []string {
	return d.registry.Enabled()
}

// sourceResult carries one source's outcome back from its worker goroutine.
type sourceResult struct {
	sourceID string
	result   []listings.RawListing
	reason   string
}

// Dispatch queries the named sources in parallel and collects the outcome.
// It never returns an error; per-source failures are classified into the
// Failed map. Dispatch returns no later than TotalTimeout even when an
// adapter ignores cancellation: sources still pending at expiry are reported
// failed with reason timeout and their goroutines are left to drain against
// the cancelled context.
func (d *Dispatcher) Dispatch(ctx context.Context, query string, filters listings.FilterSet, sourceIDs []string) listings.DispatchOutcome {
	outcome := listings.DispatchOutcome{
		Succeeded: make(map[string][]listings.RawListing, len(sourceIDs)),
		Failed:    make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.TotalTimeout)
	defer cancel()

	fingerprint := rescache.Fingerprint(query, filters)

	// Buffered to len(sourceIDs) so stragglers finishing after the deadline
	// never block on send.
	results := make(chan sourceResult, len(sourceIDs))

	g := new(errgroup.Group)
	g.SetLimit(d.opts.MaxConcurrent)

	for _, sourceID := range sourceIDs {
		g.Go(func() error {
			result, reason := d.querySource(ctx, sourceID, query, filters, fingerprint)
			results <- sourceResult{sourceID: sourceID, result: result, reason: reason}
			return nil
		})
	}

	pending := make(map[string]struct{}, len(sourceIDs))
	for _, sourceID := range sourceIDs {
		pending[sourceID] = struct{}{}
	}

	for len(pending) > 0 {
		select {
		case res := <-results:
			delete(pending, res.sourceID)
			if res.reason == "" {
				outcome.Succeeded[res.sourceID] = res.result
			} else {
				outcome.Failed[res.sourceID] = res.reason
			}
		case <-ctx.Done():
			for sourceID := range pending {
				outcome.Failed[sourceID] = listings.ReasonTimeout
				d.logger.Warn().Str("source", sourceID).Msg("source still pending at dispatch deadline")
			}
			return outcome
		}
	}

	return outcome
}

// querySource runs the breaker/cache/adapter chain for one source. It
// returns the listings and an empty reason on success, or a classified
// failure reason.
func (d *Dispatcher) querySource(ctx context.Context, sourceID, query string, filters listings.FilterSet, fingerprint string) ([]listings.RawListing, string) {
	adapter, err := d.registry.Get(sourceID)
	if err != nil {
		return nil, listings.ReasonError
	}

	ok, state := d.breaker.Allow(sourceID)
	metrics.SetBreakerState(sourceID, string(state))
	if !ok {
		metrics.SourceRequestsTotal.WithLabelValues(sourceID, "circuit_open").Inc()
		d.logger.Debug().Str("source", sourceID).Msg("skipping source, breaker open")
		return nil, listings.ReasonCircuitOpen
	}

	if cached, hit := d.cache.Get(sourceID, fingerprint); hit {
		metrics.CacheHitsTotal.WithLabelValues(sourceID).Inc()
		metrics.SourceRequestsTotal.WithLabelValues(sourceID, "cached").Inc()
		return cached, ""
	}
	metrics.CacheMissesTotal.WithLabelValues(sourceID).Inc()

	if err := d.limiter(sourceID).Wait(ctx); err != nil {
		// Wait only fails when the dispatch deadline is hit first. The source
		// was never contacted, so it carries no breaker penalty.
		metrics.SourceRequestsTotal.WithLabelValues(sourceID, "timeout").Inc()
		return nil, listings.ReasonTimeout
	}

	timeout := 10 * time.Second
	if cfg, found := d.registry.Config(sourceID); found && cfg.Timeout > 0 {
		timeout = cfg.Timeout.Std()
	}
	srcCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	result, err := adapter.Search(srcCtx, query, filters, d.opts.PerSourceLimit)
	metrics.SourceLatency.WithLabelValues(sourceID).Observe(time.Since(started).Seconds())

	if err != nil {
		d.breaker.RecordFailure(sourceID)
		reason := listings.ReasonError
		if errors.Is(err, sources.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || srcCtx.Err() != nil {
			reason = listings.ReasonTimeout
		}
		metrics.SourceRequestsTotal.WithLabelValues(sourceID, reason).Inc()
		d.logger.Warn().Err(err).Str("source", sourceID).Str("reason", reason).Msg("source fetch failed")
		return nil, reason
	}

	d.breaker.RecordSuccess(sourceID)
	metrics.SourceRequestsTotal.WithLabelValues(sourceID, "ok").Inc()
	metrics.ListingsFetchedTotal.WithLabelValues(sourceID).Add(float64(len(result)))

	d.cache.Put(sourceID, fingerprint, result)
	d.recordSeen(ctx, result)

	return result, ""
}

// recordSeen marks fetched listings in the seen store, best-effort.
func (d *Dispatcher) recordSeen(ctx context.Context, result []listings.RawListing) {
	if d.seen == nil || len(result) == 0 {
		return
	}
	refs := make([]listings.SourceRef, 0, len(result))
	for _, l := range result {
		refs = append(refs, l.Ref())
	}
	if err := d.seen.MarkSeen(ctx, refs); err != nil {
		d.logger.Warn().Err(err).Msg("failed to record seen listings")
	}
}

// limiter returns the source's token bucket, creating it from the registry
// config on first use.
func (d *Dispatcher) limiter(sourceID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	if lim, ok := d.limiters[sourceID]; ok {
		return lim
	}
	perSec := 1.0
	if cfg, ok := d.registry.Config(sourceID); ok && cfg.RateLimitPerSec > 0 {
		perSec = cfg.RateLimitPerSec
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(perSec), burst)
	d.limiters[sourceID] = lim
	return lim
}
