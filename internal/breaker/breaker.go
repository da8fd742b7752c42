// Package breaker implements the per-source circuit breaker that keeps a
// consistently failing marketplace from dragging down every aggregation
// request. One Breaker instance is shared process-wide and is safe for
// concurrent use; contention is low since state is keyed per source.
package breaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the health state of one source.
type State string

const (
	// StateClosed passes requests through normally.
	StateClosed State = "closed"
	// StateOpen skips the source without attempting the call.
	StateOpen State = "open"
	// StateHalfOpen allows a single probe request through after cooldown.
	StateHalfOpen State = "half_open"
)

// Config parameterizes one source's breaker. Zero values fall back to the
// defaults, so sources only override what they need.
type Config struct {
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker from closed to open.
	FailureThreshold int
	// Cooldown is how long an open breaker waits before allowing a probe.
	Cooldown time.Duration
}

const (
	defaultFailureThreshold = 3
	defaultCooldown         = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	return c
}

// sourceHealth is the mutable per-source state machine.
type sourceHealth struct {
	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
	lastSuccessAt       time.Time
	openedAt            time.Time
	probing             bool
	config              Config
}

// Snapshot is a read-only copy of one source's health, for the health
// endpoint and metrics.
type Snapshot struct {
	Source              string    `json:"source"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
	LastSuccessAt       time.Time `json:"last_success_at,omitzero"`
}

// Breaker tracks health state for every source. Sources are registered
// lazily on first use with the default config unless Configure was called.
type Breaker struct {
	mu      sync.Mutex
	sources map[string]*sourceHealth
	deflt   Config
	logger  zerolog.Logger
	now     func() time.Time // overridable in tests
}

func New(deflt Config, logger zerolog.Logger) *Breaker {
	return &Breaker{
		sources: make(map[string]*sourceHealth),
		deflt:   deflt.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// Configure sets a per-source config, overriding the default.
func (b *Breaker) Configure(source string, cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.health(source)
	h.config = cfg.withDefaults()
}

// Allow reports whether a call to the source may proceed. An open breaker
// whose cooldown has elapsed transitions to half-open and admits exactly one
// probe; concurrent callers during the probe are rejected until the probe's
// outcome is recorded.
func (b *Breaker) Allow(source string) (bool, State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.health(source)
	switch h.state {
	case StateClosed:
		return true, StateClosed
	case StateOpen:
		if b.now().Sub(h.openedAt) < h.config.Cooldown {
			return false, StateOpen
		}
		h.state = StateHalfOpen
		h.probing = true
		b.logger.Info().Str("source", source).Msg("breaker half-open, allowing probe")
		return true, StateHalfOpen
	default: // half-open
		if h.probing {
			return false, StateHalfOpen
		}
		h.probing = true
		return true, StateHalfOpen
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.health(source)
	if h.state != StateClosed {
		b.logger.Info().Str("source", source).Str("from", string(h.state)).Msg("breaker closed")
	}
	h.state = StateClosed
	h.consecutiveFailures = 0
	h.probing = false
	h.lastSuccessAt = b.now()
}

// RecordFailure increments the consecutive-failure count and trips the
// breaker at the threshold. A failed half-open probe reopens immediately and
// restarts the cooldown clock.
func (b *Breaker) RecordFailure(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.health(source)
	h.consecutiveFailures++
	h.lastFailureAt = b.now()
	h.probing = false

	switch h.state {
	case StateHalfOpen:
		h.state = StateOpen
		h.openedAt = b.now()
		b.logger.Warn().Str("source", source).Msg("breaker reopened after failed probe")
	case StateClosed:
		if h.consecutiveFailures >= h.config.FailureThreshold {
			h.state = StateOpen
			h.openedAt = b.now()
			b.logger.Warn().
				Str("source", source).
				Int("consecutive_failures", h.consecutiveFailures).
				Msg("breaker opened")
		}
	}
}

// Snapshot returns a copy of every tracked source's health.
func (b *Breaker) Snapshot() []Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Snapshot, 0, len(b.sources))
	for source, h := range b.sources {
		out = append(out, Snapshot{
			Source:              source,
			State:               h.state,
			ConsecutiveFailures: h.consecutiveFailures,
			LastFailureAt:       h.lastFailureAt,
			LastSuccessAt:       h.lastSuccessAt,
		})
	}
	return out
}

// health returns the source's state, creating it lazily. Callers must hold mu.
func (b *Breaker) health(source string) *sourceHealth {
	h, ok := b.sources[source]
	if !ok {
		h = &sourceHealth{state: StateClosed, config: b.deflt}
		b.sources[source] = h
	}
	return h
}
