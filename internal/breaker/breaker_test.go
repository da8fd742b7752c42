package breaker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	b := New(cfg, zerolog.Nop())
	b.now = clock.now
	return b, clock
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		b.RecordFailure("ebay")
		ok, state := b.Allow("ebay")
		assert.True(t, ok, "failure %d should not trip the breaker", i+1)
		assert.Equal(t, StateClosed, state)
	}

	b.RecordFailure("ebay")
	ok, state := b.Allow("ebay")
	assert.False(t, ok)
	assert.Equal(t, StateOpen, state)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Minute})

	b.RecordFailure("ebay")
	b.RecordFailure("ebay")
	b.RecordSuccess("ebay")
	b.RecordFailure("ebay")
	b.RecordFailure("ebay")

	ok, _ := b.Allow("ebay")
	assert.True(t, ok, "non-consecutive failures must not trip the breaker")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute})

	b.RecordFailure("carmax")
	ok, _ := b.Allow("carmax")
	require.False(t, ok)

	// still inside cooldown
	clock.advance(30 * time.Second)
	ok, state := b.Allow("carmax")
	assert.False(t, ok)
	assert.Equal(t, StateOpen, state)

	// cooldown elapsed: exactly one probe goes through
	clock.advance(31 * time.Second)
	ok, state = b.Allow("carmax")
	assert.True(t, ok)
	assert.Equal(t, StateHalfOpen, state)

	ok, _ = b.Allow("carmax")
	assert.False(t, ok, "second caller during the probe must be rejected")

	// probe succeeds, breaker closes
	b.RecordSuccess("carmax")
	ok, state = b.Allow("carmax")
	assert.True(t, ok)
	assert.Equal(t, StateClosed, state)
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute})

	b.RecordFailure("cargurus")
	clock.advance(2 * time.Minute)
	ok, _ := b.Allow("cargurus")
	require.True(t, ok)

	b.RecordFailure("cargurus")
	ok, state := b.Allow("cargurus")
	assert.False(t, ok)
	assert.Equal(t, StateOpen, state)

	// the cooldown clock restarted at the failed probe
	clock.advance(59 * time.Second)
	ok, _ = b.Allow("cargurus")
	assert.False(t, ok)
	clock.advance(2 * time.Second)
	ok, _ = b.Allow("cargurus")
	assert.True(t, ok)
}

func TestBreakerSourcesIndependent(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, Cooldown: time.Minute})

	b.RecordFailure("ebay")
	ok, _ := b.Allow("ebay")
	assert.False(t, ok)
	ok, _ = b.Allow("carmax")
	assert.True(t, ok)
}

func TestBreakerPerSourceConfig(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 5, Cooldown: time.Minute})
	b.Configure("craigslist", Config{FailureThreshold: 1, Cooldown: time.Minute})

	b.RecordFailure("craigslist")
	b.RecordFailure("ebay")

	ok, _ := b.Allow("craigslist")
	assert.False(t, ok)
	ok, _ = b.Allow("ebay")
	assert.True(t, ok)
}

func TestBreakerSnapshot(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2, Cooldown: time.Minute})

	b.RecordSuccess("ebay")
	b.RecordFailure("carmax")
	b.RecordFailure("carmax")

	snaps := b.Snapshot()
	require.Len(t, snaps, 2)

	byName := map[string]Snapshot{}
	for _, s := range snaps {
		byName[s.Source] = s
	}
	assert.Equal(t, StateClosed, byName["ebay"].State)
	assert.Equal(t, StateOpen, byName["carmax"].State)
	assert.Equal(t, 2, byName["carmax"].ConsecutiveFailures)
	assert.False(t, byName["carmax"].LastFailureAt.IsZero())
}
