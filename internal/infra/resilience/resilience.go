// Package resilience wraps outbound calls: bounded retries, per-dependency
// circuit breakers and a concurrency bulkhead.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// maxBackoff caps a single wait between attempts.
const maxBackoff = 5 * time.Second

// Config holds resilience parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
}

// backoff is InitialBackoff doubled per attempt plus up to 50% jitter.
func (c Config) backoff(attempt int) time.Duration {
	wait := c.InitialBackoff << attempt
	if wait <= 0 || wait > maxBackoff {
		wait = min(maxBackoff, max(c.InitialBackoff, 0))
	}
	if half := int64(wait / 2); half > 0 {
		wait += time.Duration(rand.Int63n(half))
	}
	return wait
}

// RetryWithBackoff runs fn up to MaxRetries+1 times. It stops on success,
// on context cancellation, or on an error marked Permanent.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(); err == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		timer := time.NewTimer(cfg.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// PermanentError wraps an error that retrying cannot fix, such as a 4xx.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// StatusCoder is implemented by errors carrying an upstream HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// ClientFault reports whether err was caused by the request rather than the
// dependency: a Permanent error or a 4xx other than 429.
func ClientFault(err error) bool {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code >= 400 && code < 500 && code != 429
	}
	return false
}

// NewCircuitBreaker creates a breaker that opens once at least 5 requests in
// a 30s window failed 60% of the time. Client faults do not count as
// failures. onChange may be nil.
func NewCircuitBreaker(name string, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || ClientFault(err)
		},
		OnStateChange: onChange,
	})
}

// Breakers hands out one circuit breaker per dependency and reports their
// states for health checks.
type Breakers struct {
	mu     sync.Mutex
	byName map[string]*gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakers creates an empty registry. State changes are logged.
func NewBreakers(logger *zap.Logger) *Breakers {
	return &Breakers{byName: make(map[string]*gobreaker.CircuitBreaker), logger: logger}
}

// Get returns the breaker for name, creating it on first use.
func (b *Breakers) Get(name string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.byName[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(name, b.logChange)
	b.byName[name] = cb
	return cb
}

func (b *Breakers) logChange(name string, from, to gobreaker.State) {
	log := b.logger.Info
	if to == gobreaker.StateOpen {
		log = b.logger.Warn
	}
	log("circuit breaker state changed",
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// States maps every breaker name to its current state.
func (b *Breakers) States() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.byName))
	for name, cb := range b.byName {
		out[name] = cb.State().String()
	}
	return out
}

// Open lists the names of open breakers, sorted.
func (b *Breakers) Open() []string {
	var open []string
	for name, state := range b.States() {
		if state == gobreaker.StateOpen.String() {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

// Bulkhead caps concurrent outbound calls. Payment gateways share one.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with maxConcurrency slots.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	return &Bulkhead{sem: make(chan struct{}, max(maxConcurrency, 1))}
}

// Acquire blocks until a slot frees up or ctx is done.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}

// InFlight reports the number of held slots.
func (b *Bulkhead) InFlight() int { return len(b.sem) }
