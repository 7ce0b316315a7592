package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block; test with timeout context
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	// Release one slot
	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 10 * time.Millisecond,
	}

	base := errors.New("bad request")
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return resilience.Permanent(base)
	})

	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2}

	callCount := 0
	_ = resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return errors.New("error")
	})

	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestBreakers_GetReusesAndReportsStates(t *testing.T) {
	b := resilience.NewBreakers(zap.NewNop())
	cb := b.Get("mpesa")
	if b.Get("mpesa") != cb {
		t.Fatal("expected the same breaker for one name")
	}
	b.Get("stripe")

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errors.New("timeout") })
	}

	states := b.States()
	if states["mpesa"] != gobreaker.StateOpen.String() || states["stripe"] != gobreaker.StateClosed.String() {
		t.Fatalf("unexpected states %v", states)
	}
	if open := b.Open(); len(open) != 1 || open[0] != "mpesa" {
		t.Fatalf("expected only mpesa open, got %v", open)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var changes []gobreaker.State
	cb := resilience.NewCircuitBreaker("ipay", func(_ string, _, to gobreaker.State) {
		changes = append(changes, to)
	})
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errors.New("boom") })
	}
	if len(changes) != 1 || changes[0] != gobreaker.StateOpen {
		t.Fatalf("expected one transition to open, got %v", changes)
	}
}

func TestBulkhead_InFlight(t *testing.T) {
	bh := resilience.NewBulkhead(0)
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected a minimum of one slot, got %v", err)
	}
	if bh.InFlight() != 1 {
		t.Errorf("expected 1 in flight, got %d", bh.InFlight())
	}
	bh.Release()
	if bh.InFlight() != 0 {
		t.Errorf("expected 0 in flight, got %d", bh.InFlight())
	}
}

type statusErr int

func (e statusErr) Error() string   { return "upstream status" }
func (e statusErr) StatusCode() int { return int(e) }

func TestCircuitBreaker_ClientFaultsKeepItClosed(t *testing.T) {
	cb := resilience.NewCircuitBreaker("stripe", nil)
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, statusErr(402) })
	}
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, resilience.Permanent(errors.New("bad input")) })
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker after client faults, got %s", cb.State())
	}

	cb = resilience.NewCircuitBreaker("stripe-5xx", nil)
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, statusErr(503) })
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected 5xx to open the breaker, got %s", cb.State())
	}
}

func TestClientFault(t *testing.T) {
	cases := map[error]bool{
		statusErr(400):                       true,
		statusErr(404):                       true,
		statusErr(429):                       false,
		statusErr(500):                       false,
		errors.New("dial tcp: refused"):      false,
		resilience.Permanent(statusErr(500)): true,
	}
	for err, want := range cases {
		if got := resilience.ClientFault(err); got != want {
			t.Errorf("ClientFault(%v) = %v, want %v", err, got, want)
		}
	}
}
