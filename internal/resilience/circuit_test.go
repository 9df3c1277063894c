package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func trippingError() error {
	return NewTransientError(errors.New("upstream down"), 503)
}

func TestCircuit_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return trippingError()
		})
	}

	if cb.State() != CircuitOpen {
		t.Errorf("expected open after 3 failures, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("fn should not run while circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuit_SuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return trippingError()
		})
	}
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return trippingError()
		})
	}

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed (counter reset by success), got %s", cb.State())
	}
}

func TestCircuit_NonTrippingErrorDoesNotCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	// Auth errors are not transient and must not trip the breaker.
	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error {
			return NewAuthError("xero", errors.New("bad key"))
		})
	}

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestCircuit_HalfOpenProbeRecovers(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
	})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(_ context.Context) error {
		return trippingError()
	})
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	// Advance past reset timeout; probe succeeds and closes the circuit.
	now = now.Add(11 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open after reset timeout, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	if err != nil {
		t.Fatalf("probe should run: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuit_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Second,
	})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), func(_ context.Context) error {
		return trippingError()
	})
	now = now.Add(11 * time.Second)

	_ = cb.Execute(context.Background(), func(_ context.Context) error {
		return trippingError()
	})
	// Failure recorded at the advanced time; still within the new window.
	if cb.State() != CircuitOpen {
		t.Errorf("expected reopened circuit, got %s", cb.State())
	}
}

func TestCircuit_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), func(_ context.Context) error {
		return trippingError()
	})
	cb.Reset()

	if len(transitions) != 2 || transitions[0] != "closed->open" || transitions[1] != "open->closed" {
		t.Errorf("unexpected transitions: %v", transitions)
	}
}

func TestSourceBreakers_PerKeyIsolation(t *testing.T) {
	sb := NewSourceBreakers(CircuitBreakerConfig{FailureThreshold: 1})

	_ = sb.Get("stripe:acct_1").Execute(context.Background(), func(_ context.Context) error {
		return trippingError()
	})

	if sb.Get("stripe:acct_1").State() != CircuitOpen {
		t.Error("expected stripe breaker open")
	}
	if sb.Get("plaid:item_1").State() != CircuitClosed {
		t.Error("expected plaid breaker unaffected")
	}

	states := sb.States()
	if len(states) != 2 {
		t.Errorf("expected 2 breakers, got %d", len(states))
	}
}

func TestExecuteVal_PreservesValue(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	val, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || val != "ok" {
		t.Errorf("expected ok, got %q err=%v", val, err)
	}
}
