package firestore

import (
	"context"
	"testing"
	"time"
)

func TestRunTransactionRequiresFunc(t *testing.T) {
	provider := NewProvider(ProviderConfig{ProjectID: "demo"})

	err := provider.RunTransaction(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected error for nil transaction func")
	}
}

func TestTxSettingsScope(t *testing.T) {
	settings := txSettings{timeout: time.Minute}

	ctx, release := settings.scope(context.Background())
	defer release()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatalf("expected a deadline on the scoped context")
	}
	if remaining := time.Until(deadline); remaining > time.Minute {
		t.Fatalf("deadline exceeds configured timeout: %v", remaining)
	}

	tight, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	scoped, release := settings.scope(tight)
	defer release()
	if scoped != tight {
		t.Fatalf("expected tighter caller deadline to be kept")
	}

	unbounded := txSettings{}
	scoped, release = unbounded.scope(context.Background())
	defer release()
	if _, ok := scoped.Deadline(); ok {
		t.Fatalf("expected no deadline when timeout is unset")
	}
}

func TestTxOptionsIgnoreNonPositiveValues(t *testing.T) {
	settings := txSettings{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range []TxOption{WithTxAttempts(0), WithTxAttempts(-1), WithTxTimeout(0)} {
		opt(&settings)
	}

	if settings.attempts != defaultTxAttempts {
		t.Fatalf("attempts changed: got %d", settings.attempts)
	}
	if settings.timeout != defaultTxTimeout {
		t.Fatalf("timeout changed: got %v", settings.timeout)
	}

	WithTxAttempts(3)(&settings)
	if settings.attempts != 3 {
		t.Fatalf("expected attempts 3, got %d", settings.attempts)
	}
	if opts := settings.transactionOptions(); len(opts) != 1 {
		t.Fatalf("expected one transaction option, got %d", len(opts))
	}
	if opts := (txSettings{}).transactionOptions(); opts != nil {
		t.Fatalf("expected no options for zero attempts")
	}
}
