package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestPayment(t *testing.T, key *string) *Payment {
	t.Helper()
	money, err := NewMoney(decimal.RequireFromString("100.00"), "USD")
	if err != nil {
		t.Fatalf("money: %v", err)
	}
	card, err := NewCard("4111111111111111", "Jane Doe", 12, 2030, "123", cardNow)
	if err != nil {
		t.Fatalf("card: %v", err)
	}
	p, err := NewPayment(uuid.New(), uuid.New(), money, card, key, cardNow)
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	return p
}

func TestNewPaymentStartsPending(t *testing.T) {
	p := newTestPayment(t, nil)
	if p.Status() != StatusPending {
		t.Fatalf("expected Pending, got %s", p.Status())
	}
	if _, ok := p.ProcessedAt(); ok {
		t.Fatalf("expected no processedAt on a pending payment")
	}
	if _, ok := p.IdempotencyKey(); ok {
		t.Fatalf("expected no idempotency key")
	}
	events := p.PendingEvents()
	if len(events) != 1 || events[0].Type != EventPaymentCreated {
		t.Fatalf("expected a single created event, got %+v", events)
	}
}

func TestNewPaymentValidatesIdentifiersAndKey(t *testing.T) {
	money, _ := NewMoney(decimal.NewFromInt(1), "USD")
	card, _ := NewCard("4111111111111111", "Jane", 12, 2030, "123", cardNow)

	if _, err := NewPayment(uuid.Nil, uuid.New(), money, card, nil, cardNow); !errors.Is(err, ErrInvalidPaymentID) {
		t.Fatalf("expected ErrInvalidPaymentID, got %v", err)
	}
	if _, err := NewPayment(uuid.New(), uuid.Nil, money, card, nil, cardNow); !errors.Is(err, ErrInvalidMerchantID) {
		t.Fatalf("expected ErrInvalidMerchantID, got %v", err)
	}

	for _, key := range []string{"", "   ", strings.Repeat("k", MaxIdempotencyKeyLength+1)} {
		key := key
		if _, err := NewPayment(uuid.New(), uuid.New(), money, card, &key, cardNow); !errors.Is(err, ErrInvalidIdempotencyKey) {
			t.Fatalf("key len %d: expected ErrInvalidIdempotencyKey, got %v", len(key), err)
		}
	}

	key := strings.Repeat("k", MaxIdempotencyKeyLength)
	p, err := NewPayment(uuid.New(), uuid.New(), money, card, &key, cardNow)
	if err != nil {
		t.Fatalf("expected max length key to be accepted: %v", err)
	}
	key = "mutated"
	if got, _ := p.IdempotencyKey(); got == "mutated" {
		t.Fatalf("payment must not alias the caller's key")
	}
}

func TestMarkAsSuccessful(t *testing.T) {
	p := newTestPayment(t, nil)
	at := cardNow.Add(time.Second)

	if err := p.MarkAsSuccessful("ACQ_123", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status() != StatusSuccessful {
		t.Fatalf("expected Successful, got %s", p.Status())
	}
	if ref, ok := p.AcquirerReference(); !ok || ref != "ACQ_123" {
		t.Fatalf("unexpected reference %q", ref)
	}
	if processed, ok := p.ProcessedAt(); !ok || !processed.Equal(at) {
		t.Fatalf("expected processedAt %v, got %v", at, processed)
	}

	events := p.PendingEvents()
	last := events[len(events)-1]
	if last.Type != EventPaymentSucceeded || last.AcquirerReference != "ACQ_123" {
		t.Fatalf("unexpected event %+v", last)
	}
}

func TestMarkAsSuccessfulRequiresReference(t *testing.T) {
	p := newTestPayment(t, nil)
	if err := p.MarkAsSuccessful("  ", cardNow); !errors.Is(err, ErrInvalidAcquirerReference) {
		t.Fatalf("expected ErrInvalidAcquirerReference, got %v", err)
	}
	if p.Status() != StatusPending {
		t.Fatalf("expected status to stay Pending, got %s", p.Status())
	}
	if err := p.MarkAsFailed(cardNow); err != nil {
		t.Fatalf("expected failure marking to succeed after rejected reference: %v", err)
	}
}

func TestTerminalStatusIsImmutable(t *testing.T) {
	succeeded := newTestPayment(t, nil)
	if err := succeeded.MarkAsSuccessful("ACQ_1", cardNow); err != nil {
		t.Fatalf("mark successful: %v", err)
	}
	failed := newTestPayment(t, nil)
	if err := failed.MarkAsFailed(cardNow); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	for _, p := range []*Payment{succeeded, failed} {
		before := p.Status()
		eventsBefore := len(p.PendingEvents())

		if err := p.MarkAsFailed(cardNow); !errors.Is(err, ErrPaymentFinalized) {
			t.Fatalf("expected ErrPaymentFinalized, got %v", err)
		}
		if err := p.MarkAsSuccessful("ACQ_2", cardNow); !errors.Is(err, ErrPaymentFinalized) {
			t.Fatalf("expected ErrPaymentFinalized, got %v", err)
		}
		if p.Status() != before {
			t.Fatalf("status changed from %s to %s", before, p.Status())
		}
		if len(p.PendingEvents()) != eventsBefore {
			t.Fatalf("rejected transition must not raise events")
		}
	}
}

func TestClearEvents(t *testing.T) {
	p := newTestPayment(t, nil)
	_ = p.MarkAsFailed(cardNow)
	if len(p.PendingEvents()) != 2 {
		t.Fatalf("expected created and failed events")
	}
	p.ClearEvents()
	if len(p.PendingEvents()) != 0 {
		t.Fatalf("expected empty buffer after clear")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	key := "abc"
	p := newTestPayment(t, &key)
	_ = p.MarkAsSuccessful("ACQ_9", cardNow)

	restored := Restore(p.Snapshot())
	if restored.ID() != p.ID() || restored.Status() != StatusSuccessful {
		t.Fatalf("restored payment differs: %+v", restored.Snapshot())
	}
	if len(restored.PendingEvents()) != 0 {
		t.Fatalf("restored payments carry no pending events")
	}
	if !restored.Card().Equal(p.Card()) || !restored.Amount().Equal(p.Amount()) {
		t.Fatalf("value objects differ after restore")
	}
}
