package merchantcontext

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMerchantIDRoundTrip(t *testing.T) {
	id := uuid.New()
	got, ok := MerchantIDFromContext(WithMerchantID(context.Background(), id))
	if !ok || got != id {
		t.Fatalf("expected %s, got %s (ok=%v)", id, got, ok)
	}
}

func TestMerchantIDMissing(t *testing.T) {
	if _, ok := MerchantIDFromContext(context.Background()); ok {
		t.Fatalf("expected no merchant")
	}
	if _, ok := MerchantIDFromContext(WithMerchantID(context.Background(), uuid.Nil)); ok {
		t.Fatalf("nil merchant must not count as authenticated")
	}
}
