package merchantcontext

import (
	"context"

	"github.com/google/uuid"
)

type merchantIDKey struct{}

// WithMerchantID stores the authenticated merchant in the context.
func WithMerchantID(ctx context.Context, merchantID uuid.UUID) context.Context {
	return context.WithValue(ctx, merchantIDKey{}, merchantID)
}

// MerchantIDFromContext returns the authenticated merchant, if set.
func MerchantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(merchantIDKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
