package middleware

import "context"

type contextKey string

const (
	ctxVendorID contextKey = "vendor_id"
	ctxTier     contextKey = "subscription_tier"
	ctxAccessID contextKey = "access_id"
)

func VendorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxVendorID)
}

func TierFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxTier)
}

// AccessIDFromContext returns the jti of the access token, which keys the
// refresh session.
func AccessIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxAccessID)
}

// WithVendorID injects the vendor identifier into the context.
func WithVendorID(ctx context.Context, vendorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxVendorID, vendorID)
}

// WithAccessID injects the access token id into the context.
func WithAccessID(ctx context.Context, accessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccessID, accessID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
