package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/marketprep-backend/api/responses"
	pkgAuth "github.com/angelmondragon/marketprep-backend/pkg/auth"
	"github.com/angelmondragon/marketprep-backend/pkg/auth/session"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketprep-backend/pkg/errors"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the vendor.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			vendorID := claims.VendorID.String()
			ctx := context.WithValue(r.Context(), ctxVendorID, vendorID)
			ctx = context.WithValue(ctx, ctxTier, string(claims.Tier))
			ctx = context.WithValue(ctx, ctxAccessID, claims.ID)

			trace.SpanFromContext(ctx).SetAttributes(attribute.String("marketprep.vendor_id", vendorID))
			if logg != nil {
				ctx = logg.WithVendorID(ctx, vendorID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
