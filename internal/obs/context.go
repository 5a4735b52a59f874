package obs

import (
	"context"
	"net/http"
	"strings"
)

// StoreIDHeader carries the platform store identifier on every store call.
const StoreIDHeader = "X-Store-Id"

type (
	routePatternKey struct{}
	storeIDKey      struct{}
)

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}

// WithStoreID stores the calling store id on the context.
func WithStoreID(ctx context.Context, storeID string) context.Context {
	return context.WithValue(ctx, storeIDKey{}, storeID)
}

// StoreIDFromContext returns the calling store id, or "" when unknown.
func StoreIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(storeIDKey{}).(string)
	return v
}

// StoreIDMiddleware copies the store id header onto the request context.
func StoreIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(StoreIDHeader)); id != "" {
			r = r.WithContext(WithStoreID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
