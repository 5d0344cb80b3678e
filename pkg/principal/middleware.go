package principal

import "net/http"

// HeaderName is where the fronting identity layer places the authenticated
// email. The application trusts this header; it must never be reachable
// without that layer stripping client-supplied values first.
const HeaderName = "X-Authenticated-Email"

// Middleware lifts the identity header into the request context. Requests
// without it pass through unauthenticated.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email := r.Header.Get(HeaderName); email != "" {
			r = r.WithContext(WithEmail(r.Context(), email))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests that carry no authenticated principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
