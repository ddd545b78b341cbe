// Package auth trusts the identity supplied by the upstream gateway.
// The core never authenticates on its own; it only reads the forwarded
// actor headers and enforces role requirements on write endpoints.
package auth

import (
	"net/http"
	"strconv"

	"github.com/shopledger/shopledger/internal/platform/httpx"
	"github.com/shopledger/shopledger/internal/shared"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// Middleware extracts the forwarded identity and guards routes by role.
type Middleware struct{}

// New builds the auth middleware.
func New() Middleware {
	return Middleware{}
}

// Identity stores the forwarded actor on the request context. Requests
// without identity pass through; guards reject them where it matters.
func (Middleware) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.Header.Get(headerActorID), 10, 64)
		actor := shared.Actor{ID: id, Role: r.Header.Get(headerActorRole)}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireActor rejects requests that carry no identity.
func (Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shared.ActorFromContext(r.Context()).Known() {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose actor lacks the admin role.
func (Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if !actor.Known() {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if !actor.IsAdmin() {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
