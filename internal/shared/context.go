package shared

import "context"

// Actor is the authenticated identity supplied by the upstream gateway.
// The core trusts it and never authenticates on its own.
type Actor struct {
	ID   int64
	Role string
}

// RoleAdmin marks actors allowed to run catalog writes and manual adjustments.
const RoleAdmin = "admin"

// RoleStaff marks actors allowed to issue invoices and read data.
const RoleStaff = "staff"

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor means
// the request carried no identity.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Known reports whether the actor carries an identity at all.
func (a Actor) Known() bool {
	return a.ID != 0
}
