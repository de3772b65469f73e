package resolver

import (
	"context"
	"errors"

	"ignews-service/internal/auth"
	"ignews-service/internal/users"
)

// Resolver determines which user record an external identity belongs to.
// It is the only place where identity-to-user mapping logic lives.
type Resolver interface {
	Resolve(ctx context.Context, identity *auth.Identity) (users.Result, error)
}

// Upserter is the part of users.Service the resolver needs.
type Upserter interface {
	Upsert(ctx context.Context, email string) (users.Result, error)
}

var (
	ErrNilIdentity      = errors.New("resolver: identity is nil")
	ErrEmailNotVerified = errors.New("resolver: provider did not verify email")
)

// UserResolver maps an identity to its user record by email, creating the
// record on first sign-in.
type UserResolver struct {
	users Upserter
}

func NewUserResolver(u Upserter) *UserResolver {
	return &UserResolver{users: u}
}

func (r *UserResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
) (users.Result, error) {

	if identity == nil {
		return users.Result{}, users.NewPermanent("resolve", ErrNilIdentity)
	}
	if !identity.EmailVerified {
		return users.Result{}, users.NewPermanent("resolve", ErrEmailNotVerified)
	}

	return r.users.Upsert(ctx, identity.Email)
}
