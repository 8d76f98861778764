package ports

import (
	"context"
	"time"
)

// IdentityProvider supplies the authenticated caller for a request.
type IdentityProvider interface {
	// Identity returns the caller's identity or ErrNotAuthenticated.
	Identity(ctx context.Context) (string, error)
}

// StaticIdentity is an IdentityProvider for a fixed, already authenticated user.
type StaticIdentity string

func (s StaticIdentity) Identity(context.Context) (string, error) {
	if s == "" {
		return "", ErrNotAuthenticated
	}
	return string(s), nil
}

// Clock abstracts wall time for expiry and activity stamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type identityKey struct{}

// WithIdentity returns a context carrying an authenticated identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// ContextIdentity reads the identity stored by WithIdentity.
type ContextIdentity struct{}

func (ContextIdentity) Identity(ctx context.Context) (string, error) {
	id, _ := ctx.Value(identityKey{}).(string)
	if id == "" {
		return "", ErrNotAuthenticated
	}
	return id, nil
}
