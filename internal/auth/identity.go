package auth

import (
	"context"

	"github.com/google/uuid"
)

// Identity is a signed-in user. UID is stable for the lifetime of the
// identity; Token may return a different short-lived credential per call.
type Identity interface {
	UID() string
	Token(ctx context.Context) (string, error)
}

// TokenSource yields the current identity, or nil when nobody is signed in.
type TokenSource interface {
	Identity() Identity
}

// StaticIdentity is a fixed uid/token pair.
type StaticIdentity struct {
	ID          string
	BearerToken string
}

func (s StaticIdentity) UID() string { return s.ID }

func (s StaticIdentity) Token(context.Context) (string, error) { return s.BearerToken, nil }

// StaticSource always returns the same identity (which may be nil).
type StaticSource struct {
	Ident Identity
}

func (s StaticSource) Identity() Identity { return s.Ident }

// GuestID generates a throwaway user id for unauthenticated play.
func GuestID() string {
	return "guest-" + uuid.NewString()
}
