// Package identity signs users up and in, and tracks their live sessions.
package identity

import (
	"context"
	"time"
)

// Credentials carry what a user types into the sign-up or sign-in form.
// DisplayName is only read on sign-up.
type Credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// Session is an authenticated user session.
type Session struct {
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// EventKind classifies session changes.
type EventKind string

const (
	EventSignedUp  EventKind = "signed_up"
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
)

// Event reports a session change.
type Event struct {
	Kind   EventKind
	UserID string
	At     time.Time
}

// Provider is the authentication boundary the server talks to.
type Provider interface {
	SignUp(ctx context.Context, creds Credentials) (Session, error)
	SignIn(ctx context.Context, creds Credentials) (Session, error)
	SignOut(ctx context.Context, token string) error
	// Session returns nil, nil when the token is unknown, expired or revoked.
	Session(ctx context.Context, token string) (*Session, error)
	// Subscribe streams session changes until the returned func is called.
	Subscribe() (<-chan Event, func())
}
