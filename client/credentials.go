package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialProvider supplies the bearer token attached to every request.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredentials always returns the same token.
type StaticCredentials string

func (s StaticCredentials) Token(context.Context) (string, error) {
	return string(s), nil
}

// RefreshFunc obtains a new access token. The refresh protocol itself lives
// with the caller.
type RefreshFunc func(ctx context.Context, current string) (string, error)

// RefreshingCredentials returns the current token and calls Refresh when the
// token is a JWT that expires within Skew. Opaque tokens are returned as is.
type RefreshingCredentials struct {
	Refresh RefreshFunc
	Skew    time.Duration

	mu    sync.Mutex
	token string
	now   func() time.Time
}

func NewRefreshingCredentials(token string, refresh RefreshFunc) *RefreshingCredentials {
	return &RefreshingCredentials{
		Refresh: refresh,
		Skew:    time.Minute,
		token:   token,
		now:     time.Now,
	}
}

func (r *RefreshingCredentials) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Refresh == nil || !r.expiring(r.token) {
		return r.token, nil
	}

	fresh, err := r.Refresh(ctx, r.token)
	if err != nil {
		return "", err
	}
	if fresh == "" {
		return "", errors.New("credential refresh returned an empty token")
	}
	r.token = fresh
	return fresh, nil
}

func (r *RefreshingCredentials) expiring(token string) bool {
	claims := &jwt.RegisteredClaims{}
	// The signing key is held by the server; only the expiry is inspected here.
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return r.now().Add(r.Skew).After(claims.ExpiresAt.Time)
}
