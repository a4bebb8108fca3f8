package auth

import (
	"context"
	"errors"
	"fmt"

	"notedrop/internal/storage"
)

// TokenAuthenticator resolves static API tokens against the accounts
// table. It stands in for the real identity service in deployments that
// do not run one.
type TokenAuthenticator struct {
	db *storage.DB
}

// NewTokenAuthenticator creates a TokenAuthenticator over the given database.
func NewTokenAuthenticator(db *storage.DB) *TokenAuthenticator {
	return &TokenAuthenticator{db: db}
}

// Authenticate resolves a bearer token to an Identity.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrBadCredentials
	}
	account, err := a.db.GetAccountByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return &Identity{
		UserID:   account.ID,
		Username: account.Username,
		Role:     ParseRole(account.Role),
	}, nil
}
