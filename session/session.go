// Package session tracks live refresh tokens and revoked access tokens.
//
// A refresh token is only honored while its id is registered for the user. Logout drops every
// refresh token of the user and revokes the presented access token until it would have expired.
// Deleting a user revokes every access token issued to that username up to the deletion.
package session

import (
	"context"
	"time"
)

type Sessions interface {
	SaveRefresh(ctx context.Context, username, tokenID string, ttl time.Duration) error
	RefreshValid(ctx context.Context, username, tokenID string) (bool, error)
	// DropRefresh removes every refresh token of the user and reports how many were live.
	DropRefresh(ctx context.Context, username string) (int, error)
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
	// RevokeUser rejects, for ttl, every token of the user issued at or before at.
	RevokeUser(ctx context.Context, username string, at time.Time, ttl time.Duration) error
	// UserRevokedAt returns the cut-off set by RevokeUser, or the zero time when none is in force.
	UserRevokedAt(ctx context.Context, username string) (time.Time, error)
}
