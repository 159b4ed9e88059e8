// Package backend defines the boundary to the remote backing store: password
// sign-in, session lookup and row persistence into named collections.
package backend

import (
	"context"
	"time"
)

// Collections written by the sync loop.
const (
	CollectionDays     = "axis_days"
	CollectionVisits   = "axis_visits"
	CollectionCaptures = "axis_captures"
	CollectionScans    = "axis_scans"
)

// Collections returns every collection name a Backend must accept.
func Collections() []string {
	return []string{CollectionDays, CollectionVisits, CollectionCaptures, CollectionScans}
}

// Row is one record keyed by column name. Every row carries an "id".
type Row map[string]any

// Filter narrows a Select. Eq matches columns exactly; Order is a column
// name optionally suffixed with " desc".
type Filter struct {
	Eq    map[string]any
	Order string
	Limit int
}

// Session is an authenticated sign-in.
type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Backend is the backing store. Insert is an upsert keyed on "id"; Update
// fails with a not-found BackendError when no row matches. Row operations
// authenticate with the access token carried by ctx (see WithToken).
type Backend interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) (Session, error)
	Insert(ctx context.Context, collection string, row Row) error
	Update(ctx context.Context, collection, id string, row Row) error
	Select(ctx context.Context, collection string, f Filter) ([]Row, error)
}

type tokenKey struct{}

// WithToken returns a context carrying an access token for row operations.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the access token carried by ctx.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// KnownCollection reports whether name is one of Collections.
func KnownCollection(name string) bool {
	for _, c := range Collections() {
		if c == name {
			return true
		}
	}
	return false
}
