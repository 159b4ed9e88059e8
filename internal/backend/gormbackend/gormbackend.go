// Package gormbackend implements backend.Backend on the service's own
// database: bcrypt-hashed users, opaque session tokens and the axis_*
// collections.
package gormbackend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"axis-blue-backend/internal/backend"
	"axis-blue-backend/internal/model"
)

var columnRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Options tunes a Backend.
type Options struct {
	SessionTTL time.Duration
	Now        func() time.Time
	Logger     *zap.Logger
}

// Backend is a gorm-backed backend.Backend.
type Backend struct {
	db       *gorm.DB
	sessions *cache.Cache
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

var _ backend.Backend = (*Backend)(nil)

// New creates a Backend on an initialized database.
func New(db *gorm.DB, opts Options) *Backend {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Backend{
		db:       db,
		sessions: cache.New(opts.SessionTTL, 10*time.Minute),
		ttl:      opts.SessionTTL,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// CreateUser adds an account. Emails are matched case-insensitively.
func (b *Backend) CreateUser(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.User{}, backend.Fail("create user", http.StatusBadRequest, "email and password are required", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    b.now().UTC(),
	}
	if err := b.db.WithContext(ctx).Create(&user).Error; err != nil {
		return model.User{}, backend.Fail("create user", http.StatusConflict, "", err)
	}
	return user, nil
}

// SignIn checks a password and issues a session token.
func (b *Backend) SignIn(ctx context.Context, email, password string) (backend.Session, error) {
	var user model.User
	err := b.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return backend.Session{}, backend.Fail("sign in", http.StatusUnauthorized, "invalid login credentials", nil)
	case err != nil:
		return backend.Session{}, backend.Fail("sign in", 0, "", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return backend.Session{}, backend.Fail("sign in", http.StatusUnauthorized, "invalid login credentials", nil)
	}

	now := b.now().UTC()
	row := model.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(b.ttl),
		CreatedAt: now,
	}
	if err := b.db.WithContext(ctx).Create(&row).Error; err != nil {
		return backend.Session{}, backend.Fail("sign in", 0, "", err)
	}

	s := backend.Session{AccessToken: row.Token, UserID: user.ID, Email: user.Email, ExpiresAt: row.ExpiresAt}
	b.sessions.Set(row.Token, s, b.ttl)
	b.logger.Info("user signed in", zap.String("user_id", user.ID))
	return s, nil
}

// SignOut revokes a token. Unknown tokens are not an error.
func (b *Backend) SignOut(ctx context.Context, token string) error {
	b.sessions.Delete(token)
	if err := b.db.WithContext(ctx).Where("token = ?", token).Delete(&model.Session{}).Error; err != nil {
		return backend.Fail("sign out", 0, "", err)
	}
	return nil
}

// GetSession resolves a token to its session.
func (b *Backend) GetSession(ctx context.Context, token string) (backend.Session, error) {
	if token == "" {
		return backend.Session{}, backend.Fail("get session", http.StatusUnauthorized, "missing access token", nil)
	}
	now := b.now()
	if v, ok := b.sessions.Get(token); ok {
		s := v.(backend.Session)
		if !s.Expired(now) {
			return s, nil
		}
		b.sessions.Delete(token)
	}

	var row model.Session
	err := b.db.WithContext(ctx).Preload("User").Where("token = ?", token).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return backend.Session{}, backend.Fail("get session", http.StatusUnauthorized, "session not found", nil)
	case err != nil:
		return backend.Session{}, backend.Fail("get session", 0, "", err)
	}

	s := backend.Session{AccessToken: row.Token, UserID: row.UserID, Email: row.User.Email, ExpiresAt: row.ExpiresAt}
	if s.Expired(now) {
		if err := b.db.WithContext(ctx).Delete(&row).Error; err != nil {
			b.logger.Warn("failed to delete expired session", zap.Error(err))
		}
		return backend.Session{}, backend.Fail("get session", http.StatusUnauthorized, "session expired", nil)
	}
	b.sessions.Set(token, s, s.ExpiresAt.Sub(now))
	return s, nil
}

// Insert upserts a row keyed on id, stamped with the caller's user id.
func (b *Backend) Insert(ctx context.Context, collection string, row backend.Row) error {
	values, userID, err := b.prepare(ctx, "insert", collection, row)
	if err != nil {
		return err
	}
	if _, ok := values["id"]; !ok {
		return backend.Fail("insert", http.StatusBadRequest, "row has no id", nil)
	}
	values["user_id"] = userID

	updates := make([]string, 0, len(values))
	for col := range values {
		if col != "id" {
			updates = append(updates, col)
		}
	}
	sort.Strings(updates)

	err = b.db.WithContext(ctx).Table(collection).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(values).Error
	if err != nil {
		return backend.Fail("insert", 0, collection, err)
	}
	return nil
}

// Update changes columns of the caller's row with the given id.
func (b *Backend) Update(ctx context.Context, collection, id string, row backend.Row) error {
	values, userID, err := b.prepare(ctx, "update", collection, row)
	if err != nil {
		return err
	}
	delete(values, "id")
	if len(values) == 0 {
		return backend.Fail("update", http.StatusBadRequest, "nothing to update", nil)
	}

	res := b.db.WithContext(ctx).Table(collection).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(values)
	if res.Error != nil {
		return backend.Fail("update", 0, collection, res.Error)
	}
	if res.RowsAffected == 0 {
		return backend.Fail("update", http.StatusNotFound, fmt.Sprintf("%s %s not found", collection, id), nil)
	}
	return nil
}

// Select returns the caller's rows matching f.
func (b *Backend) Select(ctx context.Context, collection string, f backend.Filter) ([]backend.Row, error) {
	if !backend.KnownCollection(collection) {
		return nil, backend.Fail("select", http.StatusBadRequest, fmt.Sprintf("unknown collection %q", collection), nil)
	}
	userID, err := b.userID(ctx, "select")
	if err != nil {
		return nil, err
	}

	q := b.db.WithContext(ctx).Table(collection).Where("user_id = ?", userID)
	for col, v := range f.Eq {
		if !columnRe.MatchString(col) {
			return nil, backend.Fail("select", http.StatusBadRequest, fmt.Sprintf("invalid column %q", col), nil)
		}
		q = q.Where(map[string]any{col: v})
	}
	if f.Order != "" {
		col, desc := strings.CutSuffix(f.Order, " desc")
		if !columnRe.MatchString(col) {
			return nil, backend.Fail("select", http.StatusBadRequest, fmt.Sprintf("invalid order %q", f.Order), nil)
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc})
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var found []map[string]any
	if err := q.Find(&found).Error; err != nil {
		return nil, backend.Fail("select", 0, collection, err)
	}
	rows := make([]backend.Row, len(found))
	for i, r := range found {
		rows[i] = backend.Row(r)
	}
	return rows, nil
}

func (b *Backend) prepare(ctx context.Context, op, collection string, row backend.Row) (map[string]any, string, error) {
	if !backend.KnownCollection(collection) {
		return nil, "", backend.Fail(op, http.StatusBadRequest, fmt.Sprintf("unknown collection %q", collection), nil)
	}
	values := make(map[string]any, len(row)+1)
	for col, v := range row {
		if !columnRe.MatchString(col) {
			return nil, "", backend.Fail(op, http.StatusBadRequest, fmt.Sprintf("invalid column %q", col), nil)
		}
		values[col] = v
	}
	userID, err := b.userID(ctx, op)
	if err != nil {
		return nil, "", err
	}
	return values, userID, nil
}

func (b *Backend) userID(ctx context.Context, op string) (string, error) {
	token, ok := backend.TokenFrom(ctx)
	if !ok {
		return "", backend.Fail(op, http.StatusUnauthorized, "not signed in", nil)
	}
	s, err := b.GetSession(ctx, token)
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
