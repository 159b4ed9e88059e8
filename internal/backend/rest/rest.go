// Package rest implements backend.Backend against a hosted auth + REST
// service speaking the GoTrue (/auth/v1) and PostgREST (/rest/v1) dialects.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"axis-blue-backend/internal/backend"
)

// Options tunes a Client.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a backend.Backend over HTTP.
type Client struct {
	base   *url.URL
	key    string
	client *http.Client
	logger *zap.Logger
}

var _ backend.Backend = (*Client)(nil)

// New creates a Client for the service at baseURL using the public access key.
func New(baseURL, key string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	if key == "" {
		return nil, &backend.ConfigError{Missing: []string{"key"}}
	}
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{base: u, key: key, client: opts.HTTPClient, logger: opts.Logger}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
	User        user   `json:"user"`
}

type user struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignIn exchanges an email and password for an access token.
func (c *Client) SignIn(ctx context.Context, email, password string) (backend.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var tr tokenResponse
	err := c.do(ctx, "sign in", http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}}, "", nil, body, &tr)
	if err != nil {
		// Rejected credentials come back as 400 invalid_grant.
		if backend.StatusOf(err) == http.StatusBadRequest {
			return backend.Session{}, backend.Fail("sign in", http.StatusUnauthorized, "invalid login credentials", nil)
		}
		return backend.Session{}, err
	}

	s := backend.Session{AccessToken: tr.AccessToken, UserID: tr.User.ID, Email: tr.User.Email}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	case tr.ExpiresIn > 0:
		s.ExpiresAt = time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return s, nil
}

// SignOut revokes the token on the server.
func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, "sign out", http.MethodPost, "/auth/v1/logout", nil, token, nil, nil, nil)
}

// GetSession validates a token by fetching its user.
func (c *Client) GetSession(ctx context.Context, token string) (backend.Session, error) {
	if token == "" {
		return backend.Session{}, backend.Fail("get session", http.StatusUnauthorized, "missing access token", nil)
	}
	var u user
	if err := c.do(ctx, "get session", http.MethodGet, "/auth/v1/user", nil, token, nil, nil, &u); err != nil {
		return backend.Session{}, err
	}
	return backend.Session{AccessToken: token, UserID: u.ID, Email: u.Email, ExpiresAt: tokenExpiry(token)}, nil
}

// Insert upserts a row via merge-duplicates resolution.
func (c *Client) Insert(ctx context.Context, collection string, row backend.Row) error {
	if err := checkCollection("insert", collection); err != nil {
		return err
	}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	return c.do(ctx, "insert", http.MethodPost, "/rest/v1/"+collection, nil, c.bearer(ctx), headers, []backend.Row{row}, nil)
}

// Update patches the row with the given id.
func (c *Client) Update(ctx context.Context, collection, id string, row backend.Row) error {
	if err := checkCollection("update", collection); err != nil {
		return err
	}
	headers := map[string]string{"Prefer": "return=representation"}
	q := url.Values{"id": {"eq." + id}}
	var updated []backend.Row
	if err := c.do(ctx, "update", http.MethodPatch, "/rest/v1/"+collection, q, c.bearer(ctx), headers, row, &updated); err != nil {
		return err
	}
	if len(updated) == 0 {
		return backend.Fail("update", http.StatusNotFound, fmt.Sprintf("%s %s not found", collection, id), nil)
	}
	return nil
}

// Select reads rows matching f.
func (c *Client) Select(ctx context.Context, collection string, f backend.Filter) ([]backend.Row, error) {
	if err := checkCollection("select", collection); err != nil {
		return nil, err
	}
	q := url.Values{"select": {"*"}}
	cols := make([]string, 0, len(f.Eq))
	for col := range f.Eq {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		q.Set(col, "eq."+fmt.Sprint(f.Eq[col]))
	}
	if f.Order != "" {
		col, desc := strings.CutSuffix(f.Order, " desc")
		if desc {
			q.Set("order", col+".desc")
		} else {
			q.Set("order", col+".asc")
		}
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	var rows []backend.Row
	if err := c.do(ctx, "select", http.MethodGet, "/rest/v1/"+collection, q, c.bearer(ctx), nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// bearer returns the signed-in token, or the public key for anonymous calls.
func (c *Client) bearer(ctx context.Context) string {
	if token, ok := backend.TokenFrom(ctx); ok {
		return token
	}
	return c.key
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, token string, headers map[string]string, in, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return backend.Fail(op, 0, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.Fail(op, resp.StatusCode, "failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.text()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.Debug("backend call failed", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.String("msg", msg))
		return backend.Fail(op, resp.StatusCode, msg, nil)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backend.Fail(op, resp.StatusCode, "failed to decode response", err)
	}
	return nil
}

func checkCollection(op, collection string) error {
	if !backend.KnownCollection(collection) {
		return backend.Fail(op, http.StatusBadRequest, fmt.Sprintf("unknown collection %q", collection), nil)
	}
	return nil
}

// tokenExpiry reads the exp claim of a JWT access token without verifying
// it; the server has already accepted the token. Opaque tokens yield zero.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.UTC()
}
