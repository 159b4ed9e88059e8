// Package syncer drains the offline queue into the backing store and keeps
// the sign-in indicator fresh.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"axis-blue-backend/internal/backend"
	"axis-blue-backend/internal/tracker"
)

// ErrSignedOut is returned by DrainOnce when no session is available.
var ErrSignedOut = errors.New("not signed in")

// Queue is the part of the tracker the syncer drives.
type Queue interface {
	Due(now time.Time) []tracker.QueueItem
	Ack(itemID string, revision int) (bool, error)
	Nack(itemID string, revision int, cause error, next time.Time) error
}

// Source hands out the Backend for the current settings.
type Source interface {
	Backend() (backend.Backend, error)
}

// Options tunes a Service.
type Options struct {
	Enabled     bool
	Interval    time.Duration
	SessionPoll time.Duration
	Workers     int
	MaxBackoff  time.Duration
	Now         func() time.Time
}

// Result summarizes one drain pass.
type Result struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

// Service runs the drain and session poll loops.
type Service struct {
	queue  Queue
	source Source
	auth   *backend.Auth
	opts   Options
	logger *zap.Logger

	// drainMu keeps an on-demand drain from overlapping the timer.
	drainMu sync.Mutex
}

// NewService creates a Service.
func NewService(queue Queue, source Source, auth *backend.Auth, opts Options, logger *zap.Logger) *Service {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.SessionPoll <= 0 {
		opts.SessionPoll = 4 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{queue: queue, source: source, auth: auth, opts: opts, logger: logger}
}

// Run polls the session and, when enabled, drains the queue until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("starting sync service",
		zap.Bool("drain_enabled", s.opts.Enabled),
		zap.Duration("interval", s.opts.Interval),
		zap.Duration("session_poll", s.opts.SessionPoll))

	s.PollOnce(ctx)
	poll := time.NewTimer(s.opts.SessionPoll)
	defer poll.Stop()

	var drain *time.Timer
	var drainC <-chan time.Time
	if s.opts.Enabled {
		s.drainLogged(ctx)
		drain = time.NewTimer(s.opts.Interval)
		defer drain.Stop()
		drainC = drain.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service shutting down")
			return
		case <-poll.C:
			s.PollOnce(ctx)
			poll.Reset(s.opts.SessionPoll)
		case <-drainC:
			s.drainLogged(ctx)
			drain.Reset(s.opts.Interval)
		}
	}
}

func (s *Service) drainLogged(ctx context.Context) {
	res, err := s.DrainOnce(ctx)
	switch {
	case err == nil:
		if res.Attempted > 0 {
			s.logger.Info("queue drained", zap.Int("synced", res.Synced), zap.Int("attempted", res.Attempted))
		}
	case backend.IsConfig(err), errors.Is(err, ErrSignedOut):
		s.logger.Debug("queue drain skipped", zap.Error(err))
	default:
		s.logger.Warn("queue drain incomplete",
			zap.Int("synced", res.Synced),
			zap.Int("failed", res.Failed),
			zap.Errors("errors", multierr.Errors(err)))
	}
}

// DrainOnce pushes every due item. Days and visits go first so their rows
// exist before the captures and scans that refer to them. Failed items are
// rescheduled with exponential backoff; the returned error combines every
// per-item failure.
func (s *Service) DrainOnce(ctx context.Context) (Result, error) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	be, err := s.source.Backend()
	if err != nil {
		if backend.IsConfig(err) {
			s.auth.Mark(backend.AuthNeedsConfig, err)
		}
		return Result{}, err
	}
	token, ok := s.auth.Token()
	if !ok {
		return Result{}, ErrSignedOut
	}
	ctx = backend.WithToken(ctx, token)

	now := s.opts.Now()
	due := s.queue.Due(now)
	var res Result
	var errs error
	var mu sync.Mutex

	for _, phase := range phases(due) {
		var g errgroup.Group
		g.SetLimit(s.opts.Workers)
		for _, item := range phase {
			item := item
			g.Go(func() error {
				err := s.push(ctx, be, item, now)

				mu.Lock()
				defer mu.Unlock()
				res.Attempted++
				if err == nil {
					res.Synced++
					return nil
				}
				res.Failed++
				errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", item.Kind, item.RefID, err))
				return nil
			})
		}
		_ = g.Wait()
	}
	return res, errs
}

func (s *Service) push(ctx context.Context, be backend.Backend, item tracker.QueueItem, now time.Time) error {
	collection, row, err := RowFor(item, now)
	if err == nil {
		err = write(ctx, be, item.Kind, collection, row)
	}
	if err != nil {
		next := now.Add(Backoff(s.opts.Interval, s.opts.MaxBackoff, item.Attempts+1))
		if nerr := s.queue.Nack(item.ID, item.Revision, err, next); nerr != nil {
			s.logger.Error("failed to reschedule queue item", zap.String("item_id", item.ID), zap.Error(nerr))
		}
		if backend.IsUnauthorized(err) {
			s.auth.Mark(backend.AuthError, err)
		}
		return err
	}
	if _, err := s.queue.Ack(item.ID, item.Revision); err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	return nil
}

// write inserts captures and scans; days and visits are updated in place,
// falling back to an insert the first time.
func write(ctx context.Context, be backend.Backend, kind tracker.QueueKind, collection string, row backend.Row) error {
	switch kind {
	case tracker.KindDay, tracker.KindVisit:
		id, _ := row["id"].(string)
		err := be.Update(ctx, collection, id, row)
		if !backend.IsNotFound(err) {
			return err
		}
	}
	return be.Insert(ctx, collection, row)
}

func phases(items []tracker.QueueItem) [][]tracker.QueueItem {
	order := map[tracker.QueueKind]int{
		tracker.KindDay:     0,
		tracker.KindVisit:   1,
		tracker.KindCapture: 2,
		tracker.KindScan:    2,
	}
	out := make([][]tracker.QueueItem, 3)
	for _, item := range items {
		i, ok := order[item.Kind]
		if !ok {
			i = 2
		}
		out[i] = append(out[i], item)
	}
	return out
}

// Backoff returns interval * 2^(attempts-1), capped at max.
func Backoff(interval, max time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := interval
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// PollOnce refreshes the sign-in indicator from the backing store.
func (s *Service) PollOnce(ctx context.Context) backend.AuthState {
	be, err := s.source.Backend()
	if err != nil {
		if backend.IsConfig(err) {
			s.auth.Mark(backend.AuthNeedsConfig, err)
			return backend.AuthNeedsConfig
		}
		s.auth.Mark(backend.AuthError, err)
		return backend.AuthError
	}

	token, ok := s.auth.Token()
	if !ok {
		s.auth.Mark(backend.AuthSignedOut, nil)
		return backend.AuthSignedOut
	}

	session, err := be.GetSession(ctx, token)
	switch {
	case err == nil:
		s.auth.Set(session)
		return backend.AuthSignedIn
	case backend.IsUnauthorized(err):
		s.logger.Info("session no longer valid", zap.Error(err))
		s.auth.Clear()
		return backend.AuthSignedOut
	default:
		s.auth.Mark(backend.AuthError, err)
		return backend.AuthError
	}
}
