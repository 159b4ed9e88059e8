package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"axis-blue-backend/internal/model"
	"axis-blue-backend/internal/tracker"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Alert is an urgent issue raised during a visit.
type Alert struct {
	VisitID  string    `json:"visit_id"`
	StoreID  string    `json:"store_id"`
	Store    string    `json:"store"`
	Severity string    `json:"severity"`
	Note     string    `json:"note"`
	At       time.Time `json:"ts"`
}

// AlertFor builds the alert for an issue flagged on v.
func AlertFor(v tracker.Visit, issue tracker.UrgentIssue) Alert {
	return Alert{
		VisitID:  v.ID,
		StoreID:  v.StoreID,
		Store:    v.StoreName,
		Severity: string(issue.Severity),
		Note:     issue.Note,
		At:       issue.At,
	}
}

type message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Alert Alert  `json:"alert"`
}

// Payload is the push message body delivered to subscribers.
func (a Alert) Payload() ([]byte, error) {
	return json.Marshal(message{
		Title: "AXIS BLUE • URGENT",
		Body:  fmt.Sprintf("[%s] %s: %s", a.Severity, a.Store, a.Note),
		Alert: a,
	})
}

// WorkerPool manages a pool of workers for sending urgent alerts.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size*8),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log := wp.logger.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case alert := <-wp.jobs:
			log.Info("processing urgent alert", zap.String("visit_id", alert.VisitID), zap.String("store", alert.Store))
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		}
	}
}

// Dispatch queues an alert. Alerts are dropped when the queue is full so the
// caller never blocks.
func (wp *WorkerPool) Dispatch(alert Alert) bool {
	select {
	case wp.jobs <- alert:
		return true
	default:
		wp.logger.Warn("alert queue full, dropping alert", zap.String("visit_id", alert.VisitID))
		return false
	}
}

// OnUrgent adapts Dispatch to the tracker hook.
func (wp *WorkerPool) OnUrgent(v tracker.Visit, issue tracker.UrgentIssue) {
	wp.Dispatch(AlertFor(v, issue))
}

func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		wp.logger.Error("failed to fetch push subscriptions", zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := alert.Payload()
	if err != nil {
		wp.logger.Error("failed to encode alert", zap.Error(err))
		return
	}
	wp.logger.Info("sending urgent alerts", zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusGone, http.StatusNotFound:
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
