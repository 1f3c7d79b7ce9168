package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"geoattend-backend/internal/model"
)

// AlertKind labels the attendance events worth pushing to the user.
type AlertKind string

const (
	AlertZoneEntered     AlertKind = "zone_entered"
	AlertZoneExited      AlertKind = "zone_exited"
	AlertCheckoutPending AlertKind = "checkout_pending"
	AlertSyncFailed      AlertKind = "sync_failed"
)

// Alert is one notification job. An empty UserID broadcasts to every
// subscription, which is what sync failures use.
type Alert struct {
	Kind     AlertKind
	UserID   string
	SiteName string
}

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending push notifications.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.deliver(ctx, alert)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert for delivery. Blocks only when the pool's
// buffer is full.
func (wp *WorkerPool) Dispatch(alert Alert) {
	wp.jobs <- alert
}

// message renders the user-facing text for an alert.
func message(alert Alert) string {
	switch alert.Kind {
	case AlertZoneEntered:
		return fmt.Sprintf("You have entered %s. Check-in is now available.", alert.SiteName)
	case AlertZoneExited:
		return fmt.Sprintf("You have left %s.", alert.SiteName)
	case AlertCheckoutPending:
		return fmt.Sprintf("You left %s while checked in. Confirm your check-out.", alert.SiteName)
	case AlertSyncFailed:
		return "Attendance sync failed. Records are kept locally and will retry."
	default:
		return string(alert.Kind)
	}
}

// deliver fetches the matching subscriptions and pushes the alert.
func (wp *WorkerPool) deliver(ctx context.Context, alert Alert) {
	q := wp.db.WithContext(ctx)
	if alert.UserID != "" {
		q = q.Where("user_id = ?", alert.UserID)
	}

	var subscriptions []model.PushSubscription
	if err := q.Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for alert %s: %v", alert.Kind, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload := []byte(message(alert))
	log.Printf("Sending %d notifications for alert %s", len(subscriptions), alert.Kind)
	for _, sub := range subscriptions {
		wp.send(ctx, sub, payload)
	}
}

// send pushes a single notification and prunes expired subscriptions.
func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
