package store

import (
	"context"
	"errors"
	"time"

	"vanplan/internal/model"
)

var (
	// ErrNotFound means no corridor matched the lookup.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means an append lost the optimistic version
	// race; callers re-read and retry a bounded number of times.
	ErrVersionConflict = errors.New("corridor version conflict")
)

// CorridorQuery is the availability engine's lookup key: a geographic
// pairing plus the requested departure window.
type CorridorQuery struct {
	OriginArea string
	DestArea   string
	Window     model.TimeWindow
}

// Store is the persistence interface behind the availability engine and
// the API server. Memory serves when no DATABASE_URL is set.
type Store interface {
	// Corridors
	FindMatchingCorridor(ctx context.Context, q CorridorQuery) (model.Corridor, error)
	GetCorridor(ctx context.Context, id string) (model.Corridor, error)
	ListCorridors(ctx context.Context, status string, limit int) ([]model.Corridor, error)
	OpenCorridor(ctx context.Context, c model.Corridor) (model.Corridor, error)
	// AppendToCorridor commits an accepted booking when expectedVersion
	// still matches; otherwise it fails with ErrVersionConflict and
	// leaves the corridor untouched.
	AppendToCorridor(ctx context.Context, corridorID string, expectedVersion int, b model.BookingRequest, routeID string) (model.Corridor, error)
	CloseCorridor(ctx context.Context, id string) error

	// Plan snapshots, recorded fire-and-forget for analytics.
	RecordPlanSnapshot(ctx context.Context, scope string, res model.PlanResult) error

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, limit int) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook delivery queue
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error)

	Ping(ctx context.Context) error
}

// WebhookDelivery is one queued outbound event delivery.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}
