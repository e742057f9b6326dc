package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vanplan/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	corridors map[string]model.Corridor
	order     []string // corridor ids in open order, for deterministic matching
	snapshots map[string][]model.PlanResult
	subs      map[string]model.Subscription
	// webhook queue state
	deliveries map[string]*memDelivery
	dlq        []WebhookDelivery
}

func NewMemory() *Memory {
	return &Memory{
		corridors:  map[string]model.Corridor{},
		snapshots:  map[string][]model.PlanResult{},
		subs:       map[string]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) FindMatchingCorridor(ctx context.Context, q CorridorQuery) (model.Corridor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		c := m.corridors[id]
		if c.Status != model.CorridorOpen {
			continue
		}
		if c.OriginArea == q.OriginArea && c.DestArea == q.DestArea && c.Window.Overlaps(q.Window) {
			return c, nil
		}
	}
	return model.Corridor{}, ErrNotFound
}

func (m *Memory) GetCorridor(ctx context.Context, id string) (model.Corridor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.corridors[id]
	if !ok {
		return model.Corridor{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListCorridors(ctx context.Context, status string, limit int) ([]model.Corridor, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Corridor{}
	for _, id := range m.order {
		c := m.corridors[id]
		if status != "" && string(c.Status) != status {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) OpenCorridor(ctx context.Context, c model.Corridor) (model.Corridor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = "cor_" + uuid.New().String()
	}
	c.Version = 1
	c.Status = model.CorridorOpen
	m.corridors[c.ID] = c
	m.order = append(m.order, c.ID)
	return c, nil
}

func (m *Memory) AppendToCorridor(ctx context.Context, corridorID string, expectedVersion int, b model.BookingRequest, routeID string) (model.Corridor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.corridors[corridorID]
	if !ok {
		return model.Corridor{}, ErrNotFound
	}
	if c.Version != expectedVersion {
		return model.Corridor{}, ErrVersionConflict
	}
	c.Bookings = append(append([]model.BookingRequest{}, c.Bookings...), b)
	c.Version++
	c.RouteID = routeID
	m.corridors[corridorID] = c
	return c, nil
}

func (m *Memory) CloseCorridor(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.corridors[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = model.CorridorClosed
	m.corridors[id] = c
	return nil
}

func (m *Memory) RecordPlanSnapshot(ctx context.Context, scope string, res model.PlanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[scope] = append(m.snapshots[scope], res)
	return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: "sub_" + uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[s.ID] = s
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType || e == "*" {
				out = append(out, s)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, limit int) ([]model.Subscription, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, s := range m.subs {
		s.Secret = ""
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "whd_" + uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"},
		NextAttemptAt:   time.Now(),
	}
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if d.Status == "pending" && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	m.dlq = append(m.dlq, d.WebhookDelivery)
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d.WebhookDelivery)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
