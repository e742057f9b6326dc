package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vanplan/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies *.sql files in lexical order. Dev helper; real
// deployments run migrations out of band.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		raw, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(raw)); err != nil {
			return fmt.Errorf("migrate %s: %w", n, err)
		}
	}
	return nil
}

func (p *Postgres) FindMatchingCorridor(ctx context.Context, q CorridorQuery) (model.Corridor, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id::text, version, origin_area, dest_area, window_start, window_end,
		       departure_date, vehicle_id, ceiling, bookings, route_id, status
		  FROM corridors
		 WHERE status = 'open'
		   AND origin_area = $1 AND dest_area = $2
		   AND window_start <= $4 AND window_end >= $3
		 ORDER BY created_at
		 LIMIT 1`, q.OriginArea, q.DestArea, q.Window.Start, q.Window.End)
	return scanCorridor(row)
}

func (p *Postgres) GetCorridor(ctx context.Context, id string) (model.Corridor, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id::text, version, origin_area, dest_area, window_start, window_end,
		       departure_date, vehicle_id, ceiling, bookings, route_id, status
		  FROM corridors WHERE id::text = $1`, id)
	return scanCorridor(row)
}

func (p *Postgres) ListCorridors(ctx context.Context, status string, limit int) ([]model.Corridor, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id::text, version, origin_area, dest_area, window_start, window_end,
			       departure_date, vehicle_id, ceiling, bookings, route_id, status
			  FROM corridors WHERE status = $1 ORDER BY created_at LIMIT $2`, status, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id::text, version, origin_area, dest_area, window_start, window_end,
			       departure_date, vehicle_id, ceiling, bookings, route_id, status
			  FROM corridors ORDER BY created_at LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Corridor{}
	for rows.Next() {
		c, err := scanCorridor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) OpenCorridor(ctx context.Context, c model.Corridor) (model.Corridor, error) {
	if c.ID == "" {
		c.ID = "cor_" + uuid.New().String()
	}
	c.Version = 1
	c.Status = model.CorridorOpen
	bookings, _ := json.Marshal(c.Bookings)
	ceiling, _ := json.Marshal(c.Ceiling)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO corridors (id, version, origin_area, dest_area, window_start, window_end,
		                       departure_date, vehicle_id, ceiling, bookings, route_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())`,
		c.ID, c.Version, c.OriginArea, c.DestArea, c.Window.Start, c.Window.End,
		c.DepartureDate, nullIfEmpty(c.VehicleID), ceiling, bookings, nullIfEmpty(c.RouteID), c.Status)
	if err != nil {
		return model.Corridor{}, err
	}
	return c, nil
}

// AppendToCorridor is the optimistic-concurrency commit: the UPDATE only
// lands when the stored version still equals expectedVersion.
func (p *Postgres) AppendToCorridor(ctx context.Context, corridorID string, expectedVersion int, b model.BookingRequest, routeID string) (model.Corridor, error) {
	cur, err := p.GetCorridor(ctx, corridorID)
	if err != nil {
		return model.Corridor{}, err
	}
	if cur.Version != expectedVersion {
		return model.Corridor{}, ErrVersionConflict
	}
	next := append(append([]model.BookingRequest{}, cur.Bookings...), b)
	bookings, _ := json.Marshal(next)
	res, err := p.db.ExecContext(ctx, `
		UPDATE corridors
		   SET version = version + 1, bookings = $1, route_id = $2
		 WHERE id::text = $3 AND version = $4`,
		bookings, nullIfEmpty(routeID), corridorID, expectedVersion)
	if err != nil {
		return model.Corridor{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.Corridor{}, ErrVersionConflict
	}
	return p.GetCorridor(ctx, corridorID)
}

func (p *Postgres) CloseCorridor(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE corridors SET status = 'closed' WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RecordPlanSnapshot(ctx context.Context, scope string, res model.PlanResult) error {
	body, _ := json.Marshal(res)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO plan_snapshots (id, scope, snapshot, created_at) VALUES ($1,$2,$3,now())`,
		"ps_"+uuid.New().String(), scope, body)
	return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	s := model.Subscription{ID: "sub_" + uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	events, _ := json.Marshal(s.Events)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		s.ID, s.URL, events, s.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return s, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, url, events, secret FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		for _, e := range s.Events {
			if e == eventType || e == "*" {
				out = append(out, s)
				break
			}
		}
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, limit int) ([]model.Subscription, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id, url, events, secret FROM subscriptions ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		s.Secret = ""
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := "whd_" + uuid.New().String()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, subscriptionID, eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, subscription_id, event_type, url, secret, payload, status, attempts
		  FROM webhook_deliveries
		 WHERE status = 'pending' AND next_attempt_at <= now()
		 ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode, latencyMs int) error {
	status := "pending"
	if success {
		status = "delivered"
	}
	var next any
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx, `
		UPDATE webhook_deliveries
		   SET status=$1, attempts=attempts+1, next_attempt_at=COALESCE($2, next_attempt_at),
		       last_error=$3, response_code=$4, latency_ms=$5,
		       delivered_at=CASE WHEN $1='delivered' THEN now() ELSE delivered_at END
		 WHERE id=$6`, status, next, nullIfEmpty(lastError), responseCode, latencyMs, id)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id, lastError string, responseCode, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE webhook_deliveries
		   SET status='failed', attempts=attempts+1, last_error=$1, response_code=$2, latency_ms=$3
		 WHERE id=$4`, nullIfEmpty(lastError), responseCode, latencyMs, id)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, subscription_id, event_type, url, secret, payload, status, attempts
			  FROM webhook_deliveries WHERE status=$1 ORDER BY id LIMIT $2`, status, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT id, subscription_id, event_type, url, secret, payload, status, attempts
			  FROM webhook_deliveries ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCorridor(row rowScanner) (model.Corridor, error) {
	var c model.Corridor
	var vehicleID, routeID sql.NullString
	var ceiling, bookings []byte
	err := row.Scan(&c.ID, &c.Version, &c.OriginArea, &c.DestArea, &c.Window.Start, &c.Window.End,
		&c.DepartureDate, &vehicleID, &ceiling, &bookings, &routeID, &c.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Corridor{}, ErrNotFound
	}
	if err != nil {
		return model.Corridor{}, err
	}
	c.VehicleID = vehicleID.String
	c.RouteID = routeID.String
	if len(ceiling) > 0 {
		if err := json.Unmarshal(ceiling, &c.Ceiling); err != nil {
			return model.Corridor{}, err
		}
	}
	if len(bookings) > 0 {
		if err := json.Unmarshal(bookings, &c.Bookings); err != nil {
			return model.Corridor{}, err
		}
	}
	return c, nil
}

func scanSubscription(row rowScanner) (model.Subscription, error) {
	var s model.Subscription
	var events []byte
	if err := row.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
		return model.Subscription{}, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &s.Events); err != nil {
			return model.Subscription{}, err
		}
	}
	return s, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
