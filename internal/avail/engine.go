// Package avail decides whether a new booking can be absorbed into an
// open shared corridor (economy tier) or must run standalone.
package avail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"vanplan/internal/config"
	"vanplan/internal/metrics"
	"vanplan/internal/model"
	"vanplan/internal/plan"
	"vanplan/internal/store"
)

// ErrStoreUnavailable is surfaced when corridor-store I/O keeps failing.
// Retryable by the caller; the engine never answers with a tier guess on
// this failure.
var ErrStoreUnavailable = errors.New("corridor store unavailable")

// MatchFunc maps a booking to the corridor lookup key. Returning false
// means the booking has no shareable geography (for example, a missing
// postcode) and goes standalone. The matching rule is deliberately
// pluggable; the default pairs outward postcodes.
type MatchFunc func(b model.BookingRequest) (store.CorridorQuery, bool)

// NotifyFunc receives committed corridor changes and availability
// decisions; the API layer fans these out to the broker and webhooks.
type NotifyFunc func(eventType string, data any)

type Engine struct {
	Store   store.Store
	Planner *plan.Planner
	Match   MatchFunc
	Notify  NotifyFunc
	Cfg     config.AvailabilityConfig
	// EconomyCeiling seeds new corridors; an existing corridor is always
	// evaluated against its own stored ceiling.
	EconomyCeiling model.CapacityCeiling
	Clock          func() time.Time
}

func NewEngine(s store.Store, p *plan.Planner, cfg config.AvailabilityConfig, economy model.CapacityCeiling) *Engine {
	return &Engine{
		Store:          s,
		Planner:        p,
		Match:          OutwardPostcodeMatch(cfg.CorridorWindowHours),
		Notify:         func(string, any) {},
		Cfg:            cfg,
		EconomyCeiling: economy,
		Clock:          time.Now,
	}
}

// OutwardPostcodeMatch pairs bookings by the outward half of both
// postcodes plus an overlapping departure window. Bookings without a
// window get one of windowHours starting now.
func OutwardPostcodeMatch(windowHours int) MatchFunc {
	if windowHours <= 0 {
		windowHours = 6
	}
	return func(b model.BookingRequest) (store.CorridorQuery, bool) {
		origin := outwardCode(b.Pickup.Postcode)
		dest := outwardCode(b.Delivery.Postcode)
		if origin == "" || dest == "" {
			return store.CorridorQuery{}, false
		}
		q := store.CorridorQuery{OriginArea: origin, DestArea: dest}
		if b.Window != nil {
			q.Window = *b.Window
		} else {
			now := time.Now()
			q.Window = model.TimeWindow{Start: now, End: now.Add(time.Duration(windowHours) * time.Hour)}
		}
		return q, true
	}
}

func outwardCode(postcode string) string {
	p := strings.ToUpper(strings.TrimSpace(postcode))
	if p == "" {
		return ""
	}
	if i := strings.IndexByte(p, ' '); i > 0 {
		return p[:i]
	}
	return p
}

// Check answers the availability question for one incoming booking. An
// unknown catalog item fails fast; corridor-store outage fails with
// ErrStoreUnavailable; everything else resolves to a tier.
func (e *Engine) Check(ctx context.Context, b model.BookingRequest, urgency model.Urgency) (model.AvailabilityResult, error) {
	// Normalize up front so an unplannable booking is rejected before
	// any store I/O.
	snap, err := e.Planner.Catalog.Snapshot(ctx)
	if err != nil {
		return model.AvailabilityResult{}, fmt.Errorf("catalog snapshot: %w", err)
	}
	if _, err := plan.NormalizeLoad(b, snap); err != nil {
		return model.AvailabilityResult{}, err
	}

	q, matchable := e.Match(b)
	if !matchable {
		return e.standalone(ctx, b, urgency, store.CorridorQuery{}, false)
	}

	cor, err := e.lookupCorridor(ctx, q)
	switch {
	case err == nil:
		res, appended, err := e.tryAppend(ctx, cor, b)
		if err != nil {
			return model.AvailabilityResult{}, err
		}
		if appended {
			metrics.AvailabilityDecisions.WithLabelValues(string(model.RouteEconomy)).Inc()
			e.Notify("availability.decided", res)
			return res, nil
		}
		// Candidate did not fit the open corridor; fall through to a
		// standalone tier and let a fresh corridor collect future peers.
		return e.standalone(ctx, b, urgency, q, e.Cfg.SeedCorridors)
	case errors.Is(err, store.ErrNotFound):
		return e.standalone(ctx, b, urgency, q, e.Cfg.SeedCorridors)
	default:
		return model.AvailabilityResult{}, err
	}
}

// lookupCorridor queries the store with a per-attempt timeout and
// bounded retries. ErrNotFound passes straight through; only transient
// store failures are retried.
func (e *Engine) lookupCorridor(ctx context.Context, q store.CorridorQuery) (model.Corridor, error) {
	var lastErr error
	attempts := e.Cfg.StoreRetries + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return model.Corridor{}, ctx.Err()
			case <-time.After(e.backoff(i)):
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, e.storeTimeout())
		cor, err := e.Store.FindMatchingCorridor(attemptCtx, q)
		cancel()
		if err == nil || errors.Is(err, store.ErrNotFound) {
			return cor, err
		}
		lastErr = err
		log.Printf("corridor lookup attempt %d/%d failed: %v", i+1, attempts, err)
	}
	return model.Corridor{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

// tryAppend recomputes feasibility with the candidate appended and
// commits under the optimistic version check. A version conflict means
// another request won the corridor in the meantime: re-read, recompute,
// re-attempt, a bounded number of times.
func (e *Engine) tryAppend(ctx context.Context, cor model.Corridor, b model.BookingRequest) (model.AvailabilityResult, bool, error) {
	attempts := e.Cfg.AppendRetries + 1
	for i := 0; i < attempts; i++ {
		candidate := append(append([]model.BookingRequest{}, cor.Bookings...), b)
		res, stats, err := e.Planner.Plan(ctx, candidate, cor.Ceiling)
		if err != nil {
			return model.AvailabilityResult{}, false, err
		}
		plan.RecordSearch(cor.ID, cor.DepartureDate, stats)
		if !res.Feasible {
			return model.AvailabilityResult{}, false, nil
		}

		commitCtx, cancel := context.WithTimeout(ctx, e.storeTimeout())
		updated, err := e.Store.AppendToCorridor(commitCtx, cor.ID, cor.Version, b, res.Route.ID)
		cancel()
		switch {
		case err == nil:
			if err := e.Store.RecordPlanSnapshot(ctx, cor.ID, res); err != nil {
				log.Printf("plan snapshot for corridor %s: %v", cor.ID, err)
			}
			e.Notify("corridor.updated", updated)
			return model.AvailabilityResult{
				RouteType:         model.RouteEconomy,
				NextAvailableDate: cor.DepartureDate,
				RouteID:           res.Route.ID,
				CorridorID:        cor.ID,
			}, true, nil
		case errors.Is(err, store.ErrVersionConflict):
			metrics.CorridorConflicts.Inc()
			reread, gerr := e.Store.GetCorridor(ctx, cor.ID)
			if gerr != nil {
				return model.AvailabilityResult{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, gerr)
			}
			cor = reread
		case errors.Is(err, store.ErrNotFound):
			// Corridor vanished (expired/closed) between lookup and commit.
			return model.AvailabilityResult{}, false, nil
		default:
			return model.AvailabilityResult{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	// Conflict retries exhausted; the caller falls back to opening a
	// fresh corridor rather than failing the customer-facing request.
	return model.AvailabilityResult{}, false, nil
}

// standalone reports the non-shared tier and optionally seeds a new
// corridor so later requests in the same pairing can go economy.
func (e *Engine) standalone(ctx context.Context, b model.BookingRequest, urgency model.Urgency, q store.CorridorQuery, seed bool) (model.AvailabilityResult, error) {
	now := e.Clock()
	res := model.AvailabilityResult{RouteType: model.RouteStandard, NextAvailableDate: now.AddDate(0, 0, 1).Format("2006-01-02")}
	if urgency == model.UrgencyUrgent {
		res.RouteType = model.RouteExpress
		res.NextAvailableDate = now.Format("2006-01-02")
	}

	if seed {
		cor := model.Corridor{
			OriginArea:    q.OriginArea,
			DestArea:      q.DestArea,
			Window:        q.Window,
			DepartureDate: q.Window.Start.Format("2006-01-02"),
			Ceiling:       e.EconomyCeiling,
			Bookings:      []model.BookingRequest{b},
		}
		seedCtx, cancel := context.WithTimeout(ctx, e.storeTimeout())
		opened, err := e.Store.OpenCorridor(seedCtx, cor)
		cancel()
		if err != nil {
			// Seeding is best effort; the decision already stands.
			log.Printf("seed corridor %s->%s: %v", q.OriginArea, q.DestArea, err)
		} else {
			res.CorridorID = opened.ID
			e.Notify("corridor.updated", opened)
		}
	}

	metrics.AvailabilityDecisions.WithLabelValues(string(res.RouteType)).Inc()
	e.Notify("availability.decided", res)
	return res, nil
}

func (e *Engine) storeTimeout() time.Duration {
	if e.Cfg.StoreTimeout > 0 {
		return e.Cfg.StoreTimeout
	}
	return 1500 * time.Millisecond
}

func (e *Engine) backoff(attempt int) time.Duration {
	base := e.Cfg.RetryBackoff
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base * time.Duration(1<<(attempt-1))
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
