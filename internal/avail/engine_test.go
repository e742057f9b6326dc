package avail

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"vanplan/internal/catalog"
	"vanplan/internal/config"
	"vanplan/internal/model"
	"vanplan/internal/plan"
	"vanplan/internal/store"
)

var economyCeiling = model.CapacityCeiling{VolumeM3: 14, WeightKg: 1100, WorkerSeats: 2}

func testEngine(t *testing.T, s store.Store) *Engine {
	t.Helper()
	cat := catalog.MustStatic("test-1", []model.ItemDefinition{
		{ID: "small_box", VolumeM3: 0.1, WeightKg: 5, WorkersRequired: 1, FitsStandardVan: true},
		{ID: "sofa", VolumeM3: 2.0, WeightKg: 40, WorkersRequired: 2, FitsStandardVan: true},
		{ID: "bulk_pallet", VolumeM3: 8.0, WeightKg: 600, WorkersRequired: 2, FitsStandardVan: true},
	})
	cfg := config.AvailabilityConfig{
		MatchRule:           "outward-postcode",
		StoreTimeout:        200 * time.Millisecond,
		StoreRetries:        2,
		RetryBackoff:        time.Millisecond,
		AppendRetries:       2,
		SeedCorridors:       true,
		CorridorWindowHours: 6,
	}
	e := NewEngine(s, plan.NewPlanner(cat), cfg, economyCeiling)
	e.Clock = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return e
}

func booking(id string, items ...string) model.BookingRequest {
	return model.BookingRequest{
		ID:       id,
		Pickup:   model.Address{Postcode: "BS1 4DJ"},
		Delivery: model.Address{Postcode: "M1 1AE"},
		ItemIDs:  items,
	}
}

func TestCheckFirstBookingSeedsCorridor(t *testing.T) {
	mem := store.NewMemory()
	e := testEngine(t, mem)

	res, err := e.Check(context.Background(), booking("b1", "sofa"), model.UrgencyRelaxed)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.RouteType != model.RouteStandard {
		t.Fatalf("tier: got %s want standard", res.RouteType)
	}
	if res.NextAvailableDate != "2026-03-11" {
		t.Errorf("date: got %s want next day", res.NextAvailableDate)
	}
	if res.CorridorID == "" {
		t.Fatal("first booking must seed a corridor")
	}
	cor, err := mem.GetCorridor(context.Background(), res.CorridorID)
	if err != nil {
		t.Fatalf("get corridor: %v", err)
	}
	if len(cor.Bookings) != 1 || cor.Bookings[0].ID != "b1" {
		t.Errorf("seeded corridor bookings: %+v", cor.Bookings)
	}
	if cor.OriginArea != "BS1" || cor.DestArea != "M1" {
		t.Errorf("corridor areas: %s -> %s", cor.OriginArea, cor.DestArea)
	}
}

func TestCheckSecondBookingJoinsCorridor(t *testing.T) {
	mem := store.NewMemory()
	e := testEngine(t, mem)

	first, err := e.Check(context.Background(), booking("b1", "sofa"), model.UrgencyRelaxed)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	res, err := e.Check(context.Background(), booking("b2", "small_box"), model.UrgencyRelaxed)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if res.RouteType != model.RouteEconomy {
		t.Fatalf("tier: got %s want economy", res.RouteType)
	}
	if res.CorridorID != first.CorridorID {
		t.Errorf("corridor: got %s want %s", res.CorridorID, first.CorridorID)
	}
	if res.RouteID == "" {
		t.Error("economy decision must carry the planned route id")
	}
	cor, _ := mem.GetCorridor(context.Background(), first.CorridorID)
	if len(cor.Bookings) != 2 {
		t.Errorf("corridor bookings: got %d want 2", len(cor.Bookings))
	}
	if cor.Version != 2 {
		t.Errorf("corridor version: got %d want 2", cor.Version)
	}
}

func TestCheckUrgentGoesExpressSameDay(t *testing.T) {
	e := testEngine(t, store.NewMemory())
	res, err := e.Check(context.Background(), booking("b1", "sofa"), model.UrgencyUrgent)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.RouteType != model.RouteExpress {
		t.Fatalf("tier: got %s want express", res.RouteType)
	}
	if res.NextAvailableDate != "2026-03-10" {
		t.Errorf("date: got %s want same day", res.NextAvailableDate)
	}
}

func TestCheckFullCorridorFallsBackStandalone(t *testing.T) {
	mem := store.NewMemory()
	e := testEngine(t, mem)

	// Nearly fill the corridor's volume ceiling.
	if _, err := e.Check(context.Background(), booking("b1", "bulk_pallet"), model.UrgencyRelaxed); err != nil {
		t.Fatalf("first check: %v", err)
	}
	res, err := e.Check(context.Background(), booking("b2", "bulk_pallet", "bulk_pallet"), model.UrgencyRelaxed)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	// 8 + 16 m3 cannot share a 14 m3 vehicle; the answer degrades to the
	// standalone tier instead of failing.
	if res.RouteType != model.RouteStandard {
		t.Fatalf("tier: got %s want standard", res.RouteType)
	}
}

func TestCheckUnknownItemRejectedBeforeStoreIO(t *testing.T) {
	counting := &countingStore{Memory: store.NewMemory()}
	e := testEngine(t, counting)
	_, err := e.Check(context.Background(), booking("b1", "ghost_item"), model.UrgencyRelaxed)
	if !errors.Is(err, plan.ErrUnknownItem) {
		t.Fatalf("want ErrUnknownItem, got %v", err)
	}
	if counting.finds != 0 {
		t.Errorf("store was queried %d times for an unplannable booking", counting.finds)
	}
}

func TestCheckStoreOutageIsRetryableError(t *testing.T) {
	e := testEngine(t, &downStore{Memory: store.NewMemory()})
	res, err := e.Check(context.Background(), booking("b1", "sofa"), model.UrgencyRelaxed)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
	// No tier guess on outage.
	if res.RouteType != "" {
		t.Errorf("outage answered with tier %s", res.RouteType)
	}
}

func TestCheckTransientStoreFailureRecovers(t *testing.T) {
	flaky := &flakyStore{Memory: store.NewMemory(), failures: 2}
	e := testEngine(t, flaky)
	res, err := e.Check(context.Background(), booking("b1", "sofa"), model.UrgencyRelaxed)
	if err != nil {
		t.Fatalf("check after transient failures: %v", err)
	}
	if res.RouteType != model.RouteStandard {
		t.Errorf("tier: got %s want standard", res.RouteType)
	}
	if flaky.finds != 3 {
		t.Errorf("lookup attempts: got %d want 3", flaky.finds)
	}
}

func TestCheckVersionConflictRetriesThenJoins(t *testing.T) {
	mem := store.NewMemory()
	conflicting := &conflictStore{Memory: mem, conflicts: 1}
	e := testEngine(t, conflicting)

	if _, err := e.Check(context.Background(), booking("b1", "sofa"), model.UrgencyRelaxed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := e.Check(context.Background(), booking("b2", "small_box"), model.UrgencyRelaxed)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.RouteType != model.RouteEconomy {
		t.Fatalf("tier after retried conflict: got %s want economy", res.RouteType)
	}
	if conflicting.appends != 2 {
		t.Errorf("append attempts: got %d want 2", conflicting.appends)
	}
}

func TestCheckConflictExhaustionFallsBackStandalone(t *testing.T) {
	mem := store.NewMemory()
	conflicting := &conflictStore{Memory: mem, conflicts: 1 << 30}
	e := testEngine(t, conflicting)

	if _, err := e.Check(context.Background(), booking("b1", "sofa"), model.UrgencyRelaxed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := e.Check(context.Background(), booking("b2", "small_box"), model.UrgencyRelaxed)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	// Losing the version race forever still answers the customer; a new
	// corridor is opened for the pairing.
	if res.RouteType != model.RouteStandard {
		t.Fatalf("tier: got %s want standard", res.RouteType)
	}
	if res.CorridorID == "" {
		t.Error("fallback must seed a fresh corridor")
	}
}

func TestCheckMissingPostcodeGoesStandalone(t *testing.T) {
	e := testEngine(t, store.NewMemory())
	b := booking("b1", "sofa")
	b.Pickup.Postcode = ""
	res, err := e.Check(context.Background(), b, model.UrgencyRelaxed)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.RouteType != model.RouteStandard {
		t.Fatalf("tier: got %s want standard", res.RouteType)
	}
	if res.CorridorID != "" {
		t.Error("unmatchable booking must not seed a corridor")
	}
}

func TestOutwardPostcodeMatch(t *testing.T) {
	match := OutwardPostcodeMatch(6)
	q, ok := match(booking("b1", "sofa"))
	if !ok {
		t.Fatal("postcoded booking must match")
	}
	if q.OriginArea != "BS1" || q.DestArea != "M1" {
		t.Errorf("areas: %s -> %s", q.OriginArea, q.DestArea)
	}
	if q.Window.End.Sub(q.Window.Start) != 6*time.Hour {
		t.Errorf("default window: %v", q.Window.End.Sub(q.Window.Start))
	}
}

// countingStore records corridor lookups.
type countingStore struct {
	*store.Memory
	finds int
}

func (s *countingStore) FindMatchingCorridor(ctx context.Context, q store.CorridorQuery) (model.Corridor, error) {
	s.finds++
	return s.Memory.FindMatchingCorridor(ctx, q)
}

// downStore fails every corridor operation.
type downStore struct {
	*store.Memory
}

func (s *downStore) FindMatchingCorridor(context.Context, store.CorridorQuery) (model.Corridor, error) {
	return model.Corridor{}, fmt.Errorf("connection refused")
}

// flakyStore fails the first N lookups, then recovers.
type flakyStore struct {
	*store.Memory
	failures int
	finds    int
}

func (s *flakyStore) FindMatchingCorridor(ctx context.Context, q store.CorridorQuery) (model.Corridor, error) {
	s.finds++
	if s.finds <= s.failures {
		return model.Corridor{}, fmt.Errorf("connection reset")
	}
	return s.Memory.FindMatchingCorridor(ctx, q)
}

// conflictStore rejects the first N appends with a version conflict.
type conflictStore struct {
	*store.Memory
	conflicts int
	appends   int
}

func (s *conflictStore) AppendToCorridor(ctx context.Context, corridorID string, expectedVersion int, b model.BookingRequest, routeID string) (model.Corridor, error) {
	s.appends++
	if s.appends <= s.conflicts {
		return model.Corridor{}, store.ErrVersionConflict
	}
	return s.Memory.AppendToCorridor(ctx, corridorID, expectedVersion, b, routeID)
}
