package plan

import (
	"fmt"
	"testing"

	"vanplan/internal/model"
)

var testCeiling = model.CapacityCeiling{VolumeM3: 14, WeightKg: 1100, WorkerSeats: 3}

func resolveAll(t *testing.T, bookings ...model.BookingRequest) []BookingLoad {
	t.Helper()
	loads, err := ResolveBookings(bookings, testSnapshot(t))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return loads
}

func peaksOf(t *testing.T, stops []model.Stop) (vol, wt float64, workers int) {
	t.Helper()
	legs, err := ReplayStops(stops)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	for _, l := range legs {
		if l.CumulativeVolumeM3 > vol {
			vol = l.CumulativeVolumeM3
		}
		if l.CumulativeWeightKg > wt {
			wt = l.CumulativeWeightKg
		}
		if l.WorkersRequired > workers {
			workers = l.WorkersRequired
		}
	}
	return vol, wt, workers
}

func TestSequenceSingleBooking(t *testing.T) {
	loads := resolveAll(t, mkBooking("b1", "sofa", "small_box"))
	res := Sequence(loads, testCeiling, nil, 0)
	if !res.Feasible {
		t.Fatal("single booking under ceiling must be feasible")
	}
	if len(res.Stops) != 2 {
		t.Fatalf("stops: got %d want 2", len(res.Stops))
	}
	if res.Stops[0].Type != model.StopPickup || res.Stops[1].Type != model.StopDropoff {
		t.Errorf("stop order: %s then %s", res.Stops[0].Type, res.Stops[1].Type)
	}
	if res.Stats.Algorithm != "exact" {
		t.Errorf("algorithm: got %q", res.Stats.Algorithm)
	}
}

func TestSequencePrecedenceHolds(t *testing.T) {
	loads := resolveAll(t,
		mkBooking("b1", "sofa"),
		mkBooking("b2", "wardrobe"),
		mkBooking("b3", "medium_item_100kg"),
	)
	res := Sequence(loads, testCeiling, nil, 0)
	if !res.Feasible {
		t.Fatal("want feasible")
	}
	picked := map[string]bool{}
	for _, s := range res.Stops {
		switch s.Type {
		case model.StopPickup:
			picked[s.BookingID] = true
		case model.StopDropoff:
			if !picked[s.BookingID] {
				t.Fatalf("dropoff for %s before its pickup", s.BookingID)
			}
		}
	}
	if len(res.Stops) != 6 {
		t.Errorf("stops: got %d want 6", len(res.Stops))
	}
}

// Two identical bookings must not stack: the optimal ordering delivers
// one before collecting the next, so the peak equals one booking's load.
func TestSequenceCapacityReuseNoDoubling(t *testing.T) {
	loads := resolveAll(t,
		mkBooking("b1", "medium_item_100kg"),
		mkBooking("b2", "medium_item_100kg"),
	)
	res := Sequence(loads, testCeiling, nil, 0)
	if !res.Feasible {
		t.Fatal("want feasible")
	}
	vol, wt, _ := peaksOf(t, res.Stops)
	if vol > 1.0+loadEps {
		t.Errorf("peak volume: got %v, two 1.0 bookings must not stack", vol)
	}
	if wt > 100+loadEps {
		t.Errorf("peak weight: got %v, two 100kg bookings must not stack", wt)
	}
}

// A tight ceiling that only the sequential ordering satisfies.
func TestSequenceFindsSequentialUnderTightCeiling(t *testing.T) {
	loads := resolveAll(t,
		mkBooking("b1", "sofa"),      // 2.0 m3, 40 kg
		mkBooking("b2", "sofa"),      // 2.0 m3, 40 kg
		mkBooking("b3", "small_box"), // 0.1 m3, 5 kg
	)
	ceiling := model.CapacityCeiling{VolumeM3: 2.2, WeightKg: 500, WorkerSeats: 3}
	res := Sequence(loads, ceiling, nil, 0)
	if !res.Feasible {
		t.Fatal("sequential ordering fits; sequencer must find it")
	}
	vol, _, _ := peaksOf(t, res.Stops)
	if vol > 2.2+loadEps {
		t.Errorf("peak volume %v exceeds ceiling", vol)
	}
}

func TestSequenceInfeasibleReturnsBestAttempt(t *testing.T) {
	loads := resolveAll(t, mkBooking("b1", "piano", "sofa")) // 3.6 m3, 260 kg
	ceiling := model.CapacityCeiling{VolumeM3: 3.0, WeightKg: 1100, WorkerSeats: 3}
	res := Sequence(loads, ceiling, nil, 0)
	if res.Feasible {
		t.Fatal("booking exceeds ceiling; want infeasible")
	}
	// Best-attempt stops still come back so the caller can report by how
	// much the ceiling is missed.
	if len(res.Stops) != 2 {
		t.Fatalf("stops: got %d want 2", len(res.Stops))
	}
}

func TestSequenceWorkerSeatsConstrain(t *testing.T) {
	loads := resolveAll(t, mkBooking("b1", "piano")) // needs 3 workers
	ceiling := model.CapacityCeiling{VolumeM3: 14, WeightKg: 1100, WorkerSeats: 2}
	res := Sequence(loads, ceiling, nil, 0)
	if res.Feasible {
		t.Fatal("3-worker item on a 2-seat tier must be infeasible")
	}
}

func TestSequenceEmptyInput(t *testing.T) {
	res := Sequence(nil, testCeiling, nil, 0)
	if !res.Feasible || len(res.Stops) != 0 {
		t.Fatalf("empty input: feasible=%v stops=%d", res.Feasible, len(res.Stops))
	}
}

func TestSequenceGreedyBeyondExactLimit(t *testing.T) {
	var bookings []model.BookingRequest
	for i := 0; i < 12; i++ {
		bookings = append(bookings, mkBooking(fmt.Sprintf("b%d", i), "wardrobe", "small_box"))
	}
	loads := resolveAll(t, bookings...)
	res := Sequence(loads, testCeiling, nil, 0)
	if !res.Feasible {
		t.Fatal("want feasible")
	}
	if res.Stats.Algorithm != "greedy" {
		t.Fatalf("algorithm: got %q want greedy", res.Stats.Algorithm)
	}
	if len(res.Stops) != 24 {
		t.Fatalf("stops: got %d want 24", len(res.Stops))
	}
	// Greedy must never exceed the sequential baseline: the largest
	// single booking per dimension.
	vol, wt, _ := peaksOf(t, res.Stops)
	if vol > 1.3+loadEps {
		t.Errorf("greedy peak volume %v exceeds single-booking baseline", vol)
	}
	if wt > 75+loadEps {
		t.Errorf("greedy peak weight %v exceeds single-booking baseline", wt)
	}
}

func TestSequenceGreedyInfeasibleBooking(t *testing.T) {
	var bookings []model.BookingRequest
	for i := 0; i < 9; i++ {
		bookings = append(bookings, mkBooking(fmt.Sprintf("b%d", i), "small_box"))
	}
	bookings = append(bookings, mkBooking("huge", "piano", "piano", "piano"))
	loads := resolveAll(t, bookings...)
	ceiling := model.CapacityCeiling{VolumeM3: 4.0, WeightKg: 500, WorkerSeats: 3}
	res := Sequence(loads, ceiling, nil, 0)
	if res.Feasible {
		t.Fatal("oversized booking must make the batch infeasible")
	}
}
