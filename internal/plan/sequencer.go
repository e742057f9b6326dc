package plan

import (
	"math"
	"time"

	"vanplan/internal/model"
)

// DefaultExactLimit bounds the branch-and-bound search; beyond this many
// bookings the sequencer falls back to greedy insertion.
const DefaultExactLimit = 8

// SearchStats describes one sequencing run for the plan-metrics surface.
type SearchStats struct {
	Algorithm string `json:"algorithm"`
	Explored  int    `json:"explored"`
	Pruned    int    `json:"pruned"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// SequenceResult is an ordering over all pickup/dropoff events of the
// input bookings. When no ordering fits the ceiling, Feasible is false
// and Stops holds the best-attempt (sequential) ordering so callers can
// still inspect by how much the ceiling is exceeded.
type SequenceResult struct {
	Stops    []model.Stop
	Feasible bool
	Stats    SearchStats
}

// Sequence finds an event ordering that respects precedence (a booking's
// pickup strictly before its own dropoff), keeps the running load within
// the ceiling at every leg, and minimizes peak simultaneous load. Route
// cost from costFn breaks ties among equally peak-minimal orderings.
func Sequence(loads []BookingLoad, ceiling model.CapacityCeiling, costFn CostFunc, exactLimit int) SequenceResult {
	if costFn == nil {
		costFn = HaversineCost
	}
	if exactLimit <= 0 {
		exactLimit = DefaultExactLimit
	}
	start := time.Now()
	if len(loads) == 0 {
		return SequenceResult{Stops: []model.Stop{}, Feasible: true, Stats: SearchStats{Algorithm: "exact"}}
	}

	var res SequenceResult
	if len(loads) <= exactLimit {
		res = exactSequence(loads, ceiling, costFn)
	} else {
		res = greedySequence(loads, ceiling, costFn)
	}
	res.Stats.ElapsedMs = time.Since(start).Milliseconds()
	return res
}

// fifoStops is the sequential close-out ordering: each booking fully
// delivered before the next one is opened. It is both the best-attempt
// fallback and the baseline the greedy path must never exceed.
func fifoStops(loads []BookingLoad) []model.Stop {
	stops := make([]model.Stop, 0, 2*len(loads))
	for _, bl := range loads {
		stops = append(stops, bl.pickupStop(), bl.dropoffStop())
	}
	return stops
}

// withinCeiling treats a non-positive ceiling dimension as unconstrained.
func withinCeiling(vol, wt float64, workers int, c model.CapacityCeiling) bool {
	if c.VolumeM3 > 0 && vol > c.VolumeM3+loadEps {
		return false
	}
	if c.WeightKg > 0 && wt > c.WeightKg+loadEps {
		return false
	}
	if c.WorkerSeats > 0 && workers > c.WorkerSeats {
		return false
	}
	return true
}

// peakScalar folds the three peak dimensions into one comparable value:
// the worst utilization ratio. Unconstrained dimensions contribute zero.
func peakScalar(vol, wt float64, workers int, c model.CapacityCeiling) float64 {
	s := 0.0
	if c.VolumeM3 > 0 {
		s = math.Max(s, vol/c.VolumeM3)
	}
	if c.WeightKg > 0 {
		s = math.Max(s, wt/c.WeightKg)
	}
	if c.WorkerSeats > 0 {
		s = math.Max(s, float64(workers)/float64(c.WorkerSeats))
	}
	return s
}

// maxSearchNodes caps the branch-and-bound tree. The bound pruning makes
// typical inputs cheap, but degenerate ones (all-zero loads) would
// otherwise enumerate every interleaving.
const maxSearchNodes = 250000

// event encoding for the exact search: booking i contributes pickup 2i
// and dropoff 2i+1.
type bbSearch struct {
	loads   []BookingLoad
	ceiling model.CapacityCeiling
	costFn  CostFunc

	bestSeq  []int
	bestPeak float64
	bestCost float64
	explored int
	pruned   int
	nodes    int
}

func exactSequence(loads []BookingLoad, ceiling model.CapacityCeiling, costFn CostFunc) SequenceResult {
	s := &bbSearch{loads: loads, ceiling: ceiling, costFn: costFn, bestPeak: math.Inf(1), bestCost: math.Inf(1)}
	seq := make([]int, 0, 2*len(loads))
	s.dfs(seq, 0, 0, 0, 0, 0, 0, 0, model.Address{})

	stats := SearchStats{Algorithm: "exact", Explored: s.explored, Pruned: s.pruned}
	if s.bestSeq == nil {
		return SequenceResult{Stops: fifoStops(loads), Feasible: false, Stats: stats}
	}
	stops := make([]model.Stop, 0, len(s.bestSeq))
	for _, ev := range s.bestSeq {
		bl := loads[ev/2]
		if ev%2 == 0 {
			stops = append(stops, bl.pickupStop())
		} else {
			stops = append(stops, bl.dropoffStop())
		}
	}
	return SequenceResult{Stops: stops, Feasible: true, Stats: stats}
}

func (s *bbSearch) dfs(seq []int, open, closed uint16, curVol, curWt, peakVol, peakWt, curCost float64, lastAddr model.Address) {
	if s.nodes >= maxSearchNodes {
		return
	}
	s.nodes++
	n := len(s.loads)
	if len(seq) == 2*n {
		s.explored++
		peak := peakScalar(peakVol, peakWt, s.peakWorkersOf(seq), s.ceiling)
		if peak+1e-12 < s.bestPeak || (math.Abs(peak-s.bestPeak) <= 1e-12 && curCost < s.bestCost) {
			s.bestSeq = append([]int(nil), seq...)
			s.bestPeak = peak
			s.bestCost = curCost
		}
		return
	}

	for i := 0; i < n; i++ {
		bit := uint16(1) << i
		switch {
		case open&bit == 0 && closed&bit == 0:
			// open booking i
			p := s.loads[i].Profile
			nv, nw := curVol+p.VolumeM3, curWt+p.WeightKg
			workers := s.openWorkers(open | bit)
			if !withinCeiling(nv, nw, workers, s.ceiling) {
				s.pruned++
				continue
			}
			pv, pw := math.Max(peakVol, nv), math.Max(peakWt, nw)
			nc := curCost + s.legCost(len(seq), lastAddr, s.loads[i].Booking.Pickup)
			if s.boundPrune(pv, pw, workers, nc) {
				s.pruned++
				continue
			}
			s.dfs(append(seq, 2*i), open|bit, closed, nv, nw, pv, pw, nc, s.loads[i].Booking.Pickup)
		case open&bit != 0:
			// close booking i
			p := s.loads[i].Profile
			nc := curCost + s.legCost(len(seq), lastAddr, s.loads[i].Booking.Delivery)
			if s.boundPrune(peakVol, peakWt, 0, nc) {
				s.pruned++
				continue
			}
			s.dfs(append(seq, 2*i+1), open&^bit, closed|bit, curVol-p.VolumeM3, curWt-p.WeightKg, peakVol, peakWt, nc, s.loads[i].Booking.Delivery)
		}
	}
}

func (s *bbSearch) legCost(pos int, from, to model.Address) float64 {
	if pos == 0 {
		return 0
	}
	return s.costFn(from, to)
}

// boundPrune cuts branches that can no longer beat the incumbent. Peak
// and cost only ever grow along a branch, so a branch whose running peak
// is strictly worse, or whose peak is no better while its cost already
// lost the tie-break, is safe to drop.
func (s *bbSearch) boundPrune(peakVol, peakWt float64, workers int, curCost float64) bool {
	if math.IsInf(s.bestPeak, 1) {
		return false
	}
	peak := peakScalar(peakVol, peakWt, workers, s.ceiling)
	if peak > s.bestPeak+1e-12 {
		return true
	}
	return peak >= s.bestPeak-1e-12 && curCost >= s.bestCost
}

func (s *bbSearch) openWorkers(open uint16) int {
	workers := 0
	for i := 0; i < len(s.loads); i++ {
		if open&(uint16(1)<<i) != 0 && s.loads[i].Profile.Workers > workers {
			workers = s.loads[i].Profile.Workers
		}
	}
	return workers
}

// peakWorkersOf replays a complete sequence for the worker dimension.
func (s *bbSearch) peakWorkersOf(seq []int) int {
	var open uint16
	peak := 0
	for _, ev := range seq {
		bit := uint16(1) << (ev / 2)
		if ev%2 == 0 {
			open |= bit
		} else {
			open &^= bit
		}
		if w := s.openWorkers(open); w > peak {
			peak = w
		}
	}
	return peak
}

// greedySequence processes bookings in arrival order. Sequential FIFO
// fulfilment is the default policy; a booking is only carried
// concurrently with already-open ones when the combined load stays
// within the sequential baseline peak, so interleaving can never be
// worse than completing bookings one at a time.
func greedySequence(loads []BookingLoad, ceiling model.CapacityCeiling, costFn CostFunc) SequenceResult {
	stats := SearchStats{Algorithm: "greedy"}

	// Baseline: the largest single booking in each dimension.
	var baseVol, baseWt float64
	baseWorkers := 0
	for _, bl := range loads {
		p := bl.Profile
		baseVol = math.Max(baseVol, p.VolumeM3)
		baseWt = math.Max(baseWt, p.WeightKg)
		if p.Workers > baseWorkers {
			baseWorkers = p.Workers
		}
		if !withinCeiling(p.VolumeM3, p.WeightKg, p.Workers, ceiling) {
			// This booking cannot ride the tier's vehicle at all.
			return SequenceResult{Stops: fifoStops(loads), Feasible: false, Stats: stats}
		}
	}

	stops := make([]model.Stop, 0, 2*len(loads))
	var open []BookingLoad
	var curVol, curWt float64
	var lastAddr model.Address

	closeAll := func() {
		// Emit dropoffs nearest-first from the current position
		// (erenceh-style greedy step); booking order breaks ties.
		for len(open) > 0 {
			best := 0
			bestCost := math.Inf(1)
			for i, bl := range open {
				c := costFn(lastAddr, bl.Booking.Delivery)
				if c < bestCost {
					best, bestCost = i, c
				}
			}
			bl := open[best]
			open = append(open[:best], open[best+1:]...)
			stops = append(stops, bl.dropoffStop())
			curVol -= bl.Profile.VolumeM3
			curWt -= bl.Profile.WeightKg
			lastAddr = bl.Booking.Delivery
			stats.Explored++
		}
		curVol, curWt = snapZero(curVol), snapZero(curWt)
	}

	for _, bl := range loads {
		p := bl.Profile
		fitsBaseline := curVol+p.VolumeM3 <= baseVol+loadEps && curWt+p.WeightKg <= baseWt+loadEps
		if len(open) > 0 && !fitsBaseline {
			closeAll()
		}
		stops = append(stops, bl.pickupStop())
		open = append(open, bl)
		curVol += p.VolumeM3
		curWt += p.WeightKg
		lastAddr = bl.Booking.Pickup
		stats.Explored++
	}
	closeAll()

	return SequenceResult{Stops: stops, Feasible: true, Stats: stats}
}
