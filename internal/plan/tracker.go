package plan

import (
	"math"

	"vanplan/internal/model"
)

// loadEps absorbs float drift when identical item loads are added and
// later subtracted; cumulative values inside it snap to exactly zero.
const loadEps = 1e-9

// ReplayStops replays an ordered stop sequence and produces one LegState
// per stop. It holds no search or decision logic: the sequencer uses it
// to score candidates and the evaluator to build the final analysis.
func ReplayStops(stops []model.Stop) ([]model.LegState, error) {
	legs := make([]model.LegState, 0, len(stops))
	onboard := map[string][]model.ItemDefinition{}
	var cumVol, cumWt float64

	for i, s := range stops {
		leg := model.LegState{StopType: s.Type, BookingID: s.BookingID}
		switch s.Type {
		case model.StopPickup:
			for _, it := range s.Items {
				cumVol += it.VolumeM3
				cumWt += it.WeightKg
				leg.ItemsAdded = append(leg.ItemsAdded, it.ID)
			}
			onboard[s.BookingID] = s.Items
		case model.StopDropoff:
			items, ok := onboard[s.BookingID]
			if !ok {
				return nil, negativeLoad(s.BookingID, i)
			}
			for _, it := range items {
				cumVol -= it.VolumeM3
				cumWt -= it.WeightKg
				leg.ItemsRemoved = append(leg.ItemsRemoved, it.ID)
			}
			delete(onboard, s.BookingID)
		default:
			return nil, negativeLoad(s.BookingID, i)
		}
		if cumVol < -loadEps || cumWt < -loadEps {
			return nil, negativeLoad(s.BookingID, i)
		}
		cumVol = snapZero(cumVol)
		cumWt = snapZero(cumWt)
		leg.CumulativeVolumeM3 = cumVol
		leg.CumulativeWeightKg = cumWt
		leg.WorkersRequired = maxOnboardWorkers(onboard)
		legs = append(legs, leg)
	}
	return legs, nil
}

// maxOnboardWorkers is the crew size needed while the current set of
// bookings is in the vehicle: the largest per-item requirement onboard.
func maxOnboardWorkers(onboard map[string][]model.ItemDefinition) int {
	workers := 0
	for _, items := range onboard {
		for _, it := range items {
			if it.WorkersRequired > workers {
				workers = it.WorkersRequired
			}
		}
	}
	return workers
}

func snapZero(v float64) float64 {
	if math.Abs(v) < loadEps {
		return 0
	}
	return v
}
