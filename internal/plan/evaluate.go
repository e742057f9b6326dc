package plan

import (
	"vanplan/internal/model"
)

// Evaluate replays a finalized route once and produces its capacity
// analysis against a tier ceiling. Side-effect free; callable any number
// of times on the same route.
func Evaluate(route model.Route, ceiling model.CapacityCeiling) (model.CapacityAnalysis, error) {
	legs, err := ReplayStops(route.Stops)
	if err != nil {
		return model.CapacityAnalysis{}, err
	}

	a := model.CapacityAnalysis{TotalStops: len(legs), Legs: legs}
	for _, leg := range legs {
		switch leg.StopType {
		case model.StopPickup:
			a.PickupStops++
		case model.StopDropoff:
			a.DropoffStops++
		}
		if leg.CumulativeVolumeM3 > a.PeakVolumeM3 {
			a.PeakVolumeM3 = leg.CumulativeVolumeM3
		}
		if leg.CumulativeWeightKg > a.PeakWeightKg {
			a.PeakWeightKg = leg.CumulativeWeightKg
		}
		if leg.WorkersRequired > a.PeakWorkers {
			a.PeakWorkers = leg.WorkersRequired
		}
	}
	a.VolumeUtilization = utilization(a.PeakVolumeM3, ceiling.VolumeM3)
	a.WeightUtilization = utilization(a.PeakWeightKg, ceiling.WeightKg)
	a.WorkerUtilization = utilization(float64(a.PeakWorkers), float64(ceiling.WorkerSeats))
	return a, nil
}

// Feasible applies the ceiling to an analysis: every peak dimension must
// fit. A non-positive ceiling dimension is unconstrained.
func Feasible(a model.CapacityAnalysis, c model.CapacityCeiling) bool {
	return withinCeiling(a.PeakVolumeM3, a.PeakWeightKg, a.PeakWorkers, c)
}

// utilization is peak over ceiling clamped to [0,1]; an unconstrained
// dimension reports zero.
func utilization(peak, ceiling float64) float64 {
	if ceiling <= 0 {
		return 0
	}
	u := peak / ceiling
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}
