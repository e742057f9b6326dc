package plan

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vanplan/internal/catalog"
	"vanplan/internal/model"
)

// Planner is the planning entry point used by the API and by the
// availability engine. It is stateless apart from its injected
// collaborators, so independent planning calls run fully in parallel.
type Planner struct {
	Catalog    catalog.Provider
	Cost       CostFunc
	ExactLimit int
}

func NewPlanner(p catalog.Provider) *Planner {
	return &Planner{Catalog: p, Cost: HaversineCost, ExactLimit: DefaultExactLimit}
}

// Plan sequences the given bookings under the tier ceiling and evaluates
// the result. A ceiling that no ordering can satisfy is not an error: it
// comes back as Feasible=false with the best-attempt analysis attached.
func (p *Planner) Plan(ctx context.Context, bookings []model.BookingRequest, ceiling model.CapacityCeiling) (model.PlanResult, SearchStats, error) {
	snap, err := p.Catalog.Snapshot(ctx)
	if err != nil {
		return model.PlanResult{}, SearchStats{}, fmt.Errorf("catalog snapshot: %w", err)
	}
	loads, err := ResolveBookings(bookings, snap)
	if err != nil {
		return model.PlanResult{}, SearchStats{}, err
	}

	seq := Sequence(loads, ceiling, p.Cost, p.ExactLimit)
	route := model.Route{ID: "rt_" + uuid.New().String(), Stops: seq.Stops, Ceiling: ceiling}
	analysis, err := Evaluate(route, ceiling)
	if err != nil {
		return model.PlanResult{}, seq.Stats, err
	}

	res := model.PlanResult{
		Feasible: seq.Feasible && Feasible(analysis, ceiling),
		Analysis: analysis,
	}
	// The route is attached either way so the caller can see by how much
	// an infeasible plan misses the ceiling.
	res.Route = &route
	return res, seq.Stats, nil
}
