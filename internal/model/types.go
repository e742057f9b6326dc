package model

import "time"

// Core domain types for the capacity planner and availability engine.

// ItemDefinition is an immutable, catalog-sourced description of a
// transportable item. Loaded once per catalog version, never mutated.
type ItemDefinition struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Category          string  `json:"category,omitempty"`
	VolumeM3          float64 `json:"volumeM3"`
	WeightKg          float64 `json:"weightKg"`
	WorkersRequired   int     `json:"workersRequired"`
	DismantleRequired bool    `json:"dismantleRequired,omitempty"`
	DismantleMinutes  int     `json:"dismantleMinutes,omitempty"`
	ReassemblyMinutes int     `json:"reassemblyMinutes,omitempty"`
	FitsStandardVan   bool    `json:"fitsStandardVan"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Address struct {
	Line     string    `json:"line,omitempty"`
	Postcode string    `json:"postcode"`
	Location *GeoPoint `json:"location,omitempty"`
}

type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two windows share any instant.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return !w.End.Before(o.Start) && !o.End.Before(w.Start)
}

// BookingRequest is the planning input produced by the upstream booking
// flow. Immutable for the duration of a planning run.
type BookingRequest struct {
	ID       string      `json:"id"`
	Pickup   Address     `json:"pickup"`
	Delivery Address     `json:"delivery"`
	ItemIDs  []string    `json:"itemIds"`
	Window   *TimeWindow `json:"window,omitempty"`
}

// LoadProfile aggregates one booking's items against a catalog snapshot.
// Derived, never persisted on its own.
type LoadProfile struct {
	BookingID       string  `json:"bookingId"`
	VolumeM3        float64 `json:"volumeM3"`
	WeightKg        float64 `json:"weightKg"`
	Workers         int     `json:"workers"`
	HandlingMinutes int     `json:"handlingMinutes"`
}

// StopType is a closed variant: every stop is a pickup or a dropoff.
type StopType string

const (
	StopPickup  StopType = "pickup"
	StopDropoff StopType = "dropoff"
)

// Stop is one event in a route. It belongs to exactly one booking and
// carries the items added (pickup) or removed (dropoff) there.
type Stop struct {
	BookingID string           `json:"bookingId"`
	Type      StopType         `json:"type"`
	Address   Address          `json:"address"`
	Items     []ItemDefinition `json:"items"`
}

// CapacityCeiling is the maximum load a tier's vehicle may carry at any
// instant across all dimensions.
type CapacityCeiling struct {
	VolumeM3    float64 `json:"volumeM3"`
	WeightKg    float64 `json:"weightKg"`
	WorkerSeats int     `json:"workerSeats"`
}

// Route is an ordered stop sequence plus the ceiling it was evaluated
// against. Once finalized it is read-only.
type Route struct {
	ID      string          `json:"id"`
	Stops   []Stop          `json:"stops"`
	Ceiling CapacityCeiling `json:"ceiling"`
}

// LegState is the load snapshot taken immediately after one stop.
type LegState struct {
	StopType           StopType `json:"stopType"`
	BookingID          string   `json:"bookingId"`
	CumulativeVolumeM3 float64  `json:"cumulativeVolumeM3"`
	CumulativeWeightKg float64  `json:"cumulativeWeightKg"`
	WorkersRequired    int      `json:"workersRequired"`
	ItemsAdded         []string `json:"itemsAdded,omitempty"`
	ItemsRemoved       []string `json:"itemsRemoved,omitempty"`
}

// CapacityAnalysis aggregates a finalized route. Recomputed on demand,
// never cached across routes.
type CapacityAnalysis struct {
	TotalStops        int        `json:"totalStops"`
	PickupStops       int        `json:"pickupStops"`
	DropoffStops      int        `json:"dropoffStops"`
	Legs              []LegState `json:"legs"`
	PeakVolumeM3      float64    `json:"peakVolumeM3"`
	PeakWeightKg      float64    `json:"peakWeightKg"`
	PeakWorkers       int        `json:"peakWorkers"`
	VolumeUtilization float64    `json:"volumeUtilization"`
	WeightUtilization float64    `json:"weightUtilization"`
	WorkerUtilization float64    `json:"workerUtilization"`
}

// PlanResult is the planner's output for booking confirmation and
// analytics snapshot recording.
type PlanResult struct {
	Feasible bool             `json:"isFeasible"`
	Route    *Route           `json:"route,omitempty"`
	Analysis CapacityAnalysis `json:"capacityAnalysis"`
}

// RouteType is the fulfillment tier reported by the availability engine.
type RouteType string

const (
	RouteEconomy  RouteType = "economy"
	RouteStandard RouteType = "standard"
	RouteExpress  RouteType = "express"
)

// Urgency is caller-supplied and only decides the standalone tier when a
// shared (economy) route is not available.
type Urgency string

const (
	UrgencyRelaxed Urgency = "relaxed"
	UrgencyUrgent  Urgency = "urgent"
)

type AvailabilityResult struct {
	RouteType         RouteType `json:"route_type"`
	NextAvailableDate string    `json:"next_available_date"`
	RouteID           string    `json:"route_id,omitempty"`
	CorridorID        string    `json:"corridorId,omitempty"`
}

type CorridorStatus string

const (
	CorridorOpen   CorridorStatus = "open"
	CorridorClosed CorridorStatus = "closed"
)

// SubscriptionRequest registers a webhook consumer for planner events
// (plan.recorded, availability.decided, corridor.updated).
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

// Corridor groups accepted bookings that share geography and a departure
// window on a tentative shared vehicle. Version increments on every
// committed append and guards optimistic concurrency.
type Corridor struct {
	ID            string           `json:"id"`
	Version       int              `json:"version"`
	OriginArea    string           `json:"originArea"`
	DestArea      string           `json:"destArea"`
	Window        TimeWindow       `json:"window"`
	DepartureDate string           `json:"departureDate"`
	VehicleID     string           `json:"vehicleId,omitempty"`
	Ceiling       CapacityCeiling  `json:"ceiling"`
	Bookings      []BookingRequest `json:"bookings"`
	RouteID       string           `json:"routeId,omitempty"`
	Status        CorridorStatus   `json:"status"`
}
