package api

import (
	"fmt"

	"vanplan/internal/model"
)

func validateBooking(b model.BookingRequest) error {
	if b.ID == "" {
		return fmt.Errorf("booking id is required")
	}
	if len(b.ItemIDs) == 0 {
		return fmt.Errorf("booking %s: at least one item is required", b.ID)
	}
	if b.Pickup.Postcode == "" && b.Pickup.Location == nil {
		return fmt.Errorf("booking %s: pickup needs a postcode or location", b.ID)
	}
	if b.Delivery.Postcode == "" && b.Delivery.Location == nil {
		return fmt.Errorf("booking %s: delivery needs a postcode or location", b.ID)
	}
	if b.Window != nil && b.Window.End.Before(b.Window.Start) {
		return fmt.Errorf("booking %s: window end before start", b.ID)
	}
	return nil
}

func validatePlanRequest(req *planRequest) error {
	if len(req.Bookings) == 0 {
		return fmt.Errorf("at least one booking is required")
	}
	seen := map[string]struct{}{}
	for _, b := range req.Bookings {
		if err := validateBooking(b); err != nil {
			return err
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("duplicate booking id: %s", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	if req.Tier != "" {
		switch model.RouteType(req.Tier) {
		case model.RouteEconomy, model.RouteStandard, model.RouteExpress:
		default:
			return fmt.Errorf("invalid tier: %s", req.Tier)
		}
	}
	if req.Ceiling != nil && (req.Ceiling.VolumeM3 < 0 || req.Ceiling.WeightKg < 0 || req.Ceiling.WorkerSeats < 0) {
		return fmt.Errorf("ceiling dimensions must be >= 0")
	}
	return nil
}

func validateAvailabilityRequest(req *availabilityRequest) error {
	if err := validateBooking(req.Booking); err != nil {
		return err
	}
	switch req.Urgency {
	case "", model.UrgencyRelaxed, model.UrgencyUrgent:
	default:
		return fmt.Errorf("invalid urgency: %s (allowed: relaxed,urgent)", req.Urgency)
	}
	return nil
}

func validateSubscriptionRequest(req *model.SubscriptionRequest) error {
	if req.URL == "" {
		return fmt.Errorf("url is required")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("at least one event type is required")
	}
	allowed := map[string]struct{}{"plan.recorded": {}, "availability.decided": {}, "corridor.updated": {}}
	for _, e := range req.Events {
		if _, ok := allowed[e]; !ok {
			return fmt.Errorf("unknown event type: %s (allowed: plan.recorded,availability.decided,corridor.updated)", e)
		}
	}
	return nil
}
