package plan

import (
	"vanplan/internal/catalog"
	"vanplan/internal/model"
)

// BookingLoad is a booking resolved against one catalog snapshot: its
// aggregated profile plus the concrete item definitions its two stops
// will carry.
type BookingLoad struct {
	Booking model.BookingRequest
	Profile model.LoadProfile
	Items   []model.ItemDefinition
}

// NormalizeLoad aggregates a booking's item list into a LoadProfile.
// Any unresolved item id fails the whole booking; no partial profile is
// ever produced. Pure and deterministic for a given snapshot.
func NormalizeLoad(b model.BookingRequest, snap *catalog.Snapshot) (model.LoadProfile, error) {
	prof := model.LoadProfile{BookingID: b.ID}
	for _, id := range b.ItemIDs {
		def, ok := snap.Lookup(id)
		if !ok {
			return model.LoadProfile{}, unknownItem(b.ID, id)
		}
		prof.VolumeM3 += def.VolumeM3
		prof.WeightKg += def.WeightKg
		if def.WorkersRequired > prof.Workers {
			prof.Workers = def.WorkersRequired
		}
		prof.HandlingMinutes += def.DismantleMinutes + def.ReassemblyMinutes
	}
	return prof, nil
}

// ResolveBooking normalizes a booking and materializes its item
// definitions for stop construction.
func ResolveBooking(b model.BookingRequest, snap *catalog.Snapshot) (BookingLoad, error) {
	prof, err := NormalizeLoad(b, snap)
	if err != nil {
		return BookingLoad{}, err
	}
	items := make([]model.ItemDefinition, 0, len(b.ItemIDs))
	for _, id := range b.ItemIDs {
		def, _ := snap.Lookup(id)
		items = append(items, def)
	}
	return BookingLoad{Booking: b, Profile: prof, Items: items}, nil
}

// ResolveBookings resolves a whole planning input, failing fast on the
// first unplannable booking.
func ResolveBookings(bookings []model.BookingRequest, snap *catalog.Snapshot) ([]BookingLoad, error) {
	loads := make([]BookingLoad, 0, len(bookings))
	for _, b := range bookings {
		bl, err := ResolveBooking(b, snap)
		if err != nil {
			return nil, err
		}
		loads = append(loads, bl)
	}
	return loads, nil
}

func (bl BookingLoad) pickupStop() model.Stop {
	return model.Stop{BookingID: bl.Booking.ID, Type: model.StopPickup, Address: bl.Booking.Pickup, Items: bl.Items}
}

func (bl BookingLoad) dropoffStop() model.Stop {
	return model.Stop{BookingID: bl.Booking.ID, Type: model.StopDropoff, Address: bl.Booking.Delivery, Items: bl.Items}
}
