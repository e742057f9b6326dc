package plan

import (
	"math"

	"vanplan/internal/model"
)

// CostFunc scores travel between two stop addresses. It is the
// sequencer's tie-break objective among equally peak-minimal orderings;
// the address/geometry collaborator supplies real values, the default
// below is great-circle distance when coordinates are present.
type CostFunc func(from, to model.Address) float64

// HaversineCost returns meters between two located addresses, zero when
// either side has no coordinates.
func HaversineCost(from, to model.Address) float64 {
	if from.Location == nil || to.Location == nil {
		return 0
	}
	return haversineMeters(from.Location.Lat, from.Location.Lng, to.Location.Lat, to.Location.Lng)
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
