package geo

import (
	"math"
	"sort"

	"swapstyle-service/internal/model"
)

const earthRadiusMeters = 6371000

// unfiltered radius: at 50km and up the whole catalog is returned as-is.
const maxFilterRadiusKm = 50

// Distance returns the great-circle distance between two coordinates in
// meters (haversine).
func Distance(a, b model.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// FilterWithinRadius returns the items within radiusKm of origin. A radius of
// 50km or more means "no filter" and the input slice is returned unmodified.
// Items without a populated coordinate read as (0,0); callers are responsible
// for populating coordinates before insertion.
func FilterWithinRadius(items []model.Item, origin model.Coordinate, radiusKm float64) []model.Item {
	if radiusKm >= maxFilterRadiusKm {
		return items
	}
	var out []model.Item
	for _, it := range items {
		if Distance(it.Coord(), origin) <= radiusKm*1000 {
			out = append(out, it)
		}
	}
	return out
}

// SortByProximity returns the items ordered by ascending distance from
// origin. The input slice is not modified; equal distances keep their
// original order.
func SortByProximity(items []model.Item, origin model.Coordinate) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return Distance(out[i].Coord(), origin) < Distance(out[j].Coord(), origin)
	})
	return out
}
