package geo

import (
	"math"

	"homescore/internal/model"
)

// EarthRadiusMiles is the mean Earth radius used by DistanceMiles.
const EarthRadiusMiles = 3958.8

// DistanceMiles returns the great-circle (haversine) distance between a and b.
func DistanceMiles(a, b model.Point) float64 {
	lat1, lon1 := radians(a.Lat), radians(a.Lon)
	lat2, lon2 := radians(b.Lat), radians(b.Lon)
	dlat := lat2 - lat1
	dlon := lon2 - lon1
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// Box is a lat/lon rectangle that contains every point within a radius of its
// centre. Used to prefilter rows before the exact haversine check.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns a Box covering radiusMiles around p.
func BoundingBox(p model.Point, radiusMiles float64) Box {
	dLat := degrees(radiusMiles / EarthRadiusMiles)
	cosLat := math.Cos(radians(p.Lat))
	dLon := 180.0
	if cosLat > 1e-9 {
		dLon = math.Min(180, degrees(radiusMiles/(EarthRadiusMiles*cosLat)))
	}
	return Box{
		MinLat: p.Lat - dLat,
		MaxLat: p.Lat + dLat,
		MinLon: p.Lon - dLon,
		MaxLon: p.Lon + dLon,
	}
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p model.Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
