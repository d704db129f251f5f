package geo

import (
	"math"
	"testing"

	"homescore/internal/model"
)

func TestDistanceMiles(t *testing.T) {
	p := model.Point{Lat: 40.12, Lon: -75.34}
	if d := DistanceMiles(p, p); d != 0 {
		t.Fatalf("distance to self = %v; want 0", d)
	}
	// One degree of latitude is ~69.09 miles on a 3958.8 mile sphere.
	q := model.Point{Lat: 41.12, Lon: -75.34}
	d := DistanceMiles(p, q)
	if math.Abs(d-69.09) > 0.05 {
		t.Fatalf("one degree latitude = %.3f miles; want ~69.09", d)
	}
	if DistanceMiles(q, p) != d {
		t.Fatalf("distance is not symmetric")
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	centre := model.Point{Lat: 40.0, Lon: -75.0}
	box := BoundingBox(centre, 1.0)
	for _, bearing := range []float64{0, 45, 90, 135, 180, 225, 270, 315} {
		// Step ~0.99 miles in each direction.
		rad := bearing * math.Pi / 180
		dLat := 0.99 / EarthRadiusMiles * math.Cos(rad) * 180 / math.Pi
		dLon := 0.99 / (EarthRadiusMiles * math.Cos(centre.Lat*math.Pi/180)) * math.Sin(rad) * 180 / math.Pi
		p := model.Point{Lat: centre.Lat + dLat, Lon: centre.Lon + dLon}
		if !box.Contains(p) {
			t.Errorf("bearing %.0f: point %+v outside box %+v", bearing, p, box)
		}
	}
	if box.Contains(model.Point{Lat: 41, Lon: -75}) {
		t.Errorf("point 69 miles away should be outside the box")
	}
}
