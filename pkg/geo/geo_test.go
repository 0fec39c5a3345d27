package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{
			name: "Same Point",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 0},
			want: 0,
		},
		{
			name: "London to Paris",
			p1:   Point{Lat: 51.5074, Lon: -0.1278},
			p2:   Point{Lat: 48.8566, Lon: 2.3522},
			want: 344000, // Approx 344km
		},
		{
			name: "Equator 1 degree",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 1},
			want: 111195, // 2*pi*R/360
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p1, tt.p2)
			// Allow 1% margin of error due to float precision/earth radius var
			margin := tt.want * 0.01
			if tt.want == 0 {
				if got != 0 {
					t.Errorf("Distance() = %v, want 0", got)
				}
				return
			}
			if math.Abs(got-tt.want) > margin {
				t.Errorf("Distance() = %v, want %v (+/- %v)", got, tt.want, margin)
			}
		})
	}
}

func TestPathLength(t *testing.T) {
	pts := []Point{{0, 0}, {0, 1}, {0, 2}}
	got := PathLength(pts)
	want := Distance(pts[0], pts[1]) + Distance(pts[1], pts[2])
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("PathLength() = %v, want %v", got, want)
	}
	if PathLength(nil) != 0 || PathLength(pts[:1]) != 0 {
		t.Error("PathLength of fewer than 2 points should be 0")
	}
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	start := Point{Lat: 47.6, Lon: -122.3}
	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		dest := DestinationPoint(start, 1000, bearing)
		if d := Distance(start, dest); math.Abs(d-1000) > 0.5 {
			t.Errorf("bearing %v: distance = %v, want 1000", bearing, d)
		}
		if b := Bearing(start, dest); math.Abs(NormalizeAngle(b-bearing)) > 0.1 {
			t.Errorf("bearing %v: got bearing %v", bearing, b)
		}
	}
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {190, -170}, {-190, 170}, {540, 180}, {-45, -45},
	}
	for _, tt := range tests {
		if got := NormalizeAngle(tt.in); got != tt.want {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPoint_Orb(t *testing.T) {
	p := Point{Lat: 12.5, Lon: -3.25}
	o := p.Orb()
	if o.Lon() != -3.25 || o.Lat() != 12.5 {
		t.Errorf("Orb() = %v, want lon/lat order", o)
	}
	if FromOrb(o) != p {
		t.Errorf("FromOrb(Orb()) = %v, want %v", FromOrb(o), p)
	}
	if (Point{Lat: 91}).Valid() {
		t.Error("lat 91 should be invalid")
	}
}

func TestPoint_Geohash(t *testing.T) {
	p := Point{Lat: 57.64911, Lon: 10.40744}
	if got := p.Geohash(11); got != "u4pruydqqvj" {
		t.Errorf("Geohash(11) = %q, want u4pruydqqvj", got)
	}
	if got := p.Geohash(CellPrecision); got != "u4pruyd" {
		t.Errorf("Geohash(CellPrecision) = %q, want u4pruyd", got)
	}
}
