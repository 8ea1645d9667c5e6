package geomath

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// squareKilometerRing is roughly 1km x 1km at the equator, where one
// degree of longitude is ~111.32km.
func squareKilometerRing() orb.Ring {
	const d = 1.0 / 111.31949079327357
	return orb.Ring{
		{0, 0},
		{d, 0},
		{d, d},
		{0, d},
		{0, 0},
	}
}

func TestAreaOneSquareKilometer(t *testing.T) {
	acres := AreaAcres(squareKilometerRing())
	const want = 247.105
	if math.Abs(acres-want)/want > 0.01 {
		t.Fatalf("1 km^2 = %.3f acres, want within 1%% of %.3f", acres, want)
	}
}

func TestAreaDegenerateRings(t *testing.T) {
	cases := []struct {
		name string
		ring orb.Ring
	}{
		{"nil", nil},
		{"single", orb.Ring{{0, 0}}},
		{"two points", orb.Ring{{0, 0}, {1, 0}}},
		{"collinear", orb.Ring{{0, 0}, {0.001, 0}, {0.002, 0}, {0, 0}}},
	}
	for _, tc := range cases {
		if a := Area(tc.ring); a > 1.0 {
			t.Errorf("%s ring: area = %f, want ~0", tc.name, a)
		}
	}
}

func TestAreaWindingInsensitive(t *testing.T) {
	r := squareKilometerRing()
	rev := make(orb.Ring, len(r))
	for i, p := range r {
		rev[len(r)-1-i] = p
	}
	if a, b := Area(r), Area(rev); math.Abs(a-b) > 1e-6 {
		t.Errorf("area depends on winding: %f vs %f", a, b)
	}
}

func TestCentroidExcludesClosingVertex(t *testing.T) {
	open := orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	closed := append(orb.Ring{}, open...)
	closed = append(closed, open[0])

	co := Centroid(open)
	cc := Centroid(closed)
	want := orb.Point{1, 1}
	if co != want {
		t.Errorf("open ring centroid = %v, want %v", co, want)
	}
	if cc != want {
		t.Errorf("closed ring centroid = %v, want %v (closing vertex must not double-count)", cc, want)
	}
}

func TestCentroidEmpty(t *testing.T) {
	if c := Centroid(nil); c != (orb.Point{}) {
		t.Errorf("empty ring centroid = %v, want zero point", c)
	}
}

func TestDistanceOneDegreeAtEquator(t *testing.T) {
	d := Distance(orb.Point{0, 0}, orb.Point{1, 0})
	const want = 111319.49
	if math.Abs(d-want)/want > 0.01 {
		t.Errorf("1 degree at equator = %.1f m, want within 1%% of %.1f", d, want)
	}
}

func TestClose(t *testing.T) {
	open := orb.Ring{{0, 0}, {1, 0}, {1, 1}}
	closed := Close(open)
	if len(closed) != 4 || closed[3] != closed[0] {
		t.Fatalf("Close did not append closing vertex: %v", closed)
	}
	if again := Close(closed); len(again) != len(closed) {
		t.Errorf("Close on a closed ring must be a no-op, got %v", again)
	}
	short := orb.Ring{{0, 0}, {1, 1}}
	if got := Close(short); len(got) != 2 {
		t.Errorf("Close on a short ring must be a no-op, got %v", got)
	}
}

func TestBoundEmpty(t *testing.T) {
	if b := Bound(nil); b != (orb.Bound{}) {
		t.Errorf("empty ring bound = %v, want zero bound", b)
	}
}
