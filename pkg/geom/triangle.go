// Package geom measures single triangles: side lengths, Heron area, aspect
// ratio and interior angles.
//
// Side i joins vertex i and vertex i+1 (mod 3), so it is the side not
// touching vertex i+2. Angle i is the angle between side i and side i+1,
// which sits at vertex i+1. AngleAt converts between the two indexings.
package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sides returns the three side lengths of the triangle (p0, p1, p2).
func Sides(p [3]v3.Vec) [3]float64 {
	var a [3]float64
	for i := 0; i < 3; i++ {
		a[i] = p[i].Sub(p[(i+1)%3]).Length()
	}
	return a
}

// SemiPerimeter returns half the perimeter.
func SemiPerimeter(a [3]float64) float64 {
	return (a[0] + a[1] + a[2]) / 2
}

// Area returns the Heron area. A negative radicand from rounding on a
// collinear triangle is clamped to zero.
func Area(a [3]float64) float64 {
	s := SemiPerimeter(a)
	r := s * (s - a[0]) * (s - a[1]) * (s - a[2])
	if r <= 0 {
		return 0
	}
	return math.Sqrt(r)
}

// AspectRatio returns a0*a1*a2 / (8*(s-a0)*(s-a1)*(s-a2)). It is 1 for an
// equilateral triangle and +Inf when the triangle is degenerate.
func AspectRatio(a [3]float64) float64 {
	s := SemiPerimeter(a)
	den := 8 * (s - a[0]) * (s - a[1]) * (s - a[2])
	if den <= 0 {
		return math.Inf(1)
	}
	return a[0] * a[1] * a[2] / den
}

// Angles returns the interior angles in radians, angle i lying between side
// i and side i+1. A zero-length side yields NaN for the two angles it
// borders.
func Angles(a [3]float64) [3]float64 {
	var ang [3]float64
	for i := 0; i < 3; i++ {
		l, r, opp := a[i], a[(i+1)%3], a[(i+2)%3]
		if l == 0 || r == 0 {
			ang[i] = math.NaN()
			continue
		}
		c := (l*l + r*r - opp*opp) / (2 * l * r)
		ang[i] = math.Acos(clamp(c, -1, 1))
	}
	return ang
}

// AngleAt returns the angle at vertex k from the output of Angles.
func AngleAt(ang [3]float64, k int) float64 {
	return ang[(k+2)%3]
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Triangle holds every measure of one triangle.
type Triangle struct {
	Sides       [3]float64
	Area        float64
	AspectRatio float64
	Angles      [3]float64 // radians, Angles[i] at vertex i+1
}

// Measure computes all measures of the triangle (p0, p1, p2).
func Measure(p [3]v3.Vec) Triangle {
	a := Sides(p)
	return Triangle{
		Sides:       a,
		Area:        Area(a),
		AspectRatio: AspectRatio(a),
		Angles:      Angles(a),
	}
}

// Degenerate reports whether the triangle has a zero-length side or zero
// area.
func (t Triangle) Degenerate() bool {
	return t.Area == 0 || t.Sides[0] == 0 || t.Sides[1] == 0 || t.Sides[2] == 0
}

// AngleAt returns the angle at vertex k.
func (t Triangle) AngleAt(k int) float64 {
	return AngleAt(t.Angles, k)
}
