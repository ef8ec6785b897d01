package orbital

import (
	"fmt"
	"math"
	"time"

	"github.com/gonum/floats"
)

const (
	eccentricityε = 5e-5                         // 0.00005
	angleε        = (5e-3 / 360) * (2 * math.Pi) // 0.005 degrees
)

// Elements is a derived, immutable snapshot of the classical orbital
// elements of an instantaneous {R, V} state about a central mass. Position
// vectors are expressed relative to the central body; the caller offsets
// them by the central body's position for display.
type Elements struct {
	SemiMajorAxis   float64
	Eccentricity    float64
	Inclination     float64 // radians, from the reference plane normal ẑ
	RAAN            float64 // radians, right ascension of the ascending node
	Apogee          []float64
	Perigee         []float64
	ApogeeDistance  float64
	PerigeeDistance float64
	Period          time.Duration // only meaningful for e < 1, zero past the Duration range
	PeriodSeconds   float64       // exact period in seconds, survives Duration overflow
	IsCircular      bool          // apsides collapse, do not render them as distinct points
	IsValid         bool          // false on degenerate input, consumers must skip the set
}

func (el Elements) String() string {
	if !el.IsValid {
		return "elements (invalid)"
	}
	return fmt.Sprintf("a=%.1f e=%.4f i=%.3f Ω=%.3f rA=%.1f rP=%.1f", el.SemiMajorAxis, el.Eccentricity, Rad2deg(el.Inclination), Rad2deg(el.RAAN), el.ApogeeDistance, el.PerigeeDistance)
}

// Hyperbolic returns whether this element set describes an unbound orbit.
func (el Elements) Hyperbolic() bool {
	return el.Eccentricity >= 1 || el.SemiMajorAxis <= 0
}

// ComputeElements derives the classical orbital elements from the position
// and velocity relative to a central mass, following Vallado's RV2COE.
// Degenerate input (zero R or V, non-positive central mass, non-finite
// state) yields IsValid=false rather than an error: consumers skip the set.
func ComputeElements(R, V []float64, centralMass float64) (el Elements) {
	if centralMass <= 0 || !finite(R) || !finite(V) {
		return
	}
	r := norm(R)
	v := norm(V)
	if floats.EqualWithinAbs(r, 0, 1e-12) || floats.EqualWithinAbs(v, 0, 1e-12) {
		return
	}
	μ := G * centralMass
	hVec := cross(R, V)
	n := cross([]float64{0, 0, 1}, hVec)
	ξ := (v*v)/2 - μ/r
	a := -μ / (2 * ξ)
	eVec := make([]float64, 3)
	for i := 0; i < 3; i++ {
		eVec[i] = ((v*v-μ/r)*R[i] - dot(R, V)*V[i]) / μ
	}
	e := norm(eVec)
	if math.IsNaN(a) || math.IsNaN(e) {
		return
	}

	el.SemiMajorAxis = a
	el.Eccentricity = e
	el.IsCircular = e < eccentricityε

	if hNorm := norm(hVec); hNorm > 1e-12 {
		el.Inclination = math.Acos(hVec[2] / hNorm)
	}
	if nNorm := norm(n); nNorm > 1e-12 {
		Ω := math.Acos(n[0] / nNorm)
		if n[1] < 0 {
			Ω = 2*math.Pi - Ω
		}
		el.RAAN = Ω
	} // Equatorial orbits have no node: leave RAAN at zero.

	// Apsis direction. A circular orbit has no eccentricity vector to speak
	// of, so the apsides collapse onto the current radial direction.
	ê := unit(eVec)
	if el.IsCircular {
		ê = unit(R)
	}
	rP := a * (1 - e)
	el.PerigeeDistance = rP
	el.Perigee = []float64{ê[0] * rP, ê[1] * rP, ê[2] * rP}

	if e < 1 && a > 0 {
		rA := a * (1 + e)
		el.ApogeeDistance = rA
		el.Apogee = []float64{-ê[0] * rA, -ê[1] * rA, -ê[2] * rA}
		// The time package does not trivially handle fractions of a second,
		// so let's compute this in a convoluted way...
		seconds := 2 * math.Pi * math.Sqrt(math.Pow(a, 3)/μ)
		el.PeriodSeconds = seconds
		// A period past the ~292 year Duration range keeps Period at zero;
		// budget policy reads PeriodSeconds and is unaffected.
		if duration, err := time.ParseDuration(fmt.Sprintf("%.6fs", seconds)); err == nil {
			el.Period = duration
		}
	}

	el.IsValid = true
	return
}
