package orbital

import "math"

// The unit scale is inherited from the host simulation and is *not* SI: the
// gravitational constant below pairs with masses on the order of 1e21 and
// distances on the order of 1e3. Keep them consistent or orbits will be
// nonsense.
const (
	// G is the gravitational constant in the simulation unit scale.
	G = 6.67430e-23
	// minDistSq guards the inverse-square singularity at near-zero separation.
	minDistSq = 1e-4
	// maxAccel caps the per-source acceleration to damp near-contact instability.
	maxAccel = 1e8
	// massε is the threshold below which a body is a static massless placeholder.
	massε = 1e-6
)

// Gravity returns the gravitational acceleration at pos from every body of
// the snapshot except selfID. Massless placeholders do not attract. Central
// bodies contribute like any other source; whether the receiver translates
// is the session's decision, not the force model's.
func Gravity(pos []float64, selfID int, snap Snapshot) []float64 {
	acc := make([]float64, 3)
	for _, b := range snap {
		if b.ID == selfID || b.Mass <= massε {
			continue
		}
		dir := []float64{b.R[0] - pos[0], b.R[1] - pos[1], b.R[2] - pos[2]}
		distSq := dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2]
		if distSq < minDistSq {
			distSq = minDistSq
		}
		mag := G * b.Mass / distSq
		mag = math.Min(mag, maxAccel)
		dist := math.Sqrt(distSq)
		for i := 0; i < 3; i++ {
			acc[i] += (mag / dist) * dir[i]
		}
	}
	return acc
}

// twoBodyDeriv builds the shared {position, velocity} derivative used by the
// real-time tick, the trajectory predictor and every integrator variant: one
// force model, parameterized by the frozen snapshot and a constant external
// acceleration over the step.
func twoBodyDeriv(selfID int, snap Snapshot, extraAcc []float64) func(s []float64) []float64 {
	return func(s []float64) []float64 {
		sDot := make([]float64, 6)
		acc := Gravity(s[0:3], selfID, snap)
		for i := 0; i < 3; i++ {
			sDot[i] = s[i+3]
			sDot[i+3] = acc[i] + extraAcc[i]
		}
		return sDot
	}
}

// CircularVelocity returns the tangential speed of a circular orbit of radius
// r about a central mass m.
func CircularVelocity(m, r float64) float64 {
	return math.Sqrt(G * m / r)
}
