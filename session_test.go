package orbital

import (
	"math"
	"testing"

	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/floats"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(NewRegistry(), DefaultConfig(), kitlog.NewNopLogger(), ExportConfig{})
}

// A satellite on a circular orbit must hold its altitude within one percent
// over a thousand fixed ticks.
func TestSessionCircularOrbit(t *testing.T) {
	s := newTestSession(t)
	planet := NewBody(1, "planet", testCentralMass, nil, nil, 60)
	planet.Central = true
	s.RegisterBody(planet)
	r := 837.1
	R, V := circularState(testCentralMass, r)
	sat := NewBody(2, "sat", 500, R, V, 1)
	s.RegisterBody(sat)

	for i := 0; i < 1000; i++ {
		s.Step(0.02)
	}
	alt := norm(sat.R)
	if math.Abs(alt-r)/r > 0.01 {
		t.Fatalf("altitude drifted to %f after 1000 ticks, started at %f", alt, r)
	}
	if s.Tick() != 1000 {
		t.Fatalf("tick counter %d", s.Tick())
	}
	if !floats.EqualWithinAbs(s.Elapsed(), 20, 1e-9) {
		t.Fatalf("elapsed %f", s.Elapsed())
	}
}

// One tick of prograde thrust must raise the apogee and leave the perigee
// side essentially where the burn happened.
func TestSessionProgradeThrustRaisesApogee(t *testing.T) {
	s := newTestSession(t)
	planet := NewBody(1, "planet", testCentralMass, nil, nil, 60)
	planet.Central = true
	s.RegisterBody(planet)
	r := 837.1
	R, V := circularState(testCentralMass, r)
	sat := NewBody(2, "sat", 500, R, V, 1)
	s.RegisterBody(sat)

	prograde := unit(sat.V)
	for i := range prograde {
		prograde[i] *= 0.1 * sat.Mass // a tenth of a g-unit, well under escape
	}
	s.ApplyThrust(sat, prograde)
	s.Step(0.02)

	if sat.Thrusting() {
		t.Fatal("pending thrust must be consumed by the tick")
	}
	el := ElementsAbout(sat.R, sat.V, s.Registry.Snapshot())
	if !el.IsValid {
		t.Fatalf("post-burn elements invalid: %s", el)
	}
	if el.ApogeeDistance <= r {
		t.Fatalf("prograde burn did not raise apogee: rA=%f", el.ApogeeDistance)
	}
}

func TestSessionThrustRejectsNonFinite(t *testing.T) {
	s := newTestSession(t)
	sat := NewBody(1, "sat", 500, []float64{100, 0, 0}, nil, 1)
	s.RegisterBody(sat)
	s.ApplyThrust(sat, []float64{math.NaN(), 0, 0})
	if sat.Thrusting() {
		t.Fatal("non-finite impulse must be dropped")
	}
}

func TestSessionCollisionLowerMassRemoved(t *testing.T) {
	s := newTestSession(t)
	var removed []*Body
	s.OnCollision(func(b *Body) { removed = append(removed, b) })
	heavy := NewBody(1, "heavy", 1e21, []float64{0, 0, 0}, nil, 10)
	light := NewBody(2, "light", 100, []float64{5, 0, 0}, nil, 10)
	s.RegisterBody(heavy)
	s.RegisterBody(light)
	s.Step(0.02)
	if _, ok := s.Registry.Body(2); ok {
		t.Fatal("lighter body must be removed on contact")
	}
	if _, ok := s.Registry.Body(1); !ok {
		t.Fatal("heavier body must survive")
	}
	if len(removed) != 1 || removed[0] != light {
		t.Fatalf("collision subscriber saw %+v", removed)
	}
}

func TestSessionCollisionEqualMassLowerIDSurvives(t *testing.T) {
	s := newTestSession(t)
	a := NewBody(3, "a", 100, []float64{0, 0, 0}, nil, 10)
	b := NewBody(7, "b", 100, []float64{5, 0, 0}, nil, 10)
	s.RegisterBody(a)
	s.RegisterBody(b)
	s.Step(0.02)
	if _, ok := s.Registry.Body(3); !ok {
		t.Fatal("on an equal-mass contact the lower ID survives")
	}
	if _, ok := s.Registry.Body(7); ok {
		t.Fatal("on an equal-mass contact the higher ID is removed")
	}
}

func TestSessionCentralPinned(t *testing.T) {
	s := newTestSession(t)
	planet := NewBody(1, "planet", testCentralMass, []float64{0, 0, 0}, []float64{1, 2, 3}, 60)
	planet.Central = true
	s.RegisterBody(planet)
	sat := NewBody(2, "sat", 500, []float64{0, 0, 837.1}, []float64{0.02, 0, 0}, 1)
	s.RegisterBody(sat)
	for i := 0; i < 50; i++ {
		s.Step(0.02)
	}
	if !vectorsEqual(planet.R, []float64{0, 0, 0}) || !vectorsEqual(planet.V, []float64{0, 0, 0}) {
		t.Fatalf("central body moved: R=%+v V=%+v", planet.R, planet.V)
	}
}

func TestSessionMasslessBodyIsStatic(t *testing.T) {
	s := newTestSession(t)
	planet := NewBody(1, "planet", testCentralMass, nil, nil, 60)
	planet.Central = true
	s.RegisterBody(planet)
	ghost := NewBody(2, "placeholder", 0, []float64{500, 0, 0}, nil, 1)
	s.RegisterBody(ghost)
	for i := 0; i < 20; i++ {
		s.Step(0.02)
	}
	if !vectorsEqual(ghost.R, []float64{500, 0, 0}) {
		t.Fatalf("massless placeholder drifted to %+v", ghost.R)
	}
}

// Integrating forward and then back with negated velocities must recover the
// initial state to integration accuracy.
func TestSessionTimeReversal(t *testing.T) {
	s := newTestSession(t)
	planet := NewBody(1, "planet", testCentralMass, nil, nil, 60)
	planet.Central = true
	s.RegisterBody(planet)
	r := 837.1
	R, V := circularState(testCentralMass, r)
	sat := NewBody(2, "sat", 500, R, V, 1)
	s.RegisterBody(sat)
	start := vclone(sat.R)

	for i := 0; i < 100; i++ {
		s.Step(0.02)
	}
	for i := range sat.V {
		sat.V[i] = -sat.V[i]
	}
	for i := 0; i < 100; i++ {
		s.Step(0.02)
	}
	if !vectorsEqual(sat.R, start) {
		t.Fatalf("reversed trajectory ended at %+v, started at %+v", sat.R, start)
	}
}

func TestSessionStepDefaultsTick(t *testing.T) {
	s := newTestSession(t)
	s.Step(0)
	s.Step(math.NaN())
	if !floats.EqualWithinAbs(s.Elapsed(), 2*DefaultConfig().TickΔt, 1e-12) {
		t.Fatalf("bad Δt must fall back to the configured tick, elapsed %f", s.Elapsed())
	}
}
