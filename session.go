package orbital

import (
	"math"
	"os"
	"sync"

	"github.com/ChristopherRabotin/ode"
	kitlog "github.com/go-kit/kit/log"
)

/* Handles the authoritative real-time stepping. */

// Session owns the simulation: the body registry, the per-tick integration
// and the collision resolution. Stepping is synchronous and single-threaded
// with respect to the registry; registry mutations only happen at tick
// boundaries.
type Session struct {
	Registry *Registry
	cfg      Config
	logger   kitlog.Logger

	tick    uint64
	elapsed float64

	// Scratch of the in-flight tick: the integration order, the frozen force
	// snapshot, one shared derivative closure per free body, and the states
	// at tick start for non-finite revert.
	order   []*Body
	derivs  []func(s []float64) []float64
	pre     [][]float64
	stepped bool

	histChan chan TickState
	wg       sync.WaitGroup
}

// NewSession returns a session over the given registry. A nil logger logs
// logfmt to stdout, as usual. If the export configuration is not useless, a
// state streaming goroutine is started; Close flushes and waits for it.
func NewSession(reg *Registry, cfg Config, logger kitlog.Logger, conf ExportConfig) *Session {
	if logger == nil {
		logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	}
	logger = kitlog.With(logger, "subsys", "session")
	s := &Session{Registry: reg, cfg: cfg, logger: logger}
	if !conf.IsUseless() {
		s.histChan = make(chan TickState, 1000) // a 1k entry buffer
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			StreamStates(conf, s.histChan)
		}()
	}
	return s
}

// Tick returns the number of completed ticks.
func (s *Session) Tick() uint64 { return s.tick }

// Elapsed returns the simulated time in sim seconds.
func (s *Session) Elapsed() float64 { return s.elapsed }

// RegisterBody adds a body to the simulation. Called by placement and
// scene-lifecycle collaborators between ticks.
func (s *Session) RegisterBody(b *Body) {
	s.Registry.Register(b)
	s.logger.Log("level", "info", "registered", b, "mass", b.Mass, "radius", b.Radius)
}

// DeregisterBody removes a body from the simulation.
func (s *Session) DeregisterBody(b *Body) {
	s.Registry.Deregister(b)
	s.logger.Log("level", "info", "deregistered", b)
}

// ApplyThrust accumulates an external impulse force onto a body for the
// upcoming tick. Invoked once per tick by a control collaborator while
// thrust is active.
func (s *Session) ApplyThrust(b *Body, force []float64) {
	if !finite(force) {
		s.logger.Log("level", "warning", "thrust", "non-finite impulse dropped", "body", b)
		return
	}
	b.ApplyThrust(force)
}

// OnCollision subscribes fn to collision removals.
func (s *Session) OnCollision(fn func(removed *Body)) {
	s.Registry.NotifyCollision(fn)
}

// Close flushes the state stream, if any. The session remains usable.
func (s *Session) Close() {
	if s.histChan != nil {
		close(s.histChan)
		s.wg.Wait()
		s.histChan = nil
	}
}

// Step advances the whole simulation by one fixed tick of Δt. Pending thrust
// is consumed exactly once and cleared; collisions are resolved at the tick
// boundary so the body set is stable for the pairwise pass.
func (s *Session) Step(Δt float64) {
	if Δt <= 0 || math.IsNaN(Δt) {
		Δt = s.cfg.TickΔt
	}
	snap := s.Registry.Snapshot()
	bodies := s.Registry.Bodies()
	s.order = s.order[:0]
	s.derivs = s.derivs[:0]
	s.pre = s.pre[:0]
	for _, b := range bodies {
		switch b.Role() { // resolved once per tick
		case RoleCentral:
			// Central bodies never translate under gravity.
			b.V = make([]float64, 3)
		default:
			if b.Mass <= massε {
				continue // static placeholder until a mass is assigned
			}
			s.order = append(s.order, b)
			s.derivs = append(s.derivs, twoBodyDeriv(b.ID, snap, b.thrustAccel()))
			pre := make([]float64, 6)
			copy(pre[0:3], b.R)
			copy(pre[3:6], b.V)
			s.pre = append(s.pre, pre)
		}
	}

	s.stepped = len(s.order) == 0
	if !s.stepped {
		ode.NewRK4(0, Δt, s).Solve() // one iteration, see Stop
	}

	for _, b := range bodies {
		b.clearThrust()
	}
	s.resolveCollisions()
	s.tick++
	s.elapsed += Δt

	if s.histChan != nil {
		s.histChan <- TickState{Tick: s.tick, Time: s.elapsed, States: s.Registry.Snapshot()}
	}
}

// GetState packs the positions and velocities of the free bodies into the
// 6N state vector of the tick.
func (s *Session) GetState() []float64 {
	f := make([]float64, 6*len(s.order))
	for j, b := range s.order {
		copy(f[6*j:6*j+3], b.R)
		copy(f[6*j+3:6*j+6], b.V)
	}
	return f
}

// SetState unpacks the integrated state back onto the bodies. A body whose
// new state is not finite keeps its tick-start state and is reported, never
// fatal.
func (s *Session) SetState(t float64, f []float64) {
	for j, b := range s.order {
		R := f[6*j : 6*j+3]
		V := f[6*j+3 : 6*j+6]
		if !finite(R) || !finite(V) {
			s.logger.Log("level", "critical", "body", b, "tick", s.tick, "status", "non-finite state, reverted")
			copy(b.R, s.pre[j][0:3])
			copy(b.V, s.pre[j][3:6])
			continue
		}
		copy(b.R, R)
		copy(b.V, V)
	}
	s.stepped = true
}

// Stop implements the single-tick stop condition of the integrator.
func (s *Session) Stop(t float64) bool {
	return s.stepped
}

// Func is the 6N derivative of the tick: each body pairs its velocity with
// the snapshot gravity plus its pending thrust acceleration.
func (s *Session) Func(t float64, f []float64) []float64 {
	fDot := make([]float64, len(f))
	for j := range s.order {
		copy(fDot[6*j:6*j+6], s.derivs[j](f[6*j:6*j+6]))
	}
	return fDot
}

// resolveCollisions runs the pairwise combined-radius test over the current
// body set and removes the lower-mass body of every colliding pair. On equal
// masses the lower ID survives. Applies identically to central-vs-other and
// other-vs-other pairs.
func (s *Session) resolveCollisions() {
	bodies := s.Registry.Bodies() // ascending ID
	removed := make(map[int]bool)
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			if removed[a.ID] || removed[b.ID] {
				continue
			}
			if !Collides(a.State(), b.State()) {
				continue
			}
			loser, winner := b, a // equal masses: a has the lower ID and survives
			if a.Mass < b.Mass {
				loser, winner = a, b
			}
			removed[loser.ID] = true
			s.Registry.Deregister(loser)
			s.logger.Log("level", "notice", "collided", loser, "with", winner, "tick", s.tick)
			s.Registry.notify(loser)
		}
	}
}
