package orbital

import (
	"context"
	"math"

	"github.com/ChristopherRabotin/ode"
)

// Fidelity selects the integrator variant of a trajectory rollout.
type Fidelity uint8

const (
	// FidelityHigh is the authoritative RK4.
	FidelityHigh Fidelity = iota + 1
	// FidelityLow is the two-stage midpoint variant, for throughput.
	FidelityLow
	// FidelityDopri54 is the fixed-step Dormand-Prince 5(4).
	FidelityDopri54
)

func (f Fidelity) String() string {
	switch f {
	case FidelityHigh:
		return "rk4"
	case FidelityLow:
		return "midpoint"
	case FidelityDopri54:
		return "dopri54"
	}
	panic("cannot stringify unknown fidelity")
}

// StopReason states why a rollout ended.
type StopReason uint8

const (
	// StopBudget means the step budget was exhausted.
	StopBudget StopReason = iota + 1
	// StopCollision means the predicted position reached another body.
	StopCollision
	// StopClosedLoop means the orbit closed on itself: remaining points are redundant.
	StopClosedLoop
	// StopNumerical means the state went NaN/Inf and the invalid tail was discarded.
	StopNumerical
	// StopCancelled means the request was cancelled mid-flight.
	StopCancelled
)

func (r StopReason) String() string {
	switch r {
	case StopBudget:
		return "budget"
	case StopCollision:
		return "collision"
	case StopClosedLoop:
		return "closed-loop"
	case StopNumerical:
		return "numerical"
	case StopCancelled:
		return "cancelled"
	}
	panic("cannot stringify unknown stop reason")
}

// Trajectory is a forward-looking, time-stepped sequence of predicted
// positions. The first point is the state one Δt after the present; a new
// computation always replaces the previous trajectory wholesale.
type Trajectory struct {
	BodyID int
	Δt     float64
	Points [][]float64
	Reason StopReason
}

// Empty returns whether this trajectory carries no prediction at all.
func (t Trajectory) Empty() bool {
	return len(t.Points) == 0
}

// predictionInput is the frozen input of one rollout: everything is copied
// at submission time so the rollout shares nothing with the live registry.
type predictionInput struct {
	BodyID    int
	R, V      []float64
	Mass      float64
	Radius    float64
	ThrustAcc []float64
	Snapshot  Snapshot
	Steps     int // 0 selects the adaptive budget
	Δt        float64
	Fidelity  Fidelity
}

func inputFromBody(b *Body, snap Snapshot, steps int, Δt float64, fid Fidelity) predictionInput {
	return predictionInput{
		BodyID:    b.ID,
		R:         vclone(b.R),
		V:         vclone(b.V),
		Mass:      b.Mass,
		Radius:    b.Radius,
		ThrustAcc: b.thrustAccel(),
		Snapshot:  snap,
		Steps:     steps,
		Δt:        Δt,
		Fidelity:  fid,
	}
}

// CentralOf returns the central body of a snapshot. With several central
// bodies, the most massive one wins.
func CentralOf(snap Snapshot) (BodyState, bool) {
	var central BodyState
	found := false
	for _, b := range snap {
		if !b.Central {
			continue
		}
		if !found || b.Mass > central.Mass {
			central = b
			found = true
		}
	}
	return central, found
}

// ElementsAbout computes the orbital elements of state {R, V} about the
// snapshot's central body. Without a central body the result is invalid.
func ElementsAbout(R, V []float64, snap Snapshot) Elements {
	c, found := CentralOf(snap)
	if !found {
		return Elements{}
	}
	rel := []float64{R[0] - c.R[0], R[1] - c.R[1], R[2] - c.R[2]}
	return ComputeElements(rel, V, c.Mass)
}

// adaptiveSteps is the single step-budget policy:
// steps = clamp(ceil(period/Δt), 1, MaxPredictionSteps) for bound orbits,
// the fixed HyperbolicSteps budget for unbound or invalid elements, and an
// active thrust divides the result.
func adaptiveSteps(el Elements, Δt float64, thrusting bool, cfg Config) int {
	steps := cfg.HyperbolicSteps
	if el.IsValid && !el.Hyperbolic() && el.PeriodSeconds > 0 {
		steps = int(math.Ceil(el.PeriodSeconds / Δt))
	}
	if thrusting {
		steps /= cfg.ThrustBudgetDivisor
	}
	if steps < 1 {
		steps = 1
	}
	if steps > cfg.MaxPredictionSteps {
		steps = cfg.MaxPredictionSteps
	}
	return steps
}

// Predict rolls a body's current state forward against a one-time snapshot
// of the other bodies, which are treated as stationary over the horizon (a
// deliberate fidelity/performance tradeoff). The registry and the body are
// never mutated. steps <= 0 selects the adaptive budget, Δt <= 0 the
// configured default.
func Predict(b *Body, snap Snapshot, steps int, Δt float64, fid Fidelity, cfg Config) Trajectory {
	return predict(context.Background(), inputFromBody(b, snap, steps, Δt, fid), cfg)
}

func predict(ctx context.Context, in predictionInput, cfg Config) Trajectory {
	if in.Δt <= 0 || math.IsNaN(in.Δt) {
		in.Δt = cfg.PredictionΔt
	}
	traj := Trajectory{BodyID: in.BodyID, Δt: in.Δt, Reason: StopBudget}
	if in.Mass <= massε {
		// Static placeholder: nothing to roll forward.
		return traj
	}
	if in.ThrustAcc == nil {
		in.ThrustAcc = make([]float64, 3)
	}
	thrusting := norm(in.ThrustAcc) > 0
	steps := in.Steps
	if steps <= 0 {
		steps = adaptiveSteps(ElementsAbout(in.R, in.V, in.Snapshot), in.Δt, thrusting, cfg)
	} else if steps > cfg.MaxPredictionSteps {
		steps = cfg.MaxPredictionSteps
	}

	state := make([]float64, 6)
	copy(state[0:3], in.R)
	copy(state[3:6], in.V)
	minClosure := int(cfg.ClosureMinFrac * float64(steps))
	if minClosure < 2 {
		minClosure = 2
	}
	startRadius := norm(in.R)
	if c, found := CentralOf(in.Snapshot); found {
		startRadius = norm([]float64{in.R[0] - c.R[0], in.R[1] - c.R[1], in.R[2] - c.R[2]})
	}
	ro := &rollout{
		ctx:        ctx,
		deriv:      twoBodyDeriv(in.BodyID, in.Snapshot, in.ThrustAcc),
		state:      state,
		selfID:     in.BodyID,
		radius:     in.Radius,
		snap:       in.Snapshot,
		maxSteps:   steps,
		minClosure: minClosure,
		closeDist:  cfg.ClosureDistFrac * startRadius,
		cosTol:     math.Cos(Deg2rad(cfg.ClosureAngle)),
		startR:     vclone(in.R),
		v0:         unit(in.V),
		reason:     StopBudget,
	}

	switch in.Fidelity {
	case FidelityLow:
		NewMidpoint(0, in.Δt, ro).Solve()
	case FidelityDopri54:
		NewDopri54(0, in.Δt, ro).Solve()
	default:
		ode.NewRK4(0, in.Δt, ro).Solve()
	}

	traj.Points = ro.points
	traj.Reason = ro.reason
	return traj
}

// rollout is the Integrable of a single prediction. It accumulates predicted
// positions and applies the early-exit conditions in priority order:
// collision, closed loop, numerical invalidity.
type rollout struct {
	ctx    context.Context
	deriv  func(s []float64) []float64
	state  []float64
	selfID int
	radius float64
	snap   Snapshot

	maxSteps   int
	minClosure int
	closeDist  float64
	cosTol     float64
	startR     []float64
	v0         []float64

	points   [][]float64
	reason   StopReason
	departed bool
	done     bool
}

// GetState implements the Integrable interface.
func (ro *rollout) GetState() []float64 {
	return ro.state
}

// Func implements the Integrable interface.
func (ro *rollout) Func(t float64, s []float64) []float64 {
	return ro.deriv(s)
}

// Stop implements the Integrable interface.
func (ro *rollout) Stop(t float64) bool {
	if ro.done {
		return true
	}
	select {
	case <-ro.ctx.Done():
		ro.reason = StopCancelled
		return true
	default:
	}
	if len(ro.points) >= ro.maxSteps {
		ro.reason = StopBudget
		return true
	}
	return false
}

// SetState implements the Integrable interface and runs the per-step checks.
func (ro *rollout) SetState(t float64, s []float64) {
	if !finite(s) {
		// Discard the invalid tail, keep what was sound.
		ro.reason = StopNumerical
		ro.done = true
		return
	}
	copy(ro.state, s)
	pos := ro.state[0:3]
	vel := ro.state[3:6]

	// 1. Predicted collision: truncate at the contact point.
	for _, b := range ro.snap {
		if b.ID == ro.selfID {
			continue
		}
		d := []float64{b.R[0] - pos[0], b.R[1] - pos[1], b.R[2] - pos[2]}
		if norm(d) <= ro.radius+b.Radius {
			ro.points = append(ro.points, vclone(pos))
			ro.reason = StopCollision
			ro.done = true
			return
		}
	}

	ro.points = append(ro.points, vclone(pos))

	// 2. Closed loop: back near the start with the velocity realigned. The
	// check only arms once the body has actually left the start region, so a
	// short high-resolution horizon that never departs runs to its budget.
	back := norm([]float64{pos[0] - ro.startR[0], pos[1] - ro.startR[1], pos[2] - ro.startR[2]})
	if !ro.departed {
		ro.departed = back > ro.closeDist
	} else if len(ro.points) >= ro.minClosure && back < ro.closeDist && dot(unit(vel), ro.v0) > ro.cosTol {
		ro.reason = StopClosedLoop
		ro.done = true
	}
}
