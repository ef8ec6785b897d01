package orbital

import (
	"fmt"
	"sort"
	"sync"
)

// Role describes how a body participates in a tick. It is resolved once per
// tick rather than re-derived at every call site.
type Role uint8

const (
	// RoleFree is a body translated by gravity alone.
	RoleFree Role = iota + 1
	// RoleCentral is a dominant mass: a force source which never translates.
	RoleCentral
	// RoleThrusting is a free body with an external impulse pending this tick.
	RoleThrusting
)

func (r Role) String() string {
	switch r {
	case RoleFree:
		return "free"
	case RoleCentral:
		return "central"
	case RoleThrusting:
		return "thrusting"
	}
	panic("cannot stringify unknown role")
}

// Body is a simulated massive body. It is owned by the Registry: created on
// placement and destroyed on collision removal.
type Body struct {
	ID      int
	Name    string
	Mass    float64 // must exceed massε to participate in gravity
	R       []float64
	V       []float64
	Radius  float64 // collision extent
	Central bool
	thrust  []float64 // accumulated external force for the current tick
}

// NewBody returns a new body with defensive copies of the state vectors.
func NewBody(id int, name string, mass float64, R, V []float64, radius float64) *Body {
	return &Body{ID: id, Name: name, Mass: mass, R: vclone(R), V: vclone(V), Radius: radius, thrust: make([]float64, 3)}
}

// ApplyThrust accumulates an external impulse force onto this body. The sum
// is consumed by the next integration step and then cleared.
func (b *Body) ApplyThrust(force []float64) {
	if b.thrust == nil {
		b.thrust = make([]float64, 3)
	}
	for i := 0; i < 3; i++ {
		b.thrust[i] += force[i]
	}
}

// Thrusting returns whether an external impulse is pending for this tick.
func (b *Body) Thrusting() bool {
	if b.thrust == nil {
		return false
	}
	return b.thrust[0] != 0 || b.thrust[1] != 0 || b.thrust[2] != 0
}

// Role resolves the role of this body for the current tick.
func (b *Body) Role() Role {
	if b.Central {
		return RoleCentral
	}
	if b.Thrusting() {
		return RoleThrusting
	}
	return RoleFree
}

// thrustAccel returns the pending impulse expressed as an acceleration.
func (b *Body) thrustAccel() []float64 {
	acc := make([]float64, 3)
	if b.thrust == nil || b.Mass <= massε {
		return acc
	}
	for i := 0; i < 3; i++ {
		acc[i] = b.thrust[i] / b.Mass
	}
	return acc
}

func (b *Body) clearThrust() {
	b.thrust = make([]float64, 3)
}

func (b *Body) String() string {
	return fmt.Sprintf("%s (#%d, %s)", b.Name, b.ID, b.Role())
}

// State freezes this body into a snapshot entry.
func (b *Body) State() BodyState {
	return BodyState{ID: b.ID, Name: b.Name, Mass: b.Mass, R: vclone(b.R), V: vclone(b.V), Radius: b.Radius, Central: b.Central}
}

// BodyState is an immutable copy of a body, safe to share with an in-flight
// force pass or a background prediction.
type BodyState struct {
	ID      int
	Name    string
	Mass    float64
	R       []float64
	V       []float64
	Radius  float64
	Central bool
}

// Snapshot is a stable-ordered (ascending ID) frozen view of the registry.
type Snapshot []BodyState

// Collides returns whether the two states are within combined radius of each
// other. The test is symmetric in its arguments.
func Collides(a, b BodyState) bool {
	d := []float64{b.R[0] - a.R[0], b.R[1] - a.R[1], b.R[2] - a.R[2]}
	return norm(d) <= a.Radius+b.Radius
}

// Registry is the authoritative set of simulated bodies. It is explicitly
// constructed and shared by reference with the session, predictor and
// collision resolution; there is no package-level instance.
type Registry struct {
	mu          sync.RWMutex
	bodies      map[int]*Body
	subscribers []func(removed *Body)
}

// NewRegistry returns an empty body registry.
func NewRegistry() *Registry {
	return &Registry{bodies: make(map[int]*Body)}
}

// Register adds a body if absent. Registering an already held ID is a no-op.
func (r *Registry) Register(b *Body) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.bodies[b.ID]; found {
		return
	}
	r.bodies[b.ID] = b
}

// Deregister removes a body if present. Removing a missing body is a no-op.
func (r *Registry) Deregister(b *Body) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bodies, b.ID)
}

// Body returns the body with the given ID, if held.
func (r *Registry) Body(id int) (*Body, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, found := r.bodies[id]
	return b, found
}

// Len returns the number of registered bodies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bodies)
}

// Bodies returns the registered bodies in ascending ID order.
func (r *Registry) Bodies() []*Body {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Body, 0, len(r.bodies))
	for _, b := range r.bodies {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Snapshot returns a stable-ordered frozen copy of all bodies so that a force
// pass or prediction never observes a concurrent add/remove.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := make(Snapshot, 0, len(r.bodies))
	for _, b := range r.bodies {
		snap = append(snap, b.State())
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].ID < snap[j].ID })
	return snap
}

// NotifyCollision subscribes fn to collision removals, so that a tracking
// collaborator can retarget when the body it follows is destroyed.
func (r *Registry) NotifyCollision(fn func(removed *Body)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Registry) notify(removed *Body) {
	r.mu.RLock()
	subs := make([]func(*Body), len(r.subscribers))
	copy(subs, r.subscribers)
	r.mu.RUnlock()
	for _, fn := range subs {
		fn(removed)
	}
}
