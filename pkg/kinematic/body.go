package kinematic

// ForceMode mirrors the two ways a force can be applied to a body.
type ForceMode uint8

const (
	// ForceModeForce accumulates a continuous force that is integrated over the next step.
	ForceModeForce ForceMode = iota
	// ForceModeImpulse changes velocity immediately by impulse / mass.
	ForceModeImpulse
)

// Material is the collision surface profile of a body.
type Material struct {
	Name        string  `json:"name" yaml:"name"`
	Restitution float64 `json:"restitution" yaml:"restitution"`
	// Friction is the fraction of horizontal velocity removed per second of floor contact
	Friction float64 `json:"friction" yaml:"friction"`
}

var (
	RollingMaterial = Material{Name: "rolling", Restitution: 0.35, Friction: 0.05}
	RestingMaterial = Material{Name: "resting", Restitution: 0, Friction: 1}
)

// Body is a rigid sphere integrated by a Solver.
type Body struct {
	Position        Vector
	Velocity        Vector
	AngularVelocity Vector
	Mass            float64
	Radius          float64
	Drag            float64
	AngularDrag     float64
	UseGravity      bool
	// Kinematic bodies ignore forces and are moved only by their owner.
	Kinematic bool
	Material  Material

	force    Vector
	grounded bool
}

func NewBody(position Vector, mass float64, radius float64) *Body {
	if mass <= 0 {
		mass = 1
	}
	return &Body{
		Position:   position,
		Mass:       mass,
		Radius:     radius,
		UseGravity: true,
		Material:   RollingMaterial,
	}
}

// AddForce applies f to the body. Forces are consumed by the next solver step.
func (b *Body) AddForce(f Vector, mode ForceMode) {
	if b.Kinematic {
		return
	}
	switch mode {
	case ForceModeImpulse:
		b.Velocity = b.Velocity.Add(f.Scale(1 / b.Mass))
	default:
		b.force = b.force.Add(f)
	}
}

// PendingForce returns the force accumulated since the last step.
func (b *Body) PendingForce() Vector {
	return b.force
}

func (b *Body) clearForces() {
	b.force = Zero
}

// Stop zeroes linear and angular velocity and any pending force.
func (b *Body) Stop() {
	b.Velocity = Zero
	b.AngularVelocity = Zero
	b.clearForces()
}

// Speed returns the magnitude of the linear velocity.
func (b *Body) Speed() float64 {
	return b.Velocity.Magnitude()
}

// Grounded reports whether the body touched the floor during the last step.
func (b *Body) Grounded() bool {
	return b.grounded
}

// Lock makes the body kinematic and brings it to rest.
func (b *Body) Lock() {
	b.Stop()
	b.Kinematic = true
}

// Unlock returns the body to dynamic simulation.
func (b *Body) Unlock() {
	b.Kinematic = false
}
