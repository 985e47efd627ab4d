package kinematic

import "math"

// restingBounce is the rebound speed below which a floor bounce is dropped.
const restingBounce = 0.25

// Solver advances a body by one fixed timestep using the forces accumulated on it.
type Solver interface {
	Step(b *Body, deltaTime float64)
}

// BowlSolver integrates a ball inside a roulette bowl: a flat floor bounded by
// an outer rim and a central hub, all centered on Center.
type BowlSolver struct {
	Center    Vector
	FloorY    float64
	RimRadius float64
	HubRadius float64
}

type NewBowlSolverOptions struct {
	Center    Vector
	FloorY    float64
	RimRadius float64
	HubRadius float64
}

func NewBowlSolver(opts NewBowlSolverOptions) *BowlSolver {
	return &BowlSolver{
		Center:    opts.Center,
		FloorY:    opts.FloorY,
		RimRadius: opts.RimRadius,
		HubRadius: opts.HubRadius,
	}
}

// Step integrates with semi-implicit Euler, then resolves contacts.
func (s *BowlSolver) Step(b *Body, deltaTime float64) {
	if b.Kinematic {
		b.clearForces()
		return
	}

	acceleration := b.force.Scale(1 / b.Mass)
	if b.UseGravity {
		acceleration.Y += Gravity
	}

	b.Velocity = Vector{
		X: FinalVelocity(b.Velocity.X, deltaTime, acceleration.X),
		Y: FinalVelocity(b.Velocity.Y, deltaTime, acceleration.Y),
		Z: FinalVelocity(b.Velocity.Z, deltaTime, acceleration.Z),
	}
	b.Velocity = b.Velocity.Scale(dampingFactor(b.Drag, deltaTime))
	b.Position = b.Position.Add(b.Velocity.Scale(deltaTime))

	b.grounded = s.resolveFloor(b, deltaTime)
	s.resolveWalls(b)

	if b.grounded && b.Radius > 0 {
		// rolling without slipping
		b.AngularVelocity = Up.Cross(b.Velocity.Horizontal()).Scale(1 / b.Radius)
	} else {
		b.AngularVelocity = b.AngularVelocity.Scale(dampingFactor(b.AngularDrag, deltaTime))
	}

	b.clearForces()
}

func (s *BowlSolver) resolveFloor(b *Body, deltaTime float64) bool {
	minY := s.FloorY + b.Radius
	if b.Position.Y > minY {
		return false
	}
	b.Position.Y = minY
	if b.Velocity.Y < 0 {
		b.Velocity.Y = -b.Velocity.Y * b.Material.Restitution
		if b.Velocity.Y < restingBounce {
			b.Velocity.Y = 0
		}
	}
	friction := dampingFactor(b.Material.Friction, deltaTime)
	b.Velocity.X *= friction
	b.Velocity.Z *= friction
	return true
}

func (s *BowlSolver) resolveWalls(b *Body) {
	offset := b.Position.Sub(s.Center).Horizontal()
	r := offset.Magnitude()
	if r == 0 {
		return
	}
	normal := offset.Scale(1 / r)

	if maxR := s.RimRadius - b.Radius; s.RimRadius > 0 && r > maxR {
		s.project(b, normal, maxR)
		if vn := b.Velocity.Dot(normal); vn > 0 {
			b.Velocity = b.Velocity.Sub(normal.Scale(vn * (1 + b.Material.Restitution)))
		}
		return
	}

	if minR := s.HubRadius + b.Radius; s.HubRadius > 0 && r < minR {
		s.project(b, normal, minR)
		if vn := b.Velocity.Dot(normal); vn < 0 {
			b.Velocity = b.Velocity.Sub(normal.Scale(vn * (1 + b.Material.Restitution)))
		}
	}
}

func (s *BowlSolver) project(b *Body, normal Vector, radius float64) {
	y := b.Position.Y
	b.Position = s.Center.Add(normal.Scale(radius))
	b.Position.Y = y
}

// dampingFactor converts a per-second drag coefficient into a per-step velocity multiplier.
func dampingFactor(drag float64, deltaTime float64) float64 {
	return math.Max(0, 1-drag*deltaTime)
}
