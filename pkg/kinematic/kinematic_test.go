package kinematic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplacement(t *testing.T) {
	assert.InDelta(t, 5.1, Displacement(10, 1, -9.8), 1e-9)
	assert.InDelta(t, 0.2, FinalVelocity(10, 1, -9.8), 1e-9)
}

func TestVector(t *testing.T) {
	a := Vector{X: 1, Y: 2, Z: 3}
	b := Vector{X: -2, Y: 0, Z: 1}

	assert.Equal(t, Vector{X: -1, Y: 2, Z: 4}, a.Add(b))
	assert.Equal(t, Vector{X: 3, Y: 2, Z: 2}, a.Sub(b))
	assert.Equal(t, 1.0, a.Dot(b))
	assert.Equal(t, Vector{X: 2, Y: -7, Z: 4}, a.Cross(b))
	assert.InDelta(t, 1.0, a.Normalized().Magnitude(), 1e-9)
	assert.Equal(t, Zero, Zero.Normalized())
	assert.Equal(t, Vector{X: 1, Z: 3}, a.Horizontal())
}

func TestVector_RotateY(t *testing.T) {
	v := Vector{X: 1}
	rotated := v.RotateY(90)
	assert.InDelta(t, 0, rotated.X, 1e-9)
	assert.InDelta(t, -1, rotated.Z, 1e-9)

	full := v.RotateY(360)
	assert.InDelta(t, 1, full.X, 1e-9)
	assert.InDelta(t, 1, v.RotateY(37).Magnitude(), 1e-9)
}

func TestBody_AddForce(t *testing.T) {
	b := NewBody(Zero, 2, 0.1)
	b.AddForce(Vector{X: 4}, ForceModeImpulse)
	assert.Equal(t, Vector{X: 2}, b.Velocity)

	b.AddForce(Vector{Z: 3}, ForceModeForce)
	assert.Equal(t, Vector{Z: 3}, b.PendingForce())

	b.Lock()
	assert.True(t, b.Kinematic)
	assert.Equal(t, Zero, b.Velocity)
	b.AddForce(Vector{X: 100}, ForceModeImpulse)
	assert.Equal(t, Zero, b.Velocity)
}

func newTestSolver() *BowlSolver {
	return NewBowlSolver(NewBowlSolverOptions{
		RimRadius: 1,
		HubRadius: 0.2,
	})
}

func TestBowlSolver_Step(t *testing.T) {
	tests := []struct {
		name   string
		body   func() *Body
		steps  int
		verify func(t *testing.T, b *Body)
	}{
		{
			name: "force integrates into velocity and position",
			body: func() *Body {
				b := NewBody(Vector{X: 0.5, Y: 0.05}, 1, 0.05)
				b.UseGravity = false
				b.Material = Material{}
				b.AddForce(Vector{Z: 10}, ForceModeForce)
				return b
			},
			steps: 1,
			verify: func(t *testing.T, b *Body) {
				assert.InDelta(t, 0.2, b.Velocity.Z, 1e-9)
				assert.InDelta(t, 0.004, b.Position.Z, 1e-9)
				assert.Equal(t, Zero, b.PendingForce())
			},
		},
		{
			name: "drag damps velocity",
			body: func() *Body {
				b := NewBody(Vector{X: 0.5, Y: 0.05}, 1, 0.05)
				b.UseGravity = false
				b.Material = Material{}
				b.Drag = 10
				b.Velocity = Vector{Z: 1}
				return b
			},
			steps: 1,
			verify: func(t *testing.T, b *Body) {
				assert.InDelta(t, 0.8, b.Velocity.Z, 1e-9)
			},
		},
		{
			name: "gravity settles the ball on the floor",
			body: func() *Body {
				return NewBody(Vector{X: 0.5, Y: 0.5}, 1, 0.05)
			},
			steps: 200,
			verify: func(t *testing.T, b *Body) {
				assert.InDelta(t, 0.05, b.Position.Y, 1e-9)
				assert.Equal(t, 0.0, b.Velocity.Y)
				assert.True(t, b.Grounded())
			},
		},
		{
			name: "rim keeps the ball inside the bowl",
			body: func() *Body {
				b := NewBody(Vector{X: 0.9, Y: 0.05}, 1, 0.05)
				b.Velocity = Vector{X: 5}
				return b
			},
			steps: 10,
			verify: func(t *testing.T, b *Body) {
				r := b.Position.Horizontal().Magnitude()
				assert.LessOrEqual(t, r, 0.95+1e-9)
				assert.LessOrEqual(t, b.Velocity.X, 0.0)
			},
		},
		{
			name: "hub pushes the ball outward",
			body: func() *Body {
				b := NewBody(Vector{X: 0.3, Y: 0.05}, 1, 0.05)
				b.Velocity = Vector{X: -5}
				return b
			},
			steps: 5,
			verify: func(t *testing.T, b *Body) {
				assert.GreaterOrEqual(t, b.Position.Horizontal().Magnitude(), 0.25-1e-9)
			},
		},
		{
			name: "kinematic bodies do not move",
			body: func() *Body {
				b := NewBody(Vector{X: 0.5, Y: 0.5}, 1, 0.05)
				b.Lock()
				return b
			},
			steps: 10,
			verify: func(t *testing.T, b *Body) {
				assert.Equal(t, Vector{X: 0.5, Y: 0.5}, b.Position)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solver := newTestSolver()
			b := tt.body()
			for i := 0; i < tt.steps; i++ {
				solver.Step(b, 0.02)
			}
			assert.False(t, math.IsNaN(b.Position.X))
			tt.verify(t, b)
		})
	}
}
