package kinematic

// This package includes functions for the big four kinematic equations
// and the vector type used by the ball simulation.

import (
	"math"
)

const (
	Gravity float64 = -9.8
)

// Displacement returns the displacement of an object given its initial velocity, time, and acceleration.
func Displacement(initialVelocity float64, time float64, acceleration float64) float64 {
	return initialVelocity*time + 0.5*acceleration*math.Pow(time, 2)
}

// FinalVelocity returns the final velocity of an object given its initial velocity, time, and acceleration.
func FinalVelocity(initialVelocity float64, time float64, acceleration float64) float64 {
	return initialVelocity + acceleration*time
}

// Vector is a 3D vector. Y is up.
type Vector struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

var (
	Zero = Vector{}
	Up   = Vector{Y: 1}
	Down = Vector{Y: -1}
)

func (v Vector) Add(o Vector) Vector {
	return Vector{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{v.X * s, v.Y * s, v.Z * s}
}

func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vector) Cross(o Vector) Vector {
	return Vector{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vector) Magnitude() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized returns the unit vector in the direction of v, or the zero vector.
func (v Vector) Normalized() Vector {
	mag := v.Magnitude()
	if mag == 0 {
		return Zero
	}
	return v.Scale(1 / mag)
}

// Horizontal drops the vertical component.
func (v Vector) Horizontal() Vector {
	return Vector{X: v.X, Z: v.Z}
}

// RotateY rotates v around the vertical axis by the given angle in degrees.
func (v Vector) RotateY(degrees float64) Vector {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Vector{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// Distance returns the distance between two points.
func Distance(a, b Vector) float64 {
	return b.Sub(a).Magnitude()
}
