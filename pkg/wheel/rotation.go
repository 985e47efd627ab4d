package wheel

import "math"

// RotationDriver animates the wheel angle with a cubic ease-out over a fixed duration.
// It is cosmetic: the ball physics reads the angle but never drives it.
type RotationDriver struct {
	baseSpeed float64
	duration  float64
	elapsed   float64
	angle     float64
	running   bool
}

func NewRotationDriver(baseSpeed float64) *RotationDriver {
	return &RotationDriver{baseSpeed: baseSpeed}
}

// Start begins a new decelerating spin from the current angle.
func (r *RotationDriver) Start(duration float64) {
	r.duration = duration
	r.elapsed = 0
	r.running = duration > 0
}

// Stop halts the wheel where it is.
func (r *RotationDriver) Stop() {
	r.running = false
}

// Update advances the animation by dt seconds.
func (r *RotationDriver) Update(dt float64) {
	if !r.running {
		return
	}
	r.angle = wrapDegrees(r.angle + r.AngularSpeed()*dt)
	r.elapsed += dt
	if r.elapsed >= r.duration {
		r.running = false
	}
}

// AngularSpeed returns the current speed in degrees per second.
func (r *RotationDriver) AngularSpeed() float64 {
	if !r.running {
		return 0
	}
	t := clamp01(r.elapsed / r.duration)
	return r.baseSpeed * (1 - easeOutCubic(t))
}

// Angle returns the wheel angle in degrees, wrapped to [0, 360).
func (r *RotationDriver) Angle() float64 {
	return r.angle
}

func (r *RotationDriver) Running() bool {
	return r.running
}

func easeOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}

// smoothstep is an ease-in-out curve from 0 to 1.
func smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
