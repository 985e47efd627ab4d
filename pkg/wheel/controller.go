// Package wheel simulates a roulette spin. The winning number is chosen before
// launch, and the ball is steered into that pocket by the seek forces, so the
// physics can never change the published outcome.
package wheel

import (
	"math"
	"math/rand"

	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/kinematic"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/scheduler"
	"github.com/google/uuid"
)

// Reason explains why a spin was rejected or aborted.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonSpinInProgress Reason = "spin_in_progress"
	ReasonNoTarget       Reason = "no_target"
	ReasonNoOutcome      Reason = "no_outcome"
)

// SpinRequest starts a spin. A nil Chosen number defers to the controller's OutcomeSource.
type SpinRequest struct {
	RoundID string
	Chosen  *int
}

// WithNumber returns a request for a spin that lands on n.
func WithNumber(n int) SpinRequest {
	return SpinRequest{Chosen: &n}
}

type SpinResult struct {
	Accepted      bool
	Reason        Reason
	RoundID       string
	OrbitDuration float64
	Proof         *Proof
}

// Session is the state of the spin in progress.
type Session struct {
	RoundID         string
	Phase           Phase
	Elapsed         float64
	PhaseElapsed    float64
	OrbitDuration   float64
	TargetNumber    int
	Target          Anchor
	TangentialForce float64
	Slowing         bool
	Targeting       bool
	SeekElapsed     float64
	UpwardTimer     float64
	Snapped         bool
	Published       bool
	Proof           *Proof

	disengage *scheduler.Token
}

type Controller struct {
	settings Settings
	ball     *kinematic.Body
	solver   kinematic.Solver
	rotation *RotationDriver
	slots    SlotResolver
	source   OutcomeSource
	bus      *events.Bus
	logger   *log.Logger
	rng      *rand.Rand
	timers   *scheduler.Scheduler

	session *Session

	locked       bool
	lockedSlot   Anchor
	lockedOffset kinematic.Vector
}

type NewControllerOptions struct {
	Settings Settings
	// Slots defaults to the evenly spaced single-zero pocket table.
	Slots SlotResolver
	// Source defaults to a RandomSource seeded from Rand.
	Source OutcomeSource
	Solver kinematic.Solver
	Bus    *events.Bus
	Logger *log.Logger
	// Rand samples orbit durations.
	Rand *rand.Rand
}

func NewController(opts NewControllerOptions) *Controller {
	s := opts.Settings
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	if opts.Slots == nil {
		opts.Slots = NewSlotTable(kinematic.Zero, s.PocketRadius, s.BallRadius)
	}
	if opts.Source == nil {
		opts.Source = NewRandomSource(opts.Rand.Int63())
	}
	if opts.Solver == nil {
		opts.Solver = kinematic.NewBowlSolver(kinematic.NewBowlSolverOptions{
			RimRadius: s.RimRadius,
			HubRadius: s.HubRadius,
		})
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger().WithComponent("wheel")
	}

	ball := kinematic.NewBody(s.StartAnchor, s.BallMass, s.BallRadius)
	ball.Lock()

	return &Controller{
		settings: s,
		ball:     ball,
		solver:   opts.Solver,
		rotation: NewRotationDriver(s.WheelSpinSpeed),
		slots:    opts.Slots,
		source:   opts.Source,
		bus:      opts.Bus,
		logger:   opts.Logger,
		rng:      opts.Rand,
		timers:   scheduler.New(),
	}
}

// RequestSpin launches the ball. While a spin is active the request is a no-op.
func (c *Controller) RequestSpin(req SpinRequest) SpinResult {
	if c.session != nil {
		c.logger.Info("Spin requested while %s is %s", c.session.RoundID, c.session.Phase)
		c.bus.Publish(events.SpinRejected{Reason: string(ReasonSpinInProgress)})
		return SpinResult{Reason: ReasonSpinInProgress, RoundID: c.session.RoundID}
	}

	roundID := req.RoundID
	if roundID == "" {
		roundID = uuid.NewString()
	}

	var outcome Outcome
	if req.Chosen != nil {
		outcome = Outcome{Number: *req.Chosen}
	} else {
		next, err := c.source.Next()
		if err != nil {
			c.logger.Error("Failed to choose an outcome for %s: %v", roundID, err)
			c.bus.Publish(events.SpinAborted{RoundID: roundID, Reason: string(ReasonNoOutcome)})
			return SpinResult{Reason: ReasonNoOutcome, RoundID: roundID}
		}
		outcome = next
	}

	target, ok := c.slots.Resolve(outcome.Number)
	if !ok {
		c.logger.Warn("No pocket for number %d, aborting %s", outcome.Number, roundID)
		c.bus.Publish(events.SpinAborted{RoundID: roundID, Reason: string(ReasonNoTarget)})
		return SpinResult{Reason: ReasonNoTarget, RoundID: roundID}
	}

	s := c.settings
	c.session = &Session{
		RoundID:         roundID,
		Phase:           PhaseIdle,
		OrbitDuration:   s.MinOrbitDuration + c.rng.Float64()*(s.MaxOrbitDuration-s.MinOrbitDuration),
		TargetNumber:    outcome.Number,
		Target:          target,
		TangentialForce: s.TangentialForce,
		Proof:           outcome.Proof,
	}
	c.transition(PhaseLaunch)
	c.launch()
	c.transition(PhaseOrbit)

	c.logger.Debug("Spin %s launched, orbit %.2fs", roundID, c.session.OrbitDuration)
	return SpinResult{
		Accepted:      true,
		RoundID:       roundID,
		OrbitDuration: c.session.OrbitDuration,
		Proof:         outcome.Proof,
	}
}

func (c *Controller) launch() {
	s := c.settings
	c.locked = false
	c.ball.Unlock()
	c.ball.Stop()
	c.ball.Position = s.StartAnchor
	c.ball.Drag = s.OrbitDrag
	c.ball.AngularDrag = 0
	c.ball.Material = kinematic.RollingMaterial

	c.ball.AddForce(c.tangent().Scale(s.InitialBallImpulse), kinematic.ForceModeImpulse)
	c.rotation.Start(c.session.OrbitDuration)
}

// FixedUpdate advances the simulation by one physics tick.
func (c *Controller) FixedUpdate(dt float64) {
	c.timers.Advance(dt)

	s := c.session
	if s == nil || !s.Phase.Moving() {
		c.rideWheel()
		return
	}

	s.Elapsed += dt
	s.PhaseElapsed += dt

	if s.Phase == PhaseOrbit && s.Elapsed >= s.OrbitDuration*c.settings.DecelerationOnset {
		if !c.beginDeceleration() {
			return
		}
	}

	if !c.applyConstantForces(dt) {
		return
	}
	if !s.Targeting {
		c.applyUpwardImpulse(dt)
	} else if c.applyTargetForce(dt) {
		return
	}

	c.solver.Step(c.ball, dt)
	c.logger.Trace("Ball at %+v speed %.3f", c.ball.Position, c.ball.Speed())
}

// Update advances the presentation tick. Only the wheel animation runs on it.
func (c *Controller) Update(dt float64) {
	c.rotation.Update(dt)
	if c.session == nil || !c.session.Phase.Moving() {
		c.rideWheel()
	}
}

// Reset returns the controller to Idle once the outcome of the spin has been
// published. Reset is ignored in any other phase.
func (c *Controller) Reset() bool {
	s := c.session
	if s == nil {
		return true
	}
	if s.Phase != PhaseCooldown {
		c.logger.Warn("Ignoring reset of %s during %s", s.RoundID, s.Phase)
		return false
	}
	c.transition(PhaseIdle)
	c.session = nil
	c.bus.Publish(events.RoundReset{RoundID: s.RoundID})
	return true
}

// Phase returns the current phase, PhaseIdle when no spin is active.
func (c *Controller) Phase() Phase {
	if c.session == nil {
		return PhaseIdle
	}
	return c.session.Phase
}

// Session returns a copy of the active session.
func (c *Controller) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Spinning reports whether a spin session is active.
func (c *Controller) Spinning() bool {
	return c.session != nil
}

func (c *Controller) Ball() *kinematic.Body {
	return c.ball
}

func (c *Controller) WheelAngle() float64 {
	return c.rotation.Angle()
}

func (c *Controller) Settings() Settings {
	return c.settings
}

func (c *Controller) beginDeceleration() bool {
	s := c.session
	s.Slowing = true
	c.transition(PhaseDecelerate)

	target, ok := c.slots.Resolve(s.TargetNumber)
	if !ok {
		c.abort(ReasonNoTarget)
		return false
	}
	s.Target = target
	s.Targeting = true
	c.ball.Drag = c.settings.SeekDrag
	c.transition(PhaseTargetSeek)
	return true
}

// applyConstantForces returns false if the spin ended.
func (c *Controller) applyConstantForces(dt float64) bool {
	s := c.session
	settings := c.settings

	c.ball.AddForce(kinematic.Down.Scale(settings.DownwardForce), kinematic.ForceModeForce)

	if s.Slowing {
		// multiplicative per tick, so the decay depends on the tick rate
		s.TangentialForce *= settings.SlowdownRate * dt
		if c.ball.Speed() < settings.MinVelocityToStop && !s.Targeting {
			c.ball.Stop()
			c.abort(ReasonNoTarget)
			return false
		}
	}
	c.ball.AddForce(c.tangent().Scale(s.TangentialForce), kinematic.ForceModeForce)

	c.ball.AddForce(c.centeringForce(), kinematic.ForceModeForce)
	return true
}

// centeringForce springs the ball toward its track. Once targeting starts the
// track eases from the orbit ring down to the pocket ring over the seek ramp.
func (c *Controller) centeringForce() kinematic.Vector {
	s := c.session
	settings := c.settings

	radius := settings.OrbitRadius
	if s.Targeting {
		radius = lerp(settings.OrbitRadius, settings.PocketRadius, smoothstep(s.SeekElapsed/settings.SeekRampTime))
	}
	toCenter := c.toCenter()
	return toCenter.Normalized().Scale(settings.CenteringStiffness * (toCenter.Magnitude() - radius))
}

func (c *Controller) applyUpwardImpulse(dt float64) {
	s := c.session
	s.UpwardTimer += dt
	if s.UpwardTimer >= c.settings.UpwardImpulseInterval {
		c.ball.AddForce(kinematic.Up.Scale(c.settings.UpwardImpulse), kinematic.ForceModeImpulse)
		s.UpwardTimer = 0
	}
}

// applyTargetForce pulls the ball toward the target pocket and returns true once it is locked in.
func (c *Controller) applyTargetForce(dt float64) bool {
	s := c.session
	settings := c.settings

	angle := c.rotation.Angle()
	target := s.Target.WorldPosition(angle)
	toTarget := target.Sub(c.ball.Position)
	toTarget.Y = max(0, toTarget.Y*0.7)
	distance := toTarget.Magnitude()

	s.SeekElapsed += dt
	force := lerp(settings.SeekForceMin, settings.SeekForceMax, smoothstep(s.SeekElapsed/settings.SeekRampTime))

	if distance < settings.NearDistance {
		factor := clamp01(1 - (distance-settings.MinTargetDistance)/(settings.NearDistance-settings.MinTargetDistance))
		force *= 1 + factor*settings.DistanceForceMultiplier
	}

	damping := settings.SeekDamping
	if distance < settings.VeryNearDistance {
		force *= distance / settings.VeryNearDistance
		c.ball.AddForce(kinematic.Down.Scale(settings.DownwardForce*2), kinematic.ForceModeForce)
		damping = settings.VeryNearDamping
	}

	relative := c.ball.Velocity.Sub(c.slotVelocity(target)).Horizontal()
	c.ball.AddForce(toTarget.Normalized().Scale(force), kinematic.ForceModeForce)
	c.ball.AddForce(relative.Scale(-damping*c.ball.Mass), kinematic.ForceModeForce)

	if distance < settings.ArrivalDistance && relative.Magnitude() < settings.ArrivalSpeed {
		c.settle(target, false)
		return true
	}
	if s.SeekElapsed >= settings.SeekTimeout {
		c.logger.Debug("Seek timed out for %s at distance %.3f, snapping", s.RoundID, distance)
		c.settle(target, true)
		return true
	}
	return false
}

// settle locks the ball into the target pocket and schedules the outcome.
func (c *Controller) settle(target kinematic.Vector, snapped bool) {
	s := c.session
	angle := c.rotation.Angle()

	if snapped {
		c.ball.Position = target
	}
	c.ball.Lock()
	c.ball.Drag = c.settings.RestingDrag
	c.ball.AngularDrag = c.settings.RestingDrag
	c.ball.Material = kinematic.RestingMaterial

	c.locked = true
	c.lockedSlot = s.Target
	c.lockedOffset = c.ball.Position.Sub(target).RotateY(-angle)

	s.Snapped = snapped
	c.transition(PhaseSettled)
	s.disengage = c.timers.After(c.settings.DisengageDelay, c.disengage)
}

// disengage stops targeting and publishes the outcome. It runs at most once per spin.
func (c *Controller) disengage() {
	s := c.session
	if s == nil || !s.Targeting {
		return
	}
	s.Targeting = false
	c.transition(PhaseCooldown)

	if s.Published {
		return
	}
	s.Published = true
	c.logger.Info("Ball landed on %d in %s", s.TargetNumber, s.RoundID)
	c.bus.Publish(events.OutcomePublished{RoundID: s.RoundID, Number: s.TargetNumber})
}

// abort ends the spin without an outcome.
func (c *Controller) abort(reason Reason) {
	s := c.session
	c.logger.Warn("Aborting %s: %s", s.RoundID, reason)
	s.disengage.Cancel()
	c.rotation.Stop()
	c.ball.Stop()
	c.transition(PhaseIdle)
	c.session = nil
	c.bus.Publish(events.SpinAborted{RoundID: s.RoundID, Reason: string(reason)})
}

// rideWheel keeps a locked ball at its pocket as the wheel turns.
func (c *Controller) rideWheel() {
	if !c.locked {
		return
	}
	angle := c.rotation.Angle()
	c.ball.Position = c.lockedSlot.WorldPosition(angle).Add(c.lockedOffset.RotateY(angle))
}

func (c *Controller) transition(to Phase) {
	s := c.session
	from := s.Phase
	s.Phase = to
	s.PhaseElapsed = 0
	c.logger.Debug("Spin %s: %s -> %s", s.RoundID, from, to)
	c.bus.Publish(events.PhaseChanged{RoundID: s.RoundID, From: from.String(), To: to.String()})
}

func (c *Controller) toCenter() kinematic.Vector {
	return kinematic.Zero.Sub(c.ball.Position).Horizontal()
}

// tangent is the direction of travel around the wheel at the ball's position.
func (c *Controller) tangent() kinematic.Vector {
	return kinematic.Up.Cross(c.toCenter().Normalized())
}

// slotVelocity is the velocity of a point fixed to the turning wheel.
func (c *Controller) slotVelocity(position kinematic.Vector) kinematic.Vector {
	w := c.rotation.AngularSpeed() * math.Pi / 180
	return kinematic.Vector{X: position.Z * w, Z: -position.X * w}
}
