package wheel

import (
	"io"
	"math/rand"
	"testing"

	"github.com/cbodonnell/roulette/pkg/events"
	"github.com/cbodonnell/roulette/pkg/kinematic"
	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDeltaTime = 0.02
	maxTestTicks  = 5000
)

type recorder struct {
	outcomes []events.OutcomePublished
	aborted  []events.SpinAborted
	phases   []string
	all      []events.Event
}

func newTestController(t *testing.T, settings Settings, slots SlotResolver, seed int64) (*Controller, *recorder) {
	t.Helper()
	bus := events.NewBus()
	rec := &recorder{}
	events.Subscribe(bus, func(e events.OutcomePublished) { rec.outcomes = append(rec.outcomes, e) })
	events.Subscribe(bus, func(e events.SpinAborted) { rec.aborted = append(rec.aborted, e) })
	events.Subscribe(bus, func(e events.PhaseChanged) { rec.phases = append(rec.phases, e.To) })
	bus.SubscribeAll(func(e events.Event) { rec.all = append(rec.all, e) })

	c := NewController(NewControllerOptions{
		Settings: settings,
		Slots:    slots,
		Bus:      bus,
		Logger:   log.New(io.Discard, "", 0, log.LogLevelError),
		Rand:     rand.New(rand.NewSource(seed)),
	})
	return c, rec
}

func tick(c *Controller, n int) {
	for i := 0; i < n; i++ {
		c.Update(testDeltaTime)
		c.FixedUpdate(testDeltaTime)
	}
}

func runUntil(t *testing.T, c *Controller, done func() bool) int {
	t.Helper()
	for i := 0; i < maxTestTicks; i++ {
		if done() {
			return i
		}
		tick(c, 1)
	}
	require.FailNow(t, "simulation did not finish")
	return maxTestTicks
}

func TestController_deterministicOutcome(t *testing.T) {
	for _, number := range []int{0, 1, 17, 36} {
		for seed := int64(1); seed <= 3; seed++ {
			c, rec := newTestController(t, DefaultSettings(), nil, seed)

			res := c.RequestSpin(WithNumber(number))
			require.True(t, res.Accepted)
			assert.GreaterOrEqual(t, res.OrbitDuration, 15.0)
			assert.LessOrEqual(t, res.OrbitDuration, 25.0)

			runUntil(t, c, func() bool { return len(rec.outcomes) > 0 })
			require.Len(t, rec.outcomes, 1)
			assert.Equal(t, number, rec.outcomes[0].Number)
			assert.Equal(t, res.RoundID, rec.outcomes[0].RoundID)
			assert.Equal(t, PhaseCooldown, c.Phase())
			assert.True(t, c.Ball().Kinematic)
			assert.Equal(t, kinematic.RestingMaterial, c.Ball().Material)

			session, ok := c.Session()
			require.True(t, ok)
			anchor := session.Target.WorldPosition(c.WheelAngle())
			assert.Less(t, kinematic.Distance(anchor, c.Ball().Position), 0.1)

			tick(c, 500)
			assert.Len(t, rec.outcomes, 1)
			assert.Empty(t, rec.aborted)
		}
	}
}

func TestController_randomOutcome(t *testing.T) {
	settings := DefaultSettings()
	settings.MinOrbitDuration = 3
	settings.MaxOrbitDuration = 5

	c, rec := newTestController(t, settings, nil, 42)
	res := c.RequestSpin(SpinRequest{})
	require.True(t, res.Accepted)

	session, _ := c.Session()
	runUntil(t, c, func() bool { return len(rec.outcomes) > 0 })
	assert.Equal(t, session.TargetNumber, rec.outcomes[0].Number)
}

func TestController_RequestSpin_whileSpinning(t *testing.T) {
	c, rec := newTestController(t, DefaultSettings(), nil, 7)
	require.True(t, c.RequestSpin(WithNumber(5)).Accepted)
	tick(c, 100)

	before, ok := c.Session()
	require.True(t, ok)
	position := c.Ball().Position

	res := c.RequestSpin(WithNumber(9))
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonSpinInProgress, res.Reason)
	assert.Equal(t, before.RoundID, res.RoundID)

	after, _ := c.Session()
	assert.Equal(t, before, after)
	assert.Equal(t, position, c.Ball().Position)
	assert.IsType(t, events.SpinRejected{}, rec.all[len(rec.all)-1])
}

func TestController_noTargetAtLaunch(t *testing.T) {
	c, rec := newTestController(t, DefaultSettings(), nil, 1)

	res := c.RequestSpin(WithNumber(37))
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonNoTarget, res.Reason)
	assert.Equal(t, PhaseIdle, c.Phase())
	require.Len(t, rec.aborted, 1)
	assert.Equal(t, string(ReasonNoTarget), rec.aborted[0].Reason)

	tick(c, 100)
	assert.Empty(t, rec.outcomes)
}

// flakySlots resolves each number once and then loses it.
type flakySlots struct {
	inner *SlotTable
	seen  map[int]bool
}

func (f *flakySlots) Resolve(number int) (Anchor, bool) {
	if f.seen[number] {
		return Anchor{}, false
	}
	f.seen[number] = true
	return f.inner.Resolve(number)
}

func TestController_noTargetAtSeekEntry(t *testing.T) {
	settings := DefaultSettings()
	settings.MinOrbitDuration = 2
	settings.MaxOrbitDuration = 2
	slots := &flakySlots{
		inner: NewSlotTable(kinematic.Zero, settings.PocketRadius, settings.BallRadius),
		seen:  map[int]bool{},
	}
	c, rec := newTestController(t, settings, slots, 1)

	require.True(t, c.RequestSpin(WithNumber(21)).Accepted)
	runUntil(t, c, func() bool { return len(rec.aborted) > 0 })

	assert.Equal(t, PhaseIdle, c.Phase())
	assert.False(t, c.Spinning())
	assert.Equal(t, "decelerate", rec.phases[len(rec.phases)-2])
	assert.Equal(t, "idle", rec.phases[len(rec.phases)-1])

	tick(c, 500)
	assert.Empty(t, rec.outcomes)
	assert.True(t, c.RequestSpin(WithNumber(3)).Accepted)
}

func TestController_decelerationOnset(t *testing.T) {
	settings := DefaultSettings()
	settings.MinOrbitDuration = 10
	settings.MaxOrbitDuration = 10
	c, rec := newTestController(t, settings, nil, 1)

	require.True(t, c.RequestSpin(WithNumber(11)).Accepted)
	assert.Equal(t, []string{"launch", "orbit"}, rec.phases)

	tick(c, 145)
	session, _ := c.Session()
	assert.Equal(t, PhaseOrbit, session.Phase)
	assert.False(t, session.Slowing)
	assert.False(t, session.Targeting)
	assert.Equal(t, settings.TangentialForce, session.TangentialForce)

	tick(c, 10)
	session, _ = c.Session()
	assert.Equal(t, PhaseTargetSeek, session.Phase)
	assert.True(t, session.Slowing)
	assert.True(t, session.Targeting)
	assert.Less(t, session.TangentialForce, 0.001)
	assert.Equal(t, []string{"launch", "orbit", "decelerate", "target_seek"}, rec.phases)
}

func TestController_seekTimeoutSnaps(t *testing.T) {
	settings := DefaultSettings()
	settings.MinOrbitDuration = 2
	settings.MaxOrbitDuration = 2
	settings.ArrivalDistance = 0
	settings.SeekTimeout = 1
	settings.DisengageDelay = 0.5
	c, rec := newTestController(t, settings, nil, 3)

	require.True(t, c.RequestSpin(WithNumber(26)).Accepted)
	runUntil(t, c, func() bool { return c.Phase() == PhaseSettled })

	session, _ := c.Session()
	assert.True(t, session.Snapped)
	assert.InDelta(t, 0, kinematic.Distance(session.Target.WorldPosition(c.WheelAngle()), c.Ball().Position), 1e-9)
	assert.Empty(t, rec.outcomes)

	tick(c, 30)
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, 26, rec.outcomes[0].Number)
}

func TestController_ballRidesWheel(t *testing.T) {
	settings := DefaultSettings()
	settings.MinOrbitDuration = 40
	settings.MaxOrbitDuration = 40
	settings.DecelerationOnset = 0.05
	settings.ArrivalDistance = 0
	settings.SeekTimeout = 0.5
	c, _ := newTestController(t, settings, nil, 3)

	require.True(t, c.RequestSpin(WithNumber(8)).Accepted)
	runUntil(t, c, func() bool { return c.Phase() == PhaseSettled })

	angleBefore := c.WheelAngle()
	tick(c, 50)
	require.NotEqual(t, angleBefore, c.WheelAngle())

	session, _ := c.Session()
	assert.InDelta(t, 0, kinematic.Distance(session.Target.WorldPosition(c.WheelAngle()), c.Ball().Position), 1e-9)
}

func TestController_Reset(t *testing.T) {
	settings := DefaultSettings()
	settings.MinOrbitDuration = 3
	settings.MaxOrbitDuration = 3
	c, rec := newTestController(t, settings, nil, 5)

	assert.True(t, c.Reset())

	require.True(t, c.RequestSpin(WithNumber(14)).Accepted)
	tick(c, 10)
	assert.False(t, c.Reset())
	assert.Equal(t, PhaseOrbit, c.Phase())

	runUntil(t, c, func() bool { return c.Phase() == PhaseSettled })
	assert.False(t, c.Reset())
	assert.Equal(t, PhaseSettled, c.Phase())
	assert.Empty(t, rec.outcomes)

	runUntil(t, c, func() bool { return c.Phase() == PhaseCooldown })
	assert.True(t, c.Reset())
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, 14, rec.outcomes[0].Number)
	assert.Equal(t, PhaseIdle, c.Phase())
	assert.IsType(t, events.RoundReset{}, rec.all[len(rec.all)-1])

	tick(c, 500)
	assert.Len(t, rec.outcomes, 1)

	require.True(t, c.RequestSpin(WithNumber(2)).Accepted)
	assert.False(t, c.Ball().Kinematic)
	runUntil(t, c, func() bool { return len(rec.outcomes) == 2 })
	assert.Equal(t, 2, rec.outcomes[1].Number)
	assert.True(t, c.Reset())
}

func TestController_centeringDuringDeceleration(t *testing.T) {
	settings := DefaultSettings()
	settings.MinOrbitDuration = 10
	settings.MaxOrbitDuration = 10
	c, _ := newTestController(t, settings, nil, 1)

	require.True(t, c.RequestSpin(WithNumber(11)).Accepted)
	tick(c, 155)
	session, ok := c.Session()
	require.True(t, ok)
	require.True(t, session.Targeting)

	tests := []struct {
		name        string
		seekElapsed float64
		wantRadius  float64
	}{
		{name: "onset", seekElapsed: 0, wantRadius: settings.OrbitRadius},
		{name: "mid ramp", seekElapsed: settings.SeekRampTime / 2, wantRadius: (settings.OrbitRadius + settings.PocketRadius) / 2},
		{name: "after ramp", seekElapsed: settings.SeekRampTime * 2, wantRadius: settings.PocketRadius},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.session.SeekElapsed = tt.seekElapsed
			c.ball.Position = kinematic.Vector{X: 1.1, Y: c.ball.Position.Y}

			force := c.centeringForce()
			assert.InDelta(t, -settings.CenteringStiffness*(1.1-tt.wantRadius), force.X, 1e-9)
			assert.InDelta(t, 0, force.Y, 1e-9)
			assert.InDelta(t, 0, force.Z, 1e-9)
		})
	}
}
