package wheel

import (
	"fmt"

	"github.com/cbodonnell/roulette/pkg/kinematic"
)

// Settings are the tunable constants of the spin simulation. Distances are in
// wheel units (rim radius 1), times in seconds, forces in newtons on a unit mass.
type Settings struct {
	FixedDeltaTime float64 `yaml:"fixedDeltaTime" json:"fixedDeltaTime"`

	BallMass     float64          `yaml:"ballMass" json:"ballMass"`
	BallRadius   float64          `yaml:"ballRadius" json:"ballRadius"`
	RimRadius    float64          `yaml:"rimRadius" json:"rimRadius"`
	HubRadius    float64          `yaml:"hubRadius" json:"hubRadius"`
	OrbitRadius  float64          `yaml:"orbitRadius" json:"orbitRadius"`
	PocketRadius float64          `yaml:"pocketRadius" json:"pocketRadius"`
	StartAnchor  kinematic.Vector `yaml:"startAnchor" json:"startAnchor"`

	MinOrbitDuration  float64 `yaml:"minOrbitDuration" json:"minOrbitDuration"`
	MaxOrbitDuration  float64 `yaml:"maxOrbitDuration" json:"maxOrbitDuration"`
	DecelerationOnset float64 `yaml:"decelerationOnset" json:"decelerationOnset"`
	WheelSpinSpeed    float64 `yaml:"wheelSpinSpeed" json:"wheelSpinSpeed"`

	InitialBallImpulse    float64 `yaml:"initialBallImpulse" json:"initialBallImpulse"`
	TangentialForce       float64 `yaml:"tangentialForce" json:"tangentialForce"`
	SlowdownRate          float64 `yaml:"slowdownRate" json:"slowdownRate"`
	MinVelocityToStop     float64 `yaml:"minVelocityToStop" json:"minVelocityToStop"`
	OrbitDrag             float64 `yaml:"orbitDrag" json:"orbitDrag"`
	CenteringStiffness    float64 `yaml:"centeringStiffness" json:"centeringStiffness"`
	DownwardForce         float64 `yaml:"downwardForce" json:"downwardForce"`
	UpwardImpulse         float64 `yaml:"upwardImpulse" json:"upwardImpulse"`
	UpwardImpulseInterval float64 `yaml:"upwardImpulseInterval" json:"upwardImpulseInterval"`

	SeekForceMin            float64 `yaml:"seekForceMin" json:"seekForceMin"`
	SeekForceMax            float64 `yaml:"seekForceMax" json:"seekForceMax"`
	SeekRampTime            float64 `yaml:"seekRampTime" json:"seekRampTime"`
	NearDistance            float64 `yaml:"nearDistance" json:"nearDistance"`
	MinTargetDistance       float64 `yaml:"minTargetDistance" json:"minTargetDistance"`
	DistanceForceMultiplier float64 `yaml:"distanceForceMultiplier" json:"distanceForceMultiplier"`
	VeryNearDistance        float64 `yaml:"veryNearDistance" json:"veryNearDistance"`
	SeekDrag                float64 `yaml:"seekDrag" json:"seekDrag"`
	SeekDamping             float64 `yaml:"seekDamping" json:"seekDamping"`
	VeryNearDamping         float64 `yaml:"veryNearDamping" json:"veryNearDamping"`
	ArrivalDistance         float64 `yaml:"arrivalDistance" json:"arrivalDistance"`
	ArrivalSpeed            float64 `yaml:"arrivalSpeed" json:"arrivalSpeed"`
	SeekTimeout             float64 `yaml:"seekTimeout" json:"seekTimeout"`

	RestingDrag    float64 `yaml:"restingDrag" json:"restingDrag"`
	DisengageDelay float64 `yaml:"disengageDelay" json:"disengageDelay"`
}

func DefaultSettings() Settings {
	return Settings{
		FixedDeltaTime: 0.02,

		BallMass:     1,
		BallRadius:   0.03,
		RimRadius:    1,
		HubRadius:    0.3,
		OrbitRadius:  0.92,
		PocketRadius: 0.72,
		StartAnchor:  kinematic.Vector{X: 0.92, Y: 0.03},

		MinOrbitDuration:  15,
		MaxOrbitDuration:  25,
		DecelerationOnset: 0.3,
		WheelSpinSpeed:    90,

		InitialBallImpulse:    6,
		TangentialForce:       2,
		SlowdownRate:          0.95,
		MinVelocityToStop:     0.5,
		OrbitDrag:             0.35,
		CenteringStiffness:    40,
		DownwardForce:         2.5,
		UpwardImpulse:         0.8,
		UpwardImpulseInterval: 0.5,

		SeekForceMin:            2,
		SeekForceMax:            20,
		SeekRampTime:            2,
		NearDistance:            0.5,
		MinTargetDistance:       0.15,
		DistanceForceMultiplier: 3,
		VeryNearDistance:        0.1,
		SeekDrag:                0.6,
		SeekDamping:             1.2,
		VeryNearDamping:         20,
		ArrivalDistance:         0.04,
		ArrivalSpeed:            0.5,
		SeekTimeout:             12,

		RestingDrag:    11,
		DisengageDelay: 5,
	}
}

// Validate checks the settings that would otherwise stall or destabilize a spin.
func (s Settings) Validate() error {
	if s.FixedDeltaTime <= 0 {
		return fmt.Errorf("fixedDeltaTime must be positive")
	}
	if s.BallMass <= 0 {
		return fmt.Errorf("ballMass must be positive")
	}
	if s.MinOrbitDuration <= 0 || s.MaxOrbitDuration < s.MinOrbitDuration {
		return fmt.Errorf("invalid orbit duration range [%v, %v]", s.MinOrbitDuration, s.MaxOrbitDuration)
	}
	if s.DecelerationOnset <= 0 || s.DecelerationOnset > 1 {
		return fmt.Errorf("decelerationOnset must be in (0, 1]")
	}
	if s.PocketRadius <= s.HubRadius || s.PocketRadius >= s.RimRadius {
		return fmt.Errorf("pocketRadius must lie between hubRadius and rimRadius")
	}
	if s.NearDistance <= s.MinTargetDistance {
		return fmt.Errorf("nearDistance must exceed minTargetDistance")
	}
	if s.SeekRampTime <= 0 || s.SeekTimeout <= 0 {
		return fmt.Errorf("seekRampTime and seekTimeout must be positive")
	}
	if s.DisengageDelay < 0 {
		return fmt.Errorf("disengageDelay must not be negative")
	}
	return nil
}
