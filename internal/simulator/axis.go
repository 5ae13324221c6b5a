package simulator

import "strings"

// AxisName identifies one degree of freedom of the rig.
type AxisName string

const (
	AxisX    AxisName = "X"
	AxisY    AxisName = "Y"
	AxisZ    AxisName = "Z"
	AxisPan  AxisName = "PAN"
	AxisTilt AxisName = "TILT"
)

// AxisNames is the fixed reporting order used by STATUS.
var AxisNames = []AxisName{AxisX, AxisY, AxisZ, AxisPan, AxisTilt}

// ParseAxis accepts an axis name in any case.
func ParseAxis(s string) (AxisName, bool) {
	n := AxisName(strings.ToUpper(strings.TrimSpace(s)))
	for _, a := range AxisNames {
		if a == n {
			return n, true
		}
	}
	return "", false
}

// Axis defaults.
const (
	DefaultVelocity        = 100.0 // mm/s or deg/s
	DefaultHomingDirection = -1.0
	moveCompleteChance     = 0.05
)

// Axis is the simulated state of one axis.
type Axis struct {
	Name            AxisName
	Position        float64
	Velocity        float64
	Min             float64
	Max             float64
	HomingDirection float64 // -1 or +1
	HomePosition    float64
	Homing          bool
	Moving          bool
	Homed           bool
}

func newAxis(name AxisName, min, max float64) *Axis {
	return &Axis{
		Name:            name,
		Velocity:        DefaultVelocity,
		Min:             min,
		Max:             max,
		HomingDirection: DefaultHomingDirection,
	}
}

// Clamp limits v to the axis travel.
func (a *Axis) Clamp(v float64) float64 {
	return max(a.Min, min(a.Max, v))
}

func (a *Axis) halt() {
	a.Moving = false
	a.Homing = false
}

// advanceHoming drives the axis toward home for dt seconds. It reports true
// on the tick the axis reaches home.
func (a *Axis) advanceHoming(dt float64) bool {
	dir := a.HomingDirection
	if (dir < 0 && a.Position <= a.HomePosition) || (dir > 0 && a.Position >= a.HomePosition) {
		a.Position = a.HomePosition
		a.Homing = false
		a.Homed = true
		return true
	}
	a.Position += a.Velocity * dt * dir
	return false
}
