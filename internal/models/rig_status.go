package models

import "time"

// AxisState is the logical state inferred for one axis.
type AxisState string

const (
	AxisUnknown AxisState = "UNKNOWN"
	AxisHoming  AxisState = "HOMING"
	AxisHomed   AxisState = "HOMED"
	AxisMoving  AxisState = "MOVING"
	AxisStopped AxisState = "STOPPED"
	AxisError   AxisState = "ERROR"
)

// AxisStates holds the inferred state of every axis.
type AxisStates struct {
	X    AxisState `json:"x"`
	Y    AxisState `json:"y"`
	Z    AxisState `json:"z"`
	Pan  AxisState `json:"pan"`
	Tilt AxisState `json:"tilt"`
}

// UniformAxisStates sets every axis to s.
func UniformAxisStates(s AxisState) AxisStates {
	return AxisStates{X: s, Y: s, Z: s, Pan: s, Tilt: s}
}

// SystemStatus is a snapshot of the rig as reported by STATUS.
type SystemStatus struct {
	ID        int        `json:"-"`
	X         float64    `json:"x"`    // mm
	Y         float64    `json:"y"`    // mm
	Z         float64    `json:"z"`    // mm
	Pan       float64    `json:"pan"`  // degrees
	Tilt      float64    `json:"tilt"` // degrees
	Estop     bool       `json:"estop"`
	Moving    bool       `json:"moving"`
	Homed     bool       `json:"homed"`
	Axes      AxisStates `json:"axes"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SameReading reports whether s and o describe the same rig state,
// ignoring when they were taken.
func (s SystemStatus) SameReading(o SystemStatus) bool {
	s.ID, o.ID = 0, 0
	s.UpdatedAt, o.UpdatedAt = time.Time{}, time.Time{}
	return s == o
}
