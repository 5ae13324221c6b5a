package service

import (
	"fmt"
	"strconv"
	"strings"

	"space_maquette/internal/models"
)

// ParseStatus decodes a STATUS reply such as
// "X=100.00,Y=200.00,Z=50.00,PAN=45.00,TILT=90.00,ESTOP=0,MOVING=1,HOMED=1".
// Keys are case-insensitive, unknown keys and parts without '=' are skipped,
// missing keys keep their zero value. A malformed number is an error.
func ParseStatus(msg string) (models.SystemStatus, error) {
	var st models.SystemStatus
	for _, part := range strings.Split(msg, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var dst *float64
		switch key {
		case "x":
			dst = &st.X
		case "y":
			dst = &st.Y
		case "z":
			dst = &st.Z
		case "pan":
			dst = &st.Pan
		case "tilt":
			dst = &st.Tilt
		case "estop":
			st.Estop = truthy(value)
		case "moving":
			st.Moving = truthy(value)
		case "homed":
			st.Homed = truthy(value)
		}
		if dst == nil {
			continue
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return models.SystemStatus{}, fmt.Errorf("status field %s=%q: %w", key, value, err)
		}
		*dst = f
	}
	st.Axes = inferAxisStates(st)
	return st, nil
}

func truthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// inferAxisStates derives per-axis states from the global flags; the
// controller does not report them individually.
func inferAxisStates(st models.SystemStatus) models.AxisStates {
	switch {
	case !st.Homed:
		return models.UniformAxisStates(models.AxisUnknown)
	case st.Moving:
		return models.UniformAxisStates(models.AxisMoving)
	default:
		return models.UniformAxisStates(models.AxisHomed)
	}
}
