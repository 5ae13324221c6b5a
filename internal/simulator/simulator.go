// Package simulator is a software stand-in for the rig controller. It
// interprets the same line protocol as the hardware, models axis homing and
// motion on a fixed tick, and enforces the emergency-stop interlock.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"space_maquette/internal/logger"
	"space_maquette/internal/protocol"
)

// DefaultTick is the period of the motion update loop.
const DefaultTick = 10 * time.Millisecond

// Rangefinder noise and fault rates.
const (
	measureNoise          = 5.0
	measureFailChance     = 0.05
	measureOutOfRangeRate = 0.03
)

// DefaultConfig is the controller's configuration after power-up.
func DefaultConfig() map[string]string {
	return map[string]string{
		"velocity_x": "100",
		"velocity_y": "100",
		"velocity_z": "50",
		"tilt_min":   "45",
		"tilt_max":   "135",
	}
}

// Simulator holds the device state. Command processing and tick updates are
// serialized by a single mutex.
type Simulator struct {
	mu              sync.Mutex
	axes            map[AxisName]*Axis
	config          map[string]string
	estop           bool
	lastCommand     string
	lastMeasurement float64
	rng             *rand.Rand
	log             *logger.Logger
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithRand sets the random source used for measurement noise and motion
// completion. Tests pass a seeded source.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

// New returns a powered-up, unhomed simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		axes: map[AxisName]*Axis{
			AxisX:    newAxis(AxisX, 0, 2000),
			AxisY:    newAxis(AxisY, 0, 2000),
			AxisZ:    newAxis(AxisZ, 0, 1000),
			AxisPan:  newAxis(AxisPan, 0, 360),
			AxisTilt: newAxis(AxisTilt, 0, 180),
		},
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.log = logger.OrNop(s.log)
	return s
}

// Run advances the simulation every tick until ctx is canceled.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTick
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Tick(now.Sub(last))
			last = now
		}
	}
}

// Tick advances homing axes by dt and randomly completes pending moves.
// While the interlock is active every axis is held still.
func (s *Simulator) Tick(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secs := dt.Seconds()
	for _, name := range AxisNames {
		a := s.axes[name]
		if s.estop {
			a.halt()
			continue
		}
		switch {
		case a.Homing:
			if a.advanceHoming(secs) {
				s.log.Infow("axis_homed", "axis", a.Name, "position", a.Position)
			}
		case a.Moving:
			if s.rng.Float64() < moveCompleteChance {
				a.Moving = false
				s.log.Debugw("axis_move_completed", "axis", a.Name)
			}
		}
	}
}

// ProcessCommand executes one command line and returns the reply line
// without its newline. A trailing ";<hex>" checksum is stripped and not
// verified.
func (s *Simulator) ProcessCommand(line string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	line = strings.TrimSpace(line)
	s.lastCommand = line
	if line == "" {
		return fail("EMPTY_COMMAND")
	}

	req := protocol.ParseRequest(line)
	if req.Name == protocol.CmdEstop {
		return s.handleEstop(req.Params)
	}
	if s.estop && req.Name != protocol.CmdStatus && req.Name != protocol.CmdResetEstop {
		return fail("ESTOP_ACTIVE")
	}

	reply, handled := s.dispatch(req.Name, req.Params)
	if !handled {
		return fail("UNKNOWN_COMMAND")
	}
	return reply
}

func (s *Simulator) dispatch(name protocol.Name, params []string) (string, bool) {
	switch name {
	case protocol.CmdPing:
		return ok("PONG"), true
	case protocol.CmdReset:
		return s.handleReset(params), true
	case protocol.CmdStatus:
		return s.handleStatus(params), true
	case protocol.CmdDebug:
		return s.handleDebug(params), true
	case protocol.CmdEstop:
		return s.handleEstop(params), true
	case protocol.CmdResetEstop:
		return s.handleResetEstop(params), true
	case protocol.CmdHome:
		return s.handleHome(params), true
	case protocol.CmdMove:
		return s.handleMove(params), true
	case protocol.CmdStop:
		return s.handleStop(params), true
	case protocol.CmdVelocity:
		return s.handleVelocity(params), true
	case protocol.CmdMeasure:
		return s.handleMeasure(params), true
	case protocol.CmdScan:
		return s.handleScan(params), true
	case protocol.CmdTilt:
		return s.handleTilt(params), true
	case protocol.CmdPan:
		return s.handlePan(params), true
	case protocol.CmdConfig:
		return s.handleConfig(params), true
	case protocol.CmdGet:
		return s.handleGet(params), true
	case protocol.CmdSet:
		return s.handleSet(params), true
	case protocol.CmdSave:
		return ok("CONFIG_SAVED"), true
	}
	return "", false
}

func ok(msg string) string   { return string(protocol.StatusOK) + ":" + msg }
func fail(msg string) string { return string(protocol.StatusError) + ":" + msg }

func (s *Simulator) haltAll() {
	for _, a := range s.axes {
		a.halt()
	}
}

func (s *Simulator) handleReset([]string) string {
	s.haltAll()
	return ok("RESETTING")
}

func (s *Simulator) handleStatus([]string) string {
	parts := make([]string, 0, len(AxisNames)+3)
	moving, homed := false, true
	for _, name := range AxisNames {
		a := s.axes[name]
		parts = append(parts, fmt.Sprintf("%s=%.2f", name, a.Position))
		moving = moving || a.Moving || a.Homing
		homed = homed && a.Homed
	}
	parts = append(parts,
		"ESTOP="+flag(s.estop),
		"MOVING="+flag(moving),
		"HOMED="+flag(homed),
	)
	return ok(strings.Join(parts, ","))
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (s *Simulator) handleDebug(params []string) string {
	if len(params) == 0 {
		return fail("MISSING_PARAM")
	}
	switch strings.ToUpper(params[0]) {
	case "ON":
		return ok("DEBUG_ENABLED")
	case "OFF":
		return ok("DEBUG_DISABLED")
	default:
		return fail("INVALID_PARAM")
	}
}

func (s *Simulator) handleEstop([]string) string {
	s.estop = true
	s.haltAll()
	s.log.Warnw("estop_activated")
	return ok("ESTOP_ACTIVATED")
}

// handleResetEstop clears the interlock unconditionally; no safety chain is modeled.
func (s *Simulator) handleResetEstop([]string) string {
	s.estop = false
	return ok("ESTOP_RESET")
}

func (s *Simulator) handleHome(params []string) string {
	if len(params) == 0 {
		return fail("MISSING_PARAM")
	}
	if strings.EqualFold(params[0], "ALL") {
		for _, a := range s.axes {
			a.Homing = true
			a.Moving = false
		}
		return ok("HOMING_STARTED")
	}
	name, found := ParseAxis(params[0])
	if !found {
		return fail("INVALID_AXIS")
	}
	a := s.axes[name]
	a.Homing = true
	a.Moving = false
	return ok("HOMING_STARTED")
}

// handleMove jumps straight to the clamped targets; completion is settled by Tick.
func (s *Simulator) handleMove(params []string) string {
	if len(params) < 3 {
		return fail("MISSING_PARAMS")
	}
	targets := map[AxisName]float64{
		AxisPan:  s.axes[AxisPan].Position,
		AxisTilt: s.axes[AxisTilt].Position,
	}
	for i, name := range AxisNames {
		if i >= len(params) {
			break
		}
		v, err := parseFloat(params[i])
		if err != nil {
			return fail("INVALID_PARAM")
		}
		targets[name] = v
	}
	for _, name := range AxisNames {
		a := s.axes[name]
		a.Position = a.Clamp(targets[name])
		a.Moving = true
		a.Homing = false
	}
	return ok("MOVE_STARTED")
}

func (s *Simulator) handleStop([]string) string {
	s.haltAll()
	return ok("MOTION_STOPPED")
}

func (s *Simulator) handleVelocity(params []string) string {
	if len(params) < 3 {
		return fail("MISSING_PARAMS")
	}
	var v [3]float64
	for i := range v {
		f, err := parseFloat(params[i])
		if err != nil {
			return fail("INVALID_PARAM")
		}
		v[i] = f
	}
	for i, name := range []AxisName{AxisX, AxisY, AxisZ} {
		s.axes[name].Velocity = v[i]
		s.config["velocity_"+strings.ToLower(string(name))] = protocol.FormatFloat(v[i])
	}
	return ok("VELOCITY_SET")
}

func (s *Simulator) handleMeasure([]string) string {
	z := s.axes[AxisZ].Position
	noise := (s.rng.Float64()*2 - 1) * measureNoise
	s.lastMeasurement = max(0, z+noise)

	if s.rng.Float64() < measureFailChance {
		return fail("MEASUREMENT_FAILED")
	}
	if s.rng.Float64() < measureOutOfRangeRate {
		return fail("OUT_OF_RANGE")
	}
	return ok(strconv.FormatFloat(s.lastMeasurement, 'f', 3, 64))
}

// handleScan validates the area but does not sweep it.
func (s *Simulator) handleScan(params []string) string {
	if len(params) < 5 {
		return fail("MISSING_PARAMS")
	}
	for _, p := range params[:5] {
		if _, err := parseFloat(p); err != nil {
			return fail("INVALID_PARAM")
		}
	}
	return ok("SCAN_STARTED")
}

// handleTilt checks the angle against the configured tilt window, not the axis limits.
func (s *Simulator) handleTilt(params []string) string {
	if len(params) == 0 {
		return fail("MISSING_PARAM")
	}
	angle, err := parseFloat(params[0])
	if err != nil {
		return fail("INVALID_PARAM")
	}
	lo, err := parseFloat(s.configOr("tilt_min", "45"))
	if err != nil {
		return fail("INVALID_PARAM")
	}
	hi, err := parseFloat(s.configOr("tilt_max", "135"))
	if err != nil {
		return fail("INVALID_PARAM")
	}
	if angle < lo || angle > hi {
		return fail("TILT_FAILED")
	}
	tilt := s.axes[AxisTilt]
	tilt.Position = angle
	tilt.Moving = true
	return ok("TILT_SET")
}

func (s *Simulator) handlePan(params []string) string {
	if len(params) == 0 {
		return fail("MISSING_PARAM")
	}
	angle, err := parseFloat(params[0])
	if err != nil {
		return fail("INVALID_PARAM")
	}
	pan := s.axes[AxisPan]
	pan.Position = normalizeDegrees(angle)
	pan.Moving = true
	return ok("PAN_SET")
}

func normalizeDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a == 0 {
		return 0 // no "-0.00" in STATUS
	}
	return a
}

func (s *Simulator) handleConfig(params []string) string {
	if len(params) == 0 {
		return fail("MISSING_CONFIG_COMMAND")
	}
	switch strings.ToUpper(params[0]) {
	case "LOAD":
		return ok("CONFIG_LOADED")
	case "SAVE":
		return ok("CONFIG_SAVED")
	case "LIST":
		return ok("CONFIG_LIST_NOT_IMPLEMENTED")
	default:
		return fail("INVALID_CONFIG_COMMAND")
	}
}

func (s *Simulator) handleGet(params []string) string {
	if len(params) == 0 {
		return fail("MISSING_KEY")
	}
	v, found := s.config[params[0]]
	if !found {
		return fail("KEY_NOT_FOUND")
	}
	return ok(v)
}

// handleSet stores the value and applies tilt window and velocity keys
// immediately. Values that do not parse are stored but not applied.
func (s *Simulator) handleSet(params []string) string {
	if len(params) < 2 {
		return fail("MISSING_PARAMS")
	}
	key, value := params[0], params[1]
	s.config[key] = value

	switch {
	case key == "tilt_min" || key == "tilt_max":
		tilt := s.axes[AxisTilt]
		if lo, err := parseFloat(s.configOr("tilt_min", "45")); err == nil {
			tilt.Min = lo
			if hi, err := parseFloat(s.configOr("tilt_max", "135")); err == nil {
				tilt.Max = hi
			}
		}
	case strings.HasPrefix(key, "velocity_"):
		suffix := strings.Split(key, "_")[1]
		for _, name := range AxisNames {
			if suffix != strings.ToLower(string(name)) {
				continue
			}
			if v, err := parseFloat(value); err == nil {
				s.axes[name].Velocity = v
			}
		}
	}
	return ok("VALUE_SET")
}

func (s *Simulator) configOr(key, def string) string {
	if v, found := s.config[key]; found {
		return v
	}
	return def
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Axis returns a copy of the named axis.
func (s *Simulator) Axis(name AxisName) (Axis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.axes[name]
	if !found {
		return Axis{}, false
	}
	return *a, true
}

func (s *Simulator) Estopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estop
}

// ConfigValue reads the device-side configuration map.
func (s *Simulator) ConfigValue(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found := s.config[key]
	return v, found
}

// LastCommand is the most recent line passed to ProcessCommand, trimmed.
func (s *Simulator) LastCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommand
}

// LastMeasurement is the distance drawn by the latest MEASURE, including
// draws that were reported as failures.
func (s *Simulator) LastMeasurement() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMeasurement
}
