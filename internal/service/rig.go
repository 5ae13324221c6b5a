package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"space_maquette/internal/logger"
	"space_maquette/internal/models"
	"space_maquette/internal/protocol"
	"space_maquette/internal/repository"
)

// Directional nudge defaults.
const (
	DefaultStepMM   = 10.0
	DefaultStepDeg  = 5.0
	DefaultPollRate = 500 * time.Millisecond
)

var (
	ErrNotConnected     = errors.New("rig is not connected")
	ErrInvalidAxis      = errors.New("invalid axis: must be ALL, X, Y or Z")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrNoHostConfig     = errors.New("no host config store")
)

// Dispatcher is the command channel to the controller.
type Dispatcher interface {
	Start(ctx context.Context) error
	Stop() error
	SendSync(ctx context.Context, cmd protocol.Command, timeout time.Duration) protocol.Response
}

// RigService is the controller facade: one session with the rig, its cached
// status and the host-side configuration.
type RigService struct {
	disp       Dispatcher
	statusRepo repository.StatusRepo
	eventRepo  repository.EventRepo
	hostStore  repository.HostConfigStore
	log        *logger.Logger

	timeout      time.Duration
	pollInterval time.Duration
	autoPoll     bool

	connMu    sync.Mutex
	connected bool

	mu         sync.RWMutex
	status     models.SystemStatus
	haveStatus bool

	pollMu     sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}

	persistMu sync.Mutex
	persisted models.SystemStatus

	cfgMu      sync.RWMutex
	hostConfig map[string]string
}

type RigOption func(*RigService)

func WithRigLogger(l *logger.Logger) RigOption {
	return func(s *RigService) { s.log = logger.OrNop(l).Component("rig") }
}

// WithCommandTimeout bounds every synchronous command. Zero keeps the
// per-command default.
func WithCommandTimeout(d time.Duration) RigOption {
	return func(s *RigService) { s.timeout = d }
}

func WithPollInterval(d time.Duration) RigOption {
	return func(s *RigService) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithAutoPoll starts status polling on every successful Connect.
func WithAutoPoll(on bool) RigOption {
	return func(s *RigService) { s.autoPoll = on }
}

// NewRigService builds the facade. Any of the stores may be nil; the
// matching persistence is then skipped.
func NewRigService(
	disp Dispatcher,
	statusRepo repository.StatusRepo,
	eventRepo repository.EventRepo,
	hostStore repository.HostConfigStore,
	opts ...RigOption,
) *RigService {
	s := &RigService{
		disp:         disp,
		statusRepo:   statusRepo,
		eventRepo:    eventRepo,
		hostStore:    hostStore,
		log:          logger.Nop(),
		pollInterval: DefaultPollRate,
		hostConfig:   make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// -------- Lifecycle --------

// Connect opens the link and starts the dispatcher. Host configuration is
// loaded on a best-effort basis.
func (s *RigService) Connect(ctx context.Context) error {
	s.connMu.Lock()
	if s.connected {
		s.connMu.Unlock()
		return nil
	}
	if err := s.disp.Start(ctx); err != nil {
		s.connMu.Unlock()
		s.journal(ctx, models.EventError, "Connect failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("connect: %w", err)
	}
	s.connected = true
	s.connMu.Unlock()

	if err := s.LoadHostConfig(); err != nil {
		s.log.Debugw("host_config_not_loaded", "error", err)
	}
	s.log.Infow("rig_connected")
	s.journal(ctx, models.EventConnect, "Rig connected", nil)

	if s.autoPoll {
		s.StartStatusUpdates()
	}
	return nil
}

// Disconnect stops status polling, then the dispatcher.
func (s *RigService) Disconnect(ctx context.Context) error {
	s.StopStatusUpdates()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.disp.Stop(); err != nil {
		s.log.Warnw("rig_disconnect_failed", "error", err)
		return fmt.Errorf("disconnect: %w", err)
	}
	s.log.Infow("rig_disconnected")
	s.journal(ctx, models.EventDisconnect, "Rig disconnected", nil)
	return nil
}

func (s *RigService) Connected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.connected
}

// -------- Status cache --------

// Status returns the cached status snapshot.
func (s *RigService) Status() models.SystemStatus {
	st, _ := s.CachedStatus()
	return st
}

// CachedStatus returns the snapshot and whether any poll has succeeded yet.
func (s *RigService) CachedStatus() (models.SystemStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.haveStatus
}

// RefreshStatus polls STATUS once and updates the cache on success.
func (s *RigService) RefreshStatus(ctx context.Context) (models.SystemStatus, bool) {
	resp := s.exec(ctx, protocol.CmdStatus)
	if !resp.OK() {
		s.log.Debugw("status_poll_failed", "status", resp.Status, "message", resp.Message)
		return s.Status(), false
	}
	st, err := ParseStatus(resp.Message)
	if err != nil {
		s.log.Warnw("status_parse_failed", "message", resp.Message, "error", err)
		return s.Status(), false
	}
	st.UpdatedAt = resp.Timestamp.UTC()

	s.mu.Lock()
	s.status = st
	s.haveStatus = true
	s.mu.Unlock()

	s.persist(ctx, st)
	return st, true
}

// persist saves st when it differs from the last saved reading.
func (s *RigService) persist(ctx context.Context, st models.SystemStatus) {
	if s.statusRepo == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.persisted.SameReading(st) && !s.persisted.UpdatedAt.IsZero() {
		return
	}
	if err := s.statusRepo.Save(ctx, st); err != nil {
		s.log.Warnw("status_persist_failed", "error", err)
		return
	}
	s.persisted = st
}

// -------- Motion --------

// NormalizeHomeAxis upper-cases axis and checks it names ALL, X, Y or Z.
func NormalizeHomeAxis(axis string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(axis))
	switch a {
	case "ALL", "X", "Y", "Z":
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAxis, axis)
}

func (s *RigService) HomeAxis(ctx context.Context, axis string) bool {
	a, err := NormalizeHomeAxis(axis)
	if err != nil {
		s.log.Warnw("home_rejected", "axis", axis)
		return false
	}
	return s.do(ctx, protocol.CmdHome, a)
}

func (s *RigService) HomeAll(ctx context.Context) bool {
	return s.HomeAxis(ctx, "ALL")
}

// MoveTo sends an absolute move. Tilt is only sent together with pan.
func (s *RigService) MoveTo(ctx context.Context, x, y, z float64, pan, tilt *float64) bool {
	params := []any{x, y, z}
	if pan != nil {
		params = append(params, *pan)
		if tilt != nil {
			params = append(params, *tilt)
		}
	}
	return s.do(ctx, protocol.CmdMove, params...)
}

// MoveRelative offsets the last cached position, polling STATUS first when
// nothing has been cached yet.
func (s *RigService) MoveRelative(ctx context.Context, dx, dy, dz, dpan, dtilt float64) bool {
	cur, ok := s.CachedStatus()
	if !ok {
		// Offsets from an unknown position would land on absolute coordinates.
		if cur, ok = s.RefreshStatus(ctx); !ok {
			s.log.Warnw("move_relative_refused", "reason", "position unknown")
			return false
		}
	}
	pan := cur.Pan + dpan
	tilt := cur.Tilt + dtilt
	return s.MoveTo(ctx, cur.X+dx, cur.Y+dy, cur.Z+dz, &pan, &tilt)
}

func (s *RigService) Forward(ctx context.Context, mm float64) bool {
	return s.MoveRelative(ctx, 0, mm, 0, 0, 0)
}

func (s *RigService) Backward(ctx context.Context, mm float64) bool {
	return s.MoveRelative(ctx, 0, -mm, 0, 0, 0)
}

func (s *RigService) Left(ctx context.Context, mm float64) bool {
	return s.MoveRelative(ctx, -mm, 0, 0, 0, 0)
}

func (s *RigService) Right(ctx context.Context, mm float64) bool {
	return s.MoveRelative(ctx, mm, 0, 0, 0, 0)
}

func (s *RigService) LookUp(ctx context.Context, deg float64) bool {
	return s.MoveRelative(ctx, 0, 0, 0, 0, -deg)
}

func (s *RigService) LookDown(ctx context.Context, deg float64) bool {
	return s.MoveRelative(ctx, 0, 0, 0, 0, deg)
}

func (s *RigService) LookLeft(ctx context.Context, deg float64) bool {
	return s.MoveRelative(ctx, 0, 0, 0, -deg, 0)
}

func (s *RigService) LookRight(ctx context.Context, deg float64) bool {
	return s.MoveRelative(ctx, 0, 0, 0, deg, 0)
}

// Nudge runs one directional move by name. A zero amount uses the
// direction's default step.
func (s *RigService) Nudge(ctx context.Context, direction string, amount float64) (bool, error) {
	type move struct {
		fn  func(context.Context, float64) bool
		def float64
	}
	moves := map[string]move{
		"forward":    {s.Forward, DefaultStepMM},
		"backward":   {s.Backward, DefaultStepMM},
		"left":       {s.Left, DefaultStepMM},
		"right":      {s.Right, DefaultStepMM},
		"look-up":    {s.LookUp, DefaultStepDeg},
		"look-down":  {s.LookDown, DefaultStepDeg},
		"look-left":  {s.LookLeft, DefaultStepDeg},
		"look-right": {s.LookRight, DefaultStepDeg},
	}
	m, found := moves[strings.ToLower(strings.TrimSpace(direction))]
	if !found {
		return false, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if amount == 0 {
		amount = m.def
	}
	return m.fn(ctx, amount), nil
}

func (s *RigService) Stop(ctx context.Context) bool {
	return s.do(ctx, protocol.CmdStop)
}

func (s *RigService) SetVelocity(ctx context.Context, vx, vy, vz float64) bool {
	return s.do(ctx, protocol.CmdVelocity, vx, vy, vz)
}

func (s *RigService) SetPan(ctx context.Context, deg float64) bool {
	return s.do(ctx, protocol.CmdPan, deg)
}

func (s *RigService) SetTilt(ctx context.Context, deg float64) bool {
	return s.do(ctx, protocol.CmdTilt, deg)
}

// -------- Rangefinder --------

// TakeMeasurement returns the distance in meters, or false when the
// controller refused or answered something that is not a number.
func (s *RigService) TakeMeasurement(ctx context.Context) (float64, bool) {
	resp := s.exec(ctx, protocol.CmdMeasure)
	if !resp.OK() {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp.Message), 64)
	if err != nil {
		s.log.Warnw("measure_parse_failed", "message", resp.Message)
		return 0, false
	}
	return v, true
}

func (s *RigService) StartScan(ctx context.Context, x1, y1, x2, y2, step float64) bool {
	return s.do(ctx, protocol.CmdScan, x1, y1, x2, y2, step)
}

// -------- System --------

func (s *RigService) Ping(ctx context.Context) bool {
	return s.exec(ctx, protocol.CmdPing).OK()
}

func (s *RigService) Reset(ctx context.Context) bool {
	return s.do(ctx, protocol.CmdReset)
}

func (s *RigService) SetDebug(ctx context.Context, on bool) bool {
	mode := "OFF"
	if on {
		mode = "ON"
	}
	return s.exec(ctx, protocol.CmdDebug, mode).OK()
}

func (s *RigService) EmergencyStop(ctx context.Context) bool {
	return s.doAs(ctx, models.EventEstop, protocol.CmdEstop)
}

func (s *RigService) ResetEmergencyStop(ctx context.Context) bool {
	return s.doAs(ctx, models.EventEstop, protocol.CmdResetEstop)
}

// -------- Device configuration --------

// GetConfigValue reads a controller setting, falling back to def.
func (s *RigService) GetConfigValue(ctx context.Context, key, def string) string {
	resp := s.exec(ctx, protocol.CmdGet, key)
	if !resp.OK() {
		return def
	}
	return resp.Message
}

func (s *RigService) SetConfigValue(ctx context.Context, key, value string) bool {
	return s.do(ctx, protocol.CmdSet, key, value)
}

func (s *RigService) SaveControllerConfig(ctx context.Context) bool {
	return s.do(ctx, protocol.CmdSave)
}

// ConfigCommand runs CONFIG:<sub> and returns the raw outcome.
func (s *RigService) ConfigCommand(ctx context.Context, sub string) protocol.Response {
	return s.exec(ctx, protocol.CmdConfig, strings.ToUpper(strings.TrimSpace(sub)))
}

// -------- Host configuration --------

// LoadHostConfig replaces the cached host configuration from the store.
func (s *RigService) LoadHostConfig() error {
	if s.hostStore == nil {
		return ErrNoHostConfig
	}
	values, err := s.hostStore.Load()
	if err != nil {
		return err
	}
	s.cfgMu.Lock()
	s.hostConfig = values
	s.cfgMu.Unlock()
	return nil
}

func (s *RigService) SaveHostConfig() error {
	if s.hostStore == nil {
		return ErrNoHostConfig
	}
	return s.hostStore.Save(s.HostConfig())
}

// HostConfig returns a copy of the cached host configuration.
func (s *RigService) HostConfig() map[string]string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	out := make(map[string]string, len(s.hostConfig))
	for k, v := range s.hostConfig {
		out[k] = v
	}
	return out
}

func (s *RigService) HostConfigValue(key, def string) string {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	if v, found := s.hostConfig[key]; found {
		return v
	}
	return def
}

func (s *RigService) SetHostConfigValue(key, value string) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.hostConfig[key] = value
}

// -------- Internals --------

// exec sends one command and waits for its reply.
func (s *RigService) exec(ctx context.Context, name protocol.Name, params ...any) protocol.Response {
	cmd := protocol.NewCommand(name, params...)
	if !s.Connected() {
		return protocol.ErrorResponse(cmd, ErrNotConnected)
	}
	resp := s.disp.SendSync(ctx, cmd, s.timeout)
	if !resp.OK() {
		s.log.Debugw("rig_command_rejected", "command", cmd.Text(), "status", resp.Status, "message", resp.Message)
	}
	return resp
}

// do is exec for state-changing commands: the outcome is journaled.
func (s *RigService) do(ctx context.Context, name protocol.Name, params ...any) bool {
	return s.doAs(ctx, models.EventCommand, name, params...)
}

func (s *RigService) doAs(ctx context.Context, typ string, name protocol.Name, params ...any) bool {
	resp := s.exec(ctx, name, params...)
	if !resp.OK() {
		typ = models.EventError
	}
	args := make([]string, len(params))
	for i, p := range params {
		args[i] = protocol.FormatParam(p)
	}
	s.journal(ctx, typ, protocol.NewCommand(name, params...).Text(), map[string]any{
		"command": string(name),
		"params":  args,
		"status":  string(resp.Status),
		"message": resp.Message,
	})
	return resp.OK()
}

// journal appends an event. Failures are logged only.
func (s *RigService) journal(ctx context.Context, typ, description string, meta map[string]any) {
	if s.eventRepo == nil {
		return
	}
	ev := models.RigEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: description,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Warnw("journal_append_failed", "type", typ, "error", err)
	}
}
