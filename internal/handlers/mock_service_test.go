package handlers

import (
	"context"
	"net/http"
	"time"

	"space_maquette/internal/models"
	"space_maquette/internal/protocol"
	"space_maquette/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type moveCall struct {
	x, y, z   float64
	pan, tilt *float64
}

// mockRig answers every command with ok and records what it was asked.
type mockRig struct {
	connected  bool
	ok         bool
	connectErr error
	nudgeErr   error
	distance   float64
	configResp protocol.Response
	deviceCfg  map[string]string
	hostCfg    map[string]string
	loadErr    error
	saveErr    error
	polling    bool

	calls        []string
	connectCalls int
	refreshCalls int
	lastMove     moveCall
	lastHome     string
	lastNudge    string
	lastAmount   float64
	lastSet      [2]string
	lastScan     [5]float64
	lastDebug    bool
}

func newMockRig() *mockRig {
	return &mockRig{
		connected: true,
		ok:        true,
		deviceCfg: map[string]string{},
		hostCfg:   map[string]string{},
	}
}

func (m *mockRig) record(name string) bool {
	m.calls = append(m.calls, name)
	return m.ok
}

func (m *mockRig) Connect(ctx context.Context) error {
	m.connectCalls++
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}
func (m *mockRig) Disconnect(ctx context.Context) error {
	m.connected = false
	m.polling = false
	return nil
}
func (m *mockRig) Connected() bool    { return m.connected }
func (m *mockRig) StartStatusUpdates() { m.polling = true }
func (m *mockRig) StopStatusUpdates()  { m.polling = false }
func (m *mockRig) Polling() bool       { return m.polling }
func (m *mockRig) RefreshStatus(ctx context.Context) (models.SystemStatus, bool) {
	m.refreshCalls++
	return models.SystemStatus{}, m.ok
}

func (m *mockRig) Ping(ctx context.Context) bool  { return m.record("PING") }
func (m *mockRig) Reset(ctx context.Context) bool { return m.record("RESET") }
func (m *mockRig) SetDebug(ctx context.Context, on bool) bool {
	m.lastDebug = on
	return m.record("DEBUG")
}
func (m *mockRig) EmergencyStop(ctx context.Context) bool      { return m.record("ESTOP") }
func (m *mockRig) ResetEmergencyStop(ctx context.Context) bool { return m.record("RESET_ESTOP") }

func (m *mockRig) HomeAxis(ctx context.Context, axis string) bool {
	m.lastHome = axis
	return m.record("HOME")
}
func (m *mockRig) HomeAll(ctx context.Context) bool { return m.HomeAxis(ctx, "ALL") }
func (m *mockRig) MoveTo(ctx context.Context, x, y, z float64, pan, tilt *float64) bool {
	m.lastMove = moveCall{x: x, y: y, z: z, pan: pan, tilt: tilt}
	return m.record("MOVE")
}
func (m *mockRig) MoveRelative(ctx context.Context, dx, dy, dz, dpan, dtilt float64) bool {
	m.lastMove = moveCall{x: dx, y: dy, z: dz, pan: &dpan, tilt: &dtilt}
	return m.record("MOVE_REL")
}
func (m *mockRig) Nudge(ctx context.Context, direction string, amount float64) (bool, error) {
	m.lastNudge = direction
	m.lastAmount = amount
	if m.nudgeErr != nil {
		return false, m.nudgeErr
	}
	return m.record("NUDGE"), nil
}
func (m *mockRig) Stop(ctx context.Context) bool { return m.record("STOP") }
func (m *mockRig) SetVelocity(ctx context.Context, vx, vy, vz float64) bool {
	return m.record("VELOCITY")
}
func (m *mockRig) SetPan(ctx context.Context, deg float64) bool  { return m.record("PAN") }
func (m *mockRig) SetTilt(ctx context.Context, deg float64) bool { return m.record("TILT") }
func (m *mockRig) TakeMeasurement(ctx context.Context) (float64, bool) {
	return m.distance, m.record("MEASURE")
}
func (m *mockRig) StartScan(ctx context.Context, x1, y1, x2, y2, step float64) bool {
	m.lastScan = [5]float64{x1, y1, x2, y2, step}
	return m.record("SCAN")
}

func (m *mockRig) GetConfigValue(ctx context.Context, key, def string) string {
	m.record("CONFIG_GET")
	if v, ok := m.deviceCfg[key]; ok {
		return v
	}
	return def
}
func (m *mockRig) SetConfigValue(ctx context.Context, key, value string) bool {
	m.lastSet = [2]string{key, value}
	return m.record("CONFIG_SET")
}
func (m *mockRig) SaveControllerConfig(ctx context.Context) bool { return m.record("CONFIG_SAVE") }
func (m *mockRig) ConfigCommand(ctx context.Context, sub string) protocol.Response {
	m.record("CONFIG")
	return m.configResp
}

func (m *mockRig) HostConfig() map[string]string {
	out := make(map[string]string, len(m.hostCfg))
	for k, v := range m.hostCfg {
		out[k] = v
	}
	return out
}
func (m *mockRig) HostConfigValue(key, def string) string {
	if v, ok := m.hostCfg[key]; ok {
		return v
	}
	return def
}
func (m *mockRig) SetHostConfigValue(key, value string) { m.hostCfg[key] = value }
func (m *mockRig) LoadHostConfig() error                { return m.loadErr }
func (m *mockRig) SaveHostConfig() error                { return m.saveErr }

type mockMonitoring struct {
	state models.SystemStatus
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.SystemStatus, error) {
	return m.state, m.err
}

type mockEventLog struct {
	resp     []models.RigEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.RigEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
