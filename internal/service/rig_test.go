package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"space_maquette/internal/dispatch"
	"space_maquette/internal/models"
	"space_maquette/internal/protocol"
	"space_maquette/internal/simulator"
	"space_maquette/internal/transport"
)

// ---- Test doubles ----

// fakeDispatcher answers every command from a per-name reply table.
// Unlisted commands get "OK:DONE".
type fakeDispatcher struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	started  int
	stopped  int
	replies  map[protocol.Name][]string
	sent     []protocol.Command
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{replies: make(map[protocol.Name][]string)}
}

func (f *fakeDispatcher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return f.startErr
}

func (f *fakeDispatcher) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

// reply queues lines for name; the last one repeats.
func (f *fakeDispatcher) reply(name protocol.Name, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[name] = lines
}

func (f *fakeDispatcher) SendSync(ctx context.Context, cmd protocol.Command, timeout time.Duration) protocol.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	lines := f.replies[cmd.Name]
	switch len(lines) {
	case 0:
		return protocol.Parse("OK:DONE")
	case 1:
		return protocol.Parse(lines[0])
	}
	f.replies[cmd.Name] = lines[1:]
	return protocol.Parse(lines[0])
}

func (f *fakeDispatcher) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("expected at least one command to be sent")
	}
	return f.sent[len(f.sent)-1].Text()
}

func (f *fakeDispatcher) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type rigStatusRepo struct {
	mu      sync.Mutex
	saveErr error
	saved   []models.SystemStatus
}

func (r *rigStatusRepo) Save(ctx context.Context, st models.SystemStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, st)
	return r.saveErr
}

func (r *rigStatusRepo) Load(ctx context.Context) (models.SystemStatus, error) {
	return models.SystemStatus{}, nil
}

func (r *rigStatusRepo) saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

type rigEventRepo struct {
	mu        sync.Mutex
	appendErr error
	events    []models.RigEvent
}

func (r *rigEventRepo) Append(ctx context.Context, e models.RigEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.appendErr
}

func (r *rigEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]models.RigEvent, error) {
	return nil, nil
}

func (r *rigEventRepo) last(t *testing.T) models.RigEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatalf("expected at least one journal event")
	}
	return r.events[len(r.events)-1]
}

type hostStoreStub struct {
	values  map[string]string
	loadErr error
	saved   map[string]string
}

func (h *hostStoreStub) Load() (map[string]string, error) {
	if h.loadErr != nil {
		return nil, h.loadErr
	}
	out := make(map[string]string, len(h.values))
	for k, v := range h.values {
		out[k] = v
	}
	return out, nil
}

func (h *hostStoreStub) Save(values map[string]string) error {
	h.saved = values
	return nil
}

const homedStatus = "X=100.00,Y=200.00,Z=50.00,PAN=45.00,TILT=90.00,ESTOP=0,MOVING=0,HOMED=1"

func connectedRig(t *testing.T, opts ...RigOption) (*RigService, *fakeDispatcher, *rigEventRepo, *rigStatusRepo) {
	t.Helper()
	d := newFakeDispatcher()
	events := &rigEventRepo{}
	statuses := &rigStatusRepo{}
	rig := NewRigService(d, statuses, events, nil, opts...)
	if err := rig.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = rig.Disconnect(context.Background()) })
	return rig, d, events, statuses
}

func ptr(v float64) *float64 { return &v }

// ---- Lifecycle ----

func TestRigService_Connect_StartsDispatcherAndJournals(t *testing.T) {
	d := newFakeDispatcher()
	events := &rigEventRepo{}
	store := &hostStoreStub{values: map[string]string{"camera.fov": "60"}}
	rig := NewRigService(d, nil, events, store)

	if err := rig.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !rig.Connected() {
		t.Fatalf("expected connected")
	}
	if err := rig.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if d.started != 1 {
		t.Fatalf("dispatcher should start once, started=%d", d.started)
	}
	if got := rig.HostConfigValue("camera.fov", ""); got != "60" {
		t.Fatalf("host config not loaded on connect, got %q", got)
	}
	if ev := events.last(t); ev.Type != models.EventConnect {
		t.Fatalf("expected CONNECT event, got %q", ev.Type)
	}

	if err := rig.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if rig.Connected() || d.stopped != 1 {
		t.Fatalf("expected disconnected with one Stop, stopped=%d", d.stopped)
	}
	if ev := events.last(t); ev.Type != models.EventDisconnect {
		t.Fatalf("expected DISCONNECT event, got %q", ev.Type)
	}
}

func TestRigService_Connect_HostConfigFailureIsIgnored(t *testing.T) {
	d := newFakeDispatcher()
	rig := NewRigService(d, nil, nil, &hostStoreStub{loadErr: errors.New("missing")})

	if err := rig.Connect(context.Background()); err != nil {
		t.Fatalf("Connect should ignore host config errors, got %v", err)
	}
}

func TestRigService_Connect_FailureIsReported(t *testing.T) {
	d := newFakeDispatcher()
	d.startErr = errors.New("port busy")
	events := &rigEventRepo{}
	rig := NewRigService(d, nil, events, nil)

	err := rig.Connect(context.Background())
	if !errors.Is(err, d.startErr) {
		t.Fatalf("expected wrapped start error, got %v", err)
	}
	if rig.Connected() {
		t.Fatalf("must not be connected after failure")
	}
	if ev := events.last(t); ev.Type != models.EventError {
		t.Fatalf("expected ERROR event, got %q", ev.Type)
	}
}

func TestRigService_CommandsFailWhenNotConnected(t *testing.T) {
	d := newFakeDispatcher()
	rig := NewRigService(d, nil, nil, nil)

	if rig.Ping(context.Background()) {
		t.Fatalf("Ping must fail while disconnected")
	}
	if rig.MoveTo(context.Background(), 1, 2, 3, nil, nil) {
		t.Fatalf("MoveTo must fail while disconnected")
	}
	if d.sentCount() != 0 {
		t.Fatalf("nothing should reach the dispatcher, sent=%d", d.sentCount())
	}
	resp := rig.ConfigCommand(context.Background(), "list")
	if resp.Status != protocol.StatusError {
		t.Fatalf("expected ERROR response, got %s", resp.Status)
	}
}

// ---- Motion ----

func TestRigService_MoveTo_Params(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		pan, tilt *float64
		want      string
	}{
		{"xyz only", nil, nil, "MOVE:1.0,2.0,3.0"},
		{"with pan", ptr(45), nil, "MOVE:1.0,2.0,3.0,45.0"},
		{"with pan and tilt", ptr(45), ptr(90.5), "MOVE:1.0,2.0,3.0,45.0,90.5"},
		{"tilt without pan is dropped", nil, ptr(90), "MOVE:1.0,2.0,3.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !rig.MoveTo(ctx, 1, 2, 3, tc.pan, tc.tilt) {
				t.Fatalf("MoveTo returned false")
			}
			if got := d.lastText(t); got != tc.want {
				t.Fatalf("sent %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRigService_MoveRelative_UsesCachedStatus(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()
	d.reply(protocol.CmdStatus, "OK:"+homedStatus)

	if _, ok := rig.RefreshStatus(ctx); !ok {
		t.Fatalf("RefreshStatus failed")
	}
	if !rig.MoveRelative(ctx, 1, -2, 3, 10, -10) {
		t.Fatalf("MoveRelative returned false")
	}
	if got := d.lastText(t); got != "MOVE:101.0,198.0,53.0,55.0,80.0" {
		t.Fatalf("unexpected command %q", got)
	}
}

func TestRigService_MoveRelative_PollsStatusWhenNoneCached(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()
	d.reply(protocol.CmdStatus, "OK:"+homedStatus)

	if _, ok := rig.CachedStatus(); ok {
		t.Fatalf("expected no cached status before the first poll")
	}
	if !rig.Forward(ctx, 5) {
		t.Fatalf("Forward returned false")
	}
	if got := d.lastText(t); got != "MOVE:100.0,205.0,50.0,45.0,90.0" {
		t.Fatalf("unexpected command %q", got)
	}
	if d.sentCount() != 2 {
		t.Fatalf("expected STATUS then MOVE, sent %d commands", d.sentCount())
	}
}

func TestRigService_MoveRelative_RefusedWhenPositionUnknown(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()
	d.reply(protocol.CmdStatus, "ERROR:BUSY")

	if rig.Right(ctx, 10) {
		t.Fatalf("Right should fail without a known position")
	}
	if got := d.lastText(t); got != "STATUS" {
		t.Fatalf("expected only the STATUS poll, last sent %q", got)
	}
	if d.sentCount() != 1 {
		t.Fatalf("expected no MOVE after a failed poll, sent %d commands", d.sentCount())
	}
}

func TestRigService_Nudge(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()
	d.reply(protocol.CmdStatus, "OK:"+homedStatus)
	if _, ok := rig.RefreshStatus(ctx); !ok {
		t.Fatalf("RefreshStatus failed")
	}

	cases := []struct {
		direction string
		amount    float64
		want      string
	}{
		{"forward", 0, "MOVE:100.0,210.0,50.0,45.0,90.0"},
		{"backward", 5, "MOVE:100.0,195.0,50.0,45.0,90.0"},
		{"left", 0, "MOVE:90.0,200.0,50.0,45.0,90.0"},
		{"right", 0, "MOVE:110.0,200.0,50.0,45.0,90.0"},
		{"look-up", 0, "MOVE:100.0,200.0,50.0,45.0,85.0"},
		{"look-down", 0, "MOVE:100.0,200.0,50.0,45.0,95.0"},
		{"look-left", 0, "MOVE:100.0,200.0,50.0,40.0,90.0"},
		{"LOOK-RIGHT", 15, "MOVE:100.0,200.0,50.0,60.0,90.0"},
	}
	for _, tc := range cases {
		t.Run(tc.direction, func(t *testing.T) {
			ok, err := rig.Nudge(ctx, tc.direction, tc.amount)
			if err != nil || !ok {
				t.Fatalf("Nudge(%q) = %v, %v", tc.direction, ok, err)
			}
			if got := d.lastText(t); got != tc.want {
				t.Fatalf("sent %q, want %q", got, tc.want)
			}
		})
	}

	before := d.sentCount()
	if _, err := rig.Nudge(ctx, "sideways", 1); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
	if d.sentCount() != before {
		t.Fatalf("invalid direction must not send anything")
	}
}

func TestRigService_HomeAxis(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()

	if !rig.HomeAxis(ctx, "x") {
		t.Fatalf("HomeAxis(x) returned false")
	}
	if got := d.lastText(t); got != "HOME:X" {
		t.Fatalf("sent %q", got)
	}
	if !rig.HomeAll(ctx) || d.lastText(t) != "HOME:ALL" {
		t.Fatalf("HomeAll should send HOME:ALL")
	}

	before := d.sentCount()
	if rig.HomeAxis(ctx, "pan") {
		t.Fatalf("HomeAxis(pan) must be rejected locally")
	}
	if d.sentCount() != before {
		t.Fatalf("rejected axis must not be sent")
	}
	if _, err := NormalizeHomeAxis("q"); !errors.Is(err, ErrInvalidAxis) {
		t.Fatalf("expected ErrInvalidAxis, got %v", err)
	}
}

func TestRigService_SimpleCommands(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() bool
		want string
	}{
		{"ping", func() bool { return rig.Ping(ctx) }, "PING"},
		{"reset", func() bool { return rig.Reset(ctx) }, "RESET"},
		{"debug on", func() bool { return rig.SetDebug(ctx, true) }, "DEBUG:ON"},
		{"debug off", func() bool { return rig.SetDebug(ctx, false) }, "DEBUG:OFF"},
		{"stop", func() bool { return rig.Stop(ctx) }, "STOP"},
		{"velocity", func() bool { return rig.SetVelocity(ctx, 100, 100, 50) }, "VELOCITY:100.0,100.0,50.0"},
		{"pan", func() bool { return rig.SetPan(ctx, 30) }, "PAN:30.0"},
		{"tilt", func() bool { return rig.SetTilt(ctx, 60) }, "TILT:60.0"},
		{"scan", func() bool { return rig.StartScan(ctx, 0, 0, 100, 100, 10) }, "SCAN:0.0,0.0,100.0,100.0,10.0"},
		{"set", func() bool { return rig.SetConfigValue(ctx, "tilt_min", "30") }, "SET:tilt_min,30"},
		{"save", func() bool { return rig.SaveControllerConfig(ctx) }, "SAVE"},
		{"estop", func() bool { return rig.EmergencyStop(ctx) }, "ESTOP"},
		{"reset estop", func() bool { return rig.ResetEmergencyStop(ctx) }, "RESET_ESTOP"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.call() {
				t.Fatalf("%s returned false", tc.name)
			}
			if got := d.lastText(t); got != tc.want {
				t.Fatalf("sent %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRigService_DeviceRejectionIsFalse(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	d.reply(protocol.CmdMove, "ERROR:ESTOP_ACTIVE")

	if rig.MoveTo(context.Background(), 1, 2, 3, nil, nil) {
		t.Fatalf("expected false on device rejection")
	}
}

// ---- Rangefinder and configuration ----

func TestRigService_TakeMeasurement(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()

	d.reply(protocol.CmdMeasure, "OK:1.234", "ERROR:MEASUREMENT_FAILED", "OK:far")

	v, ok := rig.TakeMeasurement(ctx)
	if !ok || v != 1.234 {
		t.Fatalf("expected 1.234, got %v %v", v, ok)
	}
	if _, ok := rig.TakeMeasurement(ctx); ok {
		t.Fatalf("device error must yield no value")
	}
	if _, ok := rig.TakeMeasurement(ctx); ok {
		t.Fatalf("unparsable reply must yield no value")
	}
}

func TestRigService_GetConfigValue(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()

	d.reply(protocol.CmdGet, "OK:45", "ERROR:KEY_NOT_FOUND")

	if got := rig.GetConfigValue(ctx, "tilt_min", "0"); got != "45" {
		t.Fatalf("expected 45, got %q", got)
	}
	if got := d.lastText(t); got != "GET:tilt_min" {
		t.Fatalf("sent %q", got)
	}
	if got := rig.GetConfigValue(ctx, "nope", "fallback"); got != "fallback" {
		t.Fatalf("expected default, got %q", got)
	}
}

func TestRigService_ConfigCommand(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	d.reply(protocol.CmdConfig, "OK:CONFIG_LIST_NOT_IMPLEMENTED")

	resp := rig.ConfigCommand(context.Background(), " list ")
	if !resp.OK() || resp.Message != "CONFIG_LIST_NOT_IMPLEMENTED" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got := d.lastText(t); got != "CONFIG:LIST" {
		t.Fatalf("sent %q", got)
	}
}

// ---- Status cache ----

func TestRigService_RefreshStatus_FailureKeepsCache(t *testing.T) {
	rig, d, _, _ := connectedRig(t)
	ctx := context.Background()

	d.reply(protocol.CmdStatus, "OK:"+homedStatus, "ERROR:BUSY", "OK:X=abc", "OK:"+homedStatus)

	st, ok := rig.RefreshStatus(ctx)
	if !ok || st.X != 100 || !st.Homed {
		t.Fatalf("first refresh: %+v %v", st, ok)
	}
	if st.Axes != models.UniformAxisStates(models.AxisHomed) {
		t.Fatalf("axes not inferred: %+v", st.Axes)
	}

	for i := 0; i < 2; i++ {
		if _, ok := rig.RefreshStatus(ctx); ok {
			t.Fatalf("refresh %d should fail", i+2)
		}
		cached, have := rig.CachedStatus()
		if !have || cached.X != 100 || cached.Y != 200 {
			t.Fatalf("cache changed after failed poll: %+v", cached)
		}
	}
}

func TestRigService_PersistsOnlyChangedReadings(t *testing.T) {
	rig, d, _, statuses := connectedRig(t)
	ctx := context.Background()

	moving := "X=100.00,Y=200.00,Z=50.00,PAN=45.00,TILT=90.00,ESTOP=0,MOVING=1,HOMED=1"
	d.reply(protocol.CmdStatus, "OK:"+homedStatus, "OK:"+homedStatus, "OK:"+moving)

	for i := 0; i < 3; i++ {
		if _, ok := rig.RefreshStatus(ctx); !ok {
			t.Fatalf("refresh %d failed", i)
		}
	}
	if got := statuses.saves(); got != 2 {
		t.Fatalf("expected 2 saves, got %d", got)
	}
}

func TestRigService_StatusUpdates(t *testing.T) {
	rig, d, _, _ := connectedRig(t, WithPollInterval(5*time.Millisecond))
	d.reply(protocol.CmdStatus, "OK:"+homedStatus)

	rig.StartStatusUpdates()
	rig.StartStatusUpdates()
	if !rig.Polling() {
		t.Fatalf("expected polling")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, have := rig.CachedStatus(); have {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("poll loop never filled the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rig.StopStatusUpdates()
	if rig.Polling() {
		t.Fatalf("expected polling to stop")
	}
	n := d.sentCount()
	time.Sleep(30 * time.Millisecond)
	if d.sentCount() != n {
		t.Fatalf("commands sent after StopStatusUpdates")
	}
}

func TestRigService_AutoPollStopsOnDisconnect(t *testing.T) {
	d := newFakeDispatcher()
	rig := NewRigService(d, nil, nil, nil, WithAutoPoll(true), WithPollInterval(5*time.Millisecond))

	if err := rig.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !rig.Polling() {
		t.Fatalf("auto poll should start on connect")
	}
	if err := rig.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if rig.Polling() {
		t.Fatalf("disconnect should stop polling")
	}
}

// ---- Journal ----

func TestRigService_Journal(t *testing.T) {
	rig, d, events, _ := connectedRig(t)
	ctx := context.Background()

	rig.MoveTo(ctx, 10, 20, 5, nil, nil)
	ev := events.last(t)
	if ev.Type != models.EventCommand || ev.Description != "MOVE:10.0,20.0,5.0" {
		t.Fatalf("unexpected event %+v", ev)
	}
	meta, ok := ev.Metadata.(map[string]any)
	if !ok || meta["status"] != "OK" || meta["command"] != "MOVE" {
		t.Fatalf("unexpected metadata %+v", ev.Metadata)
	}
	if ev.EventID == "" || ev.OccurredAt.Location() != time.UTC {
		t.Fatalf("event id/time not set: %+v", ev)
	}

	rig.EmergencyStop(ctx)
	if ev := events.last(t); ev.Type != models.EventEstop {
		t.Fatalf("expected ESTOP event, got %q", ev.Type)
	}

	d.reply(protocol.CmdStop, "ERROR:ESTOP_ACTIVE")
	rig.Stop(ctx)
	if ev := events.last(t); ev.Type != models.EventError {
		t.Fatalf("expected ERROR event, got %q", ev.Type)
	}

	n := len(events.events)
	rig.Ping(ctx)
	rig.TakeMeasurement(ctx)
	if len(events.events) != n {
		t.Fatalf("queries must not be journaled")
	}
}

func TestRigService_JournalFailureDoesNotFailCommand(t *testing.T) {
	rig, _, events, _ := connectedRig(t)
	events.appendErr = errors.New("disk full")

	if !rig.Stop(context.Background()) {
		t.Fatalf("journal failure must not fail the command")
	}
}

// ---- Host configuration ----

func TestRigService_HostConfig(t *testing.T) {
	store := &hostStoreStub{values: map[string]string{"status.interval": "0.5"}}
	rig := NewRigService(newFakeDispatcher(), nil, nil, store)

	if err := rig.LoadHostConfig(); err != nil {
		t.Fatalf("LoadHostConfig: %v", err)
	}
	rig.SetHostConfigValue("connection.port", "COM3")
	if got := rig.HostConfigValue("missing", "dflt"); got != "dflt" {
		t.Fatalf("expected default, got %q", got)
	}

	snapshot := rig.HostConfig()
	snapshot["status.interval"] = "mutated"
	if rig.HostConfigValue("status.interval", "") != "0.5" {
		t.Fatalf("HostConfig must return a copy")
	}

	if err := rig.SaveHostConfig(); err != nil {
		t.Fatalf("SaveHostConfig: %v", err)
	}
	if store.saved["connection.port"] != "COM3" || store.saved["status.interval"] != "0.5" {
		t.Fatalf("unexpected saved values %+v", store.saved)
	}

	bare := NewRigService(newFakeDispatcher(), nil, nil, nil)
	if err := bare.LoadHostConfig(); !errors.Is(err, ErrNoHostConfig) {
		t.Fatalf("expected ErrNoHostConfig, got %v", err)
	}
}

// ---- End to end against the simulator ----

func TestRigService_EndToEndWithSimulator(t *testing.T) {
	sim := simulator.New(simulator.WithRand(rand.New(rand.NewSource(7))))
	d := dispatch.New(transport.NewSim(sim, 0), dispatch.WithChecksum(true))
	rig := NewRigService(d, nil, nil, nil, WithCommandTimeout(time.Second))
	ctx := context.Background()

	if err := rig.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer func() { _ = rig.Disconnect(ctx) }()

	st, ok := rig.RefreshStatus(ctx)
	if !ok || st.Homed {
		t.Fatalf("fresh rig should report HOMED=0: %+v ok=%v", st, ok)
	}
	if st.Axes.X != models.AxisUnknown {
		t.Fatalf("unhomed axes should be UNKNOWN, got %s", st.Axes.X)
	}

	if !rig.HomeAll(ctx) {
		t.Fatalf("HomeAll failed")
	}
	for i := 0; i < 100; i++ {
		sim.Tick(100 * time.Millisecond)
	}
	st, ok = rig.RefreshStatus(ctx)
	if !ok || !st.Homed || st.Moving {
		t.Fatalf("expected homed and idle: %+v", st)
	}

	if !rig.MoveTo(ctx, 10, 20, 5, nil, nil) {
		t.Fatalf("MoveTo failed")
	}
	st, ok = rig.RefreshStatus(ctx)
	if !ok || st.X != 10 || st.Y != 20 || st.Z != 5 {
		t.Fatalf("expected X=10 Y=20 Z=5, got %+v", st)
	}

	v, ok := rig.TakeMeasurement(ctx)
	if ok && (v < 0 || v > st.Z+5) {
		t.Fatalf("measurement %v out of range", v)
	}

	if !rig.EmergencyStop(ctx) {
		t.Fatalf("EmergencyStop failed")
	}
	if rig.MoveTo(ctx, 1, 1, 1, nil, nil) {
		t.Fatalf("moves must be refused while estopped")
	}
	if !rig.ResetEmergencyStop(ctx) || !rig.MoveTo(ctx, 1, 1, 1, nil, nil) {
		t.Fatalf("moves should work again after RESET_ESTOP")
	}
}
