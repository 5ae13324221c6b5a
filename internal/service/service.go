package service

import (
	"context"
	"time"

	"space_maquette/internal/models"
	"space_maquette/internal/protocol"
	"space_maquette/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Rig is the controller facade as seen by the HTTP layer.
type Rig interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Connected() bool
	StartStatusUpdates()
	StopStatusUpdates()
	Polling() bool
	RefreshStatus(ctx context.Context) (models.SystemStatus, bool)

	Ping(ctx context.Context) bool
	Reset(ctx context.Context) bool
	SetDebug(ctx context.Context, on bool) bool
	EmergencyStop(ctx context.Context) bool
	ResetEmergencyStop(ctx context.Context) bool

	HomeAxis(ctx context.Context, axis string) bool
	HomeAll(ctx context.Context) bool
	MoveTo(ctx context.Context, x, y, z float64, pan, tilt *float64) bool
	MoveRelative(ctx context.Context, dx, dy, dz, dpan, dtilt float64) bool
	Nudge(ctx context.Context, direction string, amount float64) (bool, error)
	Stop(ctx context.Context) bool
	SetVelocity(ctx context.Context, vx, vy, vz float64) bool
	SetPan(ctx context.Context, deg float64) bool
	SetTilt(ctx context.Context, deg float64) bool
	TakeMeasurement(ctx context.Context) (float64, bool)
	StartScan(ctx context.Context, x1, y1, x2, y2, step float64) bool

	GetConfigValue(ctx context.Context, key, def string) string
	SetConfigValue(ctx context.Context, key, value string) bool
	SaveControllerConfig(ctx context.Context) bool
	ConfigCommand(ctx context.Context, sub string) protocol.Response

	HostConfig() map[string]string
	HostConfigValue(key, def string) string
	SetHostConfigValue(key, value string)
	LoadHostConfig() error
	SaveHostConfig() error
}

// Monitoring exposes the rig status for readers.
type Monitoring interface {
	GetState(ctx context.Context) (models.SystemStatus, error)
}

// EventLog exposes the journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.RigEvent, error)
}

var _ Rig = (*RigService)(nil)

// AuthConfig carries the token settings.
type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

// Service aggregates all sub-services.
type Service struct {
	Rig
	Monitoring
	EventLog
	Authorization
}

// NewService wires the repository layer and the dispatcher into the
// concrete services.
func NewService(repos *repository.Repository, disp Dispatcher, auth AuthConfig, opts ...RigOption) (*Service, error) {
	authSvc, err := NewAuthService(repos.Auth, auth.SigningKey, auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	rig := NewRigService(disp, repos.StatusRepo, repos.EventRepo, repos.HostConfig, opts...)
	return &Service{
		Rig:           rig,
		Monitoring:    NewMonitoringService(rig, repos.StatusRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: authSvc,
	}, nil
}
