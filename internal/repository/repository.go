package repository

import (
	"context"
	"database/sql"
	"time"

	"space_maquette/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.Operator, error)
}

type StatusRepo interface {
	Save(ctx context.Context, s models.SystemStatus) error
	Load(ctx context.Context) (models.SystemStatus, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.RigEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.RigEvent, error)
}

// HostConfigStore persists the host-side key/value configuration.
type HostConfigStore interface {
	Load() (map[string]string, error)
	Save(values map[string]string) error
}

type Repository struct {
	StatusRepo StatusRepo
	EventRepo  EventRepo
	Auth       Authorization
	HostConfig HostConfigStore
}

func NewRepository(db *sql.DB, hostConfigPath string) *Repository {
	return &Repository{
		StatusRepo: NewStatusSQLite(db),
		EventRepo:  NewEventSQLite(db),
		Auth:       NewOperatorRepository(db),
		HostConfig: NewHostConfigYAML(hostConfigPath),
	}
}
