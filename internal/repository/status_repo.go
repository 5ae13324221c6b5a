package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"space_maquette/internal/models"
)

// StatusSQLite persists the last good rig status snapshot.
type StatusSQLite struct {
	db *sql.DB
}

func NewStatusSQLite(db *sql.DB) *StatusSQLite {
	return &StatusSQLite{db: db}
}

const (
	rigStatusRowID = 1

	upsertStatusSQL = `
		INSERT INTO rig_status (id, x, y, z, pan, tilt, estop, moving, homed, axes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			x=excluded.x,
			y=excluded.y,
			z=excluded.z,
			pan=excluded.pan,
			tilt=excluded.tilt,
			estop=excluded.estop,
			moving=excluded.moving,
			homed=excluded.homed,
			axes=excluded.axes,
			updated_at=excluded.updated_at
	`

	selectStatusSQL = `
		SELECT id, x, y, z, pan, tilt, estop, moving, homed, axes, updated_at
		FROM rig_status WHERE id=?
	`
)

func marshalAxisStates(a models.AxisStates) (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalAxisStates treats an empty column as all UNKNOWN.
func unmarshalAxisStates(s string) (models.AxisStates, error) {
	if s == "" {
		return models.UniformAxisStates(models.AxisUnknown), nil
	}
	var a models.AxisStates
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return models.AxisStates{}, err
	}
	return a, nil
}

// Save upserts the rig_status row (id always 1).
func (r *StatusSQLite) Save(ctx context.Context, st models.SystemStatus) error {
	axesJSON, err := marshalAxisStates(st.Axes)
	if err != nil {
		return err
	}

	ts := st.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err = r.db.ExecContext(ctx, upsertStatusSQL,
		rigStatusRowID,
		st.X,
		st.Y,
		st.Z,
		st.Pan,
		st.Tilt,
		st.Estop,
		st.Moving,
		st.Homed,
		axesJSON,
		ts,
	)
	return err
}

// Load fetches the snapshot. A zero status (ID 0) means none was saved yet.
func (r *StatusSQLite) Load(ctx context.Context) (models.SystemStatus, error) {
	row := r.db.QueryRowContext(ctx, selectStatusSQL, rigStatusRowID)

	var st models.SystemStatus
	var axesJSON sql.NullString
	if err := row.Scan(
		&st.ID,
		&st.X,
		&st.Y,
		&st.Z,
		&st.Pan,
		&st.Tilt,
		&st.Estop,
		&st.Moving,
		&st.Homed,
		&axesJSON,
		&st.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SystemStatus{}, nil
		}
		return models.SystemStatus{}, err
	}

	axes, err := unmarshalAxisStates(axesJSON.String)
	if err != nil {
		return models.SystemStatus{}, err
	}
	st.Axes = axes
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}
