package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"space_maquette/internal/models"
	"space_maquette/internal/repository"
)

var statusColumns = []string{"id", "x", "y", "z", "pan", "tilt", "estop", "moving", "homed", "axes", "updated_at"}

func TestStatusSQLite_Save_SetsUTCAndMarshalsAxes_WhenTimeZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStatusSQLite(db)

	st := models.SystemStatus{
		X: 10, Y: 20, Z: 5, Pan: 45, Tilt: 90,
		Moving: true,
		Homed:  true,
		Axes:   models.UniformAxisStates(models.AxisMoving),
	}

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rig_status")).
		WithArgs(
			1,
			st.X, st.Y, st.Z, st.Pan, st.Tilt,
			false, true, true,
			`{"x":"MOVING","y":"MOVING","z":"MOVING","pan":"MOVING","tilt":"MOVING"}`,
			isUTCRecent,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatusSQLite_Save_PreservesGivenTimeButConvertsToUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := repository.NewStatusSQLite(db)

	locTokyo, _ := time.LoadLocation("Asia/Tokyo")
	original := time.Date(2023, 10, 5, 12, 34, 56, 0, locTokyo)
	expectedUTC := original.UTC()

	isExactUTC := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		return ok && tm.Equal(expectedUTC) && tm.Location() == time.UTC
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rig_status")).
		WithArgs(1, 0.0, 0.0, 0.0, 0.0, 0.0, true, false, false, sqlmock.AnyArg(), isExactUTC).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), models.SystemStatus{Estop: true, UpdatedAt: original}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatusSQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rig_status")).
		WillReturnError(errors.New("db down"))

	if err := repository.NewStatusSQLite(db).Save(context.Background(), models.SystemStatus{}); err == nil {
		t.Fatalf("Save() expected error, got nil")
	}
}

func TestStatusSQLite_Load_NoRowsReturnsZeroValueAndNilError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, x, y, z, pan, tilt, estop, moving, homed, axes, updated_at")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	got, err := repository.NewStatusSQLite(db).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, models.SystemStatus{}) {
		t.Fatalf("Load() expected zero status, got: %+v", got)
	}
}

func TestStatusSQLite_Load_HappyPath_UnmarshalsAndUTC(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	locNY, _ := time.LoadLocation("America/New_York")
	nonUTC := time.Date(2024, 2, 1, 8, 30, 0, 0, locNY)

	rows := sqlmock.NewRows(statusColumns).
		AddRow(1, 10.0, 20.0, 5.0, 45.0, 90.0, false, false, true,
			`{"x":"HOMED","y":"HOMED","z":"HOMED","pan":"HOMED","tilt":"HOMED"}`, nonUTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, x, y, z, pan, tilt, estop, moving, homed, axes, updated_at")).
		WithArgs(1).
		WillReturnRows(rows)

	got, err := repository.NewStatusSQLite(db).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got.ID != 1 || got.X != 10 || got.Y != 20 || got.Z != 5 || got.Pan != 45 || got.Tilt != 90 || !got.Homed || got.Moving {
		t.Fatalf("Load() unexpected fields: %+v", got)
	}
	if got.Axes != models.UniformAxisStates(models.AxisHomed) {
		t.Fatalf("Load() axes mismatch: %+v", got.Axes)
	}
	if got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("Load() UpdatedAt not UTC: %v", got.UpdatedAt.Location())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStatusSQLite_Load_NullAxesMeansUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(statusColumns).
		AddRow(1, 0.0, 0.0, 0.0, 0.0, 0.0, false, false, false, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM rig_status")).WithArgs(1).WillReturnRows(rows)

	got, err := repository.NewStatusSQLite(db).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got.Axes != models.UniformAxisStates(models.AxisUnknown) {
		t.Fatalf("expected UNKNOWN axes, got %+v", got.Axes)
	}
}

func TestStatusSQLite_Load_InvalidAxesJSON_ReturnsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(statusColumns).
		AddRow(1, 0.0, 0.0, 0.0, 0.0, 0.0, false, false, false, `["not","an","object"]`, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM rig_status")).WithArgs(1).WillReturnRows(rows)

	if _, err := repository.NewStatusSQLite(db).Load(context.Background()); err == nil {
		t.Fatalf("Load() expected error due to invalid axes JSON, got nil")
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
