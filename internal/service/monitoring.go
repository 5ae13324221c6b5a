package service

import (
	"context"
	"time"

	"space_maquette/internal/models"
	"space_maquette/internal/repository"
)

// StatusCache is the live status held by the facade.
type StatusCache interface {
	CachedStatus() (models.SystemStatus, bool)
}

type MonitoringService struct {
	live       StatusCache
	statusRepo repository.StatusRepo
}

func NewMonitoringService(live StatusCache, statusRepo repository.StatusRepo) *MonitoringService {
	return &MonitoringService{live: live, statusRepo: statusRepo}
}

// GetState returns the live status once polling has produced one, otherwise
// the last persisted snapshot. With neither, a baseline with every axis
// UNKNOWN is returned.
func (s *MonitoringService) GetState(ctx context.Context) (models.SystemStatus, error) {
	if s.live != nil {
		if st, ok := s.live.CachedStatus(); ok {
			st.UpdatedAt = toUTC(st.UpdatedAt)
			return st, nil
		}
	}

	if s.statusRepo == nil {
		return s.baselineState(), nil
	}
	state, err := s.statusRepo.Load(ctx)
	if err != nil {
		return models.SystemStatus{}, err
	}
	if state.ID == 0 {
		return s.baselineState(), nil
	}
	state.UpdatedAt = toUTC(state.UpdatedAt)
	return state, nil
}

// baselineState is the snapshot reported before the rig was ever polled.
func (s *MonitoringService) baselineState() models.SystemStatus {
	return models.SystemStatus{
		Axes:      models.UniformAxisStates(models.AxisUnknown),
		UpdatedAt: time.Now().UTC(),
	}
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
