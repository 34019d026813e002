package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

type appointmentRepository struct {
	s *Store
}

func NewAppointmentRepository(s *Store) repository.AppointmentRepository {
	return &appointmentRepository{s: s}
}

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if apt.IsPlanned() && r.plannedAt(apt.DoctorID, apt.Date, apt.StartTime) {
		return apperrors.NotAllowed("slot already taken")
	}
	r.s.stamp(&apt.Base)
	r.s.appointments[apt.ID] = *apt
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	apt, ok := r.s.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return &apt, nil
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.Get(ctx, id)
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.appointments[apt.ID]
	if !ok {
		return apperrors.NotFound("appointment", nil)
	}
	stored.Status = apt.Status
	stored.UpdatedAt = r.s.now()
	r.s.appointments[apt.ID] = stored
	apt.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *appointmentRepository) ExistsPlanned(ctx context.Context, doctorID uuid.UUID, date model.Date, start model.TimeOfDay) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.plannedAt(doctorID, date, start), nil
}

func (r *appointmentRepository) ListPlannedForDoctor(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error) {
	return r.filter(func(a *model.Appointment) bool {
		return a.DoctorID == doctorID && a.Date.Equal(date) && a.IsPlanned()
	}), nil
}

func (r *appointmentRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error) {
	return r.filter(func(a *model.Appointment) bool {
		return a.DoctorID == doctorID && a.Date.Equal(date)
	}), nil
}

func (r *appointmentRepository) ListUpcomingForPatient(ctx context.Context, patientID uuid.UUID, date model.Date, from model.TimeOfDay) ([]*model.Appointment, error) {
	return r.filter(func(a *model.Appointment) bool {
		if a.PatientID != patientID || !a.IsPlanned() {
			return false
		}
		return a.Date.After(date) || (a.Date.Equal(date) && !a.StartTime.Before(from))
	}), nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return r.filter(func(a *model.Appointment) bool {
		if !filters.Date.IsZero() && !a.Date.Equal(filters.Date) {
			return false
		}
		if filters.DoctorID != nil && a.DoctorID != *filters.DoctorID {
			return false
		}
		if filters.PatientID != nil && a.PatientID != *filters.PatientID {
			return false
		}
		return true
	}), nil
}

// plannedAt reports whether the slot is held. Callers hold mu.
func (r *appointmentRepository) plannedAt(doctorID uuid.UUID, date model.Date, start model.TimeOfDay) bool {
	for _, a := range r.s.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.StartTime == start && a.IsPlanned() {
			return true
		}
	}
	return false
}

// filter returns copies ordered by date then start time.
func (r *appointmentRepository) filter(keep func(*model.Appointment) bool) []*model.Appointment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Appointment
	for _, a := range r.s.appointments {
		a := a
		if keep(&a) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}
