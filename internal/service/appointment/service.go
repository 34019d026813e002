package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	"github.com/jwalitptl/rx-scheduler/internal/service/event"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

type Service struct {
	tx       repository.TxManager
	repo     repository.AppointmentRepository
	patients repository.PatientRepository
	doctors  repository.DoctorRepository
	events   event.Recorder
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	tx repository.TxManager,
	repo repository.AppointmentRepository,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	events event.Recorder,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		tx:       tx,
		repo:     repo,
		patients: patients,
		doctors:  doctors,
		events:   events,
		logger:   logger,
		metrics:  metrics,
	}
}

// FreeSlots lists the slots of doctorID on date without a planned
// appointment. It reads the current bookings on every call.
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]model.TimeOfDay, error) {
	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	booked, err := s.repo.ListPlannedForDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list planned appointments: %w", err)
	}
	return freeSlots(booked), nil
}

// Book reserves start on date with the patient's assigned doctor. Patients
// book for themselves; administrators may book for any patient.
func (s *Service) Book(ctx context.Context, by model.Actor, patientID uuid.UUID, date model.Date, start model.TimeOfDay) (*model.Appointment, error) {
	if !by.IsAdmin() && !by.Is(model.RolePatient, patientID) {
		s.metrics.BookingAttempts.WithLabelValues("forbidden").Inc()
		return nil, apperrors.NotAllowed("patients can only book their own appointments")
	}
	if date.IsZero() {
		return nil, apperrors.Validation("date", "date is required")
	}
	if !OnGrid(start) {
		s.metrics.BookingAttempts.WithLabelValues("invalid").Inc()
		return nil, apperrors.Validation("time", "out of range or not slot-aligned")
	}

	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.AssignedDoctorID == nil {
		s.metrics.BookingAttempts.WithLabelValues("no_doctor").Inc()
		return nil, apperrors.NotAllowed("patient has no assigned doctor")
	}

	apt := model.NewAppointment(patient.ID, *patient.AssignedDoctorID, date, start)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		taken, err := s.repo.ExistsPlanned(ctx, apt.DoctorID, date, start)
		if err != nil {
			return fmt.Errorf("failed to check slot: %w", err)
		}
		if taken {
			return apperrors.NotAllowed("slot already taken")
		}
		if err := s.repo.Create(ctx, apt); err != nil {
			return err
		}
		return s.events.Record(ctx, event.AppointmentBooked, apt.ID, event.AppointmentEvent(apt, by))
	})
	if err != nil {
		if apperrors.IsNotAllowed(err) {
			s.metrics.BookingAttempts.WithLabelValues("taken").Inc()
			s.logger.Info("booking rejected",
				"doctor_id", apt.DoctorID.String(),
				"date", date.String(),
				"time", start.String())
		}
		return nil, err
	}

	s.metrics.BookingAttempts.WithLabelValues("booked").Inc()
	s.logger.Debug("appointment booked",
		"appointment_id", apt.ID.String(),
		"doctor_id", apt.DoctorID.String())
	return apt, nil
}

func (s *Service) Complete(ctx context.Context, by model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, by, id, (*model.Appointment).Complete, event.AppointmentCompleted)
}

func (s *Service) MarkAbsent(ctx context.Context, by model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, by, id, (*model.Appointment).MarkAbsent, event.AppointmentAbsent)
}

func (s *Service) Cancel(ctx context.Context, by model.Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, by, id, (*model.Appointment).Cancel, event.AppointmentCancelled)
}

// transition locks the appointment, applies a guarded state change and
// records the matching event in one unit of work.
func (s *Service) transition(
	ctx context.Context,
	by model.Actor,
	id uuid.UUID,
	apply func(*model.Appointment, model.Actor) error,
	eventType string,
) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		apt, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(apt, by); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, apt); err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}
		return s.events.Record(ctx, eventType, apt.ID, event.AppointmentEvent(apt, by))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues("appointment", string(apt.Status)).Inc()
	s.logger.Debug("appointment transitioned",
		"appointment_id", apt.ID.String(),
		"status", string(apt.Status))
	return apt, nil
}

// Agenda lists every appointment of the doctor on date, ordered by time.
func (s *Service) Agenda(ctx context.Context, by model.Actor, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error) {
	if !by.IsAdmin() && !by.Is(model.RoleDoctor, doctorID) {
		return nil, apperrors.NotAllowed("only the doctor or an administrator can view the agenda")
	}
	appointments, err := s.repo.ListForDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list agenda: %w", err)
	}
	return appointments, nil
}

// UpcomingForPatient lists planned appointments at or after now.
func (s *Service) UpcomingForPatient(ctx context.Context, by model.Actor, patientID uuid.UUID, now time.Time) ([]*model.Appointment, error) {
	if !by.IsAdmin() && !by.Is(model.RolePatient, patientID) {
		return nil, apperrors.NotAllowed("patients can only view their own appointments")
	}
	appointments, err := s.repo.ListUpcomingForPatient(ctx, patientID, model.DateOf(now), model.TimeOfDayOf(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) List(ctx context.Context, by model.Actor, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if !by.IsAdmin() {
		return nil, apperrors.NotAllowed("only administrators can list appointments")
	}
	if filters.Date.IsZero() {
		return nil, apperrors.Validation("date", "date is required")
	}
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
