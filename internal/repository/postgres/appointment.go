package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

// plannedSlotIndex is the partial unique index on planned appointments.
const plannedSlotIndex = "appointments_planned_slot_key"

const appointmentColumns = `id, patient_id, doctor_id, date, start_time, duration_minutes, status, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, date, start_time,
			duration_minutes, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt

	_, err := r.exec(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.Date,
		appointment.StartTime,
		appointment.Duration,
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if isUniqueViolation(err, plannedSlotIndex) {
		return apperrors.NotAllowed("slot already taken")
	}
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.get(ctx, &appointment, query, id); err != nil {
		return nil, notFound("appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 FOR UPDATE`

	var appointment model.Appointment
	if err := r.get(ctx, &appointment, query, id); err != nil {
		return nil, notFound("appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.exec(ctx, query, appointment.Status, appointment.UpdatedAt, appointment.ID)
	if isUniqueViolation(err, plannedSlotIndex) {
		return apperrors.NotAllowed("slot already taken")
	}
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return requireRow("appointment", result)
}

func (r *appointmentRepository) ExistsPlanned(ctx context.Context, doctorID uuid.UUID, date model.Date, start model.TimeOfDay) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2 AND start_time = $3 AND status = $4
		)
	`
	var exists bool
	err := r.get(ctx, &exists, query, doctorID, date, start, model.AppointmentStatusPlanned)
	return exists, err
}

func (r *appointmentRepository) ListPlannedForDoctor(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND status = $3
		ORDER BY start_time
	`
	var appointments []*model.Appointment
	err := r.selectAll(ctx, &appointments, query, doctorID, date, model.AppointmentStatusPlanned)
	return appointments, err
}

func (r *appointmentRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time
	`
	var appointments []*model.Appointment
	err := r.selectAll(ctx, &appointments, query, doctorID, date)
	return appointments, err
}

func (r *appointmentRepository) ListUpcomingForPatient(ctx context.Context, patientID uuid.UUID, date model.Date, from model.TimeOfDay) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		  AND status = $2
		  AND (date > $3 OR (date = $3 AND start_time >= $4))
		ORDER BY date, start_time
	`
	var appointments []*model.Appointment
	err := r.selectAll(ctx, &appointments, query, patientID, model.AppointmentStatusPlanned, date, from)
	return appointments, err
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []interface{}
	var conditions []string

	if filters != nil {
		if !filters.Date.IsZero() {
			args = append(args, filters.Date)
			conditions = append(conditions, fmt.Sprintf("date = $%d", len(args)))
		}
		if filters.DoctorID != nil {
			args = append(args, *filters.DoctorID)
			conditions = append(conditions, fmt.Sprintf("doctor_id = $%d", len(args)))
		}
		if filters.PatientID != nil {
			args = append(args, *filters.PatientID)
			conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)))
		}
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date, start_time"

	var appointments []*model.Appointment
	if err := r.selectAll(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}
