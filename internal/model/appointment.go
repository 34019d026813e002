package model

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

type AppointmentStatus string

const (
	AppointmentStatusPlanned   AppointmentStatus = "planned"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusAbsent    AppointmentStatus = "absent"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// AppointmentDuration is the fixed width of every appointment.
const AppointmentDuration = 15 * time.Minute

type Appointment struct {
	Base
	PatientID uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Date      Date              `db:"date" json:"date"`
	StartTime TimeOfDay         `db:"start_time" json:"start_time"`
	Duration  int               `db:"duration_minutes" json:"duration_minutes"`
	Status    AppointmentStatus `db:"status" json:"status"`
}

// NewAppointment returns a planned appointment on the fixed 15-minute width.
func NewAppointment(patientID, doctorID uuid.UUID, date Date, start TimeOfDay) *Appointment {
	return &Appointment{
		Base:      Base{ID: uuid.New()},
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		StartTime: start,
		Duration:  int(AppointmentDuration / time.Minute),
		Status:    AppointmentStatusPlanned,
	}
}

func (a *Appointment) IsPlanned() bool {
	return a.Status == AppointmentStatusPlanned
}

// Complete marks a planned appointment as attended. Only its doctor may do so.
func (a *Appointment) Complete(by Actor) error {
	if err := a.requireDoctor(by); err != nil {
		return err
	}
	if !a.IsPlanned() {
		return apperrors.NotAllowed("only planned appointments can be completed")
	}
	a.Status = AppointmentStatusCompleted
	return nil
}

// MarkAbsent records that the patient did not show up.
func (a *Appointment) MarkAbsent(by Actor) error {
	if err := a.requireDoctor(by); err != nil {
		return err
	}
	if !a.IsPlanned() {
		return apperrors.NotAllowed("only planned appointments can be marked absent")
	}
	a.Status = AppointmentStatusAbsent
	return nil
}

// Cancel applies a patient or administrator cancellation. Administrators
// override the current state; patients may only cancel their own planned
// appointments.
func (a *Appointment) Cancel(by Actor) error {
	switch by.Role {
	case RoleAdmin:
		a.Status = AppointmentStatusCancelled
		return nil
	case RolePatient:
		if by.ID != a.PatientID {
			return apperrors.NotAllowed("appointment does not belong to the patient")
		}
		if !a.IsPlanned() {
			return apperrors.NotAllowed("only planned appointments can be cancelled")
		}
		a.Status = AppointmentStatusCancelled
		return nil
	}
	return apperrors.NotAllowed("only the patient or an administrator can cancel an appointment")
}

func (a *Appointment) requireDoctor(by Actor) error {
	if !by.Is(RoleDoctor, a.DoctorID) {
		return apperrors.NotAllowed("appointment does not belong to the doctor")
	}
	return nil
}

type BookAppointmentRequest struct {
	PatientID *uuid.UUID `json:"patient_id"`
	Date      string     `json:"date" binding:"required,calendar_date"`
	Time      string     `json:"time" binding:"required,time_of_day"`
}

type AppointmentFilters struct {
	Date      Date
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
}
