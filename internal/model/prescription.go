package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

// DailyDosageScale matches the NUMERIC(12, 4) daily_dosage column.
const DailyDosageScale = 4

// MaxDailyDosage is the largest dose count per day a prescription accepts.
var MaxDailyDosage = decimal.NewFromInt(1000)

// ValidateDailyDosage rejects dosages that are not positive, exceed
// MaxDailyDosage or carry more than DailyDosageScale decimal places.
func ValidateDailyDosage(d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return apperrors.Validation("daily_dosage", "daily dosage must be positive")
	case d.GreaterThan(MaxDailyDosage):
		return apperrors.Validation("daily_dosage", "daily dosage must not exceed "+MaxDailyDosage.String())
	case !d.Equal(d.Truncate(DailyDosageScale)):
		return apperrors.Validation("daily_dosage", "daily dosage allows at most 4 decimal places")
	}
	return nil
}

type Prescription struct {
	Base
	PatientID    uuid.UUID       `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID       `db:"doctor_id" json:"doctor_id"`
	MedicationID uuid.UUID       `db:"medication_id" json:"medication_id"`
	DailyDosage  decimal.Decimal `db:"daily_dosage" json:"daily_dosage"`
	Instructions string          `db:"instructions" json:"instructions,omitempty"`
	StartDate    Date            `db:"start_date" json:"start_date"`
	EndDate      Date            `db:"end_date" json:"end_date"`
	Active       bool            `db:"active" json:"active"`
	Receipts     []*Receipt      `db:"-" json:"receipts"`
}

// Deactivate ends the prescription and cancels every receipt that has not
// reached a terminal state. It returns the receipts it cancelled.
func (p *Prescription) Deactivate(by Actor) ([]*Receipt, error) {
	if !by.IsAdmin() && !by.Is(RoleDoctor, p.DoctorID) {
		return nil, apperrors.NotAllowed("prescription does not belong to the doctor")
	}
	if !p.Active {
		return nil, apperrors.NotAllowed("prescription is already inactive")
	}
	p.Active = false

	var cancelled []*Receipt
	for _, r := range p.Receipts {
		if r.cancel() {
			cancelled = append(cancelled, r)
		}
	}
	return cancelled, nil
}

type CreatePrescriptionRequest struct {
	PatientID    uuid.UUID       `json:"patient_id" binding:"required"`
	MedicationID uuid.UUID       `json:"medication_id" binding:"required"`
	DailyDosage  decimal.Decimal `json:"daily_dosage"`
	Instructions string          `json:"instructions" binding:"max=2000"`
	EndDate      string          `json:"end_date" binding:"required,calendar_date"`
}

type PlanPreviewRequest struct {
	MedicationID uuid.UUID       `json:"medication_id" binding:"required"`
	DailyDosage  decimal.Decimal `json:"daily_dosage"`
	StartDate    string          `json:"start_date" binding:"required,calendar_date"`
	EndDate      string          `json:"end_date" binding:"required,calendar_date"`
}
