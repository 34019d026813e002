package model

import (
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

type ReceiptStatus string

const (
	ReceiptStatusPlanned   ReceiptStatus = "planned"
	ReceiptStatusServed    ReceiptStatus = "served"
	ReceiptStatusCancelled ReceiptStatus = "cancelled"
)

// Receipt authorizes dispensing one package within [ValidFrom, ValidTo].
type Receipt struct {
	Base
	PrescriptionID uuid.UUID     `db:"prescription_id" json:"prescription_id"`
	Sequence       int           `db:"sequence" json:"sequence"`
	ValidFrom      Date          `db:"valid_from" json:"valid_from"`
	ValidTo        Date          `db:"valid_to" json:"valid_to"`
	Units          int           `db:"units" json:"units"`
	Status         ReceiptStatus `db:"status" json:"status"`
	PharmacyID     *uuid.UUID    `db:"pharmacy_id" json:"pharmacy_id,omitempty"`
}

// Servable reports whether the receipt could be served on today.
func (r *Receipt) Servable(today Date) bool {
	return r.Status == ReceiptStatusPlanned && today.Within(r.ValidFrom, r.ValidTo)
}

// Serve records dispensation by pharmacyID on today.
func (r *Receipt) Serve(pharmacyID uuid.UUID, today Date) error {
	if r.Status != ReceiptStatusPlanned {
		return apperrors.NotAllowed("only planned receipts can be served")
	}
	if !today.Within(r.ValidFrom, r.ValidTo) {
		return apperrors.NotAllowed("receipt cannot be served outside its validity window")
	}
	r.Status = ReceiptStatusServed
	r.PharmacyID = &pharmacyID
	return nil
}

// cancel is only reachable through Prescription.Deactivate.
func (r *Receipt) cancel() bool {
	if r.Status != ReceiptStatusPlanned {
		return false
	}
	r.Status = ReceiptStatusCancelled
	r.PharmacyID = nil
	return true
}

// PendingReceipt is a receipt joined with what a patient or pharmacist needs
// to identify it.
type PendingReceipt struct {
	Receipt
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	MedicationName string    `db:"medication_name" json:"medication_name"`
	DoctorID       uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
}
