package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/rx-scheduler/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

type patientRepository struct {
	BaseRepository
}

type doctorRepository struct {
	BaseRepository
}

type pharmacyRepository struct {
	BaseRepository
}

type medicationRepository struct {
	BaseRepository
}

type prescriptionRepository struct {
	BaseRepository
}

type receiptRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

// NewTxManager returns the unit of work shared by every repository built on db.
func NewTxManager(db *sqlx.DB) repository.TxManager {
	base := NewBaseRepository(db)
	return &base
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{NewBaseRepository(db)}
}

func NewPharmacyRepository(db *sqlx.DB) repository.PharmacyRepository {
	return &pharmacyRepository{NewBaseRepository(db)}
}

func NewMedicationRepository(db *sqlx.DB) repository.MedicationRepository {
	return &medicationRepository{NewBaseRepository(db)}
}

func NewPrescriptionRepository(db *sqlx.DB) repository.PrescriptionRepository {
	return &prescriptionRepository{NewBaseRepository(db)}
}

func NewReceiptRepository(db *sqlx.DB) repository.ReceiptRepository {
	return &receiptRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}
