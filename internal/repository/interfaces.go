package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
)

// TxManager runs fn as a single unit of work. Repositories called with the
// ctx passed to fn take part in the same transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		// Create fails with NotAllowed when the doctor already has a planned
		// appointment at the same date and time.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		UpdateStatus(ctx context.Context, appointment *model.Appointment) error
		ExistsPlanned(ctx context.Context, doctorID uuid.UUID, date model.Date, start model.TimeOfDay) (bool, error)
		ListPlannedForDoctor(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error)
		ListForDoctor(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]*model.Appointment, error)
		ListUpcomingForPatient(ctx context.Context, patientID uuid.UUID, date model.Date, from model.TimeOfDay) ([]*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
	}

	PatientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByHealthCard(ctx context.Context, number string) (*model.Patient, error)
	}

	DoctorRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	}

	PharmacyRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Pharmacy, error)
	}

	MedicationRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
	}

	PrescriptionRepository interface {
		// Create stores the prescription together with its receipts.
		Create(ctx context.Context, prescription *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		UpdateActive(ctx context.Context, prescription *model.Prescription) error
		ListActiveForPatient(ctx context.Context, patientID uuid.UUID, today model.Date) ([]*model.Prescription, error)
	}

	ReceiptRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Receipt, error)
		GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Receipt, error)
		UpdateStatus(ctx context.Context, receipt *model.Receipt) error
		ListPendingForPatient(ctx context.Context, patientID uuid.UUID, today model.Date) ([]*model.PendingReceipt, error)
		ListInForceByHealthCard(ctx context.Context, healthCard string, today model.Date) ([]*model.PendingReceipt, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEventsWithLock returns due pending and retry events. Rows
		// stay locked until the surrounding transaction ends.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
