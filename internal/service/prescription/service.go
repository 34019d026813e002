package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	"github.com/jwalitptl/rx-scheduler/internal/service/event"
	"github.com/jwalitptl/rx-scheduler/internal/service/refill"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

// CreateInput is a validated prescription request. The treatment starts on
// the day it is created.
type CreateInput struct {
	PatientID    uuid.UUID
	MedicationID uuid.UUID
	DailyDosage  decimal.Decimal
	Instructions string
	EndDate      model.Date
}

type Service struct {
	tx          repository.TxManager
	repo        repository.PrescriptionRepository
	receipts    repository.ReceiptRepository
	patients    repository.PatientRepository
	doctors     repository.DoctorRepository
	medications repository.MedicationRepository
	events      event.Recorder
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewService(
	tx repository.TxManager,
	repo repository.PrescriptionRepository,
	receipts repository.ReceiptRepository,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	medications repository.MedicationRepository,
	events event.Recorder,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		tx:          tx,
		repo:        repo,
		receipts:    receipts,
		patients:    patients,
		doctors:     doctors,
		medications: medications,
		events:      events,
		logger:      logger,
		metrics:     metrics,
	}
}

// Create prescribes a medication and stores it with its refill plan.
func (s *Service) Create(ctx context.Context, by model.Actor, in CreateInput, today model.Date) (*model.Prescription, error) {
	if by.Role != model.RoleDoctor {
		return nil, apperrors.NotAllowed("only doctors can prescribe")
	}
	if err := model.ValidateDailyDosage(in.DailyDosage); err != nil {
		return nil, err
	}
	if in.EndDate.IsZero() {
		return nil, apperrors.Validation("end_date", "end date is required")
	}
	if in.EndDate.Before(today) {
		return nil, apperrors.Validation("end_date", "end date cannot be before today")
	}

	if _, err := s.doctors.Get(ctx, by.ID); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, in.PatientID); err != nil {
		return nil, err
	}
	med, err := s.medications.Get(ctx, in.MedicationID)
	if err != nil {
		return nil, err
	}

	windows, err := refill.Plan(today, in.EndDate, in.DailyDosage, med.PackageSize)
	if err != nil {
		return nil, err
	}

	p := &model.Prescription{
		Base:         model.Base{ID: uuid.New()},
		PatientID:    in.PatientID,
		DoctorID:     by.ID,
		MedicationID: med.ID,
		DailyDosage:  in.DailyDosage,
		Instructions: in.Instructions,
		StartDate:    today,
		EndDate:      in.EndDate,
		Active:       true,
		Receipts:     receiptsFromPlan(windows),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("failed to create prescription: %w", err)
		}
		return s.events.Record(ctx, event.PrescriptionCreated, p.ID, event.PrescriptionPayload{
			PrescriptionID: p.ID.String(),
			PatientID:      p.PatientID.String(),
			DoctorID:       p.DoctorID.String(),
			MedicationID:   p.MedicationID.String(),
			Receipts:       len(p.Receipts),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReceiptsPlanned.Observe(float64(len(p.Receipts)))
	s.logger.Debug("prescription created",
		"prescription_id", p.ID.String(),
		"receipts", len(p.Receipts))
	return p, nil
}

// Preview returns the refill plan a prescription would get without storing
// anything.
func (s *Service) Preview(ctx context.Context, medicationID uuid.UUID, dailyDosage decimal.Decimal, start, end model.Date) ([]refill.Window, error) {
	med, err := s.medications.Get(ctx, medicationID)
	if err != nil {
		return nil, err
	}
	return refill.Plan(start, end, dailyDosage, med.PackageSize)
}

// Deactivate ends a prescription and cancels its open receipts.
func (s *Service) Deactivate(ctx context.Context, by model.Actor, id uuid.UUID) (*model.Prescription, error) {
	var p *model.Prescription
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		cancelled, err := p.Deactivate(by)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateActive(ctx, p); err != nil {
			return fmt.Errorf("failed to deactivate prescription: %w", err)
		}

		ids := make([]string, 0, len(cancelled))
		for _, r := range cancelled {
			if err := s.receipts.UpdateStatus(ctx, r); err != nil {
				return fmt.Errorf("failed to cancel receipt: %w", err)
			}
			ids = append(ids, r.ID.String())
		}

		return s.events.Record(ctx, event.PrescriptionDeactivated, p.ID, event.PrescriptionPayload{
			PrescriptionID:    p.ID.String(),
			PatientID:         p.PatientID.String(),
			DoctorID:          p.DoctorID.String(),
			MedicationID:      p.MedicationID.String(),
			Receipts:          len(p.Receipts),
			CancelledReceipts: ids,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues("prescription", "inactive").Inc()
	s.logger.Debug("prescription deactivated", "prescription_id", p.ID.String())
	return p, nil
}

// ListActiveForPatient lists active prescriptions not yet ended on today.
func (s *Service) ListActiveForPatient(ctx context.Context, by model.Actor, patientID uuid.UUID, today model.Date) ([]*model.Prescription, error) {
	if by.Role == model.RolePatient && by.ID != patientID {
		return nil, apperrors.NotAllowed("patients can only view their own prescriptions")
	}
	if by.Role == model.RolePharmacy {
		return nil, apperrors.NotAllowed("pharmacies cannot list prescriptions")
	}
	prescriptions, err := s.repo.ListActiveForPatient(ctx, patientID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}

func receiptsFromPlan(windows []refill.Window) []*model.Receipt {
	receipts := make([]*model.Receipt, 0, len(windows))
	for _, w := range windows {
		receipts = append(receipts, &model.Receipt{
			Base:      model.Base{ID: uuid.New()},
			Sequence:  w.Sequence,
			ValidFrom: w.ValidFrom,
			ValidTo:   w.ValidTo,
			Units:     w.Units,
			Status:    w.Status,
		})
	}
	return receipts
}
