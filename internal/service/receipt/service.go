package receipt

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	"github.com/jwalitptl/rx-scheduler/internal/service/event"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

type Service struct {
	tx         repository.TxManager
	repo       repository.ReceiptRepository
	pharmacies repository.PharmacyRepository
	events     event.Recorder
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(
	tx repository.TxManager,
	repo repository.ReceiptRepository,
	pharmacies repository.PharmacyRepository,
	events event.Recorder,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		tx:         tx,
		repo:       repo,
		pharmacies: pharmacies,
		events:     events,
		logger:     logger,
		metrics:    metrics,
	}
}

// Serve dispenses a receipt at the acting pharmacy on today.
func (s *Service) Serve(ctx context.Context, by model.Actor, id uuid.UUID, today model.Date) (*model.Receipt, error) {
	if by.Role != model.RolePharmacy {
		return nil, apperrors.NotAllowed("only pharmacies can serve receipts")
	}

	var r *model.Receipt
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := r.Serve(by.ID, today); err != nil {
			return err
		}
		if _, err := s.pharmacies.Get(ctx, by.ID); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, r); err != nil {
			return fmt.Errorf("failed to serve receipt: %w", err)
		}
		return s.events.Record(ctx, event.ReceiptServed, r.ID, event.ReceiptPayload{
			ReceiptID:      r.ID.String(),
			PrescriptionID: r.PrescriptionID.String(),
			PharmacyID:     by.ID.String(),
			ServedOn:       today.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues("receipt", string(r.Status)).Inc()
	s.logger.Debug("receipt served",
		"receipt_id", r.ID.String(),
		"pharmacy_id", by.ID.String())
	return r, nil
}

// PendingForPatient lists planned receipts of the patient that have not yet
// expired on today, earliest window first.
func (s *Service) PendingForPatient(ctx context.Context, by model.Actor, patientID uuid.UUID, today model.Date) ([]*model.PendingReceipt, error) {
	if by.Role == model.RolePatient && by.ID != patientID {
		return nil, apperrors.NotAllowed("patients can only view their own receipts")
	}
	receipts, err := s.repo.ListPendingForPatient(ctx, patientID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending receipts: %w", err)
	}
	return receipts, nil
}

// InForceByHealthCard lists the receipts a pharmacy can act on for the
// holder of healthCard.
func (s *Service) InForceByHealthCard(ctx context.Context, by model.Actor, healthCard string, today model.Date) ([]*model.PendingReceipt, error) {
	if by.Role != model.RolePharmacy && !by.IsAdmin() {
		return nil, apperrors.NotAllowed("only pharmacies can look up receipts by health card")
	}
	healthCard = strings.TrimSpace(healthCard)
	if healthCard == "" {
		return nil, apperrors.Validation("health_card", "health card number is required")
	}
	receipts, err := s.repo.ListInForceByHealthCard(ctx, healthCard, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}
