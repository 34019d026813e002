package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

type receiptRepository struct {
	s *Store
}

func NewReceiptRepository(s *Store) repository.ReceiptRepository {
	return &receiptRepository{s: s}
}

func (r *receiptRepository) Get(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rc, ok := r.s.receipts[id]
	if !ok {
		return nil, apperrors.NotFound("receipt", nil)
	}
	return &rc, nil
}

func (r *receiptRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	return r.Get(ctx, id)
}

func (r *receiptRepository) UpdateStatus(ctx context.Context, rc *model.Receipt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.receipts[rc.ID]
	if !ok {
		return apperrors.NotFound("receipt", nil)
	}
	stored.Status = rc.Status
	stored.PharmacyID = rc.PharmacyID
	stored.UpdatedAt = r.s.now()
	r.s.receipts[rc.ID] = stored
	rc.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *receiptRepository) ListPendingForPatient(ctx context.Context, patientID uuid.UUID, today model.Date) ([]*model.PendingReceipt, error) {
	return r.pending(today, func(p *model.Prescription) bool {
		return p.PatientID == patientID
	}), nil
}

func (r *receiptRepository) ListInForceByHealthCard(ctx context.Context, healthCard string, today model.Date) ([]*model.PendingReceipt, error) {
	r.s.mu.RLock()
	var patientID uuid.UUID
	for _, p := range r.s.patients {
		if p.HealthCardNumber == healthCard {
			patientID = p.ID
			break
		}
	}
	r.s.mu.RUnlock()

	if patientID == uuid.Nil {
		return nil, nil
	}
	return r.pending(today, func(p *model.Prescription) bool {
		return p.PatientID == patientID && p.Active
	}), nil
}

// pending joins planned receipts still valid on today with their
// prescription and medication, ordered by the start of their window.
func (r *receiptRepository) pending(today model.Date, match func(*model.Prescription) bool) []*model.PendingReceipt {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.PendingReceipt
	for _, rc := range r.s.receipts {
		if rc.Status != model.ReceiptStatusPlanned || rc.ValidTo.Before(today) {
			continue
		}
		p, ok := r.s.prescriptions[rc.PrescriptionID]
		if !ok || !match(&p) {
			continue
		}
		out = append(out, &model.PendingReceipt{
			Receipt:        rc,
			MedicationID:   p.MedicationID,
			MedicationName: r.s.medications[p.MedicationID].TradeName,
			DoctorID:       p.DoctorID,
			PatientID:      p.PatientID,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ValidFrom.Equal(out[j].ValidFrom) {
			return out[i].ValidFrom.Before(out[j].ValidFrom)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}
