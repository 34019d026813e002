package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

type prescriptionRepository struct {
	s *Store
}

func NewPrescriptionRepository(s *Store) repository.PrescriptionRepository {
	return &prescriptionRepository{s: s}
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.stamp(&p.Base)
	stored := *p
	stored.Receipts = nil
	r.s.prescriptions[p.ID] = stored

	for _, rc := range p.Receipts {
		rc.PrescriptionID = p.ID
		r.s.stamp(&rc.Base)
		r.s.receipts[rc.ID] = *rc
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.prescriptions[id]
	if !ok {
		return nil, apperrors.NotFound("prescription", nil)
	}
	p.Receipts = r.receiptsOf(id)
	return &p, nil
}

func (r *prescriptionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	return r.Get(ctx, id)
}

func (r *prescriptionRepository) UpdateActive(ctx context.Context, p *model.Prescription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.prescriptions[p.ID]
	if !ok {
		return apperrors.NotFound("prescription", nil)
	}
	stored.Active = p.Active
	stored.UpdatedAt = r.s.now()
	r.s.prescriptions[p.ID] = stored
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *prescriptionRepository) ListActiveForPatient(ctx context.Context, patientID uuid.UUID, today model.Date) ([]*model.Prescription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Prescription
	for _, p := range r.s.prescriptions {
		if p.PatientID != patientID || !p.Active || p.EndDate.Before(today) {
			continue
		}
		p := p
		p.Receipts = r.receiptsOf(p.ID)
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// receiptsOf returns copies in sequence order. Callers hold mu.
func (r *prescriptionRepository) receiptsOf(prescriptionID uuid.UUID) []*model.Receipt {
	var out []*model.Receipt
	for _, rc := range r.s.receipts {
		if rc.PrescriptionID == prescriptionID {
			rc := rc
			out = append(out, &rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
