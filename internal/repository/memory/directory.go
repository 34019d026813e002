package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

type patientRepository struct{ s *Store }

type doctorRepository struct{ s *Store }

type pharmacyRepository struct{ s *Store }

type medicationRepository struct{ s *Store }

func NewPatientRepository(s *Store) repository.PatientRepository {
	return &patientRepository{s: s}
}

func NewDoctorRepository(s *Store) repository.DoctorRepository {
	return &doctorRepository{s: s}
}

func NewPharmacyRepository(s *Store) repository.PharmacyRepository {
	return &pharmacyRepository{s: s}
}

func NewMedicationRepository(s *Store) repository.MedicationRepository {
	return &medicationRepository{s: s}
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient", nil)
	}
	return &p, nil
}

func (r *patientRepository) GetByHealthCard(ctx context.Context, number string) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.patients {
		if p.HealthCardNumber == number {
			p := p
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return &d, nil
}

func (r *pharmacyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Pharmacy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.pharmacies[id]
	if !ok {
		return nil, apperrors.NotFound("pharmacy", nil)
	}
	return &p, nil
}

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.medications[id]
	if !ok {
		return nil, apperrors.NotFound("medication", nil)
	}
	return &m, nil
}
