package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
)

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, name, health_card_number, email, assigned_doctor_id, created_at, updated_at
		FROM patients
		WHERE id = $1
	`
	var patient model.Patient
	if err := r.get(ctx, &patient, query, id); err != nil {
		return nil, notFound("patient", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByHealthCard(ctx context.Context, number string) (*model.Patient, error) {
	query := `
		SELECT id, name, health_card_number, email, assigned_doctor_id, created_at, updated_at
		FROM patients
		WHERE health_card_number = $1
	`
	var patient model.Patient
	if err := r.get(ctx, &patient, query, number); err != nil {
		return nil, notFound("patient", err)
	}
	return &patient, nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, name, registration_number, email, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`
	var doctor model.Doctor
	if err := r.get(ctx, &doctor, query, id); err != nil {
		return nil, notFound("doctor", err)
	}
	return &doctor, nil
}

func (r *pharmacyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Pharmacy, error) {
	query := `SELECT id, name, nif, created_at, updated_at FROM pharmacies WHERE id = $1`

	var pharmacy model.Pharmacy
	if err := r.get(ctx, &pharmacy, query, id); err != nil {
		return nil, notFound("pharmacy", err)
	}
	return &pharmacy, nil
}

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	query := `
		SELECT id, trade_name, active_ingredient, package_size, active, created_at, updated_at
		FROM medications
		WHERE id = $1
	`
	var medication model.Medication
	if err := r.get(ctx, &medication, query, id); err != nil {
		return nil, notFound("medication", err)
	}
	return &medication, nil
}
