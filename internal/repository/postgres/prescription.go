package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/rx-scheduler/internal/model"
)

const prescriptionColumns = `id, patient_id, doctor_id, medication_id, daily_dosage, instructions,
	start_date, end_date, active, created_at, updated_at`

const receiptColumns = `id, prescription_id, sequence, valid_from, valid_to, units, status,
	pharmacy_id, created_at, updated_at`

// Create inserts the prescription and its receipts in one transaction.
func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	return r.WithinTx(ctx, func(ctx context.Context) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt

		query := `
			INSERT INTO prescriptions (
				id, patient_id, doctor_id, medication_id, daily_dosage, instructions,
				start_date, end_date, active, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := r.exec(ctx, query,
			p.ID, p.PatientID, p.DoctorID, p.MedicationID, p.DailyDosage, p.Instructions,
			p.StartDate, p.EndDate, p.Active, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create prescription: %w", err)
		}

		receiptQuery := `
			INSERT INTO receipts (
				id, prescription_id, sequence, valid_from, valid_to, units, status,
				pharmacy_id, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		for _, rc := range p.Receipts {
			if rc.ID == uuid.Nil {
				rc.ID = uuid.New()
			}
			rc.PrescriptionID = p.ID
			rc.CreatedAt = p.CreatedAt
			rc.UpdatedAt = p.CreatedAt

			_, err := r.exec(ctx, receiptQuery,
				rc.ID, rc.PrescriptionID, rc.Sequence, rc.ValidFrom, rc.ValidTo, rc.Units, rc.Status,
				rc.PharmacyID, rc.CreatedAt, rc.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to create receipt %d: %w", rc.Sequence, err)
			}
		}
		return nil
	})
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	return r.load(ctx, id, "")
}

// GetForUpdate locks the prescription and its receipts.
func (r *prescriptionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	return r.load(ctx, id, " FOR UPDATE")
}

func (r *prescriptionRepository) load(ctx context.Context, id uuid.UUID, lock string) (*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1` + lock

	var p model.Prescription
	if err := r.get(ctx, &p, query, id); err != nil {
		return nil, notFound("prescription", err)
	}

	receiptsQuery := `SELECT ` + receiptColumns + ` FROM receipts WHERE prescription_id = $1 ORDER BY sequence` + lock
	if err := r.selectAll(ctx, &p.Receipts, receiptsQuery, id); err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}
	return &p, nil
}

func (r *prescriptionRepository) UpdateActive(ctx context.Context, p *model.Prescription) error {
	query := `UPDATE prescriptions SET active = $1, updated_at = $2 WHERE id = $3`
	p.UpdatedAt = time.Now()

	result, err := r.exec(ctx, query, p.Active, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update prescription: %w", err)
	}
	return requireRow("prescription", result)
}

func (r *prescriptionRepository) ListActiveForPatient(ctx context.Context, patientID uuid.UUID, today model.Date) ([]*model.Prescription, error) {
	query := `
		SELECT ` + prescriptionColumns + `
		FROM prescriptions
		WHERE patient_id = $1 AND active = TRUE AND end_date >= $2
		ORDER BY start_date
	`
	var prescriptions []*model.Prescription
	if err := r.selectAll(ctx, &prescriptions, query, patientID, today); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	if len(prescriptions) == 0 {
		return prescriptions, nil
	}

	ids := make([]string, len(prescriptions))
	byID := make(map[uuid.UUID]*model.Prescription, len(prescriptions))
	for i, p := range prescriptions {
		ids[i] = p.ID.String()
		byID[p.ID] = p
	}

	receiptsQuery := `
		SELECT ` + receiptColumns + `
		FROM receipts
		WHERE prescription_id = ANY($1::uuid[])
		ORDER BY prescription_id, sequence
	`
	var receipts []*model.Receipt
	if err := r.selectAll(ctx, &receipts, receiptsQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}
	for _, rc := range receipts {
		if p, ok := byID[rc.PrescriptionID]; ok {
			p.Receipts = append(p.Receipts, rc)
		}
	}
	return prescriptions, nil
}
