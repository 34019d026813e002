package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
)

const pendingReceiptQuery = `
	SELECT r.id, r.prescription_id, r.sequence, r.valid_from, r.valid_to, r.units, r.status,
	       r.pharmacy_id, r.created_at, r.updated_at,
	       p.medication_id, m.trade_name AS medication_name, p.doctor_id, p.patient_id
	FROM receipts r
	JOIN prescriptions p ON p.id = r.prescription_id
	JOIN medications m ON m.id = p.medication_id
`

func (r *receiptRepository) Get(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`

	var receipt model.Receipt
	if err := r.get(ctx, &receipt, query, id); err != nil {
		return nil, notFound("receipt", err)
	}
	return &receipt, nil
}

func (r *receiptRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1 FOR UPDATE`

	var receipt model.Receipt
	if err := r.get(ctx, &receipt, query, id); err != nil {
		return nil, notFound("receipt", err)
	}
	return &receipt, nil
}

func (r *receiptRepository) UpdateStatus(ctx context.Context, receipt *model.Receipt) error {
	query := `
		UPDATE receipts
		SET status = $1, pharmacy_id = $2, updated_at = $3
		WHERE id = $4
	`
	receipt.UpdatedAt = time.Now()

	result, err := r.exec(ctx, query, receipt.Status, receipt.PharmacyID, receipt.UpdatedAt, receipt.ID)
	if err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}
	return requireRow("receipt", result)
}

func (r *receiptRepository) ListPendingForPatient(ctx context.Context, patientID uuid.UUID, today model.Date) ([]*model.PendingReceipt, error) {
	query := pendingReceiptQuery + `
	WHERE p.patient_id = $1
	  AND r.status = $2
	  AND r.valid_to >= $3
	ORDER BY r.valid_from, r.sequence
	`
	var receipts []*model.PendingReceipt
	if err := r.selectAll(ctx, &receipts, query, patientID, model.ReceiptStatusPlanned, today); err != nil {
		return nil, fmt.Errorf("failed to list pending receipts: %w", err)
	}
	return receipts, nil
}

func (r *receiptRepository) ListInForceByHealthCard(ctx context.Context, healthCard string, today model.Date) ([]*model.PendingReceipt, error) {
	query := pendingReceiptQuery + `
	JOIN patients pa ON pa.id = p.patient_id
	WHERE pa.health_card_number = $1
	  AND p.active = TRUE
	  AND r.status = $2
	  AND r.valid_to >= $3
	ORDER BY r.valid_from, r.sequence
	`
	var receipts []*model.PendingReceipt
	if err := r.selectAll(ctx, &receipts, query, healthCard, model.ReceiptStatusPlanned, today); err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}
