package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

func newPlannedReceipt() *Receipt {
	return &Receipt{
		Base:      Base{ID: uuid.New()},
		ValidFrom: NewDate(2024, 1, 4),
		ValidTo:   NewDate(2024, 1, 18),
		Units:     1,
		Status:    ReceiptStatusPlanned,
	}
}

func TestReceiptServeWithinWindow(t *testing.T) {
	for _, today := range []Date{NewDate(2024, 1, 4), NewDate(2024, 1, 10), NewDate(2024, 1, 18)} {
		r := newPlannedReceipt()
		pharmacy := uuid.New()

		require.NoError(t, r.Serve(pharmacy, today), today.String())
		assert.Equal(t, ReceiptStatusServed, r.Status)
		require.NotNil(t, r.PharmacyID)
		assert.Equal(t, pharmacy, *r.PharmacyID)
	}
}

func TestReceiptServeOutsideWindow(t *testing.T) {
	for _, today := range []Date{NewDate(2024, 1, 3), NewDate(2024, 1, 19)} {
		r := newPlannedReceipt()

		err := r.Serve(uuid.New(), today)
		assert.True(t, apperrors.IsNotAllowed(err), today.String())
		assert.Equal(t, ReceiptStatusPlanned, r.Status)
		assert.Nil(t, r.PharmacyID)
	}
}

func TestReceiptServeTwice(t *testing.T) {
	r := newPlannedReceipt()
	today := NewDate(2024, 1, 10)

	require.NoError(t, r.Serve(uuid.New(), today))
	assert.True(t, apperrors.IsNotAllowed(r.Serve(uuid.New(), today)))
}

func TestReceiptServable(t *testing.T) {
	r := newPlannedReceipt()

	assert.True(t, r.Servable(NewDate(2024, 1, 4)))
	assert.False(t, r.Servable(NewDate(2024, 1, 19)))

	r.Status = ReceiptStatusCancelled
	assert.False(t, r.Servable(NewDate(2024, 1, 10)))
}
