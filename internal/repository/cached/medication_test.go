package cached

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

type mockMedicationRepository struct {
	mock.Mock
}

func (m *mockMedicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	args := m.Called(ctx, id)
	if med := args.Get(0); med != nil {
		return med.(*model.Medication), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestGetCachesHits(t *testing.T) {
	next := new(mockMedicationRepository)
	repo := NewMedicationRepository(next, time.Minute)
	id := uuid.New()

	next.On("Get", mock.Anything, id).
		Return(&model.Medication{Base: model.Base{ID: id}, TradeName: "Brufen", PackageSize: 20, Active: true}, nil).
		Once()

	first, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	second, err := repo.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, "Brufen", second.TradeName)
	assert.Equal(t, 20, second.PackageSize)
	next.AssertNumberOfCalls(t, "Get", 1)

	second.TradeName = "changed"
	third, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Brufen", third.TradeName)
	assert.Equal(t, "Brufen", first.TradeName)
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	next := new(mockMedicationRepository)
	repo := NewMedicationRepository(next, time.Minute)
	id := uuid.New()

	next.On("Get", mock.Anything, id).Return(nil, apperrors.NotFound("medication", errors.New("no rows"))).Twice()

	_, err := repo.Get(context.Background(), id)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = repo.Get(context.Background(), id)
	assert.True(t, apperrors.IsNotFound(err))

	next.AssertNumberOfCalls(t, "Get", 2)
}

func TestInvalidate(t *testing.T) {
	next := new(mockMedicationRepository)
	repo := NewMedicationRepository(next, time.Minute)
	id := uuid.New()

	next.On("Get", mock.Anything, id).Return(&model.Medication{Base: model.Base{ID: id}, PackageSize: 30}, nil)

	_, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	repo.Invalidate(id)
	_, err = repo.Get(context.Background(), id)
	require.NoError(t, err)

	next.AssertNumberOfCalls(t, "Get", 2)
}
