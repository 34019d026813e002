package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rx-scheduler/internal/config"
	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository/memory"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
)

func TestOpenStoresMemorySeedsDirectory(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: "memory"},
		Cache:   config.CacheConfig{MedicationTTL: time.Minute},
	}

	s, err := openStores(cfg, logger.Nop())
	require.NoError(t, err)
	defer s.close()

	ctx := context.Background()
	patient, err := s.patients.GetByHealthCard(ctx, "HC-0001")
	require.NoError(t, err)
	require.NotNil(t, patient.AssignedDoctorID)

	doctor, err := s.doctors.Get(ctx, *patient.AssignedDoctorID)
	require.NoError(t, err)
	assert.Equal(t, "Dev Doctor", doctor.Name)

	upcoming, err := s.appointments.ListUpcomingForPatient(ctx, patient.ID, model.NewDate(2024, 3, 4), model.TimeOfDay{Hour: 8})
	require.NoError(t, err)
	assert.Empty(t, upcoming)
	assert.Empty(t, s.checks)
	assert.IsType(t, memory.RelayTx{}, s.relayTx)
}
