package cached

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
)

// MedicationRepository caches medication reference data in process.
// Misses and errors fall through to the wrapped repository and are not
// cached.
type MedicationRepository struct {
	next  repository.MedicationRepository
	cache *cache.Cache
}

// NewMedicationRepository wraps next. Entries expire after ttl and are
// purged every 2*ttl.
func NewMedicationRepository(next repository.MedicationRepository, ttl time.Duration) *MedicationRepository {
	return &MedicationRepository{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *MedicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	key := id.String()
	if v, found := r.cache.Get(key); found {
		med := *v.(*model.Medication)
		return &med, nil
	}

	med, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	stored := *med
	r.cache.Set(key, &stored, cache.DefaultExpiration)
	return med, nil
}

// Invalidate drops a cached medication.
func (r *MedicationRepository) Invalidate(id uuid.UUID) {
	r.cache.Delete(id.String())
}
