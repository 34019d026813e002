// Package memory keeps every repository in process. It backs the dev
// storage driver and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
)

type txKey struct{}

// Store holds all records. Reads and writes are guarded by mu. WithinTx
// serializes whole units of work on txMu, so a check followed by a write
// inside one unit cannot interleave with another unit. Changes made before
// fn returns an error are not rolled back.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	appointments  map[uuid.UUID]model.Appointment
	patients      map[uuid.UUID]model.Patient
	doctors       map[uuid.UUID]model.Doctor
	pharmacies    map[uuid.UUID]model.Pharmacy
	medications   map[uuid.UUID]model.Medication
	prescriptions map[uuid.UUID]model.Prescription
	receipts      map[uuid.UUID]model.Receipt
	outbox        map[uuid.UUID]model.OutboxEvent

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		appointments:  make(map[uuid.UUID]model.Appointment),
		patients:      make(map[uuid.UUID]model.Patient),
		doctors:       make(map[uuid.UUID]model.Doctor),
		pharmacies:    make(map[uuid.UUID]model.Pharmacy),
		medications:   make(map[uuid.UUID]model.Medication),
		prescriptions: make(map[uuid.UUID]model.Prescription),
		receipts:      make(map[uuid.UUID]model.Receipt),
		outbox:        make(map[uuid.UUID]model.OutboxEvent),
		now:           time.Now,
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	return fn(context.WithValue(ctx, txKey{}, struct{}{}))
}

// RelayTx runs each unit without taking txMu. It is meant for the single
// in-process outbox relay, whose broker calls would otherwise stall every
// request waiting on WithinTx.
func (s *Store) RelayTx() RelayTx {
	return RelayTx{}
}

// RelayTx is the TxManager returned by Store.RelayTx.
type RelayTx struct{}

func (RelayTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) AddPatient(p *model.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&p.Base)
	s.patients[p.ID] = *p
}

func (s *Store) AddDoctor(d *model.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&d.Base)
	s.doctors[d.ID] = *d
}

func (s *Store) AddPharmacy(p *model.Pharmacy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&p.Base)
	s.pharmacies[p.ID] = *p
}

func (s *Store) AddMedication(m *model.Medication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&m.Base)
	s.medications[m.ID] = *m
}

// stamp fills in missing identity and timestamps. Callers hold mu.
func (s *Store) stamp(b *model.Base) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := s.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}
