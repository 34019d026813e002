package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository/memory"
	"github.com/jwalitptl/rx-scheduler/internal/service/event"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

type fixture struct {
	svc     *Service
	store   *memory.Store
	metrics *metrics.Metrics
	doctor  *model.Doctor
	patient *model.Patient
	orphan  *model.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	doctor := &model.Doctor{Name: "Dr. Souto"}
	store.AddDoctor(doctor)
	patient := &model.Patient{Name: "Ana", HealthCardNumber: "HC-1", AssignedDoctorID: &doctor.ID}
	store.AddPatient(patient)
	orphan := &model.Patient{Name: "Brais", HealthCardNumber: "HC-2"}
	store.AddPatient(orphan)

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	svc := NewService(
		store,
		memory.NewAppointmentRepository(store),
		memory.NewPatientRepository(store),
		memory.NewDoctorRepository(store),
		event.NewEventService(memory.NewOutboxRepository(store)),
		logger.Nop(),
		m,
	)
	return &fixture{svc: svc, store: store, metrics: m, doctor: doctor, patient: patient, orphan: orphan}
}

func (f *fixture) patientActor() model.Actor {
	return model.Actor{ID: f.patient.ID, Role: model.RolePatient}
}

func (f *fixture) doctorActor() model.Actor {
	return model.Actor{ID: f.doctor.ID, Role: model.RoleDoctor}
}

var day = model.NewDate(2024, 3, 4)

func TestGridHasTwentyEightSlots(t *testing.T) {
	grid := Grid()

	require.Len(t, grid, 28)
	assert.Equal(t, model.NewTimeOfDay(8, 30), grid[0])
	assert.Equal(t, model.NewTimeOfDay(15, 15), grid[len(grid)-1])
	for i := 1; i < len(grid); i++ {
		assert.Equal(t, 15, grid[i].Minutes()-grid[i-1].Minutes())
	}
}

func TestOnGrid(t *testing.T) {
	tests := []struct {
		time model.TimeOfDay
		want bool
	}{
		{model.NewTimeOfDay(8, 30), true},
		{model.NewTimeOfDay(12, 0), true},
		{model.NewTimeOfDay(15, 15), true},
		{model.NewTimeOfDay(8, 15), false},
		{model.NewTimeOfDay(8, 35), false},
		{model.NewTimeOfDay(15, 30), false},
		{model.NewTimeOfDay(16, 0), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OnGrid(tt.time), tt.time.String())
	}
}

func TestFreeSlotsExcludesOnlyPlanned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booked, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(9, 0))
	require.NoError(t, err)
	cancelled, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(10, 0))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.patientActor(), cancelled.ID)
	require.NoError(t, err)

	free, err := f.svc.FreeSlots(ctx, f.doctor.ID, day)
	require.NoError(t, err)
	assert.Len(t, free, 27)
	assert.NotContains(t, free, booked.StartTime)
	assert.Contains(t, free, model.NewTimeOfDay(10, 0))
	for _, slot := range free {
		assert.True(t, OnGrid(slot))
	}

	other, err := f.svc.FreeSlots(ctx, f.doctor.ID, day.AddDays(1))
	require.NoError(t, err)
	assert.Len(t, other, 28)
}

func TestFreeSlotsUnknownDoctor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.FreeSlots(context.Background(), uuid.New(), day)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBookCreatesPlannedAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(8, 30))
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusPlanned, apt.Status)
	assert.Equal(t, f.doctor.ID, apt.DoctorID)
	assert.Equal(t, 15, apt.Duration)

	events, err := memory.NewOutboxRepository(f.store).GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.AppointmentBooked, events[0].EventType)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.BookingAttempts.WithLabelValues("booked")))
}

func TestBookRejectsOffGridTimes(t *testing.T) {
	f := newFixture(t)

	for _, tod := range []model.TimeOfDay{model.NewTimeOfDay(8, 35), model.NewTimeOfDay(15, 30), model.NewTimeOfDay(7, 0)} {
		_, err := f.svc.Book(context.Background(), f.patientActor(), f.patient.ID, day, tod)
		require.True(t, apperrors.IsValidation(err), tod.String())
		assert.Contains(t, err.Error(), "out of range or not slot-aligned")
	}
}

func TestBookRequiresAssignedDoctor(t *testing.T) {
	f := newFixture(t)
	actor := model.Actor{ID: f.orphan.ID, Role: model.RolePatient}

	_, err := f.svc.Book(context.Background(), actor, f.orphan.ID, day, model.NewTimeOfDay(9, 0))
	assert.True(t, apperrors.IsNotAllowed(err))
}

func TestBookUnknownPatient(t *testing.T) {
	f := newFixture(t)
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	_, err := f.svc.Book(context.Background(), admin, uuid.New(), day, model.NewTimeOfDay(9, 0))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBookAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, model.Actor{ID: f.orphan.ID, Role: model.RolePatient}, f.patient.ID, day, model.NewTimeOfDay(9, 0))
	assert.True(t, apperrors.IsNotAllowed(err), "patients book only for themselves")

	_, err = f.svc.Book(ctx, f.doctorActor(), f.patient.ID, day, model.NewTimeOfDay(9, 0))
	assert.True(t, apperrors.IsNotAllowed(err))

	apt, err := f.svc.Book(ctx, model.Actor{ID: uuid.New(), Role: model.RoleAdmin}, f.patient.ID, day, model.NewTimeOfDay(9, 0))
	require.NoError(t, err)
	assert.Equal(t, f.patient.ID, apt.PatientID)
}

func TestBookTakenSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := &model.Patient{Name: "Carla", AssignedDoctorID: &f.doctor.ID}
	f.store.AddPatient(second)

	_, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(11, 45))
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, model.Actor{ID: second.ID, Role: model.RolePatient}, second.ID, day, model.NewTimeOfDay(11, 45))
	require.True(t, apperrors.IsNotAllowed(err))
	assert.Contains(t, err.Error(), "slot already taken")
}

func TestConcurrentBookingsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const contenders = 16
	patients := make([]*model.Patient, contenders)
	for i := range patients {
		patients[i] = &model.Patient{Name: "p", AssignedDoctorID: &f.doctor.ID}
		f.store.AddPatient(patients[i])
	}

	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		results  = make([]error, contenders)
		slotTime = model.NewTimeOfDay(13, 0)
	)
	for i, p := range patients {
		wg.Add(1)
		go func(i int, p *model.Patient) {
			defer wg.Done()
			<-start
			_, results[i] = f.svc.Book(ctx, model.Actor{ID: p.ID, Role: model.RolePatient}, p.ID, day, slotTime)
		}(i, p)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperrors.IsNotAllowed(err), "loser must see a business rejection, got %v", err)
	}
	assert.Equal(t, 1, wins)

	free, err := f.svc.FreeSlots(ctx, f.doctor.ID, day)
	require.NoError(t, err)
	assert.NotContains(t, free, slotTime)
}

func TestDoctorTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(9, 0))
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.patientActor(), apt.ID)
	assert.True(t, apperrors.IsNotAllowed(err))

	done, err := f.svc.Complete(ctx, f.doctorActor(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	_, err = f.svc.MarkAbsent(ctx, f.doctorActor(), apt.ID)
	assert.True(t, apperrors.IsNotAllowed(err))

	_, err = f.svc.Complete(ctx, f.doctorActor(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCancelPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	apt, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(9, 0))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, model.Actor{ID: f.orphan.ID, Role: model.RolePatient}, apt.ID)
	assert.True(t, apperrors.IsNotAllowed(err))

	_, err = f.svc.MarkAbsent(ctx, f.doctorActor(), apt.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.patientActor(), apt.ID)
	assert.True(t, apperrors.IsNotAllowed(err), "patients cannot cancel a terminal appointment")

	cancelled, err := f.svc.Cancel(ctx, admin, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("appointment", "cancelled")))
}

func TestAgendaAndListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}

	late, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(14, 0))
	require.NoError(t, err)
	early, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(8, 45))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.patientActor(), late.ID)
	require.NoError(t, err)

	agenda, err := f.svc.Agenda(ctx, f.doctorActor(), f.doctor.ID, day)
	require.NoError(t, err)
	require.Len(t, agenda, 2)
	assert.Equal(t, early.ID, agenda[0].ID)
	assert.Equal(t, model.AppointmentStatusCancelled, agenda[1].Status)

	_, err = f.svc.Agenda(ctx, model.Actor{ID: uuid.New(), Role: model.RoleDoctor}, f.doctor.ID, day)
	assert.True(t, apperrors.IsNotAllowed(err))

	_, err = f.svc.List(ctx, f.doctorActor(), &model.AppointmentFilters{Date: day})
	assert.True(t, apperrors.IsNotAllowed(err))

	listed, err := f.svc.List(ctx, admin, &model.AppointmentFilters{Date: day, PatientID: &f.patient.ID})
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	_, err = f.svc.List(ctx, admin, &model.AppointmentFilters{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpcomingForPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(9, 0))
	require.NoError(t, err)
	later, err := f.svc.Book(ctx, f.patientActor(), f.patient.ID, day, model.NewTimeOfDay(12, 0))
	require.NoError(t, err)

	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	upcoming, err := f.svc.UpcomingForPatient(ctx, f.patientActor(), f.patient.ID, now)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, later.ID, upcoming[0].ID)

	_, err = f.svc.UpcomingForPatient(ctx, model.Actor{ID: f.orphan.ID, Role: model.RolePatient}, f.patient.ID, now)
	assert.True(t, apperrors.IsNotAllowed(err))
}
