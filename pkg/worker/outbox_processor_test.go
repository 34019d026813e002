package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository/memory"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/messaging"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, payload json.RawMessage) error {
	return m.Called(ctx, channel, payload).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	args := m.Called(ctx, channel)
	return nil, args.Error(1)
}

func (m *mockBroker) Close() error { return nil }

type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockOutboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*model.OutboxEvent)
	return events, args.Error(1)
}

func (m *mockOutboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return m.Called(ctx, id, status, errorMessage, retryAt).Error(0)
}

func (m *mockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxRetries:    3,
	}
}

func newTestProcessor(repo *mockOutboxRepository, broker *mockBroker, handlers ...Handler) (*OutboxProcessor, *metrics.Metrics) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewOutboxProcessor(memory.NewStore(), repo, broker, testConfig(), logger.Nop(), m, handlers...), m
}

func bookedEvent() *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:          uuid.New(),
		EventType:   "appointment.booked",
		AggregateID: uuid.New(),
		Payload:     json.RawMessage(`{"doctor_id":"d1"}`),
		Status:      model.OutboxStatusPending,
		CreatedAt:   time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
}

func TestProcessBatchPublishesAndMarksProcessed(t *testing.T) {
	repo := new(mockOutboxRepository)
	broker := new(mockBroker)
	event := bookedEvent()

	var handled []uuid.UUID
	handler := HandlerFunc(func(ctx context.Context, e *model.OutboxEvent) error {
		handled = append(handled, e.ID)
		return nil
	})
	p, m := newTestProcessor(repo, broker, handler)

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{event}, nil)
	broker.On("Publish", mock.Anything, "appointment.booked", mock.MatchedBy(func(data json.RawMessage) bool {
		var env messaging.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return false
		}
		return env.ID == event.ID.String() &&
			env.AggregateID == event.AggregateID.String() &&
			env.OccurredAt == "2024-03-04T09:00:00Z" &&
			string(env.Payload) == `{"doctor_id":"d1"}`
	})).Return(nil).Once()
	repo.On("UpdateStatus", mock.Anything, event.ID, model.OutboxStatusProcessed, (*string)(nil), (*time.Time)(nil)).Return(nil).Once()

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{event.ID}, handled)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed))
	repo.AssertExpectations(t)
	broker.AssertExpectations(t)
}

func TestProcessBatchSchedulesRetry(t *testing.T) {
	repo := new(mockOutboxRepository)
	broker := new(mockBroker)
	p, m := newTestProcessor(repo, broker)
	fixed := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	event := bookedEvent()
	event.RetryCount = 1

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{event}, nil)
	broker.On("Publish", mock.Anything, "appointment.booked", mock.Anything).Return(errors.New("redis down"))
	repo.On("UpdateStatus", mock.Anything, event.ID, model.OutboxStatusRetry,
		mock.MatchedBy(func(msg *string) bool { return msg != nil && *msg == "redis down" }),
		mock.MatchedBy(func(at *time.Time) bool { return at != nil && at.Equal(fixed.Add(2*time.Millisecond)) }),
	).Return(nil).Once()

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	broker.AssertNumberOfCalls(t, "Publish", 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxRetries.WithLabelValues("appointment.booked")))
	repo.AssertExpectations(t)
}

func TestProcessBatchFailsAfterMaxRetries(t *testing.T) {
	repo := new(mockOutboxRepository)
	broker := new(mockBroker)
	var handled int
	p, m := newTestProcessor(repo, broker, HandlerFunc(func(context.Context, *model.OutboxEvent) error {
		handled++
		return nil
	}))

	event := bookedEvent()
	event.RetryCount = 2

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{event}, nil)
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	repo.On("UpdateStatus", mock.Anything, event.ID, model.OutboxStatusFailed, mock.Anything, (*time.Time)(nil)).Return(nil).Once()

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, handled)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsFailed))
	repo.AssertExpectations(t)
}

func TestHandlerErrorsDoNotAffectStatus(t *testing.T) {
	repo := new(mockOutboxRepository)
	broker := new(mockBroker)
	p, _ := newTestProcessor(repo, broker, HandlerFunc(func(context.Context, *model.OutboxEvent) error {
		return errors.New("smtp unavailable")
	}))

	event := bookedEvent()
	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{event}, nil)
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateStatus", mock.Anything, event.ID, model.OutboxStatusProcessed, mock.Anything, mock.Anything).Return(nil).Once()

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

type recordingTx struct {
	open bool
}

func (r *recordingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.open = true
	defer func() { r.open = false }()
	return fn(ctx)
}

func TestHandlersRunAfterCommit(t *testing.T) {
	repo := new(mockOutboxRepository)
	broker := new(mockBroker)
	tx := &recordingTx{}

	var openDuringHandle []bool
	handler := HandlerFunc(func(context.Context, *model.OutboxEvent) error {
		openDuringHandle = append(openDuringHandle, tx.open)
		return nil
	})
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p := NewOutboxProcessor(tx, repo, broker, testConfig(), logger.Nop(), m, handler)

	first, second := bookedEvent(), bookedEvent()
	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{first, second}, nil)
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateStatus", mock.Anything, mock.Anything, model.OutboxStatusProcessed, mock.Anything, mock.Anything).Return(nil).Twice()

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []bool{false, false}, openDuringHandle)
}

func TestHandlersSkippedWhenBatchFails(t *testing.T) {
	repo := new(mockOutboxRepository)
	broker := new(mockBroker)

	handled := 0
	p, _ := newTestProcessor(repo, broker, HandlerFunc(func(context.Context, *model.OutboxEvent) error {
		handled++
		return nil
	}))

	first, second := bookedEvent(), bookedEvent()
	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return([]*model.OutboxEvent{first, second}, nil)
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateStatus", mock.Anything, first.ID, model.OutboxStatusProcessed, mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("UpdateStatus", mock.Anything, second.ID, model.OutboxStatusProcessed, mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	_, err := p.ProcessBatch(context.Background())
	require.ErrorContains(t, err, "connection reset")
	assert.Zero(t, handled)
	repo.AssertExpectations(t)
}

func TestProcessBatchReturnsFetchErrors(t *testing.T) {
	repo := new(mockOutboxRepository)
	broker := new(mockBroker)
	p, _ := newTestProcessor(repo, broker)

	repo.On("GetPendingEventsWithLock", mock.Anything, 10).Return(nil, errors.New("connection refused"))

	_, err := p.ProcessBatch(context.Background())
	assert.ErrorContains(t, err, "failed to get pending events")
	broker.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessBatchAgainstMemoryStore(t *testing.T) {
	store := memory.NewStore()
	outbox := memory.NewOutboxRepository(store)
	broker := new(mockBroker)
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p := NewOutboxProcessor(store, outbox, broker, testConfig(), logger.Nop(), m)

	for i := 0; i < 3; i++ {
		require.NoError(t, outbox.Create(context.Background(), &model.OutboxEvent{
			EventType:   "receipt.served",
			AggregateID: uuid.New(),
			Payload:     json.RawMessage(`{}`),
		}))
	}
	broker.On("Publish", mock.Anything, "receipt.served", mock.Anything).Return(nil)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pending, err := outbox.GetPendingEventsWithLock(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	assert.Panics(t, func() {
		NewOutboxProcessor(memory.NewStore(), new(mockOutboxRepository), new(mockBroker), cfg, logger.Nop(),
			metrics.NewMetrics("test", prometheus.NewRegistry()))
	})
}
