package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
)

// Recorder writes domain events to the outbox. Call it with the ctx of the
// unit of work that changed state so the event commits or rolls back with it.
type Recorder interface {
	Record(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{}) error
}

type EventService struct {
	outboxRepo repository.OutboxRepository
}

func NewEventService(outboxRepo repository.OutboxRepository) *EventService {
	return &EventService{outboxRepo: outboxRepo}
}

func (s *EventService) Record(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payloadJSON,
		Status:      model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// AppointmentEvent builds the payload for an appointment event.
func AppointmentEvent(apt *model.Appointment, by model.Actor) AppointmentPayload {
	return AppointmentPayload{
		AppointmentID: apt.ID.String(),
		PatientID:     apt.PatientID.String(),
		DoctorID:      apt.DoctorID.String(),
		Date:          apt.Date.String(),
		Time:          apt.StartTime.String(),
		Status:        string(apt.Status),
		ActorRole:     string(by.Role),
	}
}
