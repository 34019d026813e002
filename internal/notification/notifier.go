package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	"github.com/jwalitptl/rx-scheduler/internal/service/event"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

// Sender delivers composed messages. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewDialer returns an SMTP sender for config.
func NewDialer(config Config) *gomail.Dialer {
	return gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
}

// Notifier e-mails patients about their appointments and new
// prescriptions. Other events are ignored.
type Notifier struct {
	sender   Sender
	from     string
	patients repository.PatientRepository
	doctors  repository.DoctorRepository
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewNotifier(
	sender Sender,
	from string,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Notifier {
	return &Notifier{
		sender:   sender,
		from:     from,
		patients: patients,
		doctors:  doctors,
		logger:   logger,
		metrics:  metrics,
	}
}

// Handle sends the e-mail for one relayed event.
func (n *Notifier) Handle(ctx context.Context, e *model.OutboxEvent) error {
	var (
		patientID, doctorID string
		subject, body       string
	)

	switch e.EventType {
	case event.AppointmentBooked, event.AppointmentCancelled, event.AppointmentAbsent:
		var p event.AppointmentPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
		}
		patientID, doctorID = p.PatientID, p.DoctorID
		subject, body = appointmentMessage(e.EventType, p)
	case event.PrescriptionCreated:
		var p event.PrescriptionPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", e.EventType, err)
		}
		patientID, doctorID = p.PatientID, p.DoctorID
		subject = "New prescription"
		body = fmt.Sprintf("A new prescription with %d receipt(s) was issued for you.", p.Receipts)
	default:
		return nil
	}

	patient, err := n.patient(ctx, patientID)
	if err != nil {
		return err
	}
	if patient.Email == "" {
		n.logger.Debug("Patient has no e-mail, skipping notification", "patient_id", patientID, "event_type", e.EventType)
		return nil
	}

	doctorName := ""
	if id, err := uuid.Parse(doctorID); err == nil {
		if doctor, err := n.doctors.Get(ctx, id); err == nil {
			doctorName = doctor.Name
		}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetAddressHeader("To", patient.Email, patient.Name)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", greeting(patient.Name)+body+signature(doctorName))

	if err := n.sender.DialAndSend(msg); err != nil {
		n.metrics.NotificationsSent.WithLabelValues(e.EventType, "error").Inc()
		return fmt.Errorf("failed to send %s notification: %w", e.EventType, err)
	}
	n.metrics.NotificationsSent.WithLabelValues(e.EventType, "sent").Inc()
	n.logger.Info("Notification sent", "event_type", e.EventType, "patient_id", patientID)
	return nil
}

func (n *Notifier) patient(ctx context.Context, id string) (*model.Patient, error) {
	patientID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid patient id %q: %w", id, err)
	}
	return n.patients.Get(ctx, patientID)
}

func appointmentMessage(eventType string, p event.AppointmentPayload) (string, string) {
	switch eventType {
	case event.AppointmentBooked:
		return "Appointment confirmed",
			fmt.Sprintf("Your appointment is booked for %s at %s.", p.Date, p.Time)
	case event.AppointmentCancelled:
		return "Appointment cancelled",
			fmt.Sprintf("Your appointment on %s at %s was cancelled.", p.Date, p.Time)
	default:
		return "Missed appointment",
			fmt.Sprintf("You were marked absent from your appointment on %s at %s.", p.Date, p.Time)
	}
}

func greeting(name string) string {
	if name == "" {
		return "Hello,\n\n"
	}
	return fmt.Sprintf("Hello %s,\n\n", name)
}

func signature(doctor string) string {
	if doctor == "" {
		return "\n"
	}
	return fmt.Sprintf("\n\nDr. %s\n", doctor)
}
