package event

// Domain event types written to the outbox.
const (
	AppointmentBooked       = "appointment.booked"
	AppointmentCompleted    = "appointment.completed"
	AppointmentAbsent       = "appointment.absent"
	AppointmentCancelled    = "appointment.cancelled"
	PrescriptionCreated     = "prescription.created"
	PrescriptionDeactivated = "prescription.deactivated"
	ReceiptServed           = "receipt.served"
)

// AppointmentPayload is shared by every appointment event.
type AppointmentPayload struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	DoctorID      string `json:"doctor_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
	ActorRole     string `json:"actor_role,omitempty"`
}

type PrescriptionPayload struct {
	PrescriptionID    string   `json:"prescription_id"`
	PatientID         string   `json:"patient_id"`
	DoctorID          string   `json:"doctor_id"`
	MedicationID      string   `json:"medication_id"`
	Receipts          int      `json:"receipts"`
	CancelledReceipts []string `json:"cancelled_receipts,omitempty"`
}

type ReceiptPayload struct {
	ReceiptID      string `json:"receipt_id"`
	PrescriptionID string `json:"prescription_id"`
	PharmacyID     string `json:"pharmacy_id"`
	ServedOn       string `json:"served_on"`
}
