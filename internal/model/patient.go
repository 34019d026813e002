package model

import (
	"github.com/google/uuid"
)

type Patient struct {
	Base
	Name             string     `db:"name" json:"name"`
	HealthCardNumber string     `db:"health_card_number" json:"health_card_number"`
	Email            string     `db:"email" json:"email,omitempty"`
	AssignedDoctorID *uuid.UUID `db:"assigned_doctor_id" json:"assigned_doctor_id,omitempty"`
}

type Doctor struct {
	Base
	Name               string `db:"name" json:"name"`
	RegistrationNumber string `db:"registration_number" json:"registration_number"`
	Email              string `db:"email" json:"email,omitempty"`
}

type Pharmacy struct {
	Base
	Name string `db:"name" json:"name"`
	NIF  string `db:"nif" json:"nif"`
}
