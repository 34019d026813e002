package main

import (
	"github.com/jwalitptl/rx-scheduler/internal/config"
	"github.com/jwalitptl/rx-scheduler/internal/handler/health"
	"github.com/jwalitptl/rx-scheduler/internal/model"
	"github.com/jwalitptl/rx-scheduler/internal/repository"
	"github.com/jwalitptl/rx-scheduler/internal/repository/cached"
	"github.com/jwalitptl/rx-scheduler/internal/repository/memory"
	"github.com/jwalitptl/rx-scheduler/internal/repository/postgres"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
)

// stores is the set of repositories one storage driver provides.
type stores struct {
	tx            repository.TxManager
	relayTx       repository.TxManager
	appointments  repository.AppointmentRepository
	patients      repository.PatientRepository
	doctors       repository.DoctorRepository
	pharmacies    repository.PharmacyRepository
	medications   repository.MedicationRepository
	prescriptions repository.PrescriptionRepository
	receipts      repository.ReceiptRepository
	outbox        repository.OutboxRepository

	checks map[string]health.Check
	close  func() error
}

// openStores connects the configured storage driver. Postgres schemas are
// applied with rxctl migrate.
func openStores(cfg *config.Config, log *logger.Logger) (*stores, error) {
	var s *stores
	switch cfg.Storage.Driver {
	case "memory":
		s = memoryStores(log)
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		tx := postgres.NewTxManager(db)
		s = &stores{
			tx:            tx,
			relayTx:       tx,
			appointments:  postgres.NewAppointmentRepository(db),
			patients:      postgres.NewPatientRepository(db),
			doctors:       postgres.NewDoctorRepository(db),
			pharmacies:    postgres.NewPharmacyRepository(db),
			medications:   postgres.NewMedicationRepository(db),
			prescriptions: postgres.NewPrescriptionRepository(db),
			receipts:      postgres.NewReceiptRepository(db),
			outbox:        postgres.NewOutboxRepository(db),
			checks: map[string]health.Check{
				"database": db.PingContext,
			},
			close: db.Close,
		}
	}

	s.medications = cached.NewMedicationRepository(s.medications, cfg.Cache.MedicationTTL)
	return s, nil
}

// memoryStores returns an in-process store holding one doctor, patient,
// pharmacy and medication so the API is usable without a database.
func memoryStores(log *logger.Logger) *stores {
	store := memory.NewStore()

	doctor := &model.Doctor{Name: "Dev Doctor", RegistrationNumber: "D-0001", Email: "doctor@rx.local"}
	store.AddDoctor(doctor)
	patient := &model.Patient{
		Name:             "Dev Patient",
		HealthCardNumber: "HC-0001",
		Email:            "patient@rx.local",
		AssignedDoctorID: &doctor.ID,
	}
	store.AddPatient(patient)
	pharmacy := &model.Pharmacy{Name: "Dev Pharmacy", NIF: "P-0001"}
	store.AddPharmacy(pharmacy)
	medication := &model.Medication{TradeName: "Devamol", ActiveIngredient: "paracetamol", PackageSize: 20, Active: true}
	store.AddMedication(medication)

	log.Warn("using in-memory storage; data is lost on exit",
		"doctor_id", doctor.ID.String(),
		"patient_id", patient.ID.String(),
		"pharmacy_id", pharmacy.ID.String(),
		"medication_id", medication.ID.String(),
	)

	return &stores{
		tx:            store,
		relayTx:       store.RelayTx(),
		appointments:  memory.NewAppointmentRepository(store),
		patients:      memory.NewPatientRepository(store),
		doctors:       memory.NewDoctorRepository(store),
		pharmacies:    memory.NewPharmacyRepository(store),
		medications:   memory.NewMedicationRepository(store),
		prescriptions: memory.NewPrescriptionRepository(store),
		receipts:      memory.NewReceiptRepository(store),
		outbox:        memory.NewOutboxRepository(store),
		checks:        map[string]health.Check{},
		close:         func() error { return nil },
	}
}
