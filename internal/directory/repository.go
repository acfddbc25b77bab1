package directory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

const (
	collectionUsers    = "users"
	collectionPatients = "patients"
	collectionDoctors  = "doctors"
)

// Repository implements account and profile persistence over the key-value store
type Repository struct {
	store storage.Store
}

// NewRepository creates a new directory repository
func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store}
}

// SaveUser persists a user account
func (r *Repository) SaveUser(u *types.User) error {
	if err := r.store.Put(collectionUsers, u.ID, u); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// UserByID retrieves a user by id
func (r *Repository) UserByID(id string) (*types.User, error) {
	raw, err := r.store.Get(collectionUsers, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewNotFoundError(types.ErrCodeUserNotFound, "User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var u types.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &u, nil
}

// UserByEmail retrieves a user by email
func (r *Repository) UserByEmail(email string) (*types.User, error) {
	raws, err := r.store.List(collectionUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	for _, raw := range raws {
		var u types.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeUserNotFound, "User not found")
}

// SavePatient persists a patient profile
func (r *Repository) SavePatient(p *types.Patient) error {
	if err := r.store.Put(collectionPatients, p.ID, p); err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}
	return nil
}

// PatientByID retrieves a patient by internal id
func (r *Repository) PatientByID(id string) (*types.Patient, error) {
	raw, err := r.store.Get(collectionPatients, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewNotFoundError(types.ErrCodePatientNotFound, "Patient not found")
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	var p types.Patient
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode patient: %w", err)
	}
	return &p, nil
}

// PatientByHCID retrieves a patient by their health case identifier
func (r *Repository) PatientByHCID(hcid string) (*types.Patient, error) {
	return r.findPatient(func(p *types.Patient) bool { return p.HCID == hcid })
}

// PatientByUserID retrieves the patient profile belonging to a user account
func (r *Repository) PatientByUserID(userID string) (*types.Patient, error) {
	return r.findPatient(func(p *types.Patient) bool { return p.UserID == userID })
}

func (r *Repository) findPatient(match func(*types.Patient) bool) (*types.Patient, error) {
	raws, err := r.store.List(collectionPatients)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	for _, raw := range raws {
		var p types.Patient
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode patient: %w", err)
		}
		if match(&p) {
			return &p, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodePatientNotFound, "Patient not found")
}

// SaveDoctor persists a doctor profile
func (r *Repository) SaveDoctor(d *types.Doctor) error {
	if err := r.store.Put(collectionDoctors, d.ID, d); err != nil {
		return fmt.Errorf("failed to save doctor: %w", err)
	}
	return nil
}

// DoctorByID retrieves a doctor by internal id
func (r *Repository) DoctorByID(id string) (*types.Doctor, error) {
	raw, err := r.store.Get(collectionDoctors, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewNotFoundError(types.ErrCodeDoctorNotFound, "Doctor not found")
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	var d types.Doctor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode doctor: %w", err)
	}
	return &d, nil
}

// ListDoctors returns every registered doctor
func (r *Repository) ListDoctors() ([]*types.Doctor, error) {
	raws, err := r.store.List(collectionDoctors)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	doctors := make([]*types.Doctor, 0, len(raws))
	for _, raw := range raws {
		var d types.Doctor
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("failed to decode doctor: %w", err)
		}
		doctors = append(doctors, &d)
	}
	return doctors, nil
}

// DoctorByUserID retrieves the doctor profile belonging to a user account
func (r *Repository) DoctorByUserID(userID string) (*types.Doctor, error) {
	raws, err := r.store.List(collectionDoctors)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	for _, raw := range raws {
		var d types.Doctor
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("failed to decode doctor: %w", err)
		}
		if d.UserID == userID {
			return &d, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeDoctorNotFound, "Doctor not found")
}
