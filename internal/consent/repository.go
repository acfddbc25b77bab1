package consent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

const collectionConsents = "consents"

// Repository implements consent persistence over the key-value store
type Repository struct {
	store storage.Store
}

// NewRepository creates a new consent repository
func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store}
}

// Save persists a consent record, written whole
func (r *Repository) Save(c *types.Consent) error {
	if err := r.store.Put(collectionConsents, c.ID, c); err != nil {
		return fmt.Errorf("failed to save consent: %w", err)
	}
	return nil
}

// GetByID retrieves a consent by id
func (r *Repository) GetByID(id string) (*types.Consent, error) {
	raw, err := r.store.Get(collectionConsents, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, types.NewNotFoundError(types.ErrCodeConsentNotFound, "Consent not found")
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	var c types.Consent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode consent: %w", err)
	}
	return &c, nil
}

// ListAll returns every consent record
func (r *Repository) ListAll() ([]*types.Consent, error) {
	raws, err := r.store.List(collectionConsents)
	if err != nil {
		return nil, fmt.Errorf("failed to list consents: %w", err)
	}

	consents := make([]*types.Consent, 0, len(raws))
	for _, raw := range raws {
		var c types.Consent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("failed to decode consent: %w", err)
		}
		consents = append(consents, &c)
	}
	return consents, nil
}

// ListByPatient returns every consent for a patient
func (r *Repository) ListByPatient(patientID string) ([]*types.Consent, error) {
	return r.filter(func(c *types.Consent) bool { return c.PatientID == patientID })
}

// ListByDoctor returns every consent for a doctor
func (r *Repository) ListByDoctor(doctorID string) ([]*types.Consent, error) {
	return r.filter(func(c *types.Consent) bool { return c.DoctorID == doctorID })
}

func (r *Repository) filter(keep func(*types.Consent) bool) ([]*types.Consent, error) {
	all, err := r.ListAll()
	if err != nil {
		return nil, err
	}

	var matched []*types.Consent
	for _, c := range all {
		if keep(c) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}
