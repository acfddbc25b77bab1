package consent

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TirthC27/HealthID/internal/audit"
	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

// Ledger is the source of truth for standing doctor-patient permissions
type Ledger struct {
	consents *Repository
	recorder audit.Recorder
	ttl      time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewLedger creates a new consent ledger with the given consent TTL
func NewLedger(store storage.Store, recorder audit.Recorder, ttl time.Duration, log *logger.Logger) *Ledger {
	return &Ledger{
		consents: NewRepository(store),
		recorder: recorder,
		ttl:      ttl,
		logger:   log,
		now:      time.Now,
	}
}

// Grant creates a new ACTIVE consent for the pair. A new record is always
// created, even when an active one already exists; active duplicates carry the
// same meaning and FindActive resolves the pair regardless.
func (l *Ledger) Grant(actorID, patientID, doctorID string, scopes []types.Scope) (*types.Consent, error) {
	if patientID == "" || doctorID == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Patient and doctor IDs are required", nil)
	}
	if len(scopes) == 0 {
		scopes = types.DefaultScopes
	}

	now := l.now().UTC()
	c := &types.Consent{
		ID:        uuid.New().String(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Scopes:    scopes,
		Status:    types.ConsentStatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}

	if err := l.consents.Save(c); err != nil {
		return nil, err
	}

	if err := l.recorder.Record(actorID, types.AuditConsentGranted, c.ID,
		fmt.Sprintf("Consent granted for patient %s to doctor %s", patientID, doctorID)); err != nil {
		l.logger.WithError(err).Warn("Failed to record consent-granted audit event")
	}

	l.logger.WithFields(map[string]interface{}{
		"consent_id": c.ID,
		"patient_id": patientID,
		"doctor_id":  doctorID,
		"expires_at": c.ExpiresAt,
	}).Info("Consent granted")

	return c, nil
}

// FindActive returns the most recent usable consent for the pair, or nil.
// A consent is usable iff its status is ACTIVE and its expiry has not passed;
// an expired-but-ACTIVE record is skipped, never rewritten.
func (l *Ledger) FindActive(patientID, doctorID string) (*types.Consent, error) {
	all, err := l.consents.ListAll()
	if err != nil {
		return nil, err
	}

	now := l.now()
	var best *types.Consent
	for _, c := range all {
		if c.PatientID != patientID || c.DoctorID != doctorID {
			continue
		}
		if c.Status != types.ConsentStatusActive || !now.Before(c.ExpiresAt) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	return best, nil
}

// Revoke marks the consent REVOKED. The transition is one-way: revoking an
// already-revoked consent succeeds silently without re-emitting audit.
func (l *Ledger) Revoke(actorID, consentID string) error {
	c, err := l.consents.GetByID(consentID)
	if err != nil {
		return err
	}

	if c.Status == types.ConsentStatusRevoked {
		return nil
	}

	c.Status = types.ConsentStatusRevoked
	if err := l.consents.Save(c); err != nil {
		return err
	}

	if err := l.recorder.Record(actorID, types.AuditConsentRevoked, c.ID,
		fmt.Sprintf("Consent revoked for doctor %s", c.DoctorID)); err != nil {
		l.logger.WithError(err).Warn("Failed to record consent-revoked audit event")
	}

	l.logger.WithFields(map[string]interface{}{
		"consent_id": c.ID,
		"patient_id": c.PatientID,
		"doctor_id":  c.DoctorID,
	}).Info("Consent revoked")

	return nil
}

// ListForPatient returns every consent involving the patient, for history views
func (l *Ledger) ListForPatient(patientID string) ([]*types.Consent, error) {
	return l.consents.ListByPatient(patientID)
}

// ListForDoctor returns every consent involving the doctor, for history views
func (l *Ledger) ListForDoctor(doctorID string) ([]*types.Consent, error) {
	return l.consents.ListByDoctor(doctorID)
}
