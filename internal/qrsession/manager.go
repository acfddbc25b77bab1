package qrsession

import (
	"fmt"
	"sync"
	"time"

	"github.com/TirthC27/HealthID/internal/access"
	"github.com/TirthC27/HealthID/internal/audit"
	"github.com/TirthC27/HealthID/internal/token"
	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/types"
)

// PatientDirectory resolves a scanned HCID to a patient
type PatientDirectory interface {
	PatientByHCID(hcid string) (*types.Patient, error)
}

// Session represents one QR code currently being displayed to a patient
type Session struct {
	HCID      string    `json:"hcid"`
	Token     string    `json:"token"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ScanResult is what a successful doctor-side consume yields
type ScanResult struct {
	Patient *types.Patient `json:"patient"`
	Consent *types.Consent `json:"consent"`
}

// Manager owns the UI-facing lifecycle of displayed QR codes: generation,
// advisory countdown, expiry, regeneration. The countdown is display-only;
// the token's own expiry check at redemption is the authoritative enforcement.
type Manager struct {
	codec     *token.Codec
	evaluator *access.Evaluator
	patients  PatientDirectory
	recorder  audit.Recorder
	logger    *logger.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a new QR session manager
func NewManager(codec *token.Codec, evaluator *access.Evaluator, patients PatientDirectory, recorder audit.Recorder, log *logger.Logger) *Manager {
	return &Manager{
		codec:     codec,
		evaluator: evaluator,
		patients:  patients,
		recorder:  recorder,
		logger:    log,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// StartSession mints a token for the HCID and begins a new countdown,
// replacing any session currently displayed for that HCID
func (m *Manager) StartSession(actorID, hcid string) (*Session, error) {
	tok, err := m.codec.Mint(hcid)
	if err != nil {
		return nil, err
	}

	payload, err := m.codec.Serialize(tok)
	if err != nil {
		return nil, err
	}

	session := &Session{
		HCID:      hcid,
		Token:     tok.Token,
		Payload:   payload,
		CreatedAt: tok.CreatedAt,
		ExpiresAt: tok.ExpiresAt,
	}

	m.mu.Lock()
	m.sessions[hcid] = session
	m.mu.Unlock()

	if err := m.recorder.Record(actorID, types.AuditQRGenerated, hcid,
		fmt.Sprintf("QR code generated for %s", hcid)); err != nil {
		m.logger.WithError(err).Warn("Failed to record QR-generated audit event")
	}

	return session, nil
}

// CurrentSession returns the session being displayed for the HCID, if any
func (m *Manager) CurrentSession(hcid string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[hcid]
	return session, ok
}

// SecondsRemaining returns the advisory countdown for the displayed session,
// floored at zero once expired. Without a session it reports zero.
func (m *Manager) SecondsRemaining(hcid string) int {
	session, ok := m.CurrentSession(hcid)
	if !ok {
		return 0
	}

	remaining := session.ExpiresAt.Sub(m.now())
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Round(time.Second) / time.Second)
}

// Regenerate discards the current session and starts a fresh one. The previous
// token stays live until its own expiry; multiple valid tokens may coexist.
func (m *Manager) Regenerate(actorID, hcid string) (*Session, error) {
	m.mu.Lock()
	delete(m.sessions, hcid)
	m.mu.Unlock()

	return m.StartSession(actorID, hcid)
}

// EndSession stops the local countdown. It has no effect on the underlying
// token's validity; tokens only die by expiry.
func (m *Manager) EndSession(hcid string) {
	m.mu.Lock()
	delete(m.sessions, hcid)
	m.mu.Unlock()
}

// Consume is the doctor-side path: decode the scanned or typed input, redeem
// it for an HCID, resolve the patient, then drive consent through the access
// evaluator
func (m *Manager) Consume(doctorUserID, doctorID, raw string, scopes []types.Scope) (*ScanResult, error) {
	hcid, err := m.codec.Redeem(raw)
	if err != nil {
		return nil, err
	}

	patient, err := m.patients.PatientByHCID(hcid)
	if err != nil {
		return nil, err
	}

	if err := m.recorder.Record(doctorUserID, types.AuditQRScanned, hcid,
		fmt.Sprintf("Scanned QR for patient %s", hcid)); err != nil {
		m.logger.WithError(err).Warn("Failed to record QR-scanned audit event")
	}

	consent, err := m.evaluator.EnsureAccess(doctorUserID, patient.ID, doctorID, scopes)
	if err != nil {
		return nil, err
	}

	return &ScanResult{Patient: patient, Consent: consent}, nil
}
