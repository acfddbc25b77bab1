package types

import "time"

// UserRole represents the different user roles in the system
type UserRole string

const (
	RolePatient UserRole = "PATIENT"
	RoleDoctor  UserRole = "DOCTOR"
)

// UserStatus represents the account status of a user
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User represents a portal account
type User struct {
	ID           string     `json:"id"`
	Role         UserRole   `json:"role"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// PatientProfile holds the demographic details of a patient
type PatientProfile struct {
	Name   string `json:"name"`
	DOB    string `json:"dob"`
	Gender string `json:"gender"`
}

// Parent represents a family history entry attached to a patient
type Parent struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Relation   string          `json:"relation"`
	Conditions map[string]bool `json:"conditions"`
}

// Patient represents a patient with their health case identifier.
// The HCID is the patient-facing lookup key; internal IDs never leave the system.
type Patient struct {
	ID      string          `json:"id"`
	UserID  string          `json:"userId"`
	HCID    string          `json:"hcid"`
	Profile PatientProfile  `json:"profile"`
	Records []MedicalRecord `json:"records"`
	Parents []Parent        `json:"parents"`
}

// Doctor represents a doctor profile
type Doctor struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// MedicalRecord represents a single entry in a patient's medical history
type MedicalRecord struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Medication represents one medication line on a prescription
type Medication struct {
	Name     string `json:"name"`
	Dose     string `json:"dose"`
	Duration string `json:"duration"`
}

// Prescription represents a prescription written by a doctor for a patient
type Prescription struct {
	ID        string       `json:"id"`
	PatientID string       `json:"patientId"`
	DoctorID  string       `json:"doctorId"`
	Meds      []Medication `json:"meds"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Scope represents a named permission category attached to a consent
type Scope string

const (
	ScopeReadRecords       Scope = "READ_RECORDS"
	ScopeWritePrescription Scope = "WRITE_PRESCRIPTION"
)

// DefaultScopes is the scope set granted on a standard QR handshake
var DefaultScopes = []Scope{ScopeReadRecords, ScopeWritePrescription}

// ConsentStatus represents the persisted state of a consent.
// REVOKED is terminal; expiry is observed from the clock, never stored.
type ConsentStatus string

const (
	ConsentStatusActive  ConsentStatus = "ACTIVE"
	ConsentStatusRevoked ConsentStatus = "REVOKED"
)

// Consent represents a doctor's standing, time-boxed permission to act on a
// patient's data. Usable iff status is ACTIVE and the expiry has not passed.
type Consent struct {
	ID        string        `json:"id"`
	PatientID string        `json:"patientId"`
	DoctorID  string        `json:"doctorId"`
	Scopes    []Scope       `json:"scopes"`
	Status    ConsentStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// HasScope reports whether the consent carries the given scope
func (c *Consent) HasScope(scope Scope) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AccessToken represents a short-lived bearer credential embedded in a QR
// payload. Tokens are never mutated after minting; a dead token stays in the
// store and is rejected at redemption time.
type AccessToken struct {
	Token     string    `json:"token"`
	HCID      string    `json:"hcid"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// QRPayload is the wire format rendered into a scannable code
type QRPayload struct {
	Token     string    `json:"token"`
	HCID      string    `json:"hcid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuditAction enumerates the actions recorded in the audit trail
type AuditAction string

const (
	AuditLogin             AuditAction = "LOGIN"
	AuditReadRecord        AuditAction = "READ_RECORD"
	AuditWritePrescription AuditAction = "WRITE_PRESCRIPTION"
	AuditConsentGranted    AuditAction = "CONSENT_GRANTED"
	AuditConsentRevoked    AuditAction = "CONSENT_REVOKED"
	AuditQRGenerated       AuditAction = "QR_GENERATED"
	AuditQRScanned         AuditAction = "QR_SCANNED"
)

// AuditEvent represents one append-only entry in the audit trail
type AuditEvent struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Action    AuditAction `json:"action"`
	TargetID  string      `json:"targetId,omitempty"`
	Details   string      `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}

// UserClaims represents the claims carried by a portal session token
type UserClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
}

// AuthToken represents an authentication token response
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}
