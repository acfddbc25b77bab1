package directory

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/TirthC27/HealthID/internal/audit"
	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

// RegisterPatientRequest carries the data needed to register a patient account
type RegisterPatientRequest struct {
	Email    string               `json:"email"`
	Password string               `json:"password"`
	Profile  types.PatientProfile `json:"profile"`
}

// RegisterDoctorRequest carries the data needed to register a doctor account
type RegisterDoctorRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// LoginResult is what a successful authentication yields
type LoginResult struct {
	User  *types.User      `json:"user"`
	Token *types.AuthToken `json:"token"`
}

// Service is the account directory: registration, authentication, and
// patient/doctor profile lookups
type Service struct {
	repo      *Repository
	passwords *PasswordManager
	sessions  *SessionTokens
	recorder  audit.Recorder
	logger    *logger.Logger
	now       func() time.Time
}

// NewService creates a new account directory service
func NewService(store storage.Store, passwords *PasswordManager, sessions *SessionTokens, recorder audit.Recorder, log *logger.Logger) *Service {
	return &Service{
		repo:      NewRepository(store),
		passwords: passwords,
		sessions:  sessions,
		recorder:  recorder,
		logger:    log,
		now:       time.Now,
	}
}

// RegisterPatient creates a patient account with a fresh HCID
func (s *Service) RegisterPatient(req *RegisterPatientRequest) (*types.Patient, error) {
	user, err := s.registerUser(req.Email, req.Password, types.RolePatient)
	if err != nil {
		return nil, err
	}

	hcid, err := GenerateHCID()
	if err != nil {
		return nil, err
	}

	patient := &types.Patient{
		ID:      uuid.New().String(),
		UserID:  user.ID,
		HCID:    hcid,
		Profile: req.Profile,
		Records: []types.MedicalRecord{},
		Parents: []types.Parent{},
	}

	if err := s.repo.SavePatient(patient); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"hcid":    hcid,
	}).Info("Patient registered")

	return patient, nil
}

// RegisterDoctor creates a doctor account
func (s *Service) RegisterDoctor(req *RegisterDoctorRequest) (*types.Doctor, error) {
	user, err := s.registerUser(req.Email, req.Password, types.RoleDoctor)
	if err != nil {
		return nil, err
	}

	doctor := &types.Doctor{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Name:      req.Name,
		Specialty: req.Specialty,
	}

	if err := s.repo.SaveDoctor(doctor); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":   user.ID,
		"doctor_id": doctor.ID,
	}).Info("Doctor registered")

	return doctor, nil
}

func (s *Service) registerUser(email, password string, role types.UserRole) (*types.User, error) {
	if email == "" || password == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Email and password are required", nil)
	}

	if _, err := s.repo.UserByEmail(email); err == nil {
		return nil, types.NewConflictError(types.ErrCodeUserExists, "User already exists")
	} else if !types.IsErrorCode(err, types.ErrCodeUserNotFound) {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &types.User{
		ID:           uuid.New().String(),
		Role:         role,
		Email:        email,
		PasswordHash: hash,
		Status:       types.UserStatusActive,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.SaveUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials and issues a session token
func (s *Service) Authenticate(email, password string) (*LoginResult, error) {
	user, err := s.repo.UserByEmail(email)
	if err != nil {
		if types.IsErrorCode(err, types.ErrCodeUserNotFound) {
			return nil, types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "Invalid credentials")
		}
		return nil, err
	}

	ok, err := s.passwords.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Security("login_failed", user.ID, map[string]interface{}{"email": email})
		return nil, types.NewAuthenticationError(types.ErrCodeInvalidCredentials, "Invalid credentials")
	}

	if user.Status != types.UserStatusActive {
		return nil, types.NewAuthorizationError(types.ErrCodeAccountSuspended, "Account suspended")
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}

	if err := s.recorder.Record(user.ID, types.AuditLogin, "", fmt.Sprintf("User %s logged in", email)); err != nil {
		s.logger.WithError(err).Warn("Failed to record login audit event")
	}

	return &LoginResult{User: user, Token: token}, nil
}

// ValidateSession parses and validates a session token
func (s *Service) ValidateSession(tokenString string) (*types.UserClaims, error) {
	return s.sessions.Validate(tokenString)
}

// PatientByHCID resolves a health case identifier to a patient
func (s *Service) PatientByHCID(hcid string) (*types.Patient, error) {
	return s.repo.PatientByHCID(hcid)
}

// PatientByID retrieves a patient by internal id
func (s *Service) PatientByID(id string) (*types.Patient, error) {
	return s.repo.PatientByID(id)
}

// PatientByUserID retrieves the patient profile for a user account
func (s *Service) PatientByUserID(userID string) (*types.Patient, error) {
	return s.repo.PatientByUserID(userID)
}

// DoctorByID retrieves a doctor by internal id
func (s *Service) DoctorByID(id string) (*types.Doctor, error) {
	return s.repo.DoctorByID(id)
}

// DoctorByUserID retrieves the doctor profile for a user account
func (s *Service) DoctorByUserID(userID string) (*types.Doctor, error) {
	return s.repo.DoctorByUserID(userID)
}

// ListDoctors returns every registered doctor, for patient-side selection
func (s *Service) ListDoctors() ([]*types.Doctor, error) {
	return s.repo.ListDoctors()
}

// SavePatient persists patient profile changes
func (s *Service) SavePatient(p *types.Patient) error {
	return s.repo.SavePatient(p)
}

const hcidCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateHCID produces a patient-facing identifier of the form HCID-XXXX-YYYY
func GenerateHCID() (string, error) {
	segment := func() (string, error) {
		chars := make([]byte, 4)
		for i := range chars {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(hcidCharset))))
			if err != nil {
				return "", fmt.Errorf("failed to generate HCID segment: %w", err)
			}
			chars[i] = hcidCharset[n.Int64()]
		}
		return string(chars), nil
	}

	part1, err := segment()
	if err != nil {
		return "", err
	}
	part2, err := segment()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("HCID-%s-%s", part1, part2), nil
}
