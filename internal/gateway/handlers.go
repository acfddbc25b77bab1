package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/TirthC27/HealthID/internal/directory"
	"github.com/TirthC27/HealthID/pkg/monitoring"
	"github.com/TirthC27/HealthID/pkg/types"
)

// RegisterRoutes configures the portal's HTTP routes
func (s *Service) RegisterRoutes(router *mux.Router) {
	router.Use(s.corsMiddleware)
	router.Use(s.securityHeadersMiddleware)
	router.Use(s.loggingMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Public auth routes
	api.HandleFunc("/auth/patient/register", s.registerPatientHandler).Methods("POST")
	api.HandleFunc("/auth/doctor/register", s.registerDoctorHandler).Methods("POST")
	api.HandleFunc("/auth/login", s.loginHandler).Methods("POST")

	// Authenticated routes
	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	// QR session lifecycle (patient side)
	authed.HandleFunc("/qr/session", s.startQRSessionHandler).Methods("POST")
	authed.HandleFunc("/qr/session", s.qrSessionStatusHandler).Methods("GET")
	authed.HandleFunc("/qr/session/regenerate", s.regenerateQRSessionHandler).Methods("POST")
	authed.HandleFunc("/qr/session", s.endQRSessionHandler).Methods("DELETE")

	// QR consumption (doctor side)
	authed.HandleFunc("/qr/scan", s.scanHandler).Methods("POST")

	// Consent management
	authed.HandleFunc("/consents", s.listConsentsHandler).Methods("GET")
	authed.HandleFunc("/consents", s.grantConsentHandler).Methods("POST")
	authed.HandleFunc("/consents/{id}", s.revokeConsentHandler).Methods("DELETE")

	// Doctor directory (patient-side selection)
	authed.HandleFunc("/doctors", s.listDoctorsHandler).Methods("GET")

	// Records and prescriptions
	authed.HandleFunc("/records", s.ownRecordsHandler).Methods("GET")
	authed.HandleFunc("/records", s.addOwnRecordHandler).Methods("POST")

	// Family history
	authed.HandleFunc("/family", s.addParentHandler).Methods("POST")
	authed.HandleFunc("/family/{parentId}", s.removeParentHandler).Methods("DELETE")
	authed.HandleFunc("/patients/{patientId}/records", s.patientRecordsHandler).Methods("GET")
	authed.HandleFunc("/patients/{patientId}/prescriptions", s.writePrescriptionHandler).Methods("POST")
	authed.HandleFunc("/prescriptions", s.ownPrescriptionsHandler).Methods("GET")

	// Audit trail
	authed.HandleFunc("/audit", s.auditTrailHandler).Methods("GET")

	s.logger.Info("Portal routes configured")
}

// Auth handlers

func (s *Service) registerPatientHandler(w http.ResponseWriter, r *http.Request) {
	var req directory.RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patient, err := s.directory.RegisterPatient(&req)
	if err != nil {
		s.writeDomainError(w, "Failed to register patient", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, patient)
}

func (s *Service) registerDoctorHandler(w http.ResponseWriter, r *http.Request) {
	var req directory.RegisterDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	doctor, err := s.directory.RegisterDoctor(&req)
	if err != nil {
		s.writeDomainError(w, "Failed to register doctor", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, doctor)
}

func (s *Service) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.directory.Authenticate(req.Email, req.Password)
	if err != nil {
		s.writeDomainError(w, "Login failed", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, result)
}

// QR session handlers

func (s *Service) startQRSessionHandler(w http.ResponseWriter, r *http.Request) {
	claims, patient, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	session, err := s.sessions.StartSession(claims.UserID, patient.HCID)
	if err != nil {
		s.writeDomainError(w, "Failed to start QR session", err)
		return
	}

	monitoring.RecordTokenGenerated()
	s.writeJSONResponse(w, http.StatusCreated, session)
}

func (s *Service) qrSessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	_, patient, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	session, exists := s.sessions.CurrentSession(patient.HCID)
	if !exists {
		s.writeErrorResponse(w, http.StatusNotFound, "No active QR session", nil)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"session":          session,
		"secondsRemaining": s.sessions.SecondsRemaining(patient.HCID),
	})
}

func (s *Service) regenerateQRSessionHandler(w http.ResponseWriter, r *http.Request) {
	claims, patient, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	session, err := s.sessions.Regenerate(claims.UserID, patient.HCID)
	if err != nil {
		s.writeDomainError(w, "Failed to regenerate QR session", err)
		return
	}

	monitoring.RecordTokenGenerated()
	s.writeJSONResponse(w, http.StatusCreated, session)
}

func (s *Service) endQRSessionHandler(w http.ResponseWriter, r *http.Request) {
	_, patient, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	s.sessions.EndSession(patient.HCID)
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "QR session ended"})
}

func (s *Service) scanHandler(w http.ResponseWriter, r *http.Request) {
	claims, doctor, ok := s.requireDoctor(w, r)
	if !ok {
		return
	}

	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.sessions.Consume(claims.UserID, doctor.ID, req.Input, types.DefaultScopes)
	if err != nil {
		monitoring.RecordTokenRedemption(redemptionStatus(err))
		s.writeDomainError(w, "Scan failed", err)
		return
	}

	monitoring.RecordTokenRedemption("success")
	s.writeJSONResponse(w, http.StatusOK, result)
}

// Consent handlers

func (s *Service) listConsentsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	switch claims.Role {
	case types.RolePatient:
		patient, err := s.directory.PatientByUserID(claims.UserID)
		if err != nil {
			s.writeDomainError(w, "Patient profile not found", err)
			return
		}
		consents, err := s.ledger.ListForPatient(patient.ID)
		if err != nil {
			s.writeDomainError(w, "Failed to list consents", err)
			return
		}
		s.writeJSONResponse(w, http.StatusOK, consents)
	case types.RoleDoctor:
		doctor, err := s.directory.DoctorByUserID(claims.UserID)
		if err != nil {
			s.writeDomainError(w, "Doctor profile not found", err)
			return
		}
		consents, err := s.ledger.ListForDoctor(doctor.ID)
		if err != nil {
			s.writeDomainError(w, "Failed to list consents", err)
			return
		}
		s.writeJSONResponse(w, http.StatusOK, consents)
	default:
		s.writeErrorResponse(w, http.StatusForbidden, "Unknown role", nil)
	}
}

func (s *Service) grantConsentHandler(w http.ResponseWriter, r *http.Request) {
	claims, patient, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	var req struct {
		DoctorID string        `json:"doctorId"`
		Scopes   []types.Scope `json:"scopes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, err := s.directory.DoctorByID(req.DoctorID); err != nil {
		s.writeDomainError(w, "Doctor not found", err)
		return
	}

	consent, err := s.ledger.Grant(claims.UserID, patient.ID, req.DoctorID, req.Scopes)
	if err != nil {
		s.writeDomainError(w, "Failed to grant consent", err)
		return
	}

	monitoring.RecordConsentEvent("granted")
	s.writeJSONResponse(w, http.StatusCreated, consent)
}

func (s *Service) revokeConsentHandler(w http.ResponseWriter, r *http.Request) {
	claims, patient, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	consentID := mux.Vars(r)["id"]

	c, err := s.ledger.ListForPatient(patient.ID)
	if err != nil {
		s.writeDomainError(w, "Failed to resolve consent", err)
		return
	}

	owned := false
	for _, existing := range c {
		if existing.ID == consentID {
			owned = true
			break
		}
	}
	if !owned {
		s.writeErrorResponse(w, http.StatusNotFound, "Consent not found", nil)
		return
	}

	if err := s.ledger.Revoke(claims.UserID, consentID); err != nil {
		s.writeDomainError(w, "Failed to revoke consent", err)
		return
	}

	monitoring.RecordConsentEvent("revoked")
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Consent revoked"})
}

// listDoctorsHandler lets any authenticated user browse registered doctors,
// so a patient can pick one when granting consent explicitly
func (s *Service) listDoctorsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := claimsFromRequest(r); !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	doctors, err := s.directory.ListDoctors()
	if err != nil {
		s.writeDomainError(w, "Failed to list doctors", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, doctors)
}

// Records handlers

func (s *Service) ownRecordsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	patient, err := s.records.OwnRecords(claims.UserID)
	if err != nil {
		s.writeDomainError(w, "Failed to load records", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, patient)
}

func (s *Service) addOwnRecordHandler(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	var req struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Notes       string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	record, err := s.records.AddOwnRecord(claims.UserID, req.Type, req.Description, req.Notes)
	if err != nil {
		s.writeDomainError(w, "Failed to add record", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, record)
}

// Family history handlers

func (s *Service) addParentHandler(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	var req struct {
		Name       string          `json:"name"`
		Relation   string          `json:"relation"`
		Conditions map[string]bool `json:"conditions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	parent, err := s.records.AddParent(claims.UserID, req.Name, req.Relation, req.Conditions)
	if err != nil {
		s.writeDomainError(w, "Failed to add family history entry", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, parent)
}

func (s *Service) removeParentHandler(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	parentID := mux.Vars(r)["parentId"]

	if err := s.records.RemoveParent(claims.UserID, parentID); err != nil {
		s.writeDomainError(w, "Failed to remove family history entry", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Family history entry removed"})
}

func (s *Service) patientRecordsHandler(w http.ResponseWriter, r *http.Request) {
	claims, doctor, ok := s.requireDoctor(w, r)
	if !ok {
		return
	}

	patientID := mux.Vars(r)["patientId"]

	patient, err := s.records.PatientRecordsForDoctor(claims.UserID, doctor.ID, patientID)
	if err != nil {
		s.writeDomainError(w, "Failed to load patient records", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, patient)
}

func (s *Service) writePrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	claims, doctor, ok := s.requireDoctor(w, r)
	if !ok {
		return
	}

	patientID := mux.Vars(r)["patientId"]

	var req struct {
		Meds []types.Medication `json:"meds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	prescription, err := s.records.WritePrescription(claims.UserID, doctor.ID, patientID, req.Meds)
	if err != nil {
		s.writeDomainError(w, "Failed to write prescription", err)
		return
	}

	s.writeJSONResponse(w, http.StatusCreated, prescription)
}

func (s *Service) ownPrescriptionsHandler(w http.ResponseWriter, r *http.Request) {
	_, patient, ok := s.requirePatient(w, r)
	if !ok {
		return
	}

	prescriptions, err := s.records.PrescriptionsForPatient(patient.ID)
	if err != nil {
		s.writeDomainError(w, "Failed to list prescriptions", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, prescriptions)
}

// Audit handler

func (s *Service) auditTrailHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	events, err := s.audits.TrailForUser(claims.UserID)
	if err != nil {
		s.writeDomainError(w, "Failed to load audit trail", err)
		return
	}

	s.writeJSONResponse(w, http.StatusOK, events)
}

// Role helpers

func (s *Service) requirePatient(w http.ResponseWriter, r *http.Request) (*types.UserClaims, *types.Patient, bool) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Not authenticated", nil)
		return nil, nil, false
	}
	if claims.Role != types.RolePatient {
		s.writeErrorResponse(w, http.StatusForbidden, "Patient role required", nil)
		return nil, nil, false
	}

	patient, err := s.directory.PatientByUserID(claims.UserID)
	if err != nil {
		s.writeDomainError(w, "Patient profile not found", err)
		return nil, nil, false
	}
	return claims, patient, true
}

func (s *Service) requireDoctor(w http.ResponseWriter, r *http.Request) (*types.UserClaims, *types.Doctor, bool) {
	claims, ok := claimsFromRequest(r)
	if !ok {
		s.writeErrorResponse(w, http.StatusUnauthorized, "Not authenticated", nil)
		return nil, nil, false
	}
	if claims.Role != types.RoleDoctor {
		s.writeErrorResponse(w, http.StatusForbidden, "Doctor role required", nil)
		return nil, nil, false
	}

	doctor, err := s.directory.DoctorByUserID(claims.UserID)
	if err != nil {
		s.writeDomainError(w, "Doctor profile not found", err)
		return nil, nil, false
	}
	return claims, doctor, true
}

// Response helpers

func (s *Service) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Service) writeErrorResponse(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error": message,
	}
	if err != nil {
		var perr *types.PortalError
		if errors.As(err, &perr) {
			response["code"] = perr.Code
			response["message"] = perr.Message
		} else {
			response["message"] = err.Error()
		}
		s.logger.WithError(err).Warn(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// writeDomainError maps a PortalError to the right HTTP status
func (s *Service) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError

	var perr *types.PortalError
	if errors.As(err, &perr) {
		switch perr.Type {
		case types.ErrorTypeValidation:
			status = http.StatusBadRequest
		case types.ErrorTypeAuthentication:
			status = http.StatusUnauthorized
		case types.ErrorTypeAuthorization:
			status = http.StatusForbidden
		case types.ErrorTypeNotFound:
			status = http.StatusNotFound
		case types.ErrorTypeConflict:
			status = http.StatusConflict
		}
	}

	s.writeErrorResponse(w, status, message, err)
}

// redemptionStatus maps a consume error to a metrics label
func redemptionStatus(err error) string {
	switch {
	case types.IsErrorCode(err, types.ErrCodeTokenNotFound):
		return "not_found"
	case types.IsErrorCode(err, types.ErrCodeTokenExpired):
		return "expired"
	case types.IsErrorCode(err, types.ErrCodeMalformedPayload):
		return "malformed"
	case types.IsErrorCode(err, types.ErrCodeConsentPending):
		return "consent_pending"
	default:
		return "error"
	}
}
