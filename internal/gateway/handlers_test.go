package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TirthC27/HealthID/internal/access"
	"github.com/TirthC27/HealthID/internal/audit"
	"github.com/TirthC27/HealthID/internal/consent"
	"github.com/TirthC27/HealthID/internal/directory"
	"github.com/TirthC27/HealthID/internal/qrsession"
	"github.com/TirthC27/HealthID/internal/records"
	"github.com/TirthC27/HealthID/internal/token"
	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

type portalFixture struct {
	server       *httptest.Server
	patientToken string
	doctorToken  string
	patient      *types.Patient
	doctor       *types.Doctor
}

func setupPortal(t *testing.T, policy access.Policy) *portalFixture {
	t.Helper()

	store := storage.NewMemoryStore()
	log := logger.New("error")

	recorder := audit.NewStoreRecorder(store, log)
	dir := directory.NewService(
		store,
		directory.NewPasswordManager(),
		directory.NewSessionTokens("test-secret", time.Hour, "healthid-portal"),
		recorder,
		log,
	)
	codec := token.NewCodec(store, 15*time.Minute, log)
	ledger := consent.NewLedger(store, recorder, 24*time.Hour, log)
	evaluator := access.NewEvaluator(ledger, policy, log)
	sessions := qrsession.NewManager(codec, evaluator, dir, recorder, log)
	recs := records.NewService(store, evaluator, dir, recorder, log)

	gw := NewService(dir, sessions, ledger, recs, recorder, log)
	router := mux.NewRouter()
	gw.RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	f := &portalFixture{server: server}

	var patient types.Patient
	f.doJSON(t, "POST", "/api/v1/auth/patient/register", "", map[string]interface{}{
		"email":    "jane@example.com",
		"password": "secret123",
		"profile":  map[string]string{"name": "Jane Doe"},
	}, http.StatusCreated, &patient)
	f.patient = &patient

	var doctor types.Doctor
	f.doJSON(t, "POST", "/api/v1/auth/doctor/register", "", map[string]interface{}{
		"email":    "smith@example.com",
		"password": "secret123",
		"name":     "Dr. Smith",
	}, http.StatusCreated, &doctor)
	f.doctor = &doctor

	f.patientToken = f.login(t, "jane@example.com", "secret123")
	f.doctorToken = f.login(t, "smith@example.com", "secret123")
	return f
}

func (f *portalFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	var result directory.LoginResult
	f.doJSON(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK, &result)
	return result.Token.AccessToken
}

func (f *portalFixture) doJSON(t *testing.T, method, path, bearer string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", string(raw))

	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func TestAuthRequired(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	req, err := http.NewRequest("POST", f.server.URL+"/api/v1/qr/session", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_BadPassword(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "wrong",
	}, http.StatusUnauthorized, nil)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "POST", "/api/v1/auth/patient/register", "", map[string]interface{}{
		"email":    "jane@example.com",
		"password": "secret123",
	}, http.StatusConflict, nil)
}

func TestQRSessionLifecycle(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	var session qrsession.Session
	f.doJSON(t, "POST", "/api/v1/qr/session", f.patientToken, nil, http.StatusCreated, &session)
	assert.Equal(t, f.patient.HCID, session.HCID)
	assert.NotEmpty(t, session.Payload)

	var status struct {
		Session          qrsession.Session `json:"session"`
		SecondsRemaining int               `json:"secondsRemaining"`
	}
	f.doJSON(t, "GET", "/api/v1/qr/session", f.patientToken, nil, http.StatusOK, &status)
	assert.Equal(t, session.Token, status.Session.Token)
	assert.Greater(t, status.SecondsRemaining, 0)

	var regenerated qrsession.Session
	f.doJSON(t, "POST", "/api/v1/qr/session/regenerate", f.patientToken, nil, http.StatusCreated, &regenerated)
	assert.NotEqual(t, session.Token, regenerated.Token)

	f.doJSON(t, "DELETE", "/api/v1/qr/session", f.patientToken, nil, http.StatusOK, nil)
	f.doJSON(t, "GET", "/api/v1/qr/session", f.patientToken, nil, http.StatusNotFound, nil)
}

func TestQRSession_DoctorForbidden(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "POST", "/api/v1/qr/session", f.doctorToken, nil, http.StatusForbidden, nil)
}

func TestScanFlow(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	var session qrsession.Session
	f.doJSON(t, "POST", "/api/v1/qr/session", f.patientToken, nil, http.StatusCreated, &session)

	var result qrsession.ScanResult
	f.doJSON(t, "POST", "/api/v1/qr/scan", f.doctorToken, map[string]string{
		"input": session.Payload,
	}, http.StatusOK, &result)

	assert.Equal(t, f.patient.ID, result.Patient.ID)
	require.NotNil(t, result.Consent)
	assert.Equal(t, types.ConsentStatusActive, result.Consent.Status)
	assert.Equal(t, f.doctor.ID, result.Consent.DoctorID)
}

func TestScan_ManualHCID(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	var result qrsession.ScanResult
	f.doJSON(t, "POST", "/api/v1/qr/scan", f.doctorToken, map[string]string{
		"input": f.patient.HCID,
	}, http.StatusOK, &result)

	assert.Equal(t, f.patient.ID, result.Patient.ID)
}

func TestScan_UnknownToken(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "POST", "/api/v1/qr/scan", f.doctorToken, map[string]string{
		"input": "no-such-token",
	}, http.StatusNotFound, nil)
}

func TestScan_PendingPolicy(t *testing.T) {
	f := setupPortal(t, access.PolicyPendingApproval)

	var session qrsession.Session
	f.doJSON(t, "POST", "/api/v1/qr/session", f.patientToken, nil, http.StatusCreated, &session)

	f.doJSON(t, "POST", "/api/v1/qr/scan", f.doctorToken, map[string]string{
		"input": session.Token,
	}, http.StatusForbidden, nil)
}

func TestConsentGrantAndRevoke(t *testing.T) {
	f := setupPortal(t, access.PolicyPendingApproval)

	var granted types.Consent
	f.doJSON(t, "POST", "/api/v1/consents", f.patientToken, map[string]interface{}{
		"doctorId": f.doctor.ID,
	}, http.StatusCreated, &granted)
	assert.Equal(t, types.ConsentStatusActive, granted.Status)

	var patientView []types.Consent
	f.doJSON(t, "GET", "/api/v1/consents", f.patientToken, nil, http.StatusOK, &patientView)
	require.Len(t, patientView, 1)

	var doctorView []types.Consent
	f.doJSON(t, "GET", "/api/v1/consents", f.doctorToken, nil, http.StatusOK, &doctorView)
	require.Len(t, doctorView, 1)

	f.doJSON(t, "DELETE", "/api/v1/consents/"+granted.ID, f.patientToken, nil, http.StatusOK, nil)

	f.doJSON(t, "GET", "/api/v1/consents", f.patientToken, nil, http.StatusOK, &patientView)
	require.Len(t, patientView, 1)
	assert.Equal(t, types.ConsentStatusRevoked, patientView[0].Status)
}

func TestConsentGrant_UnknownDoctor(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "POST", "/api/v1/consents", f.patientToken, map[string]interface{}{
		"doctorId": "no-such-doctor",
	}, http.StatusNotFound, nil)
}

func TestRevoke_SomeoneElsesConsent(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	var other types.Patient
	f.doJSON(t, "POST", "/api/v1/auth/patient/register", "", map[string]interface{}{
		"email":    "bob@example.com",
		"password": "secret123",
	}, http.StatusCreated, &other)
	otherToken := f.login(t, "bob@example.com", "secret123")

	var granted types.Consent
	f.doJSON(t, "POST", "/api/v1/consents", f.patientToken, map[string]interface{}{
		"doctorId": f.doctor.ID,
	}, http.StatusCreated, &granted)

	// A different patient cannot see or revoke it
	f.doJSON(t, "DELETE", "/api/v1/consents/"+granted.ID, otherToken, nil, http.StatusNotFound, nil)
}

func TestRecordsFlow(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "POST", "/api/v1/records", f.patientToken, map[string]string{
		"type":        "allergy",
		"description": "Penicillin allergy",
	}, http.StatusCreated, nil)

	var own types.Patient
	f.doJSON(t, "GET", "/api/v1/records", f.patientToken, nil, http.StatusOK, &own)
	require.Len(t, own.Records, 1)

	var seen types.Patient
	path := fmt.Sprintf("/api/v1/patients/%s/records", f.patient.ID)
	f.doJSON(t, "GET", path, f.doctorToken, nil, http.StatusOK, &seen)
	assert.Equal(t, f.patient.HCID, seen.HCID)
	require.Len(t, seen.Records, 1)
}

func TestListDoctors(t *testing.T) {
	f := setupPortal(t, access.PolicyPendingApproval)

	var doctors []types.Doctor
	f.doJSON(t, "GET", "/api/v1/doctors", f.patientToken, nil, http.StatusOK, &doctors)
	require.Len(t, doctors, 1)
	assert.Equal(t, f.doctor.ID, doctors[0].ID)

	// The listed id feeds straight into an explicit grant
	f.doJSON(t, "POST", "/api/v1/consents", f.patientToken, map[string]interface{}{
		"doctorId": doctors[0].ID,
	}, http.StatusCreated, nil)
}

func TestFamilyHistoryFlow(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	var parent types.Parent
	f.doJSON(t, "POST", "/api/v1/family", f.patientToken, map[string]interface{}{
		"name":       "Ramesh Mehta",
		"relation":   "Father",
		"conditions": map[string]bool{"diabetes": true},
	}, http.StatusCreated, &parent)
	require.NotEmpty(t, parent.ID)

	var own types.Patient
	f.doJSON(t, "GET", "/api/v1/records", f.patientToken, nil, http.StatusOK, &own)
	require.Len(t, own.Parents, 1)
	assert.Equal(t, "Ramesh Mehta", own.Parents[0].Name)

	// Family history reaches the doctor through the consent-checked read
	var seen types.Patient
	path := fmt.Sprintf("/api/v1/patients/%s/records", f.patient.ID)
	f.doJSON(t, "GET", path, f.doctorToken, nil, http.StatusOK, &seen)
	require.Len(t, seen.Parents, 1)

	f.doJSON(t, "DELETE", "/api/v1/family/"+parent.ID, f.patientToken, nil, http.StatusOK, nil)

	f.doJSON(t, "GET", "/api/v1/records", f.patientToken, nil, http.StatusOK, &own)
	assert.Empty(t, own.Parents)
}

func TestFamilyHistory_RemoveUnknownEntry(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "DELETE", "/api/v1/family/no-such-id", f.patientToken, nil, http.StatusNotFound, nil)
}

func TestFamilyHistory_DoctorForbidden(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "POST", "/api/v1/family", f.doctorToken, map[string]interface{}{
		"name":     "Ramesh Mehta",
		"relation": "Father",
	}, http.StatusForbidden, nil)
}

func TestPrescriptionFlow(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	var prescription types.Prescription
	path := fmt.Sprintf("/api/v1/patients/%s/prescriptions", f.patient.ID)
	f.doJSON(t, "POST", path, f.doctorToken, map[string]interface{}{
		"meds": []map[string]string{{"name": "Amoxicillin", "dose": "500mg", "duration": "7 days"}},
	}, http.StatusCreated, &prescription)
	assert.Equal(t, f.patient.ID, prescription.PatientID)

	var list []types.Prescription
	f.doJSON(t, "GET", "/api/v1/prescriptions", f.patientToken, nil, http.StatusOK, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Amoxicillin", list[0].Meds[0].Name)
}

func TestAuditTrail(t *testing.T) {
	f := setupPortal(t, access.PolicyAuto)

	f.doJSON(t, "POST", "/api/v1/qr/session", f.patientToken, nil, http.StatusCreated, nil)

	var events []types.AuditEvent
	f.doJSON(t, "GET", "/api/v1/audit", f.patientToken, nil, http.StatusOK, &events)
	require.NotEmpty(t, events)

	actions := make(map[types.AuditAction]bool)
	for _, e := range events {
		actions[e.Action] = true
	}
	assert.True(t, actions[types.AuditLogin])
	assert.True(t, actions[types.AuditQRGenerated])
}
