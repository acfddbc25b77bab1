package records

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TirthC27/HealthID/internal/access"
	"github.com/TirthC27/HealthID/internal/audit"
	"github.com/TirthC27/HealthID/internal/directory"
	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

const collectionPrescriptions = "prescriptions"

// Service exposes medical records and prescriptions. Every doctor-side touch
// of patient data goes through the access evaluator; there is no other path.
type Service struct {
	store     storage.Store
	evaluator *access.Evaluator
	directory *directory.Service
	recorder  audit.Recorder
	logger    *logger.Logger
	now       func() time.Time
}

// NewService creates a new records service
func NewService(store storage.Store, evaluator *access.Evaluator, dir *directory.Service, recorder audit.Recorder, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		evaluator: evaluator,
		directory: dir,
		recorder:  recorder,
		logger:    log,
		now:       time.Now,
	}
}

// PatientRecordsForDoctor returns a patient's records to a doctor holding an
// active consent with the READ_RECORDS scope
func (s *Service) PatientRecordsForDoctor(doctorUserID, doctorID, patientID string) (*types.Patient, error) {
	consent, err := s.evaluator.EnsureAccess(doctorUserID, patientID, doctorID, types.DefaultScopes)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.RequireScope(consent, types.ScopeReadRecords); err != nil {
		return nil, err
	}

	patient, err := s.directory.PatientByID(patientID)
	if err != nil {
		return nil, err
	}

	if err := s.recorder.Record(doctorUserID, types.AuditReadRecord, patientID,
		fmt.Sprintf("Accessed patient records for %s", patient.HCID)); err != nil {
		s.logger.WithError(err).Warn("Failed to record read-record audit event")
	}

	return patient, nil
}

// OwnRecords returns the calling patient's own records; no consent applies to
// own-data access
func (s *Service) OwnRecords(patientUserID string) (*types.Patient, error) {
	return s.directory.PatientByUserID(patientUserID)
}

// AddOwnRecord appends a medical record to the calling patient's history
func (s *Service) AddOwnRecord(patientUserID string, recordType, description, notes string) (*types.MedicalRecord, error) {
	if recordType == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Record type is required", nil)
	}

	patient, err := s.directory.PatientByUserID(patientUserID)
	if err != nil {
		return nil, err
	}

	record := types.MedicalRecord{
		ID:          uuid.New().String(),
		Type:        recordType,
		Description: description,
		Notes:       notes,
		CreatedAt:   s.now().UTC(),
	}

	patient.Records = append(patient.Records, record)
	if err := s.directory.SavePatient(patient); err != nil {
		return nil, err
	}

	return &record, nil
}

// AddParent appends a family history entry to the calling patient's profile
func (s *Service) AddParent(patientUserID, name, relation string, conditions map[string]bool) (*types.Parent, error) {
	if name == "" || relation == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Parent name and relation are required", nil)
	}

	patient, err := s.directory.PatientByUserID(patientUserID)
	if err != nil {
		return nil, err
	}

	if conditions == nil {
		conditions = map[string]bool{}
	}
	parent := types.Parent{
		ID:         uuid.New().String(),
		Name:       name,
		Relation:   relation,
		Conditions: conditions,
	}

	patient.Parents = append(patient.Parents, parent)
	if err := s.directory.SavePatient(patient); err != nil {
		return nil, err
	}

	return &parent, nil
}

// RemoveParent deletes a family history entry from the calling patient's profile
func (s *Service) RemoveParent(patientUserID, parentID string) error {
	patient, err := s.directory.PatientByUserID(patientUserID)
	if err != nil {
		return err
	}

	kept := patient.Parents[:0]
	found := false
	for _, p := range patient.Parents {
		if p.ID == parentID {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return types.NewNotFoundError(types.ErrCodeParentNotFound, "Family history entry not found")
	}

	patient.Parents = kept
	return s.directory.SavePatient(patient)
}

// WritePrescription creates a prescription for a patient on behalf of a doctor
// holding an active consent with the WRITE_PRESCRIPTION scope
func (s *Service) WritePrescription(doctorUserID, doctorID, patientID string, meds []types.Medication) (*types.Prescription, error) {
	if len(meds) == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "At least one medication is required", nil)
	}

	consent, err := s.evaluator.EnsureAccess(doctorUserID, patientID, doctorID, types.DefaultScopes)
	if err != nil {
		return nil, err
	}
	if err := s.evaluator.RequireScope(consent, types.ScopeWritePrescription); err != nil {
		return nil, err
	}

	prescription := &types.Prescription{
		ID:        uuid.New().String(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Meds:      meds,
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.Put(collectionPrescriptions, prescription.ID, prescription); err != nil {
		return nil, fmt.Errorf("failed to save prescription: %w", err)
	}

	if err := s.recorder.Record(doctorUserID, types.AuditWritePrescription, patientID,
		fmt.Sprintf("Prescription written for patient %s", patientID)); err != nil {
		s.logger.WithError(err).Warn("Failed to record write-prescription audit event")
	}

	return prescription, nil
}

// PrescriptionsForPatient returns every prescription issued to the patient
func (s *Service) PrescriptionsForPatient(patientID string) ([]*types.Prescription, error) {
	raws, err := s.store.List(collectionPrescriptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}

	var prescriptions []*types.Prescription
	for _, raw := range raws {
		var p types.Prescription
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode prescription: %w", err)
		}
		if p.PatientID == patientID {
			prescriptions = append(prescriptions, &p)
		}
	}
	return prescriptions, nil
}
