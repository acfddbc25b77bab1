package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TirthC27/HealthID/internal/consent"
	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

// Mock audit recorder for testing
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(userID string, action types.AuditAction, targetID, details string) error {
	args := m.Called(userID, action, targetID, details)
	return args.Error(0)
}

func setupEvaluator(policy Policy) (*Evaluator, *consent.Ledger, *MockRecorder) {
	recorder := &MockRecorder{}
	recorder.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ledger := consent.NewLedger(storage.NewMemoryStore(), recorder, 24*time.Hour, logger.New("error"))
	evaluator := NewEvaluator(ledger, policy, logger.New("error"))
	return evaluator, ledger, recorder
}

func TestCheckAccess_NoConsent(t *testing.T) {
	evaluator, _, _ := setupEvaluator(PolicyAuto)

	c, ok, err := evaluator.CheckAccess("p1", "d1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestEnsureAccess_AutoGrantsOnMiss(t *testing.T) {
	evaluator, _, recorder := setupEvaluator(PolicyAuto)

	c, err := evaluator.EnsureAccess("doc-user", "p1", "d1", []types.Scope{types.ScopeReadRecords})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, types.ConsentStatusActive, c.Status)
	recorder.AssertCalled(t, "Record", "doc-user", types.AuditConsentGranted, c.ID, mock.Anything)
}

func TestEnsureAccess_ReusesExistingConsent(t *testing.T) {
	evaluator, _, _ := setupEvaluator(PolicyAuto)

	first, err := evaluator.EnsureAccess("doc-user", "p1", "d1", types.DefaultScopes)
	require.NoError(t, err)

	// Second call with no elapsed time returns the identical consent
	second, err := evaluator.EnsureAccess("doc-user", "p1", "d1", types.DefaultScopes)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestEnsureAccess_NewConsentAfterRevocation(t *testing.T) {
	evaluator, ledger, _ := setupEvaluator(PolicyAuto)

	first, err := evaluator.EnsureAccess("doc-user", "p1", "d1", types.DefaultScopes)
	require.NoError(t, err)

	require.NoError(t, ledger.Revoke("patient-user", first.ID))

	found, err := ledger.FindActive("p1", "d1")
	require.NoError(t, err)
	assert.Nil(t, found)

	// The revoked record is never resurrected; a brand-new consent is created
	second, err := evaluator.EnsureAccess("doc-user", "p1", "d1", types.DefaultScopes)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, types.ConsentStatusActive, second.Status)
}

func TestEnsureAccess_PendingApprovalRefusesToGrant(t *testing.T) {
	evaluator, ledger, _ := setupEvaluator(PolicyPendingApproval)

	_, err := evaluator.EnsureAccess("doc-user", "p1", "d1", types.DefaultScopes)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeConsentPending))

	// No record was created
	consents, lerr := ledger.ListForPatient("p1")
	require.NoError(t, lerr)
	assert.Empty(t, consents)
}

func TestEnsureAccess_PendingApprovalHonorsExplicitGrant(t *testing.T) {
	evaluator, ledger, _ := setupEvaluator(PolicyPendingApproval)

	// Patient grants explicitly through the ledger
	granted, err := ledger.Grant("patient-user", "p1", "d1", types.DefaultScopes)
	require.NoError(t, err)

	c, err := evaluator.EnsureAccess("doc-user", "p1", "d1", types.DefaultScopes)
	require.NoError(t, err)
	assert.Equal(t, granted.ID, c.ID)
}

func TestRequireScope(t *testing.T) {
	evaluator, _, _ := setupEvaluator(PolicyAuto)

	c := &types.Consent{Scopes: []types.Scope{types.ScopeReadRecords}}

	assert.NoError(t, evaluator.RequireScope(c, types.ScopeReadRecords))

	err := evaluator.RequireScope(c, types.ScopeWritePrescription)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInsufficientScope))
}
