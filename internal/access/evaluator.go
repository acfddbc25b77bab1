package access

import (
	"github.com/TirthC27/HealthID/internal/consent"
	"github.com/TirthC27/HealthID/pkg/config"
	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/types"
)

// Policy controls what the evaluator does when no usable consent exists
type Policy string

const (
	// PolicyAuto grants a fresh consent on first contact. This mirrors the
	// portal's demo-mode trust model.
	PolicyAuto Policy = config.PolicyAuto
	// PolicyPendingApproval refuses access until the patient grants
	// explicitly through the consent API
	PolicyPendingApproval Policy = config.PolicyPendingApproval
)

// Evaluator is the single decision point for whether a doctor may act on a
// patient's data right now. Every downstream read or write of patient data
// must pass through CheckAccess or EnsureAccess.
type Evaluator struct {
	ledger *consent.Ledger
	policy Policy
	logger *logger.Logger
}

// NewEvaluator creates a new access evaluator
func NewEvaluator(ledger *consent.Ledger, policy Policy, log *logger.Logger) *Evaluator {
	return &Evaluator{
		ledger: ledger,
		policy: policy,
		logger: log,
	}
}

// CheckAccess reports whether a usable consent exists for the pair
func (e *Evaluator) CheckAccess(patientID, doctorID string) (*types.Consent, bool, error) {
	c, err := e.ledger.FindActive(patientID, doctorID)
	if err != nil {
		return nil, false, err
	}
	return c, c != nil, nil
}

// EnsureAccess returns a usable consent for the pair, creating one on a miss
// when the policy allows it. An existing active consent is returned as-is,
// with no new record and no audit noise. A revoked or expired record is never
// resurrected; the only path forward is a brand-new consent.
func (e *Evaluator) EnsureAccess(actorID, patientID, doctorID string, scopes []types.Scope) (*types.Consent, error) {
	existing, ok, err := e.CheckAccess(patientID, doctorID)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}

	if e.policy == PolicyPendingApproval {
		e.logger.Security("consent_pending", doctorID, map[string]interface{}{
			"patient_id": patientID,
		})
		return nil, types.NewAuthorizationError(types.ErrCodeConsentPending,
			"No active consent; awaiting explicit patient approval")
	}

	return e.ledger.Grant(actorID, patientID, doctorID, scopes)
}

// RequireScope checks that the consent carries the required scope. Grants
// currently carry all scopes unconditionally, but downstream callers state
// their requirement so selective-scope enforcement works when grants narrow.
func (e *Evaluator) RequireScope(c *types.Consent, scope types.Scope) error {
	if c.HasScope(scope) {
		return nil
	}
	return types.NewAuthorizationError(types.ErrCodeInsufficientScope,
		"Consent does not carry the required scope")
}
