package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

const collectionAudits = "audits"

// Recorder records append-only audit events
type Recorder interface {
	Record(userID string, action types.AuditAction, targetID, details string) error
}

// StoreRecorder persists audit events to the key-value store and mirrors them
// through the structured logger
type StoreRecorder struct {
	store  storage.Store
	logger *logger.Logger
	now    func() time.Time
}

// NewStoreRecorder creates a new store-backed audit recorder
func NewStoreRecorder(store storage.Store, log *logger.Logger) *StoreRecorder {
	return &StoreRecorder{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// Record appends a new audit event
func (r *StoreRecorder) Record(userID string, action types.AuditAction, targetID, details string) error {
	event := &types.AuditEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		TargetID:  targetID,
		Details:   details,
		Timestamp: r.now().UTC(),
	}

	if err := r.store.Put(collectionAudits, event.ID, event); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	r.logger.Audit(userID, string(action), targetID, true, map[string]interface{}{
		"details": details,
	})
	return nil
}

// TrailForUser returns the audit events recorded for a user, newest first
func (r *StoreRecorder) TrailForUser(userID string) ([]*types.AuditEvent, error) {
	raws, err := r.store.List(collectionAudits)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}

	var events []*types.AuditEvent
	for _, raw := range raws {
		var event types.AuditEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("failed to decode audit event: %w", err)
		}
		if event.UserID == userID {
			events = append(events, &event)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}
