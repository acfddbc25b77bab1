package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TirthC27/HealthID/pkg/logger"
	"github.com/TirthC27/HealthID/pkg/storage"
	"github.com/TirthC27/HealthID/pkg/types"
)

func setupRecorder() *StoreRecorder {
	return NewStoreRecorder(storage.NewMemoryStore(), logger.New("error"))
}

func TestRecord(t *testing.T) {
	recorder := setupRecorder()

	err := recorder.Record("user-1", types.AuditLogin, "", "User logged in")
	require.NoError(t, err)

	trail, err := recorder.TrailForUser("user-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)

	assert.NotEmpty(t, trail[0].ID)
	assert.Equal(t, types.AuditLogin, trail[0].Action)
	assert.Equal(t, "User logged in", trail[0].Details)
	assert.False(t, trail[0].Timestamp.IsZero())
}

func TestTrailForUser_NewestFirst(t *testing.T) {
	recorder := setupRecorder()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, action := range []types.AuditAction{types.AuditLogin, types.AuditQRGenerated, types.AuditQRScanned} {
		offset := time.Duration(i) * time.Minute
		recorder.now = func() time.Time { return base.Add(offset) }
		require.NoError(t, recorder.Record("user-1", action, "", ""))
	}

	trail, err := recorder.TrailForUser("user-1")
	require.NoError(t, err)
	require.Len(t, trail, 3)

	assert.Equal(t, types.AuditQRScanned, trail[0].Action)
	assert.Equal(t, types.AuditLogin, trail[2].Action)
}

func TestTrailForUser_FiltersByUser(t *testing.T) {
	recorder := setupRecorder()

	require.NoError(t, recorder.Record("user-1", types.AuditLogin, "", ""))
	require.NoError(t, recorder.Record("user-2", types.AuditLogin, "", ""))

	trail, err := recorder.TrailForUser("user-1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "user-1", trail[0].UserID)
}

func TestTrailForUser_Empty(t *testing.T) {
	recorder := setupRecorder()

	trail, err := recorder.TrailForUser("nobody")
	require.NoError(t, err)
	assert.Empty(t, trail)
}
