package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testaustime/testaustime-auth/internal/database/dbtest"
	"github.com/testaustime/testaustime-auth/internal/models"
)

func TestRecordLogin(t *testing.T) {
	db := dbtest.NewSQLite(t)
	recorder := NewRecorder(db, nil)
	ctx := context.Background()

	require.NoError(t, recorder.RecordLogin(ctx, "42", "", "203.0.113.7"))
	require.NoError(t, recorder.RecordLogin(ctx, "", "invalid_code", ""))

	var events []models.LoginEvent
	require.NoError(t, db.Order("id").Find(&events).Error)
	require.Len(t, events, 2)

	assert.Equal(t, models.LoginOutcomeSuccess, events[0].Outcome)
	require.NotNil(t, events[0].ExternalID)
	assert.Equal(t, "42", *events[0].ExternalID)
	assert.Nil(t, events[0].ErrorKind)
	require.NotNil(t, events[0].RemoteAddr)
	assert.Equal(t, "203.0.113.7", *events[0].RemoteAddr)

	assert.Equal(t, models.LoginOutcomeFailed, events[1].Outcome)
	assert.Nil(t, events[1].ExternalID)
	require.NotNil(t, events[1].ErrorKind)
	assert.Equal(t, "invalid_code", *events[1].ErrorKind)
}

func TestPruneDeletesOnlyExpiredEvents(t *testing.T) {
	db := dbtest.NewSQLite(t)
	recorder := NewRecorder(db, nil)

	old := models.LoginEvent{Outcome: models.LoginOutcomeSuccess, CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := models.LoginEvent{Outcome: models.LoginOutcomeSuccess, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&fresh).Error)

	deleted, err := recorder.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.LoginEvent
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}
