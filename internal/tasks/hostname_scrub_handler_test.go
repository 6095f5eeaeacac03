package tasks

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alure/alure-api/internal/domain/activation"
	"github.com/alure/alure-api/internal/domain/license"
	"github.com/alure/alure-api/internal/storage/memstorage"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedActivation(t *testing.T, store *memstorage.Store, licenseID uuid.UUID, revokedAt time.Time, hostname bool) uuid.UUID {
	t.Helper()
	repo := memstorage.NewActivationRepository(store)

	act := &activation.Activation{
		ID:           uuid.New(),
		LicenseID:    licenseID,
		DeviceIDHash: uuid.NewString(),
		ReceiptHash:  uuid.NewString(),
	}
	if hostname {
		act.HostnameCiphertext = sql.NullString{String: "ciphertext", Valid: true}
	}
	require.NoError(t, repo.Create(context.Background(), act, 0))
	if !revokedAt.IsZero() {
		require.NoError(t, repo.Revoke(context.Background(), act.ID, revokedAt))
	}
	return act.ID
}

func TestHostnameScrubClearsOnlyExpiredRetention(t *testing.T) {
	store := memstorage.NewStore()
	licenses := memstorage.NewLicenseRepository(store)
	activations := memstorage.NewActivationRepository(store)

	licenseID, err := licenses.Create(context.Background(), &license.License{
		ProjectID: uuid.New(),
		KeyHash:   uuid.NewString(),
		Plan:      "pro",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	oldRevoked := seedActivation(t, store, licenseID, now.AddDate(0, 0, -60), true)
	recentRevoked := seedActivation(t, store, licenseID, now.AddDate(0, 0, -5), true)
	live := seedActivation(t, store, licenseID, time.Time{}, true)

	handler := NewHostnameScrubHandler(activations, 30, zap.NewNop())
	task, err := NewHostnameScrubTask()
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), task))

	find := func(id uuid.UUID) *activation.Activation {
		act, err := activations.FindByID(context.Background(), id)
		require.NoError(t, err)
		return act
	}

	assert.False(t, find(oldRevoked).HostnameCiphertext.Valid)
	assert.True(t, find(recentRevoked).HostnameCiphertext.Valid)
	assert.True(t, find(live).HostnameCiphertext.Valid)
}

func TestHostnameScrubRejectsForeignTaskType(t *testing.T) {
	store := memstorage.NewStore()
	handler := NewHostnameScrubHandler(memstorage.NewActivationRepository(store), 30, zap.NewNop())

	err := handler.ProcessTask(context.Background(), asynq.NewTask("other:task", nil))
	assert.Error(t, err)
}
