package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alure/alure-api/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMailer struct {
	verifyErr error
	failFor   map[string]error
	sent      []string
}

func (m *fakeMailer) Verify(ctx context.Context) error {
	return m.verifyErr
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if err, ok := m.failFor[to]; ok {
		return err
	}
	m.sent = append(m.sent, to)
	return nil
}

func newBulkEnv(t *testing.T, mailer *fakeMailer) (*testEnv, *BulkService) {
	t.Helper()
	env := newTestEnv(t)
	bulk := NewBulkService(env.svc, mailer, zap.NewNop())
	bulk.now = env.clock.Now
	return env, bulk
}

func TestBulkCreateNormalizesAndDeduplicates(t *testing.T) {
	mailer := &fakeMailer{}
	env, bulk := newBulkEnv(t, mailer)

	result, err := bulk.CreateMany(context.Background(), BulkCreateInput{
		ProjectID: env.projectID,
		Plan:      "pro",
		Recipients: []string{
			"  Alice@Example.com ",
			"bob@example.com",
			"alice@example.com",
			"",
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	assert.Equal(t, "alice@example.com", result.Created[0].Email)
	assert.Equal(t, "bob@example.com", result.Created[1].Email)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, mailer.sent)

	for _, created := range result.Created {
		assert.NotEmpty(t, created.LicenseKey)
		lic, err := env.licenses.FindByID(context.Background(), created.LicenseID)
		require.NoError(t, err)
		assert.True(t, lic.BulkCreated)
		assert.True(t, lic.RecipientEmailHash.Valid)
	}
}

func TestBulkCreateEmptyAfterNormalization(t *testing.T) {
	mailer := &fakeMailer{}
	_, bulk := newBulkEnv(t, mailer)

	_, err := bulk.CreateMany(context.Background(), BulkCreateInput{
		Recipients: []string{"   ", ""},
	})
	assert.ErrorIs(t, err, ierr.ErrRecipientsRequired)
}

func TestBulkCreateRefusesWhenDeliveryUnavailable(t *testing.T) {
	mailer := &fakeMailer{verifyErr: errors.New("smtp connect refused")}
	env, bulk := newBulkEnv(t, mailer)

	_, err := bulk.CreateMany(context.Background(), BulkCreateInput{
		ProjectID:  env.projectID,
		Plan:       "pro",
		Recipients: []string{"alice@example.com"},
	})
	assert.ErrorIs(t, err, ierr.ErrDeliveryUnavailable)

	// Fail-fast: nothing was minted.
	licenses, listErr := env.licenses.ListByProject(context.Background(), env.projectID)
	require.NoError(t, listErr)
	assert.Empty(t, licenses)
}

func TestBulkCreateSkipsRecipientWithActiveLicense(t *testing.T) {
	mailer := &fakeMailer{}
	env, bulk := newBulkEnv(t, mailer)
	ctx := context.Background()

	first, err := bulk.CreateMany(ctx, BulkCreateInput{
		ProjectID:  env.projectID,
		Plan:       "pro",
		Recipients: []string{"alice@example.com"},
	})
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	second, err := bulk.CreateMany(ctx, BulkCreateInput{
		ProjectID:  env.projectID,
		Plan:       "pro",
		Recipients: []string{"alice@example.com", "bob@example.com"},
	})
	require.NoError(t, err)

	require.Len(t, second.Created, 1)
	assert.Equal(t, "bob@example.com", second.Created[0].Email)
	require.Len(t, second.Failed, 1)
	assert.Equal(t, "alice@example.com", second.Failed[0].Email)
	assert.Equal(t, "active_license_exists", second.Failed[0].Error)
	require.NotNil(t, second.Failed[0].LicenseID)
	assert.Equal(t, first.Created[0].LicenseID, *second.Failed[0].LicenseID)
}

func TestBulkCreateReissuesAfterRevocation(t *testing.T) {
	mailer := &fakeMailer{}
	env, bulk := newBulkEnv(t, mailer)
	ctx := context.Background()

	first, err := bulk.CreateMany(ctx, BulkCreateInput{
		ProjectID:  env.projectID,
		Plan:       "pro",
		Recipients: []string{"alice@example.com"},
	})
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	_, err = env.svc.Revoke(ctx, &first.Created[0].LicenseID, nil)
	require.NoError(t, err)

	second, err := bulk.CreateMany(ctx, BulkCreateInput{
		ProjectID:  env.projectID,
		Plan:       "pro",
		Recipients: []string{"alice@example.com"},
	})
	require.NoError(t, err)
	assert.Len(t, second.Created, 1)
	assert.Empty(t, second.Failed)
}

func TestBulkCreateReportsOrphanedKeyOnDeliveryFailure(t *testing.T) {
	mailer := &fakeMailer{failFor: map[string]error{
		"bob@example.com": errors.New("mailbox full"),
	}}
	env, bulk := newBulkEnv(t, mailer)

	result, err := bulk.CreateMany(context.Background(), BulkCreateInput{
		ProjectID:  env.projectID,
		Plan:       "pro",
		Recipients: []string{"alice@example.com", "bob@example.com", "carol@example.com"},
	})
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	require.Len(t, result.Failed, 1)

	failed := result.Failed[0]
	assert.Equal(t, "bob@example.com", failed.Email)
	assert.Equal(t, "delivery_failed", failed.Error)
	// The license exists; the operator needs its id and key to follow up.
	require.NotNil(t, failed.LicenseID)
	assert.NotEmpty(t, failed.LicenseKey)

	lic, err := env.licenses.FindByID(context.Background(), *failed.LicenseID)
	require.NoError(t, err)
	assert.False(t, lic.Revoked)
}
