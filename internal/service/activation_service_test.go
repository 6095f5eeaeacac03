package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alure/alure-api/internal/crypto"
	"github.com/alure/alure-api/internal/domain/license"
	"github.com/alure/alure-api/internal/domain/module"
	"github.com/alure/alure-api/internal/domain/project"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/alure/alure-api/internal/storage/memstorage"
	"github.com/alure/alure-api/internal/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store       *memstorage.Store
	licenses    *memstorage.LicenseRepository
	activations *memstorage.ActivationRepository
	modules     *memstorage.ModuleRepository
	projects    *memstorage.ProjectRepository
	vault       *crypto.Vault
	codec       *crypto.ReceiptCodec
	clock       *fakeClock
	svc         *ActivationService
	projectID   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memstorage.NewStore()
	licenses := memstorage.NewLicenseRepository(store)
	activations := memstorage.NewActivationRepository(store)
	modules := memstorage.NewModuleRepository(store)
	projects := memstorage.NewProjectRepository(store)

	keys, err := crypto.Generate()
	require.NoError(t, err)
	vault, err := crypto.NewVault("test-vault-secret")
	require.NoError(t, err)

	logger := zap.NewNop()
	codec := crypto.NewReceiptCodec(keys)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	svc := NewActivationService(
		licenses, activations, modules, projects,
		NewEntitlementService(modules, logger),
		codec, vault, logger,
	).WithClock(clock.Now)

	projectID, err := projects.Create(context.Background(), &project.Project{Name: "alure-desktop"})
	require.NoError(t, err)

	return &testEnv{
		store:       store,
		licenses:    licenses,
		activations: activations,
		modules:     modules,
		projects:    projects,
		vault:       vault,
		codec:       codec,
		clock:       clock,
		svc:         svc,
		projectID:   projectID,
	}
}

func (e *testEnv) addModule(t *testing.T, key, name string, defaults map[string]interface{}) uuid.UUID {
	t.Helper()
	id, err := e.modules.Create(context.Background(), &module.Module{
		ProjectID:     e.projectID,
		Key:           key,
		Name:          name,
		DefaultParams: defaults,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) newLicense(t *testing.T, in CreateLicenseInput) (*license.License, string) {
	t.Helper()
	if in.ProjectID == uuid.Nil {
		in.ProjectID = e.projectID
	}
	if in.Plan == "" {
		in.Plan = "pro"
	}
	lic, key, err := e.svc.CreateLicense(context.Background(), in)
	require.NoError(t, err)
	return lic, key
}

func TestActivateAndVerifyHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{MaxActivations: 3})

	activated, err := env.svc.Activate(ctx, ActivateInput{
		LicenseKey: key,
		DeviceID:   "device-001",
		Hostname:   "workstation-042.corp.local",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, activated.Receipt)
	assert.NotEqual(t, uuid.Nil, activated.ActivationID)
	assert.Nil(t, activated.ExpiresAt)

	verified, err := env.svc.Verify(ctx, activated.Receipt, "device-001")
	require.NoError(t, err)
	assert.True(t, verified.Valid)
	assert.Empty(t, verified.Reason)
	assert.NotEmpty(t, verified.NewReceipt)
	assert.NotEqual(t, activated.Receipt, verified.NewReceipt)

	// Rotation sticks: the fresh receipt verifies too.
	verifiedAgain, err := env.svc.Verify(ctx, verified.NewReceipt, "device-001")
	require.NoError(t, err)
	assert.True(t, verifiedAgain.Valid)
}

func TestActivateUnknownKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Activate(context.Background(), ActivateInput{
		LicenseKey: "al_bogus_bogusbogusbogusbogusbogusbog",
		DeviceID:   "device-001",
	})
	assert.ErrorIs(t, err, ierr.ErrLicenseNotFound)
}

func TestActivateSameDeviceTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{MaxActivations: 3})

	_, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	_, err = env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	assert.ErrorIs(t, err, ierr.ErrActivationExists)
}

func TestActivationCapSequential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{MaxActivations: 2})

	_, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)
	_, err = env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-002"})
	require.NoError(t, err)

	_, err = env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-003"})
	assert.ErrorIs(t, err, ierr.ErrActivationLimitReached)
}

func TestActivationCapUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const maxActivations = 3
	const attempts = 12
	_, key := env.newLicense(t, CreateLicenseInput{MaxActivations: maxActivations})

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = env.svc.Activate(ctx, ActivateInput{
				LicenseKey: key,
				DeviceID:   "device-" + uuid.NewString(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ierr.ErrActivationLimitReached)
		}
	}
	assert.Equal(t, maxActivations, succeeded)
}

func TestZeroMaxActivationsIsUnlimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{MaxActivations: 0})

	for i := 0; i < 10; i++ {
		_, err := env.svc.Activate(ctx, ActivateInput{
			LicenseKey: key,
			DeviceID:   "device-" + uuid.NewString(),
		})
		require.NoError(t, err)
	}
}

func TestExpiryAndGraceTimeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.projects.UpsertPlan(ctx, &project.Plan{
		ProjectID:       env.projectID,
		Name:            "pro",
		GracePeriodDays: 14,
	}))

	_, key := env.newLicense(t, CreateLicenseInput{DurationDays: 30})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)
	require.NotNil(t, activated.ExpiresAt)
	assert.Equal(t, 14, activated.GracePeriodDays)

	receipt := activated.Receipt

	// Day 29: inside the license term.
	env.clock.Advance(29 * 24 * time.Hour)
	verified, err := env.svc.Verify(ctx, receipt, "device-001")
	require.NoError(t, err)
	assert.True(t, verified.Valid)
	assert.Empty(t, verified.Reason)
	receipt = verified.NewReceipt

	// Day 31: expired but within the 14-day grace window.
	env.clock.Advance(2 * 24 * time.Hour)
	verified, err = env.svc.Verify(ctx, receipt, "device-001")
	require.NoError(t, err)
	assert.True(t, verified.Valid)
	assert.Equal(t, ReasonGracePeriod, verified.Reason)
	receipt = verified.NewReceipt

	// Day 50: past expiry plus grace.
	env.clock.Advance(19 * 24 * time.Hour)
	verified, err = env.svc.Verify(ctx, receipt, "device-001")
	require.NoError(t, err)
	assert.False(t, verified.Valid)
	assert.Equal(t, ReasonExpired, verified.Reason)
	assert.Empty(t, verified.NewReceipt)
}

func TestActivateExpiredLicense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{DurationDays: 10})

	env.clock.Advance(11 * 24 * time.Hour)
	_, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	assert.ErrorIs(t, err, ierr.ErrLicenseExpired)
}

func TestLicenseRevokeCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lic, key := env.newLicense(t, CreateLicenseInput{MaxActivations: 3})

	receipts := make([]string, 3)
	for i := range receipts {
		activated, err := env.svc.Activate(ctx, ActivateInput{
			LicenseKey: key,
			DeviceID:   "device-00" + string(rune('1'+i)),
		})
		require.NoError(t, err)
		receipts[i] = activated.Receipt
	}

	result, err := env.svc.Revoke(ctx, &lic.ID, nil)
	require.NoError(t, err)
	assert.True(t, result.Revoked)

	for i, receipt := range receipts {
		verified, err := env.svc.Verify(ctx, receipt, "device-00"+string(rune('1'+i)))
		require.NoError(t, err)
		assert.False(t, verified.Valid)
		assert.Equal(t, ReasonInvalidOrRevoked, verified.Reason)
	}

	_, err = env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-new"})
	assert.ErrorIs(t, err, ierr.ErrLicenseRevoked)

	// Idempotent: a second revoke of the same license succeeds.
	_, err = env.svc.Revoke(ctx, &lic.ID, nil)
	require.NoError(t, err)
}

func TestActivationRevokeIsScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{MaxActivations: 3})

	first, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)
	second, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-002"})
	require.NoError(t, err)

	_, err = env.svc.Revoke(ctx, nil, &first.ActivationID)
	require.NoError(t, err)

	verified, err := env.svc.Verify(ctx, first.Receipt, "device-001")
	require.NoError(t, err)
	assert.False(t, verified.Valid)
	assert.Equal(t, ReasonInvalidOrRevoked, verified.Reason)

	verified, err = env.svc.Verify(ctx, second.Receipt, "device-002")
	require.NoError(t, err)
	assert.True(t, verified.Valid)

	// The freed slot can be reused by a new device.
	_, err = env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-003"})
	require.NoError(t, err)
}

func TestRevokeRequiresTarget(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Revoke(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ierr.ErrValidation)
}

func TestVerifyStaleReceiptFallsBackToActivation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	// Rotate once so the original receipt's hash no longer matches storage.
	_, err = env.svc.Verify(ctx, activated.Receipt, "device-001")
	require.NoError(t, err)

	verified, err := env.svc.Verify(ctx, activated.Receipt, "device-001")
	require.NoError(t, err)
	assert.True(t, verified.Valid)
	assert.Empty(t, verified.Reason)
}

func TestVerifyDeviceMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	verified, err := env.svc.Verify(ctx, activated.Receipt, "device-other")
	require.NoError(t, err)
	assert.False(t, verified.Valid)
	assert.Equal(t, ReasonInvalidOrRevoked, verified.Reason)
}

func TestVerifyGarbageReceipt(t *testing.T) {
	env := newTestEnv(t)

	verified, err := env.svc.Verify(context.Background(), "not-a-receipt", "device-001")
	require.NoError(t, err)
	assert.False(t, verified.Valid)
	assert.Equal(t, ReasonInvalidOrRevoked, verified.Reason)
}

func TestVerifyLegacyReceipt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	// Simulate a signing key rotation: same storage, fresh keypair.
	rotatedKeys, err := crypto.Generate()
	require.NoError(t, err)
	rotated := NewActivationService(
		env.licenses, env.activations, env.modules, env.projects,
		NewEntitlementService(env.modules, zap.NewNop()),
		crypto.NewReceiptCodec(rotatedKeys), env.vault, zap.NewNop(),
	).WithClock(env.clock.Now)

	verified, err := rotated.Verify(ctx, activated.Receipt, "device-001")
	require.NoError(t, err)
	assert.True(t, verified.Valid)
	assert.Equal(t, ReasonLegacyReceipt, verified.Reason)
	assert.NotEmpty(t, verified.NewReceipt)

	// The reissued receipt is signed by the new key and verifies cleanly.
	verified, err = rotated.Verify(ctx, verified.NewReceipt, "device-001")
	require.NoError(t, err)
	assert.True(t, verified.Valid)
	assert.Empty(t, verified.Reason)
}

func TestCreateLicenseUnknownModuleKey(t *testing.T) {
	env := newTestEnv(t)
	env.addModule(t, "export", "Export", nil)

	_, _, err := env.svc.CreateLicense(context.Background(), CreateLicenseInput{
		ProjectID:  env.projectID,
		Plan:       "pro",
		ModuleKeys: []string{"export", "nonexistent"},
	})
	assert.ErrorIs(t, err, ierr.ErrModuleNotFound)
}

func TestReceiptCarriesResolvedModules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addModule(t, "export", "Export", map[string]interface{}{"max_rows": float64(1000)})
	env.addModule(t, "analytics", "Analytics", nil)
	env.addModule(t, "sync", "Cloud Sync", nil)

	_, key := env.newLicense(t, CreateLicenseInput{ModuleKeys: []string{"sync", "export"}})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	payload, err := env.codec.Decode(activated.Receipt)
	require.NoError(t, err)
	require.Len(t, payload.Modules, 2)
	assert.Equal(t, "export", payload.Modules[0].Key)
	assert.Equal(t, "sync", payload.Modules[1].Key)
	assert.Equal(t, float64(1000), payload.Modules[0].Params["max_rows"])
}

func TestSetActivationModulesRestrictsAndReissues(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addModule(t, "export", "Export", nil)
	env.addModule(t, "sync", "Cloud Sync", nil)

	lic, key := env.newLicense(t, CreateLicenseInput{ModuleKeys: []string{"export", "sync"}})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	assignments, newReceipt, err := env.svc.SetActivationModules(ctx, lic.ID, activated.ActivationID, []string{"export"})
	require.NoError(t, err)
	require.NotEmpty(t, newReceipt)

	enabled := map[string]bool{}
	for _, a := range assignments {
		enabled[a.Key] = a.Enabled
	}
	assert.True(t, enabled["export"])
	assert.False(t, enabled["sync"])

	payload, err := env.codec.Decode(newReceipt)
	require.NoError(t, err)
	require.Len(t, payload.Modules, 1)
	assert.Equal(t, "export", payload.Modules[0].Key)

	// The old receipt was superseded; verify still resolves by activation id
	// and the restriction persists in the fresh receipt.
	verified, err := env.svc.Verify(ctx, activated.Receipt, "device-001")
	require.NoError(t, err)
	require.True(t, verified.Valid)
	payload, err = env.codec.Decode(verified.NewReceipt)
	require.NoError(t, err)
	require.Len(t, payload.Modules, 1)
	assert.Equal(t, "export", payload.Modules[0].Key)
}

func TestSetActivationModulesRejectsUnknownKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addModule(t, "export", "Export", nil)
	lic, key := env.newLicense(t, CreateLicenseInput{ModuleKeys: []string{"export"}})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	_, _, err = env.svc.SetActivationModules(ctx, lic.ID, activated.ActivationID, []string{"nonexistent"})
	assert.ErrorIs(t, err, ierr.ErrModuleNotAllowed)
}

func TestSetLicenseModulesScrubsForcedOffOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addModule(t, "export", "Export", nil)
	env.addModule(t, "sync", "Cloud Sync", nil)

	lic, key := env.newLicense(t, CreateLicenseInput{ModuleKeys: []string{"export", "sync"}})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	_, _, err = env.svc.SetActivationModules(ctx, lic.ID, activated.ActivationID, []string{"export", "sync"})
	require.NoError(t, err)

	// Force export off at the license level; the activation override must not
	// resurrect it.
	_, err = env.svc.SetLicenseModules(ctx, lic.ID, []LicenseModuleInput{
		{Key: "export", ForceDeactivation: true},
		{Key: "sync"},
	})
	require.NoError(t, err)

	assignments, err := env.svc.GetActivationModules(ctx, lic.ID, activated.ActivationID)
	require.NoError(t, err)
	enabled := map[string]bool{}
	for _, a := range assignments {
		enabled[a.Key] = a.Enabled
	}
	assert.False(t, enabled["export"])
	assert.True(t, enabled["sync"])

	verified, err := env.svc.Verify(ctx, activated.Receipt, "device-001")
	require.NoError(t, err)
	require.True(t, verified.Valid)
	payload, err := env.codec.Decode(verified.NewReceipt)
	require.NoError(t, err)
	require.Len(t, payload.Modules, 1)
	assert.Equal(t, "sync", payload.Modules[0].Key)
}

func TestHostnameMaskedAndRevealed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lic, key := env.newLicense(t, CreateLicenseInput{})

	activated, err := env.svc.Activate(ctx, ActivateInput{
		LicenseKey: key,
		DeviceID:   "device-001",
		Hostname:   "workstation-042.corp.local",
	})
	require.NoError(t, err)

	infos, err := env.svc.ListActivations(ctx, lic.ID)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "wo***al", infos[0].HostnameMasked)
	assert.NotContains(t, infos[0].HostnameMasked, "workstation")

	hostname, err := env.svc.RevealHostname(ctx, lic.ID, activated.ActivationID)
	require.NoError(t, err)
	assert.Equal(t, "workstation-042.corp.local", hostname)
}

func TestRevealHostnameWithoutRecordedHostname(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lic, key := env.newLicense(t, CreateLicenseInput{})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	_, err = env.svc.RevealHostname(ctx, lic.ID, activated.ActivationID)
	assert.ErrorIs(t, err, ierr.ErrHostnameNotRecorded)
}

func TestRevealHostnameWrongLicense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{})
	other, _ := env.newLicense(t, CreateLicenseInput{})

	activated, err := env.svc.Activate(ctx, ActivateInput{
		LicenseKey: key,
		DeviceID:   "device-001",
		Hostname:   "host",
	})
	require.NoError(t, err)

	_, err = env.svc.RevealHostname(ctx, other.ID, activated.ActivationID)
	assert.ErrorIs(t, err, ierr.ErrActivationNotFound)
}

func TestSummaryCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, firstKey := env.newLicense(t, CreateLicenseInput{})
	_, secondKey := env.newLicense(t, CreateLicenseInput{})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: firstKey, DeviceID: "device-001"})
	require.NoError(t, err)
	_, err = env.svc.Activate(ctx, ActivateInput{LicenseKey: secondKey, DeviceID: "device-002"})
	require.NoError(t, err)

	_, err = env.svc.Revoke(ctx, nil, &activated.ActivationID)
	require.NoError(t, err)
	_, err = env.svc.Revoke(ctx, &first.ID, nil)
	require.NoError(t, err)

	summary, err := env.svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalLicenses)
	assert.Equal(t, int64(1), summary.RevokedLicenses)
	assert.Equal(t, int64(2), summary.TotalActivations)
	assert.Equal(t, int64(1), summary.ActiveActivations)
}

// reencodeReceipt rebuilds the payload segment of token from payload while
// keeping the original signature segment intact.
func reencodeReceipt(t *testing.T, token string, payload *crypto.ReceiptPayload) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	jsonBytes, err := json.Marshal(payload)
	require.NoError(t, err)
	return parts[0] + "." + base64.RawURLEncoding.EncodeToString(jsonBytes) + "." + parts[2]
}

func TestVerifyStrippedExpiryDoesNotOutliveLicense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{DurationDays: 30})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)
	require.NotNil(t, activated.ExpiresAt)

	// Strip the expiry from the payload segment without re-signing. The ids
	// still resolve, so the token walks the unsigned fallback path.
	payload, err := env.codec.Decode(activated.Receipt)
	require.NoError(t, err)
	payload.ExpiresAt = nil
	forged := reencodeReceipt(t, activated.Receipt, payload)

	env.clock.Advance(90 * 24 * time.Hour)

	verified, err := env.svc.Verify(ctx, forged, "device-001")
	require.NoError(t, err)
	assert.False(t, verified.Valid)
	assert.Equal(t, ReasonExpired, verified.Reason)
	assert.Empty(t, verified.NewReceipt)
}

func TestVerifyInflatedGraceDoesNotOutliveLicense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, key := env.newLicense(t, CreateLicenseInput{DurationDays: 30})

	activated, err := env.svc.Activate(ctx, ActivateInput{LicenseKey: key, DeviceID: "device-001"})
	require.NoError(t, err)

	payload, err := env.codec.Decode(activated.Receipt)
	require.NoError(t, err)
	payload.GracePeriodDays = 3650
	forged := reencodeReceipt(t, activated.Receipt, payload)

	// Past the real expiry and the real plan grace, inside the claimed one.
	env.clock.Advance(90 * 24 * time.Hour)

	verified, err := env.svc.Verify(ctx, forged, "device-001")
	require.NoError(t, err)
	assert.False(t, verified.Valid)
	assert.Equal(t, ReasonExpired, verified.Reason)
}

type flakyModuleRepo struct {
	module.Repository
	failures int
}

func (r *flakyModuleRepo) ReplaceLicenseModules(ctx context.Context, licenseID uuid.UUID, rows []*module.LicenseModule) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("storage offline")
	}
	return r.Repository.ReplaceLicenseModules(ctx, licenseID, rows)
}

func TestCreateLicenseModuleAttachFailureLeavesNoActiveLicense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addModule(t, "export", "Export", nil)

	flaky := &flakyModuleRepo{Repository: env.modules, failures: 1}
	svc := NewActivationService(
		env.licenses, env.activations, flaky, env.projects,
		NewEntitlementService(flaky, zap.NewNop()),
		env.codec, env.vault, zap.NewNop(),
	).WithClock(env.clock.Now)

	recipientHash := util.HashSHA256("alice@example.com")
	in := CreateLicenseInput{
		ProjectID:          env.projectID,
		Plan:               "pro",
		ModuleKeys:         []string{"export"},
		BulkCreated:        true,
		RecipientEmailHash: recipientHash,
	}

	_, _, err := svc.CreateLicense(ctx, in)
	require.Error(t, err)

	// The half-created license must not register as an active grant.
	_, err = env.licenses.FindActiveByRecipient(ctx, env.projectID, "pro", recipientHash, env.clock.Now().UTC())
	assert.ErrorIs(t, err, ierr.ErrLicenseNotFound)

	// A healthy retry for the same recipient goes through.
	lic, fullKey, err := svc.CreateLicense(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, fullKey)
	assert.False(t, lic.Revoked)
}
