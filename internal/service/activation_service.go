package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alure/alure-api/internal/crypto"
	"github.com/alure/alure-api/internal/domain/activation"
	"github.com/alure/alure-api/internal/domain/license"
	"github.com/alure/alure-api/internal/domain/module"
	"github.com/alure/alure-api/internal/domain/project"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/alure/alure-api/internal/metrics"
	"github.com/alure/alure-api/internal/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Soft verification outcomes. These are business results, never errors:
// offline-tolerant clients branch on them without exception handling.
const (
	ReasonInvalidOrRevoked = "invalid_or_revoked"
	ReasonInvalidReceipt   = "invalid_receipt"
	ReasonExpired          = "expired"
	ReasonGracePeriod      = "grace_period"
	ReasonLegacyReceipt    = "legacy_receipt"
)

type CreateLicenseInput struct {
	ProjectID          uuid.UUID
	Plan               string
	MaxActivations     int
	DurationDays       int
	Notes              string
	ModuleKeys         []string
	BulkCreated        bool
	RecipientEmailHash string
}

type ActivateInput struct {
	LicenseKey string
	DeviceID   string
	Hostname   string
}

type ActivateResult struct {
	Receipt         string
	ActivationID    uuid.UUID
	ExpiresAt       *time.Time
	GracePeriodDays int
	ServerTime      time.Time
}

type VerifyResult struct {
	Valid      bool
	Reason     string
	NewReceipt string
	ExpiresAt  *time.Time
	ServerTime time.Time
}

type RevokeResult struct {
	Revoked    bool
	ServerTime time.Time
}

type ActivationInfo struct {
	ActivationID   uuid.UUID
	DeviceIDHash   string
	Revoked        bool
	CreatedAt      time.Time
	LastSeenAt     *time.Time
	HostnameMasked string
}

// ModuleAssignment is the admin-facing view of one project module's standing
// for a license or activation.
type ModuleAssignment struct {
	ModuleID          uuid.UUID
	Key               string
	Name              string
	Enabled           bool
	ForceActivation   bool
	ForceDeactivation bool
	Params            map[string]interface{}
}

type LicenseModuleInput struct {
	Key               string
	ForceActivation   bool
	ForceDeactivation bool
	Params            map[string]interface{}
}

type DashboardSummary struct {
	TotalLicenses     int64
	RevokedLicenses   int64
	TotalActivations  int64
	ActiveActivations int64
}

// ActivationService owns all license/activation invariants: issuance,
// activation, verification, revocation cascades and module reassignment.
type ActivationService struct {
	licenses     license.Repository
	activations  activation.Repository
	modules      module.Repository
	projects     project.Repository
	entitlements *EntitlementService
	codec        *crypto.ReceiptCodec
	vault        *crypto.Vault
	logger       *zap.Logger
	now          func() time.Time
}

func NewActivationService(
	licenses license.Repository,
	activations activation.Repository,
	modules module.Repository,
	projects project.Repository,
	entitlements *EntitlementService,
	codec *crypto.ReceiptCodec,
	vault *crypto.Vault,
	logger *zap.Logger,
) *ActivationService {
	return &ActivationService{
		licenses:     licenses,
		activations:  activations,
		modules:      modules,
		projects:     projects,
		entitlements: entitlements,
		codec:        codec,
		vault:        vault,
		logger:       logger.Named("ActivationService"),
		now:          time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *ActivationService) WithClock(now func() time.Time) *ActivationService {
	s.now = now
	return s
}

// CreateLicense mints a license and its key. The plaintext key is returned
// exactly once; only its hash is persisted. Shared by the admin create path
// and bulk issuance.
func (s *ActivationService) CreateLicense(ctx context.Context, in CreateLicenseInput) (*license.License, string, error) {
	if _, err := s.projects.FindByID(ctx, in.ProjectID); err != nil {
		return nil, "", err
	}

	moduleRows, err := s.resolveModuleKeys(ctx, in.ProjectID, in.ModuleKeys, ierr.ErrModuleNotFound)
	if err != nil {
		return nil, "", err
	}

	fullKey, keyHash, err := util.GenerateLicenseKey()
	if err != nil {
		s.logger.Error("Failed to generate license key", zap.Error(err))
		return nil, "", fmt.Errorf("%w: failed generating key: %v", ierr.ErrInternalServer, err)
	}

	lic := &license.License{
		ID:             uuid.New(),
		ProjectID:      in.ProjectID,
		KeyHash:        keyHash,
		Plan:           in.Plan,
		MaxActivations: in.MaxActivations,
		DurationDays:   in.DurationDays,
		BulkCreated:    in.BulkCreated,
	}
	if in.DurationDays > 0 {
		lic.ExpiresAt = sql.NullTime{Time: s.now().UTC().AddDate(0, 0, in.DurationDays), Valid: true}
	}
	if in.Notes != "" {
		lic.Notes = sql.NullString{String: in.Notes, Valid: true}
	}
	if in.RecipientEmailHash != "" {
		lic.RecipientEmailHash = sql.NullString{String: in.RecipientEmailHash, Valid: true}
	}

	insertedID, err := s.licenses.Create(ctx, lic)
	if err != nil {
		s.logger.Error("Failed to create license via repository", zap.Error(err))
		return nil, "", err
	}
	lic.ID = insertedID

	if len(moduleRows) > 0 {
		licenseModules := make([]*module.LicenseModule, len(moduleRows))
		for i, mod := range moduleRows {
			licenseModules[i] = &module.LicenseModule{LicenseID: lic.ID, ModuleID: mod.ID}
		}
		if err := s.modules.ReplaceLicenseModules(ctx, lic.ID, licenseModules); err != nil {
			// The license row already committed; revoke it so a half-created
			// grant cannot block a later re-issuance to the same recipient.
			if revokeErr := s.licenses.Revoke(ctx, lic.ID); revokeErr != nil {
				s.logger.Error("Failed to revoke license after module attach failure",
					zap.String("license_id", lic.ID.String()), zap.Error(revokeErr))
			}
			return nil, "", err
		}
	}

	metrics.LicensesIssuedTotal.WithLabelValues(boolLabel(in.BulkCreated)).Inc()
	s.logger.Info("License created",
		zap.String("id", lic.ID.String()),
		zap.String("project_id", in.ProjectID.String()),
		zap.String("plan", in.Plan),
	)
	return lic, fullKey, nil
}

// Activate binds a license to a device and issues the first signed receipt.
// The repository serializes the check-then-insert against the cap.
func (s *ActivationService) Activate(ctx context.Context, in ActivateInput) (*ActivateResult, error) {
	now := s.now().UTC()
	keyHash := util.HashSHA256(in.LicenseKey)
	deviceHash := util.HashSHA256(in.DeviceID)

	lic, err := s.licenses.FindByKeyHash(ctx, keyHash)
	if err != nil {
		metrics.ActivationsTotal.WithLabelValues("license_not_found").Inc()
		return nil, err
	}
	if lic.Revoked {
		metrics.ActivationsTotal.WithLabelValues("license_revoked").Inc()
		return nil, ierr.ErrLicenseRevoked
	}
	if lic.Expired(now) {
		metrics.ActivationsTotal.WithLabelValues("license_expired").Inc()
		return nil, ierr.ErrLicenseExpired
	}

	grace, err := s.gracePeriodDays(ctx, lic)
	if err != nil {
		return nil, err
	}

	resolved, err := s.entitlements.Resolve(ctx, lic.ProjectID, lic.ID, nil)
	if err != nil {
		return nil, err
	}

	activationID := uuid.New()
	expiresAt := licenseExpiry(lic)

	receipt, err := s.signReceipt(lic, activationID, deviceHash, expiresAt, grace, resolved, now)
	if err != nil {
		return nil, err
	}

	act := &activation.Activation{
		ID:           activationID,
		LicenseID:    lic.ID,
		DeviceIDHash: deviceHash,
		ReceiptHash:  util.HashSHA256(receipt),
		CreatedAt:    now,
	}
	if in.Hostname != "" {
		ciphertext, err := s.vault.Encrypt(in.Hostname)
		if err != nil {
			s.logger.Error("Failed to encrypt hostname", zap.Error(err))
			return nil, fmt.Errorf("%w: hostname encryption failed", ierr.ErrInternalServer)
		}
		act.HostnameCiphertext = sql.NullString{String: ciphertext, Valid: true}
	}

	if err := s.activations.Create(ctx, act, lic.MaxActivations); err != nil {
		metrics.ActivationsTotal.WithLabelValues(activationFailureLabel(err)).Inc()
		return nil, err
	}

	metrics.ActivationsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Device activated",
		zap.String("license_id", lic.ID.String()),
		zap.String("activation_id", activationID.String()),
	)

	return &ActivateResult{
		Receipt:         receipt,
		ActivationID:    activationID,
		ExpiresAt:       expiresAt,
		GracePeriodDays: grace,
		ServerTime:      now,
	}, nil
}

// Verify checks a receipt for a device and, when still valid (including the
// grace window), reissues a fresh receipt. Invalid receipts are a business
// outcome, not an error.
func (s *ActivationService) Verify(ctx context.Context, receiptToken, deviceID string) (*VerifyResult, error) {
	now := s.now().UTC()
	invalid := func(reason string) *VerifyResult {
		metrics.VerificationsTotal.WithLabelValues(reason).Inc()
		return &VerifyResult{Valid: false, Reason: reason, ServerTime: now}
	}

	verification := s.codec.Verify(receiptToken)
	legacy := !verification.Valid
	payload := verification.Payload
	if payload == nil {
		// Unsigned/foreign-key receipt: the payload may still be readable and
		// carry a resolvable activation id.
		payload, _ = s.codec.Decode(receiptToken)
	}

	act, err := s.activations.FindByReceiptHash(ctx, util.HashSHA256(receiptToken))
	if err != nil {
		if !errors.Is(err, ierr.ErrActivationNotFound) {
			return nil, err
		}
		// The client may hold a previously issued receipt superseded by a
		// fresher one; fall back to the embedded activation id.
		if payload == nil {
			return invalid(ReasonInvalidOrRevoked), nil
		}
		activationID, parseErr := uuid.Parse(payload.ActivationID)
		if parseErr != nil {
			return invalid(ReasonInvalidOrRevoked), nil
		}
		act, err = s.activations.FindByID(ctx, activationID)
		if err != nil {
			if errors.Is(err, ierr.ErrActivationNotFound) {
				return invalid(ReasonInvalidOrRevoked), nil
			}
			return nil, err
		}
	}

	if act.Revoked {
		return invalid(ReasonInvalidOrRevoked), nil
	}

	lic, err := s.licenses.FindByID(ctx, act.LicenseID)
	if err != nil {
		if errors.Is(err, ierr.ErrLicenseNotFound) {
			return invalid(ReasonInvalidOrRevoked), nil
		}
		return nil, err
	}
	if lic.Revoked {
		return invalid(ReasonInvalidOrRevoked), nil
	}

	if util.HashSHA256(deviceID) != act.DeviceIDHash {
		return invalid(ReasonInvalidOrRevoked), nil
	}

	if payload != nil {
		if payload.LicenseID != lic.ID.String() ||
			payload.ActivationID != act.ID.String() ||
			payload.DeviceIDHash != act.DeviceIDHash {
			return invalid(ReasonInvalidReceipt), nil
		}
	}

	// Effective expiry prefers what was promised at issuance over the live
	// license row, but only a signed payload can carry that promise. Legacy
	// and unsigned tokens fall back to the license row and its plan grace.
	var expiresAt *time.Time
	grace := 0
	if verification.Valid {
		embedded, hasExpiry, parseErr := payload.ExpiryTime()
		if parseErr != nil {
			return invalid(ReasonInvalidReceipt), nil
		}
		if hasExpiry {
			expiresAt = &embedded
		}
		grace = payload.GracePeriodDays
	} else {
		expiresAt = licenseExpiry(lic)
		if grace, err = s.gracePeriodDays(ctx, lic); err != nil {
			return nil, err
		}
	}

	reason := ""
	if legacy {
		reason = ReasonLegacyReceipt
	}
	if expiresAt != nil && now.After(*expiresAt) {
		graceLimit := expiresAt.AddDate(0, 0, grace)
		if now.After(graceLimit) {
			return invalid(ReasonExpired), nil
		}
		reason = ReasonGracePeriod
	}

	resolved, err := s.entitlements.Resolve(ctx, lic.ProjectID, lic.ID, act)
	if err != nil {
		return nil, err
	}

	newReceipt, err := s.signReceipt(lic, act.ID, act.DeviceIDHash, expiresAt, grace, resolved, now)
	if err != nil {
		return nil, err
	}
	if err := s.activations.Refresh(ctx, act.ID, util.HashSHA256(newReceipt), now); err != nil {
		return nil, err
	}

	result := "ok"
	if reason != "" {
		result = reason
	}
	metrics.VerificationsTotal.WithLabelValues(result).Inc()

	return &VerifyResult{
		Valid:      true,
		Reason:     reason,
		NewReceipt: newReceipt,
		ExpiresAt:  expiresAt,
		ServerTime: now,
	}, nil
}

// Revoke flips a single activation, or a license with cascade to all of its
// activations. Idempotent: revoking an already-revoked entity succeeds.
func (s *ActivationService) Revoke(ctx context.Context, licenseID, activationID *uuid.UUID) (*RevokeResult, error) {
	now := s.now().UTC()

	switch {
	case licenseID != nil:
		if err := s.licenses.Revoke(ctx, *licenseID); err != nil {
			return nil, err
		}
		s.logger.Info("License revoked", zap.String("license_id", licenseID.String()))
	case activationID != nil:
		if err := s.activations.Revoke(ctx, *activationID, now); err != nil {
			return nil, err
		}
		s.logger.Info("Activation revoked", zap.String("activation_id", activationID.String()))
	default:
		return nil, fmt.Errorf("%w: license_id or activation_id is required", ierr.ErrValidation)
	}

	return &RevokeResult{Revoked: true, ServerTime: now}, nil
}

func (s *ActivationService) ListActivations(ctx context.Context, licenseID uuid.UUID) ([]*ActivationInfo, error) {
	if _, err := s.licenses.FindByID(ctx, licenseID); err != nil {
		return nil, err
	}

	acts, err := s.activations.ListByLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	infos := make([]*ActivationInfo, len(acts))
	for i, act := range acts {
		info := &ActivationInfo{
			ActivationID: act.ID,
			DeviceIDHash: act.DeviceIDHash,
			Revoked:      act.Revoked,
			CreatedAt:    act.CreatedAt,
		}
		if act.LastSeenAt.Valid {
			seen := act.LastSeenAt.Time
			info.LastSeenAt = &seen
		}
		if act.HostnameCiphertext.Valid {
			hostname, err := s.vault.Decrypt(act.HostnameCiphertext.String)
			if err != nil {
				s.logger.Warn("Failed to decrypt hostname for masking",
					zap.String("activation_id", act.ID.String()), zap.Error(err))
			} else {
				info.HostnameMasked = util.MaskValue(hostname)
			}
		}
		infos[i] = info
	}
	return infos, nil
}

// RevealHostname decrypts the stored hostname. The handler re-verifies the
// caller's own password before calling this; masking is used everywhere else.
func (s *ActivationService) RevealHostname(ctx context.Context, licenseID, activationID uuid.UUID) (string, error) {
	act, err := s.activationOfLicense(ctx, licenseID, activationID)
	if err != nil {
		return "", err
	}
	if !act.HostnameCiphertext.Valid {
		return "", ierr.ErrHostnameNotRecorded
	}

	hostname, err := s.vault.Decrypt(act.HostnameCiphertext.String)
	if err != nil {
		s.logger.Error("Failed to decrypt hostname", zap.String("activation_id", activationID.String()), zap.Error(err))
		return "", fmt.Errorf("%w: hostname decryption failed", ierr.ErrInternalServer)
	}

	s.logger.Info("Hostname revealed to admin", zap.String("activation_id", activationID.String()))
	return hostname, nil
}

func (s *ActivationService) GetLicenseModules(ctx context.Context, licenseID uuid.UUID) ([]*ModuleAssignment, error) {
	lic, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	return s.moduleAssignments(ctx, lic, nil)
}

// SetLicenseModules replaces all license-level grants, scrubs lingering
// activation overrides for forced-off modules, and refreshes the receipt of
// every live activation since their entitlements just changed.
func (s *ActivationService) SetLicenseModules(ctx context.Context, licenseID uuid.UUID, inputs []LicenseModuleInput) ([]*ModuleAssignment, error) {
	lic, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(inputs))
	for i, in := range inputs {
		keys[i] = in.Key
	}
	mods, err := s.resolveModuleKeys(ctx, lic.ProjectID, keys, ierr.ErrModuleNotFound)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*module.Module, len(mods))
	for _, mod := range mods {
		byKey[mod.Key] = mod
	}

	rows := make([]*module.LicenseModule, len(inputs))
	var forcedOff []uuid.UUID
	for i, in := range inputs {
		mod := byKey[in.Key]
		rows[i] = &module.LicenseModule{
			LicenseID:         licenseID,
			ModuleID:          mod.ID,
			ForceActivation:   in.ForceActivation,
			ForceDeactivation: in.ForceDeactivation,
			Params:            in.Params,
		}
		if in.ForceDeactivation {
			forcedOff = append(forcedOff, mod.ID)
		}
	}

	if err := s.modules.ReplaceLicenseModules(ctx, licenseID, rows); err != nil {
		return nil, err
	}
	// A revoked entitlement must not resurface through a stale override.
	if err := s.modules.DeleteActivationOverrides(ctx, licenseID, forcedOff); err != nil {
		return nil, err
	}
	if err := s.refreshLicenseReceipts(ctx, lic); err != nil {
		return nil, err
	}

	return s.moduleAssignments(ctx, lic, nil)
}

func (s *ActivationService) GetActivationModules(ctx context.Context, licenseID, activationID uuid.UUID) ([]*ModuleAssignment, error) {
	lic, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	act, err := s.activationOfLicense(ctx, licenseID, activationID)
	if err != nil {
		return nil, err
	}
	return s.moduleAssignments(ctx, lic, act)
}

// SetActivationModules replaces the per-activation grants, permanently
// flipping the activation into restricted mode, and reissues its receipt.
func (s *ActivationService) SetActivationModules(ctx context.Context, licenseID, activationID uuid.UUID, keys []string) ([]*ModuleAssignment, string, error) {
	lic, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, "", err
	}
	act, err := s.activationOfLicense(ctx, licenseID, activationID)
	if err != nil {
		return nil, "", err
	}

	mods, err := s.resolveModuleKeys(ctx, lic.ProjectID, keys, ierr.ErrModuleNotAllowed)
	if err != nil {
		return nil, "", err
	}

	rows := make([]*module.ActivationModule, len(mods))
	for i, mod := range mods {
		rows[i] = &module.ActivationModule{ActivationID: activationID, ModuleID: mod.ID}
	}
	if err := s.modules.ReplaceActivationModules(ctx, activationID, rows); err != nil {
		return nil, "", err
	}
	act.ModulesRestricted = true

	newReceipt, err := s.refreshActivationReceipt(ctx, lic, act)
	if err != nil {
		return nil, "", err
	}

	assignments, err := s.moduleAssignments(ctx, lic, act)
	if err != nil {
		return nil, "", err
	}
	return assignments, newReceipt, nil
}

func (s *ActivationService) ListLicenses(ctx context.Context, projectID uuid.UUID) ([]*license.License, error) {
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.licenses.ListByProject(ctx, projectID)
}

func (s *ActivationService) Summary(ctx context.Context) (*DashboardSummary, error) {
	totalLicenses, revokedLicenses, err := s.licenses.Counts(ctx)
	if err != nil {
		return nil, err
	}
	totalActivations, activeActivations, err := s.activations.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardSummary{
		TotalLicenses:     totalLicenses,
		RevokedLicenses:   revokedLicenses,
		TotalActivations:  totalActivations,
		ActiveActivations: activeActivations,
	}, nil
}

func (s *ActivationService) activationOfLicense(ctx context.Context, licenseID, activationID uuid.UUID) (*activation.Activation, error) {
	act, err := s.activations.FindByID(ctx, activationID)
	if err != nil {
		return nil, err
	}
	if act.LicenseID != licenseID {
		return nil, ierr.ErrActivationNotFound
	}
	return act, nil
}

// resolveModuleKeys maps keys to project modules, failing with notFoundErr on
// the first key the project does not define.
func (s *ActivationService) resolveModuleKeys(ctx context.Context, projectID uuid.UUID, keys []string, notFoundErr error) ([]*module.Module, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	projectModules, err := s.modules.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*module.Module, len(projectModules))
	for _, mod := range projectModules {
		byKey[mod.Key] = mod
	}

	seen := make(map[string]bool, len(keys))
	result := make([]*module.Module, 0, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		mod, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", notFoundErr, key)
		}
		result = append(result, mod)
	}
	return result, nil
}

func (s *ActivationService) gracePeriodDays(ctx context.Context, lic *license.License) (int, error) {
	plan, err := s.projects.FindPlan(ctx, lic.ProjectID, lic.Plan)
	if err != nil {
		if errors.Is(err, ierr.ErrPlanNotFound) {
			return project.DefaultGracePeriodDays, nil
		}
		return 0, err
	}
	return plan.GracePeriodDays, nil
}

func (s *ActivationService) signReceipt(lic *license.License, activationID uuid.UUID, deviceHash string, expiresAt *time.Time, grace int, resolved []ResolvedModule, issuedAt time.Time) (string, error) {
	payloadModules := make([]crypto.ReceiptModule, len(resolved))
	for i, mod := range resolved {
		payloadModules[i] = crypto.ReceiptModule{Key: mod.Key, Params: mod.Params}
	}

	receipt, err := s.codec.Sign(&crypto.ReceiptPayload{
		LicenseID:       lic.ID.String(),
		ProjectID:       lic.ProjectID.String(),
		ActivationID:    activationID.String(),
		DeviceIDHash:    deviceHash,
		Plan:            lic.Plan,
		MaxActivations:  lic.MaxActivations,
		IssuedAt:        issuedAt.Format(time.RFC3339),
		ExpiresAt:       crypto.FormatExpiry(expiresAt),
		GracePeriodDays: grace,
		Modules:         payloadModules,
	})
	if err != nil {
		s.logger.Error("Failed to sign receipt", zap.Error(err))
		return "", fmt.Errorf("%w: receipt signing failed", ierr.ErrInternalServer)
	}
	return receipt, nil
}

// refreshActivationReceipt re-resolves entitlements and persists a fresh
// receipt for one activation. Used after module reassignment.
func (s *ActivationService) refreshActivationReceipt(ctx context.Context, lic *license.License, act *activation.Activation) (string, error) {
	resolved, err := s.entitlements.Resolve(ctx, lic.ProjectID, lic.ID, act)
	if err != nil {
		return "", err
	}

	grace, err := s.gracePeriodDays(ctx, lic)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	receipt, err := s.signReceipt(lic, act.ID, act.DeviceIDHash, licenseExpiry(lic), grace, resolved, now)
	if err != nil {
		return "", err
	}
	if err := s.activations.Refresh(ctx, act.ID, util.HashSHA256(receipt), now); err != nil {
		return "", err
	}
	return receipt, nil
}

func (s *ActivationService) refreshLicenseReceipts(ctx context.Context, lic *license.License) error {
	acts, err := s.activations.ListByLicense(ctx, lic.ID)
	if err != nil {
		return err
	}
	for _, act := range acts {
		if act.Revoked {
			continue
		}
		if _, err := s.refreshActivationReceipt(ctx, lic, act); err != nil {
			return err
		}
	}
	return nil
}

// moduleAssignments renders every project module with its standing for the
// license (act nil) or for one activation.
func (s *ActivationService) moduleAssignments(ctx context.Context, lic *license.License, act *activation.Activation) ([]*ModuleAssignment, error) {
	projectModules, err := s.modules.ListByProject(ctx, lic.ProjectID)
	if err != nil {
		return nil, err
	}
	licenseModules, err := s.modules.ListLicenseModules(ctx, lic.ID)
	if err != nil {
		return nil, err
	}
	byModuleID := make(map[uuid.UUID]*module.LicenseModule, len(licenseModules))
	for _, lm := range licenseModules {
		byModuleID[lm.ModuleID] = lm
	}

	resolved, err := s.entitlements.Resolve(ctx, lic.ProjectID, lic.ID, act)
	if err != nil {
		return nil, err
	}
	enabled := make(map[uuid.UUID]ResolvedModule, len(resolved))
	for _, mod := range resolved {
		enabled[mod.ModuleID] = mod
	}

	assignments := make([]*ModuleAssignment, len(projectModules))
	for i, mod := range projectModules {
		assignment := &ModuleAssignment{
			ModuleID: mod.ID,
			Key:      mod.Key,
			Name:     mod.Name,
		}
		if lm, ok := byModuleID[mod.ID]; ok {
			assignment.ForceActivation = lm.ForceActivation
			assignment.ForceDeactivation = lm.ForceDeactivation
		}
		if resolvedMod, ok := enabled[mod.ID]; ok {
			assignment.Enabled = true
			assignment.Params = resolvedMod.Params
		}
		assignments[i] = assignment
	}
	return assignments, nil
}

func licenseExpiry(lic *license.License) *time.Time {
	if !lic.ExpiresAt.Valid {
		return nil
	}
	expiry := lic.ExpiresAt.Time.UTC()
	return &expiry
}

func activationFailureLabel(err error) string {
	switch {
	case errors.Is(err, ierr.ErrActivationExists):
		return "activation_already_exists"
	case errors.Is(err, ierr.ErrActivationLimitReached):
		return "activation_limit_reached"
	case errors.Is(err, ierr.ErrLicenseRevoked):
		return "license_revoked"
	default:
		return "error"
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
