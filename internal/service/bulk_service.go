package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alure/alure-api/internal/delivery"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/alure/alure-api/internal/util"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BulkCreateInput struct {
	ProjectID      uuid.UUID
	Plan           string
	MaxActivations int
	DurationDays   int
	Notes          string
	Recipients     []string
	ModuleKeys     []string
}

type BulkCreated struct {
	Email      string
	LicenseID  uuid.UUID
	LicenseKey string
}

type BulkFailed struct {
	Email      string
	Error      string
	LicenseID  *uuid.UUID
	LicenseKey string
}

type BulkCreateResult struct {
	Created []BulkCreated
	Failed  []BulkFailed
}

// BulkService mints licenses for a batch of recipients and emails each their
// key, on top of the single-issuance primitive. Recipients are processed
// strictly sequentially so the created/failed ordering is deterministic and a
// slow delivery channel throttles the batch naturally.
type BulkService struct {
	engine *ActivationService
	mailer delivery.Mailer
	logger *zap.Logger
	now    func() time.Time
}

func NewBulkService(engine *ActivationService, mailer delivery.Mailer, logger *zap.Logger) *BulkService {
	return &BulkService{
		engine: engine,
		mailer: mailer,
		logger: logger.Named("BulkService"),
		now:    time.Now,
	}
}

// CreateMany issues licenses with partial-failure semantics: a failure for
// one recipient never rolls back the ones processed before it. Minting is
// gated on the delivery channel verifying first, so no keys are created
// without a path to deliver them.
func (s *BulkService) CreateMany(ctx context.Context, in BulkCreateInput) (*BulkCreateResult, error) {
	recipients := normalizeRecipients(in.Recipients)
	if len(recipients) == 0 {
		return nil, ierr.ErrRecipientsRequired
	}

	if err := s.mailer.Verify(ctx); err != nil {
		s.logger.Error("Delivery channel verification failed, refusing to mint", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ierr.ErrDeliveryUnavailable, err)
	}

	s.logger.Info("Starting bulk issuance",
		zap.String("project_id", in.ProjectID.String()),
		zap.String("plan", in.Plan),
		zap.Int("recipients", len(recipients)),
	)

	result := &BulkCreateResult{
		Created: make([]BulkCreated, 0, len(recipients)),
		Failed:  make([]BulkFailed, 0),
	}

	for _, email := range recipients {
		recipientHash := util.HashSHA256(email)

		existing, err := s.engine.licenses.FindActiveByRecipient(ctx, in.ProjectID, in.Plan, recipientHash, s.now().UTC())
		if err != nil && !errors.Is(err, ierr.ErrLicenseNotFound) {
			result.Failed = append(result.Failed, BulkFailed{Email: email, Error: "lookup_failed"})
			continue
		}
		if existing != nil {
			// Idempotent re-issuance guard: the recipient already holds an
			// active grant for this plan.
			existingID := existing.ID
			result.Failed = append(result.Failed, BulkFailed{
				Email:     email,
				Error:     ierr.ErrActiveLicenseExists.Error(),
				LicenseID: &existingID,
			})
			continue
		}

		lic, fullKey, err := s.engine.CreateLicense(ctx, CreateLicenseInput{
			ProjectID:          in.ProjectID,
			Plan:               in.Plan,
			MaxActivations:     in.MaxActivations,
			DurationDays:       in.DurationDays,
			Notes:              in.Notes,
			ModuleKeys:         in.ModuleKeys,
			BulkCreated:        true,
			RecipientEmailHash: recipientHash,
		})
		if err != nil {
			s.logger.Warn("Bulk issuance failed to mint license", zap.String("email", email), zap.Error(err))
			result.Failed = append(result.Failed, BulkFailed{Email: email, Error: err.Error()})
			continue
		}

		if err := s.mailer.Send(ctx, email, s.subject(in.Plan), s.body(in.Plan, fullKey)); err != nil {
			// The license exists but was never delivered; report it so an
			// operator can follow up with the orphaned key.
			licID := lic.ID
			result.Failed = append(result.Failed, BulkFailed{
				Email:      email,
				Error:      "delivery_failed",
				LicenseID:  &licID,
				LicenseKey: fullKey,
			})
			continue
		}

		result.Created = append(result.Created, BulkCreated{
			Email:      email,
			LicenseID:  lic.ID,
			LicenseKey: fullKey,
		})
	}

	s.logger.Info("Bulk issuance finished",
		zap.Int("created", len(result.Created)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// normalizeRecipients trims, lowercases, and de-duplicates while preserving
// first-occurrence order.
func normalizeRecipients(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	result := make([]string, 0, len(raw))
	for _, email := range raw {
		normalized := strings.ToLower(strings.TrimSpace(email))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		result = append(result, normalized)
	}
	return result
}

func (s *BulkService) subject(plan string) string {
	return fmt.Sprintf("Your %s license key", plan)
}

func (s *BulkService) body(plan, licenseKey string) string {
	return fmt.Sprintf(
		"Hello,\n\nYour %s license is ready. Activate with the following key:\n\n    %s\n\nKeep this key private; it cannot be recovered later.\n",
		plan, licenseKey,
	)
}
