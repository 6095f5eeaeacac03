package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alure/alure-api/internal/domain/activation"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HostnameScrubHandler clears the encrypted hostnames of activations that
// have been revoked for longer than the retention window. The hostname is the
// only reversible PII the system stores, so revoked activations should not
// keep it around indefinitely.
type HostnameScrubHandler struct {
	repo          activation.Repository
	retentionDays int
	logger        *zap.Logger
}

func NewHostnameScrubHandler(repo activation.Repository, retentionDays int, logger *zap.Logger) *HostnameScrubHandler {
	return &HostnameScrubHandler{
		repo:          repo,
		retentionDays: retentionDays,
		logger:        logger.Named("HostnameScrubHandler"),
	}
}

func (h *HostnameScrubHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeHostnameScrub {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p HostnameScrubPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for hostname scrub task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -h.retentionDays)
	h.logger.Info("Processing hostname retention sweep", zap.Time("cutoff", cutoff))

	scrubbed, err := h.repo.ScrubHostnames(ctx, cutoff)
	if err != nil {
		h.logger.Error("Failed to scrub revoked activation hostnames", zap.Error(err))
		return fmt.Errorf("repository error scrubbing hostnames: %w", err)
	}

	h.logger.Info("Hostname retention sweep finished", zap.Int64("scrubbed", scrubbed))
	return nil
}
