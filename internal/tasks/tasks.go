package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeHostnameScrub = "pii:hostname:scrub"
)

type HostnameScrubPayload struct{}

func NewHostnameScrubTask(opts ...asynq.Option) (*asynq.Task, error) {
	payload := HostnameScrubPayload{}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(1 * time.Hour)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeHostnameScrub, payloadBytes, allOpts...), nil
}
