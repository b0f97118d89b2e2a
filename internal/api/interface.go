package api

import (
	"context"

	"reviewcreator/internal/models"
)

// ServiceInterface runs the engine synchronously for manual reprocessing.
type ServiceInterface interface {
	ProcessCommit(ctx context.Context, ev models.CommitEvent) models.Outcome
}

// Publisher queues commit notifications for background processing.
type Publisher interface {
	Publish(ev models.CommitEvent) error
}
