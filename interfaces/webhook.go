package interfaces

import (
	"context"
	"time"

	"github.com/mailhookhq/mailhook/internal/models"
)

// DeliveryResult describes one webhook attempt. Delivery is at-most-once and
// best-effort: failures carry a reason, they are never retried.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Reason     string
}

type WebhookDispatcher interface {
	Notify(ctx context.Context, account *models.Account, message *models.Message) DeliveryResult
}

// SyncGate decides whether a freshly inserted message may trigger an outbound
// notification for its account.
type SyncGate interface {
	ShouldNotify(account *models.Account, action UpsertAction, receivedAt time.Time) bool
}
