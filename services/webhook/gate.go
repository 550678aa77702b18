package webhook

import (
	"time"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/models"
)

type gate struct{}

func NewGate() interfaces.SyncGate {
	return &gate{}
}

// ShouldNotify allows a notification only for rows that were genuinely
// inserted after the account's initial sync finished. Backfill inserts and
// flag refreshes stay silent, a missing enablement timestamp fails safe, and
// a message dated before enablement is historical even when its row is new
// (e.g. a provider backfill surfacing old mail late).
func (g *gate) ShouldNotify(account *models.Account, action interfaces.UpsertAction, receivedAt time.Time) bool {
	if action != interfaces.UpsertInserted {
		return false
	}
	if !account.InitialSyncCompleted {
		return false
	}
	if account.WebhookEnabledAt == nil {
		return false
	}
	if receivedAt.Before(*account.WebhookEnabledAt) {
		return false
	}
	return true
}
