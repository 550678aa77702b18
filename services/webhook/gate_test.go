package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/utils"
)

func TestShouldNotify(t *testing.T) {
	enabledAt := utils.Now()

	tests := []struct {
		name       string
		synced     bool
		enabled    bool
		action     interfaces.UpsertAction
		receivedAt time.Time
		want       bool
	}{
		{"new message after initial sync", true, true, interfaces.UpsertInserted, enabledAt.Add(time.Minute), true},
		{"received exactly at enablement", true, true, interfaces.UpsertInserted, enabledAt, true},
		{"flag refresh never notifies", true, true, interfaces.UpsertUpdated, enabledAt.Add(time.Minute), false},
		{"backfill insert stays silent", false, false, interfaces.UpsertInserted, enabledAt.Add(time.Minute), false},
		{"missing enablement timestamp fails safe", true, false, interfaces.UpsertInserted, enabledAt.Add(time.Minute), false},
		{"historical message surfaced late", true, true, interfaces.UpsertInserted, enabledAt.Add(-time.Hour), false},
		{"update during backfill", false, false, interfaces.UpsertUpdated, enabledAt, false},
	}

	g := NewGate()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := &models.Account{
				ID:                   "acct_gate",
				InitialSyncCompleted: tt.synced,
			}
			if tt.enabled {
				account.WebhookEnabledAt = utils.Ptr(enabledAt)
			}
			assert.Equal(t, tt.want, g.ShouldNotify(account, tt.action, tt.receivedAt))
		})
	}
}
