package interfaces

import (
	"context"

	"github.com/mailhookhq/mailhook/internal/models"
)

// UpsertAction reports whether an upsert created a new row or touched an existing one
type UpsertAction string

const (
	UpsertInserted UpsertAction = "inserted"
	UpsertUpdated  UpsertAction = "updated"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.Account, error)
	ListActive(ctx context.Context) ([]*models.Account, error)
	Delete(ctx context.Context, id string) error

	// MarkInitialSyncCompleted flips initial_sync_completed false -> true and
	// sets webhook_enabled_at in one conditional update. Returns true only for
	// the single caller that won the transition.
	MarkInitialSyncCompleted(ctx context.Context, id string) (bool, error)

	UpdateCredentials(ctx context.Context, id string, passwordEnc string) error
	SetNeedsReconnection(ctx context.Context, id string, lastError string) error
	ClearReconnection(ctx context.Context, id string) error
	UpdateLastSynced(ctx context.Context, id string) error
	UpdateLastError(ctx context.Context, id string, lastError string) error
}

type MessageRepository interface {
	// Upsert performs an atomic insert-or-update keyed by
	// (account_id, provider_message_id). Existing rows only get their mutable
	// flags refreshed.
	Upsert(ctx context.Context, message *models.Message) (UpsertAction, string, error)

	// GetMaxUID returns the sync cursor for (account, folder): the highest UID
	// already stored, 0 when nothing is stored yet.
	GetMaxUID(ctx context.Context, accountID, folder string) (uint32, error)

	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByAccountFolder(ctx context.Context, accountID, folder string, limit, offset int) ([]*models.Message, int64, error)
	CountUnread(ctx context.Context, accountID string) (int64, error)
	SetRead(ctx context.Context, id string, isRead bool) error
	SetStarred(ctx context.Context, id string, isStarred bool) error
	SoftDelete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, accountID string) error
}
