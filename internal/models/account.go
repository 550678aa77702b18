package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/mailhookhq/mailhook/internal/enum"
	"github.com/mailhookhq/mailhook/internal/utils"
)

// Account holds one mailbox credential set owned by a user.
type Account struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID       string `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);index" json:"emailAddress"`

	// IMAP configuration. The password is stored encrypted, see internal/crypto.
	ImapHost        string `gorm:"column:imap_host;type:varchar(255);not null" json:"imapHost"`
	ImapPort        int    `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapUsername    string `gorm:"column:imap_username;type:varchar(255);not null" json:"imapUsername"`
	ImapPasswordEnc string `gorm:"column:imap_password_enc;type:text;not null" json:"-"`
	ImapTLS         bool   `gorm:"column:imap_tls;not null;default:true" json:"imapTls"`

	IsActive bool `gorm:"column:is_active;not null;default:true" json:"isActive"`

	// InitialSyncCompleted transitions false -> true exactly once, together with
	// WebhookEnabledAt, guarded by a conditional update in the repository.
	InitialSyncCompleted bool       `gorm:"column:initial_sync_completed;not null;default:false" json:"initialSyncCompleted"`
	WebhookEnabledAt     *time.Time `gorm:"column:webhook_enabled_at;type:timestamp" json:"webhookEnabledAt"`

	// NeedsReconnection is set on authentication failure and excludes the
	// account from scheduled runs until a human clears it.
	NeedsReconnection bool   `gorm:"column:needs_reconnection;not null;default:false" json:"needsReconnection"`
	LastError         string `gorm:"column:last_error;type:text" json:"lastError"`

	LastSyncedAt *time.Time `gorm:"column:last_synced_at;type:timestamp" json:"lastSyncedAt"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	a.CreatedAt = utils.Now()
	return nil
}

// SyncState exposes the initial sync flag as an explicit two-state machine.
func (a *Account) SyncState() enum.SyncState {
	if a.InitialSyncCompleted {
		return enum.SyncStateActive
	}
	return enum.SyncStatePending
}

// ConnectionStatus reports whether the account is eligible for syncing.
func (a *Account) ConnectionStatus() enum.ConnectionStatus {
	if a.IsActive && !a.NeedsReconnection {
		return enum.ConnectionActive
	}
	return enum.ConnectionNotActive
}
