package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mailhookhq/mailhook/internal/utils"
)

// Message is the canonical representation of one fetched email.
type Message struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);index;uniqueIndex:idx_account_provider_message;not null" json:"accountId"`
	Folder    string `gorm:"column:folder;type:varchar(100);index;not null" json:"folder"`
	ImapUID   uint32 `gorm:"column:imap_uid;index;not null" json:"imapUid"`

	// ProviderMessageID is derived from (uid, folder) and, together with
	// account_id, is the uniqueness constraint the upsert targets.
	ProviderMessageID string `gorm:"column:provider_message_id;type:varchar(255);uniqueIndex:idx_account_provider_message;not null" json:"providerMessageId"`

	SenderName     string         `gorm:"column:sender_name;type:varchar(255)" json:"senderName"`
	SenderEmail    string         `gorm:"column:sender_email;type:varchar(255);index" json:"senderEmail"`
	RecipientEmail string         `gorm:"column:recipient_email;type:varchar(255)" json:"recipientEmail"`
	ToAddresses    pq.StringArray `gorm:"column:to_addresses;type:text[]" json:"toAddresses"`

	Subject  string `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	BodyText string `gorm:"column:body_text;type:text" json:"bodyText"`
	BodyHTML string `gorm:"column:body_html;type:text" json:"bodyHtml"`

	ReceivedAt time.Time `gorm:"column:received_at;type:timestamp;index" json:"receivedAt"`

	IsRead    bool `gorm:"column:is_read;not null;default:false" json:"isRead"`
	IsStarred bool `gorm:"column:is_starred;not null;default:false" json:"isStarred"`
	IsDeleted bool `gorm:"column:is_deleted;not null;default:false" json:"isDeleted"`

	AttachmentsCount int                `gorm:"column:attachments_count;not null;default:0" json:"attachmentsCount"`
	AttachmentsMeta  AttachmentMetaList `gorm:"column:attachments_meta;type:jsonb" json:"attachmentsMeta"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("msg", 24)
	}
	m.CreatedAt = utils.Now()
	return nil
}

// ProviderMessageID derives the stable per-account message key for a UID/folder pair.
func ProviderMessageID(uid uint32, folder string) string {
	return fmt.Sprintf("%d:%s", uid, folder)
}
