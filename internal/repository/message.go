package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/tracing"
	"github.com/mailhookhq/mailhook/internal/utils"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) interfaces.MessageRepository {
	return &messageRepository{
		db: db,
	}
}

// upsertSQL inserts a message or refreshes the mutable fields of the existing
// row with the same (account_id, provider_message_id). Postgres sets xmax to 0
// on freshly inserted tuples, which is how we learn whether the conflict arm
// ran without a second round trip.
const upsertSQL = `
INSERT INTO messages (
	id, account_id, folder, imap_uid, provider_message_id,
	sender_name, sender_email, recipient_email, to_addresses,
	subject, body_text, body_html, received_at,
	is_read, is_starred, is_deleted,
	attachments_count, attachments_meta,
	created_at, updated_at
) VALUES (
	?, ?, ?, ?, ?,
	?, ?, ?, ?,
	?, ?, ?, ?,
	?, ?, ?,
	?, ?,
	?, ?
)
ON CONFLICT (account_id, provider_message_id) DO UPDATE SET
	is_read    = EXCLUDED.is_read,
	is_starred = EXCLUDED.is_starred,
	updated_at = EXCLUDED.updated_at
RETURNING id, (xmax = 0) AS inserted`

// Upsert writes one message atomically. Re-fetching the same UID is a no-op
// beyond a flag refresh; concurrent writers for the same message converge on
// a single row.
func (r *messageRepository) Upsert(ctx context.Context, message *models.Message) (interfaces.UpsertAction, string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if message.ID == "" {
		message.ID = utils.GenerateNanoIDWithPrefix("msg", 24)
	}
	now := utils.Now()

	var row struct {
		ID       string
		Inserted bool
	}
	err := r.db.WithContext(ctx).Raw(upsertSQL,
		message.ID, message.AccountID, message.Folder, message.ImapUID, message.ProviderMessageID,
		message.SenderName, message.SenderEmail, message.RecipientEmail, message.ToAddresses,
		message.Subject, message.BodyText, message.BodyHTML, message.ReceivedAt,
		message.IsRead, message.IsStarred, message.IsDeleted,
		message.AttachmentsCount, message.AttachmentsMeta,
		now, now,
	).Scan(&row).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return "", "", err
	}

	message.ID = row.ID
	if row.Inserted {
		span.SetTag("upsert-action", "inserted")
		return interfaces.UpsertInserted, row.ID, nil
	}
	span.SetTag("upsert-action", "updated")
	return interfaces.UpsertUpdated, row.ID, nil
}

// GetMaxUID derives the fetch cursor for an account folder from stored rows.
// A folder with no rows yields 0, which makes the first fetch start at UID 1.
func (r *messageRepository) GetMaxUID(ctx context.Context, accountID, folder string) (uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetMaxUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var maxUID uint32
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("account_id = ? AND folder = ?", accountID, folder).
		Select("COALESCE(MAX(imap_uid), 0)").
		Scan(&maxUID).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return maxUID, nil
}

// GetByID retrieves a message by its ID
func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var message models.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &message, nil
}

// ListByAccountFolder retrieves a page of messages, newest first
func (r *messageRepository) ListByAccountFolder(ctx context.Context, accountID, folder string, limit, offset int) ([]*models.Message, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ListByAccountFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("account_id = ? AND folder = ? AND is_deleted = ?", accountID, folder, false)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var messages []*models.Message
	if err := query.
		Order("received_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, accountID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.CountUnread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("account_id = ? AND is_read = ? AND is_deleted = ?", accountID, false, false).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) SetRead(ctx context.Context, id string, isRead bool) error {
	return r.setFlag(ctx, "messageRepository.SetRead", id, "is_read", isRead)
}

func (r *messageRepository) SetStarred(ctx context.Context, id string, isStarred bool) error {
	return r.setFlag(ctx, "messageRepository.SetStarred", id, "is_starred", isStarred)
}

// SoftDelete hides the message from listings without losing the UID cursor:
// the row stays, so the folder's MAX(imap_uid) is unaffected.
func (r *messageRepository) SoftDelete(ctx context.Context, id string) error {
	return r.setFlag(ctx, "messageRepository.SoftDelete", id, "is_deleted", true)
}

func (r *messageRepository) setFlag(ctx context.Context, operationName, id, column string, value bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName)
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:       value,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *messageRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.DeleteByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.Message{}).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
