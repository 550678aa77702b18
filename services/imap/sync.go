package imap

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/tracing"
	"github.com/mailhookhq/mailhook/internal/utils"
	"github.com/mailhookhq/mailhook/services/email_processor"
)

const (
	defaultFetchLimit = 50
	maxFetchLimit     = 500
	fetchBatchSize    = 50
	folderTimeout     = 120 * time.Second
)

// syncFolder runs one fetch cycle for (account, folder): derive the cursor,
// search past it, fetch, reconcile each message and notify for fresh inserts.
// The account must already be validated and its credentials decrypted.
func (s *IMAPService) syncFolder(ctx context.Context, account *models.Account, creds interfaces.IMAPCredentials, folder string, limit int) (*interfaces.FolderSyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.syncFolder")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)
	span.SetTag("folder", folder)

	ctx, cancel := context.WithTimeout(ctx, folderTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultFetchLimit
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}

	var conn interfaces.IMAPConnection
	err := retryWithBackoff(ctx, span, defaultMaxAttempts, func() error {
		acquired, acquireErr := s.pool.Acquire(ctx, account.ID, creds)
		if acquireErr != nil {
			return acquireErr
		}
		conn = acquired
		return nil
	})
	if err != nil {
		s.recordSyncFailure(ctx, account, err)
		return nil, err
	}
	broken := false
	defer func() {
		s.pool.Release(account.ID, broken)
	}()

	// A concurrent cycle can arm webhooks between this cycle's account load
	// and now. Gate decisions follow the stored row, not the snapshot.
	fresh, err := s.accounts.GetByID(ctx, account.ID)
	if err != nil {
		return nil, errors.Wrap(err, "refresh account")
	}
	if fresh != nil {
		account.InitialSyncCompleted = fresh.InitialSyncCompleted
		account.WebhookEnabledAt = fresh.WebhookEnabledAt
	}

	err = retryWithBackoff(ctx, span, defaultMaxAttempts, func() error {
		return conn.SelectFolder(ctx, folder)
	})
	if err != nil {
		broken = sessionBroken(err)
		s.recordSyncFailure(ctx, account, err)
		return nil, err
	}

	cursor, err := s.messages.GetMaxUID(ctx, account.ID, folder)
	if err != nil {
		return nil, errors.Wrap(err, "get sync cursor")
	}
	span.SetTag("cursor", cursor)

	var uids []uint32
	err = retryWithBackoff(ctx, span, searchMaxAttempts, func() error {
		found, searchErr := conn.SearchSinceUID(ctx, cursor)
		if searchErr != nil {
			return searchErr
		}
		uids = found
		return nil
	})
	if err != nil {
		broken = sessionBroken(err)
		s.recordSyncFailure(ctx, account, err)
		return nil, err
	}

	result := &interfaces.FolderSyncResult{
		AccountID:      account.ID,
		Folder:         folder,
		Emails:         []*interfaces.MessageSummary{},
		Total:          len(uids),
		LastFetchedUID: cursor,
	}

	if len(uids) > limit {
		uids = uids[:limit]
	}

	for start := 0; start < len(uids); start += fetchBatchSize {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		end := start + fetchBatchSize
		if end > len(uids) {
			end = len(uids)
		}

		fetched, err := conn.FetchByUID(ctx, uids[start:end])
		if err != nil {
			broken = sessionBroken(err)
			s.recordSyncFailure(ctx, account, err)
			return result, err
		}

		for _, raw := range fetched {
			summary, sent, err := s.reconcileMessage(ctx, account, folder, raw)
			if err != nil {
				// One unparseable or unsaveable message never aborts the
				// cycle; its UID stays below the cursor and is retried on
				// the next pass if the save failed.
				s.log.Warnf("account %s folder %s uid %d: %v", account.ID, folder, raw.UID, err)
				tracing.TraceErr(span, err)
				continue
			}
			result.Emails = append(result.Emails, summary)
			result.Count++
			if sent {
				result.WebhooksSent++
			}
			if raw.UID > result.LastFetchedUID {
				result.LastFetchedUID = raw.UID
			}
		}
	}

	s.completeSyncCycle(ctx, account)
	span.SetTag("count", result.Count)
	span.SetTag("webhooks-sent", result.WebhooksSent)
	return result, nil
}

// reconcileMessage parses one raw message, upserts it and, when this is a
// genuinely new row on a webhook-enabled account, fires the notification.
func (s *IMAPService) reconcileMessage(ctx context.Context, account *models.Account, folder string, raw *interfaces.FetchedMessage) (*interfaces.MessageSummary, bool, error) {
	parsed, err := email_processor.ParseRawMessage(raw.Raw)
	if err != nil {
		return nil, false, errors.Wrap(err, "parse message")
	}

	receivedAt := parsed.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = raw.InternalDate
	}

	message := &models.Message{
		AccountID:         account.ID,
		Folder:            folder,
		ImapUID:           raw.UID,
		ProviderMessageID: models.ProviderMessageID(raw.UID, folder),
		SenderName:        parsed.From.Name,
		SenderEmail:       parsed.From.Address,
		RecipientEmail:    account.EmailAddress,
		ToAddresses:       parsed.To,
		Subject:           parsed.Subject,
		BodyText:          parsed.Text,
		BodyHTML:          parsed.HTML,
		ReceivedAt:        receivedAt,
		IsRead:            utils.IsStringInSlice("\\Seen", raw.Flags),
		AttachmentsCount:  len(parsed.Attachments),
		AttachmentsMeta:   parsed.Attachments,
	}

	action, id, err := s.messages.Upsert(ctx, message)
	if err != nil {
		return nil, false, errors.Wrap(err, "upsert message")
	}

	summary := &interfaces.MessageSummary{
		ID:               id,
		UID:              raw.UID,
		Folder:           folder,
		Subject:          message.Subject,
		SenderName:       message.SenderName,
		SenderEmail:      message.SenderEmail,
		ReceivedAt:       message.ReceivedAt,
		IsRead:           message.IsRead,
		AttachmentsCount: message.AttachmentsCount,
	}

	sent := false
	if s.gate.ShouldNotify(account, action, message.ReceivedAt) {
		// Delivery is at-most-once. A failed POST is logged and dropped;
		// the message itself is already durable.
		delivery := s.dispatcher.Notify(ctx, account, message)
		if delivery.Success {
			sent = true
		} else {
			s.log.Warnf("webhook delivery failed for message %s: %s", id, delivery.Reason)
		}
	}

	return summary, sent, nil
}

// completeSyncCycle runs the post-batch bookkeeping: the one-time transition
// that arms webhooks, plus the last-synced timestamp.
func (s *IMAPService) completeSyncCycle(ctx context.Context, account *models.Account) {
	if !account.InitialSyncCompleted {
		won, err := s.accounts.MarkInitialSyncCompleted(ctx, account.ID)
		if err != nil {
			s.log.Errorf("account %s: marking initial sync complete: %v", account.ID, err)
		} else if won {
			s.log.Infof("account %s: initial sync completed, webhooks enabled", account.ID)
			account.InitialSyncCompleted = true
		}
	}

	if err := s.accounts.UpdateLastSynced(ctx, account.ID); err != nil {
		s.log.Errorf("account %s: updating last synced: %v", account.ID, err)
	}
}

// recordSyncFailure persists what went wrong. Auth failures additionally
// flag the account so background sync stops hammering dead credentials.
func (s *IMAPService) recordSyncFailure(ctx context.Context, account *models.Account, err error) {
	if IsAuthError(err) {
		if repoErr := s.accounts.SetNeedsReconnection(ctx, account.ID, err.Error()); repoErr != nil {
			s.log.Errorf("account %s: flagging reconnection: %v", account.ID, repoErr)
		}
		return
	}
	if repoErr := s.accounts.UpdateLastError(ctx, account.ID, err.Error()); repoErr != nil {
		s.log.Errorf("account %s: recording sync error: %v", account.ID, repoErr)
	}
}
