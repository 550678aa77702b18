package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/logger"
	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/tracing"
)

const deliveryTimeout = 10 * time.Second

// NotificationPayload is the body POSTed to the configured webhook endpoint
// for every new message on a webhook-enabled account. DeliveryID is unique per
// POST so consumers can de-duplicate should they ever see a replay.
type NotificationPayload struct {
	DeliveryID string           `json:"delivery_id"`
	Event      string           `json:"event"`
	Timestamp  time.Time        `json:"timestamp"`
	AccountID  string           `json:"account_id"`
	UserID     string           `json:"user_id"`
	Email      NotificationMail `json:"email"`
}

type NotificationMail struct {
	MessageID        string                    `json:"message_id"`
	UID              uint32                    `json:"uid"`
	Subject          string                    `json:"subject"`
	SenderName       string                    `json:"sender_name"`
	SenderEmail      string                    `json:"sender_email"`
	RecipientEmail   string                    `json:"recipient_email"`
	BodyText         string                    `json:"body_text"`
	BodyHTML         string                    `json:"body_html"`
	ReceivedAt       time.Time                 `json:"received_at"`
	FolderName       string                    `json:"folder_name"`
	IsRead           bool                      `json:"is_read"`
	IsStarred        bool                      `json:"is_starred"`
	AttachmentsCount int                       `json:"attachments_count"`
	AttachmentsMeta  models.AttachmentMetaList `json:"attachments_meta"`
}

type dispatcher struct {
	log        logger.Logger
	webhookURL string
	client     *http.Client
}

func NewDispatcher(log logger.Logger, webhookURL string) interfaces.WebhookDispatcher {
	return &dispatcher{
		log:        log,
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: deliveryTimeout,
		},
	}
}

// Notify POSTs the new-message event once. There are no retries: the message
// row is already durable and consumers are expected to reconcile via the API
// if they miss a delivery.
func (d *dispatcher) Notify(ctx context.Context, account *models.Account, message *models.Message) interfaces.DeliveryResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatcher.Notify")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, message.ID)

	if d.webhookURL == "" {
		return interfaces.DeliveryResult{Success: false, Reason: "no webhook url configured"}
	}

	payload := NotificationPayload{
		DeliveryID: uuid.New().String(),
		Event:      "new_unseen_email",
		Timestamp:  time.Now().UTC(),
		AccountID:  account.ID,
		UserID:     account.UserID,
		Email: NotificationMail{
			MessageID:        message.ID,
			UID:              message.ImapUID,
			Subject:          message.Subject,
			SenderName:       message.SenderName,
			SenderEmail:      message.SenderEmail,
			RecipientEmail:   message.RecipientEmail,
			BodyText:         message.BodyText,
			BodyHTML:         message.BodyHTML,
			ReceivedAt:       message.ReceivedAt,
			FolderName:       message.Folder,
			IsRead:           message.IsRead,
			IsStarred:        message.IsStarred,
			AttachmentsCount: message.AttachmentsCount,
			AttachmentsMeta:  message.AttachmentsMeta,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		tracing.TraceErr(span, err)
		return interfaces.DeliveryResult{Success: false, Reason: "marshal payload: " + err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		tracing.TraceErr(span, err)
		return interfaces.DeliveryResult{Success: false, Reason: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Mailhook-Delivery-Id", payload.DeliveryID)
	tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := d.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return interfaces.DeliveryResult{Success: false, Reason: err.Error()}
	}
	defer resp.Body.Close()

	span.SetTag("status-code", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return interfaces.DeliveryResult{
			Success:    false,
			StatusCode: resp.StatusCode,
			Reason:     "webhook endpoint returned " + resp.Status,
		}
	}

	return interfaces.DeliveryResult{Success: true, StatusCode: resp.StatusCode}
}
