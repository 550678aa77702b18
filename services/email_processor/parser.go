package email_processor

import (
	"bytes"
	"net/mail"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/jhillyerd/enmime"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/utils"
)

type EmailAddress struct {
	Name    string
	Address string
}

// ParsedEmail is the metadata extracted from one raw RFC 5322 message.
// Attachment content is intentionally absent; only descriptors are kept.
type ParsedEmail struct {
	MessageID   string
	Subject     string
	From        EmailAddress
	To          pq.StringArray
	ReceivedAt  time.Time
	Text        string
	HTML        string
	Attachments models.AttachmentMetaList
}

// ParseRawMessage parses a full raw message with enmime and normalizes the
// pieces the rest of the pipeline stores.
func ParseRawMessage(raw []byte) (*ParsedEmail, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty message")
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "read envelope")
	}

	parsed := &ParsedEmail{
		MessageID: utils.NormalizeMessageID(env.GetHeader("Message-Id")),
		Subject:   env.GetHeader("Subject"),
		Text:      env.Text,
		HTML:      env.HTML,
		To:        pq.StringArray{},
	}

	if date := env.GetHeader("Date"); date != "" {
		if sentAt, err := mail.ParseDate(date); err == nil {
			parsed.ReceivedAt = sentAt.UTC()
		}
	}

	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		parsed.From.Name = from[0].Name
		syntaxValidation := mailvalidate.ValidateEmailSyntax(from[0].Address)
		if syntaxValidation.IsValid {
			parsed.From.Address = syntaxValidation.CleanEmail
		} else {
			parsed.From.Address = from[0].Address
		}
	}

	if to, err := env.AddressList("To"); err == nil {
		for _, addr := range to {
			syntaxValidation := mailvalidate.ValidateEmailSyntax(addr.Address)
			if syntaxValidation.IsValid {
				parsed.To = append(parsed.To, syntaxValidation.CleanEmail)
			}
		}
	}

	// HTML-only messages still get a text body for display and search.
	if parsed.Text == "" && parsed.HTML != "" {
		parsed.Text = stripHTML(parsed.HTML)
	}

	parsed.Attachments = collectAttachmentMeta(env)

	return parsed, nil
}

func collectAttachmentMeta(env *enmime.Envelope) models.AttachmentMetaList {
	meta := models.AttachmentMetaList{}

	for _, attachment := range env.Attachments {
		meta = append(meta, models.AttachmentMeta{
			Filename:    attachment.FileName,
			ContentType: attachment.ContentType,
			Size:        len(attachment.Content),
		})
	}

	// Inline parts with a filename are user-visible attachments too
	for _, inline := range env.Inlines {
		if inline.FileName == "" {
			continue
		}
		meta = append(meta, models.AttachmentMeta{
			Filename:    inline.FileName,
			ContentType: inline.ContentType,
			Size:        len(inline.Content),
		})
	}

	return meta
}

func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}
