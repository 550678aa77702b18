package email_processor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainTextMessage = "From: Ada Lovelace <ada@example.com>\r\n" +
	"To: bob@example.com, carol@example.com\r\n" +
	"Subject: meeting notes\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"Message-Id: <note-1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See you at ten.\r\n"

func TestParseRawMessage_PlainText(t *testing.T) {
	parsed, err := ParseRawMessage([]byte(plainTextMessage))
	require.NoError(t, err)

	assert.Equal(t, "note-1@example.com", parsed.MessageID)
	assert.Equal(t, "meeting notes", parsed.Subject)
	assert.Equal(t, "Ada Lovelace", parsed.From.Name)
	assert.Equal(t, "ada@example.com", parsed.From.Address)
	assert.Equal(t, []string{"bob@example.com", "carol@example.com"}, []string(parsed.To))
	assert.Equal(t, "See you at ten.", strings.TrimSpace(parsed.Text))
	assert.Empty(t, parsed.HTML)
	assert.Empty(t, parsed.Attachments)

	// Date header is normalized to UTC.
	want := time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)
	assert.Equal(t, want, parsed.ReceivedAt)
}

func TestParseRawMessage_HTMLOnlyGetsTextFallback(t *testing.T) {
	raw := "From: ada@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: newsletter\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><head><style>p{color:red}</style></head>" +
		"<body><script>alert(1)</script><p>Hello <b>reader</b></p></body></html>\r\n"

	parsed, err := ParseRawMessage([]byte(raw))
	require.NoError(t, err)

	assert.NotEmpty(t, parsed.HTML)
	assert.Contains(t, parsed.Text, "Hello")
	assert.Contains(t, parsed.Text, "reader")
	assert.NotContains(t, parsed.Text, "alert(1)", "script content must not leak into the text body")
	assert.NotContains(t, parsed.Text, "color:red", "style content must not leak into the text body")
}

func TestParseRawMessage_AttachmentMetadata(t *testing.T) {
	raw := "From: ada@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: report attached\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"frontier\"\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"report is attached\r\n" +
		"--frontier\r\n" +
		"Content-Type: application/pdf; name=\"report.pdf\"\r\n" +
		"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"JVBERi0xLjQK\r\n" +
		"--frontier--\r\n"

	parsed, err := ParseRawMessage([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "report is attached", strings.TrimSpace(parsed.Text))
	require.Len(t, parsed.Attachments, 1)
	assert.Equal(t, "report.pdf", parsed.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", parsed.Attachments[0].ContentType)
	assert.Greater(t, parsed.Attachments[0].Size, 0)
}

func TestParseRawMessage_NamedInlineCountsAsAttachment(t *testing.T) {
	raw := "From: ada@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: logo inline\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/related; boundary=\"frontier\"\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>see logo</p>\r\n" +
		"--frontier\r\n" +
		"Content-Type: image/png; name=\"logo.png\"\r\n" +
		"Content-Disposition: inline; filename=\"logo.png\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"Content-Id: <logo@example.com>\r\n" +
		"\r\n" +
		"iVBORw0KGgo=\r\n" +
		"--frontier--\r\n"

	parsed, err := ParseRawMessage([]byte(raw))
	require.NoError(t, err)

	require.Len(t, parsed.Attachments, 1)
	assert.Equal(t, "logo.png", parsed.Attachments[0].Filename)
	assert.Equal(t, "image/png", parsed.Attachments[0].ContentType)
}

func TestParseRawMessage_MissingHeadersAreTolerated(t *testing.T) {
	raw := "Subject: bare minimum\r\n" +
		"\r\n" +
		"just a body\r\n"

	parsed, err := ParseRawMessage([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "bare minimum", parsed.Subject)
	assert.Empty(t, parsed.From.Address)
	assert.Empty(t, parsed.To)
	assert.True(t, parsed.ReceivedAt.IsZero(), "no Date header means the caller falls back to INTERNALDATE")
}

func TestParseRawMessage_UnparseableRecipientsAreDropped(t *testing.T) {
	raw := "From: ada@example.com\r\n" +
		"To: not an address at all\r\n" +
		"Subject: bad recipients\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"body\r\n"

	parsed, err := ParseRawMessage([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, parsed.To, "an unparseable To header never aborts ingestion")
}

func TestParseRawMessage_Empty(t *testing.T) {
	_, err := ParseRawMessage(nil)
	assert.Error(t, err)

	_, err = ParseRawMessage([]byte{})
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain", stripHTML("<div> plain </div>"))
	assert.Equal(t, "", stripHTML("<style>body{}</style>"))
}
