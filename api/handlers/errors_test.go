package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	er "github.com/mailhookhq/mailhook/internal/errors"
	"github.com/mailhookhq/mailhook/services/imap"
	"github.com/mailhookhq/mailhook/services/whatsapp"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	return c, recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestWriteFetchError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantFlag   string
	}{
		{
			name:       "auth failure",
			err:        &imap.SyncError{Kind: imap.KindAuth, Op: "login", Err: errors.New("invalid credentials")},
			wantStatus: http.StatusUnauthorized,
			wantFlag:   "isAuthError",
		},
		{
			name:       "throttled",
			err:        &imap.SyncError{Kind: imap.KindThrottled, Op: "select", Err: errors.New("too many connections")},
			wantStatus: http.StatusTooManyRequests,
			wantFlag:   "throttled",
		},
		{
			name:       "account not found",
			err:        er.ErrAccountNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "account inactive",
			err:        er.ErrAccountInactive,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "needs reconnection",
			err:        er.ErrNeedsReconnection,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing imap settings",
			err:        er.ErrMissingIMAPSettings,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrapped decryption failure",
			err:        errors.Wrap(er.ErrCredentialDecryption, "cipher: message authentication failed"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "network failure",
			err:        &imap.SyncError{Kind: imap.KindNetwork, Op: "fetch", Err: errors.New("connection reset")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown",
			err:        errors.New("something else"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, recorder := testContext(t)

			writeFetchError(c, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			body := decodeBody(t, recorder)
			assert.NotEmpty(t, body["error"])
			if tt.wantFlag != "" {
				assert.Equal(t, true, body[tt.wantFlag])
			}
		})
	}
}

func TestWriteWhatsAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"session not found", whatsapp.ErrSessionNotFound, http.StatusNotFound},
		{"session exists", whatsapp.ErrSessionExists, http.StatusConflict},
		{"not configured", whatsapp.ErrNotConfigured, http.StatusNotImplemented},
		{"wrapped not configured", errors.Wrap(whatsapp.ErrNotConfigured, "start session"), http.StatusNotImplemented},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, recorder := testContext(t)

			writeWhatsAppError(c, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}
