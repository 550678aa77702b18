package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newProtectedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(APIKeyConfig{
		HeaderName:  "X-MAILHOOK-API-KEY",
		ValidAPIKey: "secret",
	}))
	r.Use(UserIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString("UserId")})
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	r := newProtectedRouter()

	tests := []struct {
		name       string
		apiKey     string
		userID     string
		wantStatus int
	}{
		{"valid key and user", "secret", "user_1", http.StatusOK},
		{"missing key", "", "user_1", http.StatusUnauthorized},
		{"wrong key", "nope", "user_1", http.StatusUnauthorized},
		{"valid key without user", "secret", "", http.StatusUnauthorized},
		{"key with surrounding whitespace", " secret ", "user_1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-MAILHOOK-API-KEY", tt.apiKey)
			}
			if tt.userID != "" {
				req.Header.Set("X-USER-ID", tt.userID)
			}
			recorder := httptest.NewRecorder()

			r.ServeHTTP(recorder, req)

			assert.Equal(t, tt.wantStatus, recorder.Code)
		})
	}
}
