package whatsapp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/logger"
)

type stubSession struct {
	connected bool
	sent      []string
}

func (s *stubSession) Connect(ctx context.Context) error {
	s.connected = true
	return nil
}

func (s *stubSession) SendText(ctx context.Context, to, body string) error {
	s.sent = append(s.sent, to+": "+body)
	return nil
}

func (s *stubSession) Status() string {
	if s.connected {
		return "connected"
	}
	return "disconnected"
}

func (s *stubSession) Disconnect() error {
	s.connected = false
	return nil
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestWhatsAppService_SessionLifecycle(t *testing.T) {
	sessions := make(map[string]*stubSession)
	factory := func(userID string) (interfaces.WhatsAppSession, error) {
		session := &stubSession{}
		sessions[userID] = session
		return session, nil
	}
	service := NewWhatsAppService(getLogger(), factory)
	ctx := context.Background()

	// Before a session exists every operation reports not-found.
	_, err := service.SessionStatus("user_1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, service.SendText(ctx, "user_1", "+155501", "hi"), ErrSessionNotFound)
	assert.ErrorIs(t, service.StopSession("user_1"), ErrSessionNotFound)

	require.NoError(t, service.StartSession(ctx, "user_1"))
	assert.True(t, sessions["user_1"].connected)

	// One session per user.
	assert.ErrorIs(t, service.StartSession(ctx, "user_1"), ErrSessionExists)

	status, err := service.SessionStatus("user_1")
	require.NoError(t, err)
	assert.Equal(t, "connected", status)

	require.NoError(t, service.SendText(ctx, "user_1", "+155501", "hello"))
	assert.Equal(t, []string{"+155501: hello"}, sessions["user_1"].sent)

	require.NoError(t, service.StopSession("user_1"))
	assert.False(t, sessions["user_1"].connected)
	_, err = service.SessionStatus("user_1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWhatsAppService_SessionsAreIsolatedPerUser(t *testing.T) {
	factory := func(userID string) (interfaces.WhatsAppSession, error) {
		return &stubSession{}, nil
	}
	service := NewWhatsAppService(getLogger(), factory)
	ctx := context.Background()

	require.NoError(t, service.StartSession(ctx, "user_1"))
	require.NoError(t, service.StartSession(ctx, "user_2"))

	require.NoError(t, service.StopSession("user_1"))
	_, err := service.SessionStatus("user_2")
	assert.NoError(t, err)
}

func TestWhatsAppService_UnconfiguredFactory(t *testing.T) {
	service := NewWhatsAppService(getLogger(), UnconfiguredFactory)

	err := service.StartSession(context.Background(), "user_1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
