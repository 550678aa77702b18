package whatsapp

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/logger"
	"github.com/mailhookhq/mailhook/internal/tracing"
)

// UnconfiguredFactory is the default session factory when no messaging
// backend has been wired in.
func UnconfiguredFactory(userID string) (interfaces.WhatsAppSession, error) {
	return nil, ErrNotConfigured
}

// WhatsAppService brokers opaque messaging sessions, one per user. The
// session implementation is injected; this layer only owns the registry and
// lifecycle.
type WhatsAppService struct {
	log     logger.Logger
	factory interfaces.WhatsAppSessionFactory

	mu       sync.Mutex
	sessions map[string]interfaces.WhatsAppSession
}

func NewWhatsAppService(log logger.Logger, factory interfaces.WhatsAppSessionFactory) interfaces.WhatsAppService {
	return &WhatsAppService{
		log:      log,
		factory:  factory,
		sessions: make(map[string]interfaces.WhatsAppSession),
	}
}

func (s *WhatsAppService) StartSession(ctx context.Context, userID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "WhatsAppService.StartSession")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	s.mu.Lock()
	if _, ok := s.sessions[userID]; ok {
		s.mu.Unlock()
		return ErrSessionExists
	}
	s.mu.Unlock()

	session, err := s.factory(userID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := session.Connect(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	s.mu.Lock()
	s.sessions[userID] = session
	s.mu.Unlock()

	s.log.Infof("whatsapp session started for user %s", userID)
	return nil
}

func (s *WhatsAppService) SessionStatus(userID string) (string, error) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	s.mu.Unlock()

	if !ok {
		return "", ErrSessionNotFound
	}
	return session.Status(), nil
}

func (s *WhatsAppService) SendText(ctx context.Context, userID, to, body string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "WhatsAppService.SendText")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	s.mu.Lock()
	session, ok := s.sessions[userID]
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	if err := session.SendText(ctx, to, body); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *WhatsAppService) StopSession(userID string) error {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	if err := session.Disconnect(); err != nil {
		s.log.Warnf("whatsapp session for user %s closed with error: %v", userID, err)
	}
	return nil
}
