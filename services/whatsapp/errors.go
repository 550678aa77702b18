package whatsapp

import "github.com/pkg/errors"

var (
	ErrSessionExists   = errors.New("session already exists for user")
	ErrSessionNotFound = errors.New("no session for user")
	ErrNotConfigured   = errors.New("no whatsapp session backend configured")
)
