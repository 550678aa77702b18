package interfaces

import "context"

// WhatsAppSession is an opaque messaging session. Implementations own the
// underlying protocol; this service only brokers lifecycle and sends.
type WhatsAppSession interface {
	Connect(ctx context.Context) error
	SendText(ctx context.Context, to, body string) error
	Status() string
	Disconnect() error
}

// WhatsAppSessionFactory builds a session for one user
type WhatsAppSessionFactory func(userID string) (WhatsAppSession, error)

type WhatsAppService interface {
	StartSession(ctx context.Context, userID string) error
	SessionStatus(userID string) (string, error)
	SendText(ctx context.Context, userID, to, body string) error
	StopSession(userID string) error
}
