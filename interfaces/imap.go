package interfaces

import (
	"context"
	"time"
)

// IMAPCredentials is a decrypted credential set ready for login
type IMAPCredentials struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

// FetchedMessage is one raw message as returned by the provider
type FetchedMessage struct {
	UID          uint32
	Flags        []string
	InternalDate time.Time
	Raw          []byte
}

// IMAPConnection is the narrow session contract the sync orchestrator needs.
// The adapter over the wire client maps raw provider errors into the typed
// classification exactly once; callers never inspect error strings.
type IMAPConnection interface {
	SelectFolder(ctx context.Context, folder string) error

	// SearchSinceUID returns, in ascending order, the UIDs of unseen messages
	// with UID strictly greater than lastUID in the selected folder.
	SearchSinceUID(ctx context.Context, lastUID uint32) ([]uint32, error)

	FetchByUID(ctx context.Context, uids []uint32) ([]*FetchedMessage, error)
	Noop() error
	Close() error
}

// IMAPDialer opens an authenticated session for one credential set
type IMAPDialer interface {
	Dial(ctx context.Context, creds IMAPCredentials) (IMAPConnection, error)
}

// FolderSyncResult is the outcome of one fetch cycle for one (account, folder)
type FolderSyncResult struct {
	AccountID      string            `json:"accountId"`
	Folder         string            `json:"folder"`
	Emails         []*MessageSummary `json:"emails"`
	Count          int               `json:"count"`
	Total          int               `json:"total"`
	LastFetchedUID uint32            `json:"lastFetchedUid"`
	WebhooksSent   int               `json:"webhooksSent"`
}

// MessageSummary is the per-message view returned to fetch callers
type MessageSummary struct {
	ID               string    `json:"id"`
	UID              uint32    `json:"uid"`
	Folder           string    `json:"folder"`
	Subject          string    `json:"subject"`
	SenderName       string    `json:"senderName"`
	SenderEmail      string    `json:"senderEmail"`
	ReceivedAt       time.Time `json:"receivedAt"`
	IsRead           bool      `json:"isRead"`
	AttachmentsCount int       `json:"attachmentsCount"`
}

// AllAccountsSyncResult aggregates a multi-account run with per-account
// failures tolerated
type AllAccountsSyncResult struct {
	Success           bool                `json:"success"`
	AccountsProcessed int                 `json:"accountsProcessed"`
	EmailsFound       int                 `json:"emailsFound"`
	Results           []*FolderSyncResult `json:"results"`
}

// EmailSyncService runs fetch cycles. It is invoked from three call sites:
// on-demand HTTP requests, the scheduled background job and IDLE callbacks.
type EmailSyncService interface {
	FetchNewMail(ctx context.Context, accountID, folder string, limit int) (*FolderSyncResult, error)
	FetchNewMailForUser(ctx context.Context, userID, folder string, limit int) (*AllAccountsSyncResult, error)
	FetchNewUnreadEmailsForAllAccounts(ctx context.Context) (*AllAccountsSyncResult, error)
	VerifyCredentials(ctx context.Context, creds IMAPCredentials) error
}

// IdleService maintains push-style IDLE monitors per account
type IdleService interface {
	Start(ctx context.Context) error
	Stop() error
	Status() map[string]string
}
