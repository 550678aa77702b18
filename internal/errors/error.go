package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrUserIDMissing = errors.New("user id is missing")

	// account errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountInactive      = errors.New("account is not active")
	ErrMissingIMAPSettings  = errors.New("account has no IMAP settings")
	ErrNeedsReconnection    = errors.New("account needs reconnection")
	ErrCredentialDecryption = errors.New("could not decrypt stored credentials")

	// message errors
	ErrMessageNotFound = errors.New("message not found")
)
