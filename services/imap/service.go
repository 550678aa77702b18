package imap

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/crypto"
	er "github.com/mailhookhq/mailhook/internal/errors"
	"github.com/mailhookhq/mailhook/internal/logger"
	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/tracing"
)

const (
	DefaultFolder = "INBOX"

	// accountConcurrency caps how many accounts the all-accounts job syncs
	// at once, to keep connection spikes at the providers bounded.
	accountConcurrency = 4
)

type IMAPService struct {
	log        logger.Logger
	accounts   interfaces.AccountRepository
	messages   interfaces.MessageRepository
	pool       *ConnectionPool
	dialer     interfaces.IMAPDialer
	vault      *crypto.Vault
	dispatcher interfaces.WebhookDispatcher
	gate       interfaces.SyncGate
}

func NewIMAPService(
	log logger.Logger,
	accounts interfaces.AccountRepository,
	messages interfaces.MessageRepository,
	pool *ConnectionPool,
	dialer interfaces.IMAPDialer,
	vault *crypto.Vault,
	dispatcher interfaces.WebhookDispatcher,
	gate interfaces.SyncGate,
) interfaces.EmailSyncService {
	return &IMAPService{
		log:        log,
		accounts:   accounts,
		messages:   messages,
		pool:       pool,
		dialer:     dialer,
		vault:      vault,
		dispatcher: dispatcher,
		gate:       gate,
	}
}

// FetchNewMail runs one on-demand fetch cycle for a single account folder
func (s *IMAPService) FetchNewMail(ctx context.Context, accountID, folder string, limit int) (*interfaces.FolderSyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.FetchNewMail")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, accountID)

	account, creds, err := s.loadSyncableAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if folder == "" {
		folder = DefaultFolder
	}

	return s.syncFolder(ctx, account, creds, folder, limit)
}

// FetchNewMailForUser fetches for every syncable account the user owns.
// Accounts fail independently; one bad mailbox never blocks the rest.
func (s *IMAPService) FetchNewMailForUser(ctx context.Context, userID, folder string, limit int) (*interfaces.AllAccountsSyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.FetchNewMailForUser")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if userID == "" {
		tracing.TraceErr(span, er.ErrUserIDMissing)
		return nil, er.ErrUserIDMissing
	}

	accounts, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return s.syncAccounts(ctx, accounts, folder, limit), nil
}

// FetchNewUnreadEmailsForAllAccounts is the background sweep over every
// active account, invoked by the scheduler.
func (s *IMAPService) FetchNewUnreadEmailsForAllAccounts(ctx context.Context) (*interfaces.AllAccountsSyncResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.FetchNewUnreadEmailsForAllAccounts")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	result := s.syncAccounts(ctx, accounts, DefaultFolder, defaultFetchLimit)
	span.SetTag("accounts-processed", result.AccountsProcessed)
	span.SetTag("emails-found", result.EmailsFound)
	return result, nil
}

func (s *IMAPService) syncAccounts(ctx context.Context, accounts []*models.Account, folder string, limit int) *interfaces.AllAccountsSyncResult {
	if folder == "" {
		folder = DefaultFolder
	}

	result := &interfaces.AllAccountsSyncResult{
		Success: true,
		Results: []*interfaces.FolderSyncResult{},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, accountConcurrency)

	for _, account := range accounts {
		if !account.IsActive || account.NeedsReconnection {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(account *models.Account) {
			defer wg.Done()
			defer func() { <-sem }()

			creds, err := s.decryptCredentials(account)
			if err != nil {
				s.log.Errorf("account %s: %v", account.ID, err)
				return
			}

			folderResult, err := s.syncFolder(ctx, account, creds, folder, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warnf("account %s: sync failed: %v", account.ID, err)
				result.Success = false
				return
			}
			result.AccountsProcessed++
			result.EmailsFound += folderResult.Count
			result.Results = append(result.Results, folderResult)
		}(account)
	}

	wg.Wait()
	return result
}

// VerifyCredentials attempts a real login and logout. Used before persisting
// a new account and when clearing a reconnection flag.
func (s *IMAPService) VerifyCredentials(ctx context.Context, creds interfaces.IMAPCredentials) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.VerifyCredentials")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	conn, err := s.dialer.Dial(ctx, creds)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return conn.Close()
}

func (s *IMAPService) loadSyncableAccount(ctx context.Context, accountID string) (*models.Account, interfaces.IMAPCredentials, error) {
	var none interfaces.IMAPCredentials

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, none, err
	}
	if account == nil {
		return nil, none, er.ErrAccountNotFound
	}
	if !account.IsActive {
		return nil, none, er.ErrAccountInactive
	}
	if account.NeedsReconnection {
		return nil, none, er.ErrNeedsReconnection
	}

	creds, err := s.decryptCredentials(account)
	if err != nil {
		return nil, none, err
	}
	return account, creds, nil
}

func (s *IMAPService) decryptCredentials(account *models.Account) (interfaces.IMAPCredentials, error) {
	var none interfaces.IMAPCredentials

	if account.ImapHost == "" || account.ImapUsername == "" || account.ImapPasswordEnc == "" {
		return none, er.ErrMissingIMAPSettings
	}

	password, err := s.vault.Decrypt(account.ImapPasswordEnc)
	if err != nil {
		return none, errors.Wrap(er.ErrCredentialDecryption, err.Error())
	}

	return interfaces.IMAPCredentials{
		Host:     account.ImapHost,
		Port:     account.ImapPort,
		Username: account.ImapUsername,
		Password: password,
		TLS:      account.ImapTLS,
	}, nil
}
