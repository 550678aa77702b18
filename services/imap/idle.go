package imap

import (
	"context"
	"sync"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/jpillora/backoff"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/crypto"
	"github.com/mailhookhq/mailhook/internal/logger"
	"github.com/mailhookhq/mailhook/internal/models"
)

const (
	idleLogoutTimeout = 25 * time.Minute
	idlePollInterval  = 2 * time.Minute
)

type accountMonitor struct {
	cancel context.CancelFunc
	status string
}

// IdleMonitor keeps one dedicated IDLE session per active account and turns
// every mailbox update into a normal fetch cycle. The IDLE session is
// deliberately separate from the pooled one the fetch cycle uses, so a long
// IDLE never blocks an on-demand sync.
type IdleMonitor struct {
	log      logger.Logger
	accounts interfaces.AccountRepository
	sync     interfaces.EmailSyncService
	dialer   interfaces.IMAPDialer
	decrypt  func(*models.Account) (interfaces.IMAPCredentials, error)

	mu       sync.Mutex
	monitors map[string]*accountMonitor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIdleMonitor(
	log logger.Logger,
	accounts interfaces.AccountRepository,
	syncService interfaces.EmailSyncService,
	dialer interfaces.IMAPDialer,
	decrypt func(*models.Account) (interfaces.IMAPCredentials, error),
) *IdleMonitor {
	return &IdleMonitor{
		log:      log,
		accounts: accounts,
		sync:     syncService,
		dialer:   dialer,
		decrypt:  decrypt,
		monitors: make(map[string]*accountMonitor),
	}
}

// NewIdleMonitorWithVault wires the monitor with credential decryption
// backed by the vault.
func NewIdleMonitorWithVault(
	log logger.Logger,
	accounts interfaces.AccountRepository,
	syncService interfaces.EmailSyncService,
	dialer interfaces.IMAPDialer,
	vault *crypto.Vault,
) *IdleMonitor {
	return NewIdleMonitor(log, accounts, syncService, dialer, func(account *models.Account) (interfaces.IMAPCredentials, error) {
		var none interfaces.IMAPCredentials
		password, err := vault.Decrypt(account.ImapPasswordEnc)
		if err != nil {
			return none, err
		}
		return interfaces.IMAPCredentials{
			Host:     account.ImapHost,
			Port:     account.ImapPort,
			Username: account.ImapUsername,
			Password: password,
			TLS:      account.ImapTLS,
		}, nil
	})
}

func (m *IdleMonitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	accounts, err := m.accounts.ListActive(m.ctx)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if account.NeedsReconnection {
			continue
		}
		m.watch(account)
	}
	return nil
}

func (m *IdleMonitor) watch(account *models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.monitors[account.ID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	monitor := &accountMonitor{cancel: cancel, status: "starting"}
	m.monitors[account.ID] = monitor

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, account, monitor)
	}()
}

func (m *IdleMonitor) setStatus(monitor *accountMonitor, status string) {
	m.mu.Lock()
	monitor.status = status
	m.mu.Unlock()
}

// run holds the IDLE session for one account, redialing with backoff after
// any failure until the monitor is stopped.
func (m *IdleMonitor) run(ctx context.Context, account *models.Account, monitor *accountMonitor) {
	b := &backoff.Backoff{
		Min:    time.Second,
		Max:    5 * time.Minute,
		Factor: 2,
		Jitter: true,
	}

	for ctx.Err() == nil {
		err := m.idleOnce(ctx, account, monitor)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			if IsAuthError(err) {
				m.log.Warnf("idle account %s: credentials rejected, stopping monitor", account.ID)
				m.setStatus(monitor, "auth failed")
				return
			}
			m.log.Warnf("idle account %s: %v", account.ID, err)
		}

		m.setStatus(monitor, "reconnecting")
		select {
		case <-ctx.Done():
		case <-time.After(b.Duration()):
		}
	}
	m.setStatus(monitor, "stopped")
}

func (m *IdleMonitor) idleOnce(ctx context.Context, account *models.Account, monitor *accountMonitor) error {
	creds, err := m.decrypt(account)
	if err != nil {
		return err
	}

	conn, err := m.dialer.Dial(ctx, creds)
	if err != nil {
		return err
	}
	defer conn.Close()

	// IDLE needs the raw emersion client; only our own dialer produces
	// sessions here.
	adapted, ok := conn.(*connection)
	if !ok {
		return errNoIdleSupport
	}
	c := adapted.client

	if _, err := c.Select(DefaultFolder, true); err != nil {
		return classify("select "+DefaultFolder, err)
	}

	updates := make(chan client.Update, 64)
	c.Updates = updates

	stop := make(chan struct{})
	var stopOnce sync.Once
	safeStop := func() { stopOnce.Do(func() { close(stop) }) }
	defer safeStop()

	idleDone := make(chan error, 1)
	go func() {
		idleDone <- c.Idle(stop, &client.IdleOptions{
			LogoutTimeout: idleLogoutTimeout,
			PollInterval:  idlePollInterval,
		})
	}()

	m.setStatus(monitor, "idle")

	for {
		select {
		case <-ctx.Done():
			safeStop()
			<-idleDone
			return nil
		case err := <-idleDone:
			if err != nil {
				return classify("idle", err)
			}
			return nil
		case update := <-updates:
			if _, ok := update.(*client.MailboxUpdate); !ok {
				continue
			}
			m.log.Debugf("idle account %s: mailbox update, triggering fetch", account.ID)
			if _, err := m.sync.FetchNewMail(ctx, account.ID, DefaultFolder, defaultFetchLimit); err != nil {
				m.log.Warnf("idle account %s: fetch after update: %v", account.ID, err)
			}
		}
	}
}

func (m *IdleMonitor) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.mu.Lock()
	m.monitors = make(map[string]*accountMonitor)
	m.mu.Unlock()
	return nil
}

// Status reports per-account monitor state for the status endpoint
func (m *IdleMonitor) Status() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := make(map[string]string, len(m.monitors))
	for id, monitor := range m.monitors {
		status[id] = monitor.status
	}
	return status
}
