package imap

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/logger"
	"github.com/mailhookhq/mailhook/internal/models"
	"github.com/mailhookhq/mailhook/internal/utils"
)

func testLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

// fakeAccountRepository is an in-memory interfaces.AccountRepository
type fakeAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account

	markCalls    int
	markWins     int
	flaggedError string
}

func newFakeAccountRepository(accounts ...*models.Account) *fakeAccountRepository {
	repo := &fakeAccountRepository{accounts: make(map[string]*models.Account)}
	for _, account := range accounts {
		repo.accounts[account.ID] = account
	}
	return repo
}

func (r *fakeAccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
	return nil
}

// GetByID returns a detached copy, like the real repository: a concurrent
// UPDATE never mutates a struct a caller already holds.
func (r *fakeAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (r *fakeAccountRepository) GetByUserID(ctx context.Context, userID string) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Account
	for _, account := range r.accounts {
		if account.UserID == userID {
			result = append(result, account)
		}
	}
	return result, nil
}

func (r *fakeAccountRepository) ListActive(ctx context.Context) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Account
	for _, account := range r.accounts {
		if account.IsActive {
			result = append(result, account)
		}
	}
	return result, nil
}

func (r *fakeAccountRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

func (r *fakeAccountRepository) MarkInitialSyncCompleted(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	account, ok := r.accounts[id]
	if !ok {
		return false, errors.New("account not found")
	}
	if account.InitialSyncCompleted {
		return false, nil
	}
	r.markWins++
	account.InitialSyncCompleted = true
	account.WebhookEnabledAt = utils.NowPtr()
	return true, nil
}

func (r *fakeAccountRepository) UpdateCredentials(ctx context.Context, id string, passwordEnc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		account.ImapPasswordEnc = passwordEnc
	}
	return nil
}

func (r *fakeAccountRepository) SetNeedsReconnection(ctx context.Context, id string, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		account.NeedsReconnection = true
		account.LastError = lastError
		r.flaggedError = lastError
	}
	return nil
}

func (r *fakeAccountRepository) ClearReconnection(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		account.NeedsReconnection = false
		account.LastError = ""
	}
	return nil
}

func (r *fakeAccountRepository) UpdateLastSynced(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		account.LastSyncedAt = utils.NowPtr()
	}
	return nil
}

func (r *fakeAccountRepository) UpdateLastError(ctx context.Context, id string, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		account.LastError = lastError
	}
	return nil
}

// fakeMessageRepository is an in-memory interfaces.MessageRepository keyed the
// same way the real one is: (account_id, provider_message_id)
type fakeMessageRepository struct {
	mu       sync.Mutex
	messages map[string]*models.Message
	nextID   int
}

func newFakeMessageRepository() *fakeMessageRepository {
	return &fakeMessageRepository{messages: make(map[string]*models.Message)}
}

func (r *fakeMessageRepository) key(accountID, providerMessageID string) string {
	return accountID + "|" + providerMessageID
}

func (r *fakeMessageRepository) seed(accountID, folder string, uids ...uint32) {
	for _, uid := range uids {
		message := &models.Message{
			AccountID:         accountID,
			Folder:            folder,
			ImapUID:           uid,
			ProviderMessageID: models.ProviderMessageID(uid, folder),
		}
		r.Upsert(context.Background(), message)
	}
}

func (r *fakeMessageRepository) Upsert(ctx context.Context, message *models.Message) (interfaces.UpsertAction, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.key(message.AccountID, message.ProviderMessageID)
	if existing, ok := r.messages[key]; ok {
		existing.IsRead = message.IsRead
		existing.IsStarred = message.IsStarred
		return interfaces.UpsertUpdated, existing.ID, nil
	}

	r.nextID++
	message.ID = utils.GenerateNanoIDWithPrefix("msg", 24)
	stored := *message
	r.messages[key] = &stored
	return interfaces.UpsertInserted, message.ID, nil
}

func (r *fakeMessageRepository) GetMaxUID(ctx context.Context, accountID, folder string) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var max uint32
	for _, message := range r.messages {
		if message.AccountID == accountID && message.Folder == folder && message.ImapUID > max {
			max = message.ImapUID
		}
	}
	return max, nil
}

func (r *fakeMessageRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *fakeMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.messages {
		if message.ID == id {
			return message, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepository) ListByAccountFolder(ctx context.Context, accountID, folder string, limit, offset int) ([]*models.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Message
	for _, message := range r.messages {
		if message.AccountID == accountID && message.Folder == folder {
			result = append(result, message)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeMessageRepository) CountUnread(ctx context.Context, accountID string) (int64, error) {
	return 0, nil
}

func (r *fakeMessageRepository) SetRead(ctx context.Context, id string, isRead bool) error {
	return nil
}

func (r *fakeMessageRepository) SetStarred(ctx context.Context, id string, isStarred bool) error {
	return nil
}

func (r *fakeMessageRepository) SoftDelete(ctx context.Context, id string) error {
	return nil
}

func (r *fakeMessageRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	return nil
}

// fakeConnection scripts one IMAP session
type fakeConnection struct {
	mu sync.Mutex

	selectErr error
	searchErr error
	fetchErr  error
	noopErr   error

	// uids the "server" has past any cursor; SearchSinceUID filters them
	serverUIDs []uint32
	// raw messages by uid
	rawByUID map[uint32][]byte

	searchedSince []uint32
	closed        bool
}

func (c *fakeConnection) SelectFolder(ctx context.Context, folder string) error {
	return c.selectErr
}

func (c *fakeConnection) SearchSinceUID(ctx context.Context, lastUID uint32) ([]uint32, error) {
	c.mu.Lock()
	c.searchedSince = append(c.searchedSince, lastUID)
	c.mu.Unlock()

	if c.searchErr != nil {
		return nil, c.searchErr
	}
	var result []uint32
	for _, uid := range c.serverUIDs {
		if uid > lastUID {
			result = append(result, uid)
		}
	}
	return result, nil
}

func (c *fakeConnection) FetchByUID(ctx context.Context, uids []uint32) ([]*interfaces.FetchedMessage, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	var fetched []*interfaces.FetchedMessage
	for _, uid := range uids {
		fetched = append(fetched, &interfaces.FetchedMessage{
			UID: uid,
			Raw: c.rawByUID[uid],
		})
	}
	return fetched, nil
}

func (c *fakeConnection) Noop() error {
	return c.noopErr
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeDialer hands out scripted connections per account username
type fakeDialer struct {
	mu          sync.Mutex
	connections map[string]*fakeConnection
	dialErrs    map[string]error
	dialCount   int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		connections: make(map[string]*fakeConnection),
		dialErrs:    make(map[string]error),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, creds interfaces.IMAPCredentials) (interfaces.IMAPConnection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialCount++

	if err := d.dialErrs[creds.Username]; err != nil {
		return nil, err
	}
	if conn, ok := d.connections[creds.Username]; ok {
		return conn, nil
	}
	conn := &fakeConnection{rawByUID: make(map[uint32][]byte)}
	d.connections[creds.Username] = conn
	return conn, nil
}

// fakeDispatcher records notifications
type fakeDispatcher struct {
	mu       sync.Mutex
	fail     bool
	notified []*models.Message
}

func (d *fakeDispatcher) Notify(ctx context.Context, account *models.Account, message *models.Message) interfaces.DeliveryResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notified = append(d.notified, message)
	if d.fail {
		return interfaces.DeliveryResult{Success: false, StatusCode: 500, Reason: "endpoint down"}
	}
	return interfaces.DeliveryResult{Success: true, StatusCode: 200}
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.notified)
}
