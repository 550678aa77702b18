package imap

import (
	"context"
	"sync"
	"time"

	"github.com/mailhookhq/mailhook/interfaces"
	"github.com/mailhookhq/mailhook/internal/logger"
	"github.com/mailhookhq/mailhook/internal/utils"
)

const (
	defaultIdleTTL       = 5 * time.Minute
	janitorSweepInterval = time.Minute
)

type pooledConnection struct {
	conn     interfaces.IMAPConnection
	lastUsed time.Time
}

// ConnectionPool caches one live IMAP session per account and serializes all
// use of it. Holding the per-account lock from Acquire to Release means two
// sync cycles for the same account can never interleave on one wire session.
type ConnectionPool struct {
	dialer  interfaces.IMAPDialer
	log     logger.Logger
	idleTTL time.Duration

	mu          sync.Mutex
	connections map[string]*pooledConnection
	accountLock map[string]*sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConnectionPool(dialer interfaces.IMAPDialer, log logger.Logger) *ConnectionPool {
	p := &ConnectionPool{
		dialer:      dialer,
		log:         log,
		idleTTL:     defaultIdleTTL,
		connections: make(map[string]*pooledConnection),
		accountLock: make(map[string]*sync.Mutex),
		stopCh:      make(chan struct{}),
	}
	go p.janitor()
	return p
}

func (p *ConnectionPool) lockFor(accountID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.accountLock[accountID]
	if !ok {
		lock = &sync.Mutex{}
		p.accountLock[accountID] = lock
	}
	return lock
}

// Acquire returns a healthy session for the account, reusing the cached one
// when it still answers NOOP. The caller owns the account until Release.
func (p *ConnectionPool) Acquire(ctx context.Context, accountID string, creds interfaces.IMAPCredentials) (interfaces.IMAPConnection, error) {
	p.lockFor(accountID).Lock()

	p.mu.Lock()
	cached, ok := p.connections[accountID]
	p.mu.Unlock()

	if ok {
		// Noop is wire I/O and runs outside p.mu; lastUsed is shared with
		// Status and the janitor, so its refresh goes back under the lock.
		if err := cached.conn.Noop(); err == nil {
			p.mu.Lock()
			cached.lastUsed = utils.Now()
			p.mu.Unlock()
			return cached.conn, nil
		}
		p.log.Debugf("stale connection for account %s, redialing", accountID)
		cached.conn.Close()
		p.mu.Lock()
		delete(p.connections, accountID)
		p.mu.Unlock()
	}

	conn, err := p.dialer.Dial(ctx, creds)
	if err != nil {
		p.lockFor(accountID).Unlock()
		return nil, err
	}

	p.mu.Lock()
	p.connections[accountID] = &pooledConnection{conn: conn, lastUsed: utils.Now()}
	p.mu.Unlock()

	return conn, nil
}

// Release returns the account to the pool. Broken sessions are closed and
// evicted so the next Acquire redials.
func (p *ConnectionPool) Release(accountID string, broken bool) {
	if broken {
		p.evict(accountID)
	} else {
		p.mu.Lock()
		if cached, ok := p.connections[accountID]; ok {
			cached.lastUsed = utils.Now()
		}
		p.mu.Unlock()
	}
	p.lockFor(accountID).Unlock()
}

func (p *ConnectionPool) evict(accountID string) {
	p.mu.Lock()
	cached, ok := p.connections[accountID]
	if ok {
		delete(p.connections, accountID)
	}
	p.mu.Unlock()

	if ok {
		cached.conn.Close()
	}
}

// Evict closes and forgets the account's session, e.g. after credential
// changes. The caller must not hold the account via Acquire.
func (p *ConnectionPool) Evict(accountID string) {
	lock := p.lockFor(accountID)
	lock.Lock()
	defer lock.Unlock()
	p.evict(accountID)
}

// Size reports the number of cached sessions
func (p *ConnectionPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}

// Status reports per-account session ages, for the status endpoint
func (p *ConnectionPool) Status() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := make(map[string]string, len(p.connections))
	for id, cached := range p.connections {
		status[id] = "idle " + time.Since(cached.lastUsed).Round(time.Second).String()
	}
	return status
}

// Drain closes every cached session and stops the janitor
func (p *ConnectionPool) Drain() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	p.mu.Lock()
	connections := p.connections
	p.connections = make(map[string]*pooledConnection)
	p.mu.Unlock()

	for id, cached := range connections {
		if err := cached.conn.Close(); err != nil {
			p.log.Debugf("error closing connection for account %s: %v", id, err)
		}
	}
}

func (p *ConnectionPool) janitor() {
	ticker := time.NewTicker(janitorSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweepIdle()
		}
	}
}

func (p *ConnectionPool) sweepIdle() {
	cutoff := utils.Now().Add(-p.idleTTL)

	p.mu.Lock()
	var expired []string
	for id, cached := range p.connections {
		if cached.lastUsed.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	p.mu.Unlock()

	for _, id := range expired {
		lock := p.lockFor(id)
		// Skip accounts currently mid-sync; they refresh lastUsed on Release.
		if !lock.TryLock() {
			continue
		}
		p.mu.Lock()
		cached, ok := p.connections[id]
		if ok && cached.lastUsed.Before(cutoff) {
			delete(p.connections, id)
		} else {
			ok = false
		}
		p.mu.Unlock()
		lock.Unlock()

		if ok {
			cached.conn.Close()
		}
	}
}
