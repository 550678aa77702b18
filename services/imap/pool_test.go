package imap

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailhookhq/mailhook/interfaces"
)

func poolCreds(username string) interfaces.IMAPCredentials {
	return interfaces.IMAPCredentials{
		Host:     "imap.example.com",
		Port:     993,
		Username: username,
		Password: "hunter2",
		TLS:      true,
	}
}

func TestConnectionPool_ReusesHealthySession(t *testing.T) {
	dialer := newFakeDialer()
	pool := NewConnectionPool(dialer, testLogger())
	defer pool.Drain()
	ctx := context.Background()

	first, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.NoError(t, err)
	pool.Release("acct_1", false)

	second, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.NoError(t, err)
	pool.Release("acct_1", false)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dialer.dialCount)
	assert.Equal(t, 1, pool.Size())
}

func TestConnectionPool_RedialsWhenNoopFails(t *testing.T) {
	dialer := newFakeDialer()
	pool := NewConnectionPool(dialer, testLogger())
	defer pool.Drain()
	ctx := context.Background()

	conn, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.NoError(t, err)
	pool.Release("acct_1", false)

	// The cached session goes stale; the next Acquire must notice and redial.
	stale := conn.(*fakeConnection)
	stale.noopErr = classify("noop", fmt.Errorf("use of closed network connection"))
	delete(dialer.connections, "a@example.com")

	fresh, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.NoError(t, err)
	pool.Release("acct_1", false)

	assert.NotSame(t, conn, fresh)
	assert.True(t, stale.closed)
	assert.Equal(t, 2, dialer.dialCount)
}

func TestConnectionPool_BrokenReleaseEvicts(t *testing.T) {
	dialer := newFakeDialer()
	pool := NewConnectionPool(dialer, testLogger())
	defer pool.Drain()
	ctx := context.Background()

	conn, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.NoError(t, err)
	pool.Release("acct_1", true)

	assert.Equal(t, 0, pool.Size())
	assert.True(t, conn.(*fakeConnection).closed)
}

func TestConnectionPool_DialFailureReleasesLock(t *testing.T) {
	dialer := newFakeDialer()
	dialer.dialErrs["a@example.com"] = classify("dial", fmt.Errorf("connection refused"))
	pool := NewConnectionPool(dialer, testLogger())
	defer pool.Drain()
	ctx := context.Background()

	_, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.Error(t, err)

	// The account lock must have been released, or this second Acquire would
	// deadlock.
	delete(dialer.dialErrs, "a@example.com")
	conn, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.NoError(t, err)
	assert.NotNil(t, conn)
	pool.Release("acct_1", false)
}

func TestConnectionPool_EvictClosesSession(t *testing.T) {
	dialer := newFakeDialer()
	pool := NewConnectionPool(dialer, testLogger())
	defer pool.Drain()
	ctx := context.Background()

	conn, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.NoError(t, err)
	pool.Release("acct_1", false)

	pool.Evict("acct_1")

	assert.Equal(t, 0, pool.Size())
	assert.True(t, conn.(*fakeConnection).closed)
}

// Exercised under the race detector: Status reads lastUsed while Acquire
// refreshes it on the reuse path.
func TestConnectionPool_StatusDuringActiveUse(t *testing.T) {
	dialer := newFakeDialer()
	pool := NewConnectionPool(dialer, testLogger())
	defer pool.Drain()
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				pool.Status()
			}
		}
	}()

	for i := 0; i < 500; i++ {
		conn, err := pool.Acquire(ctx, "acct_hot", poolCreds("hot@example.com"))
		require.NoError(t, err)
		require.NotNil(t, conn)
		pool.Release("acct_hot", false)
	}

	close(stop)
	wg.Wait()
}

func TestConnectionPool_DrainClosesEverything(t *testing.T) {
	dialer := newFakeDialer()
	pool := NewConnectionPool(dialer, testLogger())
	ctx := context.Background()

	var conns []*fakeConnection
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("acct_%d", i)
		conn, err := pool.Acquire(ctx, id, poolCreds(id+"@example.com"))
		require.NoError(t, err)
		pool.Release(id, false)
		conns = append(conns, conn.(*fakeConnection))
	}

	pool.Drain()

	assert.Equal(t, 0, pool.Size())
	for _, conn := range conns {
		assert.True(t, conn.closed)
	}
}

func TestConnectionPool_Status(t *testing.T) {
	dialer := newFakeDialer()
	pool := NewConnectionPool(dialer, testLogger())
	defer pool.Drain()
	ctx := context.Background()

	_, err := pool.Acquire(ctx, "acct_1", poolCreds("a@example.com"))
	require.NoError(t, err)
	pool.Release("acct_1", false)

	status := pool.Status()
	require.Len(t, status, 1)
	assert.Contains(t, status, "acct_1")
	assert.Contains(t, status["acct_1"], "idle")
}
