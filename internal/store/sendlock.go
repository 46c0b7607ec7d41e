package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SendLock guards a campaign against concurrent send loops. Two overlapping
// send requests for the same campaign would deliver every recipient twice,
// so the handler claims the lock before dispatching and holds it for the
// duration of the loop.
type SendLock interface {
	// Acquire tries to claim the lock. Returns true on success.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this holder still owns it.
	Release(ctx context.Context) error
}

// NewSendLock builds a lock for one campaign using the best available
// backend: redis when a client is given, postgres advisory locks otherwise.
func NewSendLock(client *redis.Client, db *sql.DB, campaignID int, ttl time.Duration) SendLock {
	key := fmt.Sprintf("sendlock:campaign:%d", campaignID)
	if client != nil {
		return newRedisSendLock(client, key, ttl)
	}
	return newAdvisorySendLock(db, key)
}

// redisSendLock claims via SET NX with TTL. The random owner token plus a
// Lua compare-and-delete keeps one holder from releasing another's lock.
type redisSendLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

func newRedisSendLock(client *redis.Client, key string, ttl time.Duration) *redisSendLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &redisSendLock{
		client: client,
		key:    key,
		owner:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *redisSendLock) Acquire(ctx context.Context) (bool, error) {
	claimed, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return claimed, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (l *redisSendLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Result()
	return err
}

// advisorySendLock uses pg_try_advisory_lock. Advisory locks are session
// scoped, so the connection that took the lock is checked out of the pool
// and held until Release; the unlock must run on that same connection, and
// the lock drops automatically if the connection dies mid-send.
type advisorySendLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

func newAdvisorySendLock(db *sql.DB, key string) *advisorySendLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &advisorySendLock{db: db, lockID: int64(h.Sum64())}
}

func (l *advisorySendLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

func (l *advisorySendLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}

	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return err
	}
	return closeErr
}
