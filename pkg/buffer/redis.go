package buffer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// KeyPrefix namespaces session lists in Redis.
	KeyPrefix = "chatlog:"

	// LockPrefix namespaces session leases in Redis.
	LockPrefix = "chatlog:lock:"

	lockRetryInterval = 25 * time.Millisecond
)

// releaseScript deletes the lease only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the lease only if it is still held by the caller's token.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisBuffer is a Buffer and Locker backed by Redis lists.
type RedisBuffer struct {
	client  *redis.Client
	logger  *zap.Logger
	lockTTL time.Duration
}

// NewRedisBuffer connects to the Redis instance at url and verifies it is reachable.
func NewRedisBuffer(ctx context.Context, url string, lockTTL time.Duration, logger *zap.Logger) (*RedisBuffer, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisBufferFromClient(client, lockTTL, logger), nil
}

// NewRedisBufferFromClient wraps an existing client.
func NewRedisBufferFromClient(client *redis.Client, lockTTL time.Duration, logger *zap.Logger) *RedisBuffer {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &RedisBuffer{
		client:  client,
		logger:  logger,
		lockTTL: lockTTL,
	}
}

// Append implements Buffer.
func (r *RedisBuffer) Append(ctx context.Context, sessionID string, turn Turn) error {
	entry, err := turn.Marshal()
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, KeyPrefix+sessionID, entry).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Length implements Buffer.
func (r *RedisBuffer) Length(ctx context.Context, sessionID string) (int, error) {
	n, err := r.client.LLen(ctx, KeyPrefix+sessionID).Result()
	if err != nil {
		return 0, fmt.Errorf("llen: %w", err)
	}
	return int(n), nil
}

// Drain implements Buffer. The read and the delete are two commands; if the
// delete fails the entries stay and will be flushed again later.
func (r *RedisBuffer) Drain(ctx context.Context, sessionID string) ([]Turn, error) {
	turns, err := r.Peek(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := r.client.Del(ctx, KeyPrefix+sessionID).Err(); err != nil {
		return nil, fmt.Errorf("del: %w", err)
	}
	return turns, nil
}

// Peek implements Buffer. Entries that fail to decode are skipped with a warning.
func (r *RedisBuffer) Peek(ctx context.Context, sessionID string) ([]Turn, error) {
	turns, _, err := r.Head(ctx, sessionID, 0)
	return turns, err
}

// Head implements Buffer. Entries that fail to decode are skipped with a
// warning but still counted as read, so a Trim by that count drops them too.
func (r *RedisBuffer) Head(ctx context.Context, sessionID string, limit int) ([]Turn, int, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	entries, err := r.client.LRange(ctx, KeyPrefix+sessionID, 0, stop).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("lrange: %w", err)
	}

	turns := make([]Turn, 0, len(entries))
	for i, entry := range entries {
		turn, err := ParseTurn(entry)
		if err != nil {
			r.logger.Warn("skipping malformed buffered turn",
				zap.String("session_id", sessionID),
				zap.Int("position", i),
				zap.Error(err),
			)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, len(entries), nil
}

// Trim implements Buffer.
func (r *RedisBuffer) Trim(ctx context.Context, sessionID string, n int) error {
	if n <= 0 {
		return nil
	}
	if err := r.client.LTrim(ctx, KeyPrefix+sessionID, int64(n), -1).Err(); err != nil {
		return fmt.Errorf("ltrim: %w", err)
	}
	return nil
}

// Lock implements Locker with a SETNX lease that expires after the lock TTL,
// so a crashed holder cannot wedge a session. While held, the lease is
// renewed every third of the TTL, so a slow flush keeps it.
func (r *RedisBuffer) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := LockPrefix + sessionID
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("setnx: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout{SessionID: sessionID}, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(key, sessionID, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// Release with a fresh context: the caller's may already be done.
			releaseCtx, cancel := context.WithTimeout(context.Background(), r.lockTTL)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err(); err != nil {
				r.logger.Warn("failed to release session lock",
					zap.String("session_id", sessionID),
					zap.Error(err),
				)
			}
		})
	}, nil
}

// renew extends the lease until stop is closed or the lease is lost.
func (r *RedisBuffer) renew(key, sessionID, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := max(r.lockTTL/3, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		renewCtx, cancel := context.WithTimeout(context.Background(), interval)
		held, err := renewScript.Run(renewCtx, r.client, []string{key}, token, r.lockTTL.Milliseconds()).Int()
		cancel()
		if err != nil {
			r.logger.Warn("failed to renew session lock",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			continue
		}
		if held == 0 {
			r.logger.Warn("session lock lost before release", zap.String("session_id", sessionID))
			return
		}
	}
}

// Close implements Buffer.
func (r *RedisBuffer) Close() error {
	return r.client.Close()
}
