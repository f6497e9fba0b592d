// Package buffer holds conversation turns in a transient, key-ordered list
// until they are flushed to durable storage.
package buffer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for Turn timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Turn is one user-message/assistant-reply pair. It is immutable once created.
type Turn struct {
	User      string `json:"user"`
	Bot       string `json:"bot"`
	Timestamp string `json:"timestamp"`
}

// NewTurn creates a Turn stamped with t in UTC.
func NewTurn(user, bot string, t time.Time) Turn {
	return Turn{
		User:      user,
		Bot:       bot,
		Timestamp: t.UTC().Format(TimestampLayout),
	}
}

// Marshal serializes the turn for storage in the list.
func (t Turn) Marshal() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal turn: %w", err)
	}
	return string(data), nil
}

// ParseTurn decodes a serialized turn.
func ParseTurn(entry string) (Turn, error) {
	var t Turn
	if err := json.Unmarshal([]byte(entry), &t); err != nil {
		return Turn{}, fmt.Errorf("unmarshal turn: %w", err)
	}
	return t, nil
}

// Buffer is the per-session ordered list of turns awaiting a flush.
//
// Operations are separate round trips with no atomicity between them;
// callers that need Append through Drain to be exclusive take a Locker.
type Buffer interface {
	// Append adds turn to the tail of the session's list, creating it if absent.
	Append(ctx context.Context, sessionID string, turn Turn) error

	// Length returns the number of buffered turns, 0 if the session is absent.
	Length(ctx context.Context, sessionID string) (int, error)

	// Drain reads the full list in append order and then deletes it.
	Drain(ctx context.Context, sessionID string) ([]Turn, error)

	// Peek reads the full list in append order without modifying it.
	Peek(ctx context.Context, sessionID string) ([]Turn, error)

	// Head reads up to limit entries from the front of the list without
	// modifying it; limit <= 0 reads the whole list. It returns the turns
	// that decoded and the number of entries read, which is the count to
	// pass to Trim once those turns are stored.
	Head(ctx context.Context, sessionID string, limit int) ([]Turn, int, error)

	// Trim removes the first n entries, keeping anything appended after them.
	Trim(ctx context.Context, sessionID string, n int) error

	// Close releases the buffer's resources.
	Close() error
}

// Locker provides an exclusive section per session.
type Locker interface {
	// Lock blocks until the session's section is acquired or ctx is done.
	// The returned func releases it.
	Lock(ctx context.Context, sessionID string) (func(), error)
}

// ErrLockTimeout is returned when a session lock could not be acquired in time.
type ErrLockTimeout struct {
	SessionID string
}

func (e ErrLockTimeout) Error() string {
	return "timed out acquiring lock for session " + e.SessionID
}
