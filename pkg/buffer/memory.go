package buffer

import (
	"context"
	"sync"
)

// MemoryBuffer is an in-process Buffer and Locker. It does not survive the
// process and is not shared between replicas; use it for development and tests.
type MemoryBuffer struct {
	mu       sync.Mutex
	sessions map[string][]Turn

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

// sessionLock is dropped from the map once nobody holds or waits for it.
type sessionLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryBuffer creates an empty MemoryBuffer.
func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{
		sessions: make(map[string][]Turn),
		locks:    make(map[string]*sessionLock),
	}
}

// Append implements Buffer.
func (m *MemoryBuffer) Append(_ context.Context, sessionID string, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append(m.sessions[sessionID], turn)
	return nil
}

// Length implements Buffer.
func (m *MemoryBuffer) Length(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions[sessionID]), nil
}

// Drain implements Buffer.
func (m *MemoryBuffer) Drain(_ context.Context, sessionID string) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	if turns == nil {
		return []Turn{}, nil
	}
	return turns, nil
}

// Peek implements Buffer.
func (m *MemoryBuffer) Peek(_ context.Context, sessionID string) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Head implements Buffer.
func (m *MemoryBuffer) Head(_ context.Context, sessionID string, limit int) ([]Turn, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.sessions[sessionID]
	if limit > 0 && limit < len(turns) {
		turns = turns[:limit]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, len(out), nil
}

// Trim implements Buffer.
func (m *MemoryBuffer) Trim(_ context.Context, sessionID string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := m.sessions[sessionID]
	if n >= len(turns) {
		delete(m.sessions, sessionID)
		return nil
	}
	if n > 0 {
		m.sessions[sessionID] = append([]Turn(nil), turns[n:]...)
	}
	return nil
}

// Lock implements Locker.
func (m *MemoryBuffer) Lock(ctx context.Context, sessionID string) (func(), error) {
	m.locksMu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		m.locks[sessionID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				m.releaseRef(sessionID, l)
			})
		}, nil
	case <-ctx.Done():
		m.releaseRef(sessionID, l)
		return nil, ErrLockTimeout{SessionID: sessionID}
	}
}

func (m *MemoryBuffer) releaseRef(sessionID string, l *sessionLock) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, sessionID)
	}
}

// Close implements Buffer.
func (m *MemoryBuffer) Close() error {
	return nil
}
