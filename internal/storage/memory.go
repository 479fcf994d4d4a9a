package storage

import (
	"context"
	"sync"
)

// MemorySpace is an in-process key-value namespace shared by any number of
// MemoryKV handles, the way tabs of one browser profile share local storage.
type MemorySpace struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[*memoryWatch]struct{}
}

type memoryWatch struct {
	owner    *MemoryKV
	key      string
	onChange func()
}

// NewMemorySpace creates an empty namespace.
func NewMemorySpace() *MemorySpace {
	return &MemorySpace{
		data:     make(map[string][]byte),
		watchers: make(map[*memoryWatch]struct{}),
	}
}

// Open returns a new handle onto the space.
func (s *MemorySpace) Open() *MemoryKV {
	return &MemoryKV{space: s}
}

// MemoryKV is one handle onto a MemorySpace.
type MemoryKV struct {
	space  *MemorySpace
	mu     sync.Mutex
	closed bool
}

// NewMemory returns a handle onto a fresh private space.
func NewMemory() *MemoryKV {
	return NewMemorySpace().Open()
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.isClosed() {
		return nil, false, ErrUnavailable
	}
	m.space.mu.RLock()
	defer m.space.mu.RUnlock()
	v, ok := m.space.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	if m.isClosed() {
		return ErrUnavailable
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	m.space.mu.Lock()
	m.space.data[key] = stored
	var fire []func()
	for w := range m.space.watchers {
		if w.owner != m && w.key == key {
			fire = append(fire, w.onChange)
		}
	}
	m.space.mu.Unlock()

	// Delivered asynchronously, like a storage event in another tab.
	for _, fn := range fire {
		go fn()
	}
	return nil
}

func (m *MemoryKV) Ping(context.Context) error {
	if m.isClosed() {
		return ErrUnavailable
	}
	return nil
}

// Watch registers onChange for writes to key made through other handles.
func (m *MemoryKV) Watch(_ context.Context, key string, onChange func()) (func(), error) {
	if m.isClosed() {
		return nil, ErrUnavailable
	}
	w := &memoryWatch{owner: m, key: key, onChange: onChange}
	m.space.mu.Lock()
	m.space.watchers[w] = struct{}{}
	m.space.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.space.mu.Lock()
			delete(m.space.watchers, w)
			m.space.mu.Unlock()
		})
	}, nil
}

// Close detaches the handle and drops its watchers. The space itself survives.
func (m *MemoryKV) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.space.mu.Lock()
	for w := range m.space.watchers {
		if w.owner == m {
			delete(m.space.watchers, w)
		}
	}
	m.space.mu.Unlock()
	return nil
}

func (m *MemoryKV) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
