package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryObject is an object held by MemoryStore.
type MemoryObject struct {
	Data []byte
	Opts PutOptions
}

// MemoryStore keeps objects in process. PutErr and DeleteErr, when set, are
// returned by every Put or Delete call.
type MemoryStore struct {
	BaseURL   string
	PutErr    error
	DeleteErr error

	mu      sync.Mutex
	objects map[string]MemoryObject
}

// NewMemoryStore returns an empty store whose public URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: baseURL, objects: make(map[string]MemoryObject)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	if _, exists := m.objects[key]; exists {
		return errors.New("object already exists")
	}
	m.objects[key] = MemoryObject{Data: append([]byte(nil), data...), Opts: opts}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return m.BaseURL + "/" + key
}

// Get returns the stored object for key.
func (m *MemoryStore) Get(key string) (MemoryObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Keys lists stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
