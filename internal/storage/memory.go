package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memoryObject
	puts    map[string]int
	now     func() time.Time

	// Fail, when set, is consulted before every operation; a non-nil error aborts it.
	Fail func(op, key string) error
}

// NewMemoryStore creates an empty store that reports locators under bucket.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string]memoryObject),
		puts:    make(map[string]int),
		now:     time.Now,
	}
}

func (m *MemoryStore) Bucket() string { return m.bucket }

func (m *MemoryStore) check(op, key string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, key)
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := m.check("put", key); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	m.puts[key]++
	return Locator(m.bucket, key), nil
}

func (m *MemoryStore) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := m.key(locator)
	if err != nil {
		return nil, err
	}
	if err := m.check("get", key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Presign(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	key, err := m.key(locator)
	if err != nil {
		return "", err
	}
	if err := m.check("presign", key); err != nil {
		return "", err
	}
	expires := m.now().Add(ttl).Unix()
	return fmt.Sprintf("https://%s.storage.local/%s?expires=%s",
		m.bucket, (&url.URL{Path: key}).EscapedPath(), strconv.FormatInt(expires, 10)), nil
}

func (m *MemoryStore) Delete(ctx context.Context, locator string) (bool, error) {
	key, err := m.key(locator)
	if err != nil {
		return false, err
	}
	if err := m.check("delete", key); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]
	delete(m.objects, key)
	return ok, nil
}

func (m *MemoryStore) Exists(ctx context.Context, locator string) (bool, error) {
	key, err := m.key(locator)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok, nil
}

// PutCount returns how many times key has been written.
func (m *MemoryStore) PutCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts[key]
}

// ContentType returns the stored content type of key.
func (m *MemoryStore) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}

func (m *MemoryStore) key(locator string) (string, error) {
	bucket, key, err := ParseLocator(locator)
	if err != nil {
		return "", err
	}
	if bucket != m.bucket {
		return "", fmt.Errorf("%w: unknown bucket %q", ErrInvalidLocator, bucket)
	}
	return key, nil
}
