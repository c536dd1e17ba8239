// File: internal/testutil/memory_store.go
package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"bucketmirror/pkg/common"
	"bucketmirror/pkg/storage"
)

// MemoryStore is an in-memory storage.ObjectStore for tests
type MemoryStore struct {
	mu       sync.Mutex
	buckets  map[string]map[string][]byte
	pageSize int

	// Returned by PutObject for the given key while the counter is positive
	putFailures map[string]int
	deleteErr   error
	listErr     error

	puts    map[string]int
	deletes map[string]int
	lists   int
	heads   int
}

var _ storage.ObjectStore = (*MemoryStore)(nil)

func NewMemoryStore(buckets ...string) *MemoryStore {
	m := &MemoryStore{
		buckets:     make(map[string]map[string][]byte),
		pageSize:    2,
		putFailures: make(map[string]int),
		puts:        make(map[string]int),
		deletes:     make(map[string]int),
	}
	for _, b := range buckets {
		m.buckets[b] = make(map[string][]byte)
	}
	return m
}

// Seed stores an object without counting it as a put
func (m *MemoryStore) Seed(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string][]byte)
	}
	m.buckets[bucket][key] = data
}

// FailPut makes the next n PutObject calls for key fail
func (m *MemoryStore) FailPut(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putFailures[key] = n
}

func (m *MemoryStore) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

func (m *MemoryStore) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

func (m *MemoryStore) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

func (m *MemoryStore) ProviderName() common.Provider {
	return common.Provider("MEMORY")
}

func (m *MemoryStore) ListObjects(ctx context.Context, bucket, prefix string, fn storage.PageFunc) error {
	m.mu.Lock()
	m.lists++
	if m.listErr != nil {
		err := m.listErr
		m.mu.Unlock()
		return err
	}
	objects, ok := m.buckets[bucket]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("bucket %s: %w", bucket, storage.ErrBucketNotFound)
	}
	var page []storage.Object
	var pages [][]storage.Object
	for _, key := range sortedKeys(objects) {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		page = append(page, storage.Object{Key: key, Bucket: bucket, Size: int64(len(objects[key]))})
		if len(page) == m.pageSize {
			pages = append(pages, page)
			page = nil
		}
	}
	if len(page) > 0 {
		pages = append(pages, page)
	}
	m.mu.Unlock()

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) PutObject(ctx context.Context, in storage.PutInput) error {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts[in.Key]++
	if n := m.putFailures[in.Key]; n > 0 {
		m.putFailures[in.Key] = n - 1
		return fmt.Errorf("simulated put failure for %s", in.Key)
	}
	objects, ok := m.buckets[in.Bucket]
	if !ok {
		return storage.ErrBucketNotFound
	}
	objects[in.Key] = data
	return nil
}

func (m *MemoryStore) DeleteObject(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes[key]++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if objects, ok := m.buckets[bucket]; ok {
		delete(objects, key)
	}
	return nil
}

func (m *MemoryStore) HeadObject(ctx context.Context, bucket, key string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.heads++
	data, ok := m.buckets[bucket][key]
	if !ok {
		return storage.Object{}, storage.ErrNotFound
	}
	return storage.Object{Key: key, Bucket: bucket, Size: int64(len(data)), LastModified: time.Now()}, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Keys returns the sorted keys currently stored in bucket
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.buckets[bucket])
}

func (m *MemoryStore) Object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.buckets[bucket][key]
	return data, ok
}

func (m *MemoryStore) PutCalls(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts[key]
}

func (m *MemoryStore) TotalPutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.puts {
		total += n
	}
	return total
}

func (m *MemoryStore) TotalDeleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.deletes {
		total += n
	}
	return total
}

func (m *MemoryStore) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

func sortedKeys(objects map[string][]byte) []string {
	keys := make([]string, 0, len(objects))
	for k := range objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
