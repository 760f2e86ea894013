package ocr

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// memo is a small bounded cache with FIFO eviction. Concurrent misses on the
// same key share one computation. Errors are not cached.
type memo[V any] struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string]V
	group singleflight.Group
}

func newMemo[V any](max int) *memo[V] {
	return &memo[V]{max: max, items: make(map[string]V, max)}
}

func (m *memo[V]) do(key string, fn func() (V, error)) (V, bool, error) {
	m.mu.Lock()
	if v, ok := m.items[key]; ok {
		m.mu.Unlock()
		return v, true, nil
	}
	m.mu.Unlock()

	res, err, _ := m.group.Do(key, func() (any, error) {
		v, err := fn()
		if err != nil {
			return v, err
		}
		m.put(key, v)
		return v, nil
	})
	v, _ := res.(V)
	return v, false, err
}

func (m *memo[V]) put(key string, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; ok {
		m.items[key] = v
		return
	}
	for len(m.order) >= m.max && len(m.order) > 0 {
		delete(m.items, m.order[0])
		m.order = m.order[1:]
	}
	m.items[key] = v
	m.order = append(m.order, key)
}

func (m *memo[V]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
