// Package cache keeps serialized read results per namespace so repeated
// dashboard reads skip the database until a write invalidates them.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Namespaces used by the HTTP layer.
const (
	Profiles   = "profiles"
	Practice   = "practice"
	Fees       = "fees"
	Trials     = "trials"
	Points     = "points"
	Attendance = "attendance"
)

type Cache interface {
	// Get decodes the value at key into dst and reports whether it was found.
	Get(ctx context.Context, namespace, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error
	// Invalidate drops every key of the given namespaces.
	Invalidate(ctx context.Context, namespaces ...string) error
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Cache for single-instance deployments and tests.
type Memory struct {
	mu    sync.Mutex
	items map[string]map[string]entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]map[string]entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, namespace, key string, dst interface{}) (bool, error) {
	m.mu.Lock()
	e, ok := m.items[namespace][key]
	if ok && !m.now().Before(e.expires) {
		delete(m.items[namespace], key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.items[namespace]
	if !ok {
		ns = make(map[string]entry)
		m.items[namespace] = ns
	}
	ns[key] = entry{data: data, expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, namespaces ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ns := range namespaces {
		delete(m.items, ns)
	}
	return nil
}

// Len returns the number of live keys in namespace.
func (m *Memory) Len(namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items[namespace])
}
