// persistence/memory.go
package persistence

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process DocStore used by tests and local development.
// It honors the same version-checked commit protocol as the durable backends.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]map[string]any
	versions map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]map[string]any),
		versions: make(map[string]int64),
	}
}

func (m *Memory) Get(ctx context.Context, key string, dest any) error {
	return storeGet(ctx, m, key, dest)
}

func (m *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return runTransaction(ctx, m, fn)
}

func (m *Memory) Close() error { return nil }

func (m *Memory) fetch(_ context.Context, key string) (map[string]any, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[key]
	if !exists {
		return nil, 0, ErrNotFound
	}
	return cloneDoc(doc), m.versions[key], nil
}

func (m *Memory) listKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.docs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *Memory) commit(_ context.Context, reads map[string]int64, ops []writeOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, version := range reads {
		if m.versions[key] != version {
			return ErrConflict
		}
	}

	for _, op := range ops {
		switch op.kind {
		case opSet:
			m.docs[op.key] = cloneDoc(op.doc)
			m.versions[op.key]++
		case opUpdate:
			merged, err := mergeUpdate(m.docs[op.key], op.fields)
			if err != nil {
				return err
			}
			m.docs[op.key] = merged
			m.versions[op.key]++
		case opDelete:
			if _, exists := m.docs[op.key]; exists {
				delete(m.docs, op.key)
				m.versions[op.key]++
			}
		}
	}
	return nil
}
