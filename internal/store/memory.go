package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dropDatabas3/clustertier/internal/chain"
)

type chainKey struct {
	cacheID string
	key     int64
}

// memoryBackend guarda *chain.Chain en un sync.Map. Los chains son inmutables,
// así que Append es un CompareAndSwap de punteros.
type memoryBackend struct {
	chains sync.Map // chainKey -> *chain.Chain
}

// NewMemory crea un backend en memoria.
func NewMemory() ChainBackend {
	return &memoryBackend{}
}

func (m *memoryBackend) Load(_ context.Context, cacheID string, key int64) (chain.Chain, error) {
	v, ok := m.chains.Load(chainKey{cacheID, key})
	if !ok {
		return chain.Empty(), nil
	}
	return *v.(*chain.Chain), nil
}

func (m *memoryBackend) Append(_ context.Context, cacheID string, key int64, e chain.Element) error {
	k := chainKey{cacheID, key}
	for {
		v, loaded := m.chains.Load(k)
		if !loaded {
			next := chain.Empty().Append(e)
			if _, raced := m.chains.LoadOrStore(k, &next); !raced {
				return nil
			}
			continue
		}
		next := v.(*chain.Chain).Append(e)
		if m.chains.CompareAndSwap(k, v, &next) {
			return nil
		}
	}
}

func (m *memoryBackend) Put(_ context.Context, cacheID string, key int64, c chain.Chain) error {
	k := chainKey{cacheID, key}
	if c.IsEmpty() {
		m.chains.Delete(k)
		return nil
	}
	m.chains.Store(k, &c)
	return nil
}

func (m *memoryBackend) Keys(_ context.Context, cacheID string) ([]int64, error) {
	var keys []int64
	m.chains.Range(func(k, _ any) bool {
		if ck := k.(chainKey); ck.cacheID == cacheID {
			keys = append(keys, ck.key)
		}
		return true
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (m *memoryBackend) Drop(_ context.Context, cacheID string) error {
	m.chains.Range(func(k, _ any) bool {
		if k.(chainKey).cacheID == cacheID {
			m.chains.Delete(k)
		}
		return true
	})
	return nil
}

func (m *memoryBackend) Ping(context.Context) error { return nil }

func (m *memoryBackend) Close() error {
	m.chains.Range(func(k, _ any) bool {
		m.chains.Delete(k)
		return true
	})
	return nil
}
