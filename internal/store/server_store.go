package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
)

// ServerStore es el mapa key → Chain de un cache. Las mutaciones sobre una
// misma key llegan serializadas por el executor de lanes.
type ServerStore struct {
	name    string
	cfg     tier.ServerStoreConfiguration
	backend ChainBackend

	mu       sync.Mutex
	attached map[uuid.UUID]struct{}
}

func newServerStore(name string, cfg tier.ServerStoreConfiguration, b ChainBackend) *ServerStore {
	return &ServerStore{name: name, cfg: cfg, backend: b, attached: make(map[uuid.UUID]struct{})}
}

func (s *ServerStore) Name() string { return s.name }

func (s *ServerStore) Config() tier.ServerStoreConfiguration { return s.cfg }

func (s *ServerStore) Get(ctx context.Context, key int64) (chain.Chain, error) {
	return s.backend.Load(ctx, s.name, key)
}

func (s *ServerStore) Append(ctx context.Context, key int64, e chain.Element) error {
	return s.backend.Append(ctx, s.name, key, e)
}

// GetAndAppend devuelve el chain previo al append.
func (s *ServerStore) GetAndAppend(ctx context.Context, key int64, e chain.Element) (chain.Chain, error) {
	prev, err := s.backend.Load(ctx, s.name, key)
	if err != nil {
		return chain.Chain{}, err
	}
	if err := s.backend.Append(ctx, s.name, key, e); err != nil {
		return chain.Chain{}, err
	}
	return prev, nil
}

// ReplaceAtHead reemplaza el prefijo expect del chain actual por update y
// conserva lo que se haya agregado después. Si el chain ya no empieza con
// expect no hace nada y devuelve false. Un expect vacío nunca reemplaza.
func (s *ServerStore) ReplaceAtHead(ctx context.Context, key int64, expect, update chain.Chain) (bool, error) {
	if expect.IsEmpty() {
		return false, nil
	}
	cur, err := s.backend.Load(ctx, s.name, key)
	if err != nil {
		return false, err
	}
	if !cur.HasPrefix(expect) {
		return false, nil
	}
	next := update.Concat(cur.Suffix(expect.Len()))
	if err := s.backend.Put(ctx, s.name, key, next); err != nil {
		return false, err
	}
	return true, nil
}

// Put instala un chain completo (camino del passive).
func (s *ServerStore) Put(ctx context.Context, key int64, c chain.Chain) error {
	return s.backend.Put(ctx, s.name, key, c)
}

func (s *ServerStore) Clear(ctx context.Context) error {
	return s.backend.Drop(ctx, s.name)
}

func (s *ServerStore) Keys(ctx context.Context) ([]int64, error) {
	return s.backend.Keys(ctx, s.name)
}

func (s *ServerStore) attach(id uuid.UUID) {
	s.mu.Lock()
	s.attached[id] = struct{}{}
	s.mu.Unlock()
}

func (s *ServerStore) detach(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attached[id]; !ok {
		return false
	}
	delete(s.attached, id)
	return true
}

// Attached devuelve los clientes adjuntos ordenados.
func (s *ServerStore) Attached() []uuid.UUID {
	s.mu.Lock()
	out := make([]uuid.UUID, 0, len(s.attached))
	for id := range s.attached {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// IsAttached reporta si id está adjunto a este store.
func (s *ServerStore) IsAttached(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.attached[id]
	return ok
}
