package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
)

// Manager es dueño de los server stores con nombre de un entity.
type Manager struct {
	backend ChainBackend

	mu     sync.RWMutex
	stores map[string]*ServerStore
}

// NewManager crea un Manager sobre backend.
func NewManager(backend ChainBackend) *Manager {
	return &Manager{backend: backend, stores: make(map[string]*ServerStore)}
}

// Backend devuelve el backend compartido por todos los stores.
func (m *Manager) Backend() ChainBackend { return m.backend }

// Create registra un store nuevo. Falla con *errs.LifecycleError si ya existe.
func (m *Manager) Create(name string, cfg tier.ServerStoreConfiguration) (*ServerStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[name]; ok {
		return nil, errs.Lifecycle("clustered tier '%s' already exists", name)
	}
	s := newServerStore(name, cfg, m.backend)
	m.stores[name] = s
	return s, nil
}

// Get devuelve el store o *errs.InvalidStoreError.
func (m *Manager) Get(name string) (*ServerStore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[name]
	if !ok {
		return nil, &errs.InvalidStoreError{Name: name}
	}
	return s, nil
}

// Destroy elimina el store y sus chains.
func (m *Manager) Destroy(ctx context.Context, name string) error {
	m.mu.Lock()
	_, ok := m.stores[name]
	delete(m.stores, name)
	m.mu.Unlock()
	if !ok {
		return &errs.InvalidStoreError{Name: name}
	}
	if err := m.backend.Drop(ctx, name); err != nil {
		return fmt.Errorf("destroy %s: %w", name, err)
	}
	return nil
}

// Names lista los stores ordenados.
func (m *Manager) Names() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.stores))
	for n := range m.stores {
		out = append(out, n)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Attach adjunta un cliente a un store existente.
func (m *Manager) Attach(name string, id uuid.UUID) error {
	s, err := m.Get(name)
	if err != nil {
		return err
	}
	s.attach(id)
	return nil
}

// Detach quita al cliente; devuelve *errs.LifecycleError si no estaba adjunto.
func (m *Manager) Detach(name string, id uuid.UUID) error {
	s, err := m.Get(name)
	if err != nil {
		return err
	}
	if !s.detach(id) {
		return errs.Lifecycle("client %s is not attached to clustered tier '%s'", id, name)
	}
	return nil
}

// Attached lista los clientes adjuntos a name.
func (m *Manager) Attached(name string) ([]uuid.UUID, error) {
	s, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return s.Attached(), nil
}

// DetachAll quita a id de todos los stores (pérdida de conexión).
func (m *Manager) DetachAll(id uuid.UUID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.stores {
		s.detach(id)
	}
}

// Reset elimina todos los stores y sus chains (inicio de full sync).
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	names := make([]string, 0, len(m.stores))
	for n := range m.stores {
		names = append(names, n)
	}
	m.stores = make(map[string]*ServerStore)
	m.mu.Unlock()
	for _, n := range names {
		if err := m.backend.Drop(ctx, n); err != nil {
			return fmt.Errorf("reset %s: %w", n, err)
		}
	}
	return nil
}
