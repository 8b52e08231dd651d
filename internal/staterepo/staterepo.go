// Package staterepo guarda los mapas auxiliares que los clientes asocian a un
// cache, identificados por (cacheId, mapId).
package staterepo

import (
	"bytes"
	"sort"
	"sync"

	"github.com/dropDatabas3/clustertier/internal/messages"
)

type mapRef struct {
	cacheID string
	mapID   string
}

// Repository es seguro para uso concurrente.
type Repository struct {
	mu   sync.RWMutex
	maps map[mapRef]map[string][]byte
}

func New() *Repository {
	return &Repository{maps: make(map[mapRef]map[string][]byte)}
}

// Get devuelve el valor de key y si existe.
func (r *Repository) Get(cacheID, mapID string, key []byte) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.maps[mapRef{cacheID, mapID}][string(key)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// PutIfAbsent guarda value si key no existe. Devuelve el valor previo y true
// cuando ya existía; en ese caso no modifica nada.
func (r *Repository) PutIfAbsent(cacheID, mapID string, key, value []byte) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := mapRef{cacheID, mapID}
	m, ok := r.maps[ref]
	if !ok {
		m = make(map[string][]byte)
		r.maps[ref] = m
	}
	if prev, ok := m[string(key)]; ok {
		return bytes.Clone(prev), true
	}
	m[string(key)] = bytes.Clone(value)
	return nil, false
}

// EntrySet devuelve las entradas del mapa ordenadas por key.
func (r *Repository) EntrySet(cacheID, mapID string) []messages.MapEntry {
	r.mu.RLock()
	m := r.maps[mapRef{cacheID, mapID}]
	out := make([]messages.MapEntry, 0, len(m))
	for k, v := range m {
		out = append(out, messages.MapEntry{Key: []byte(k), Value: bytes.Clone(v)})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}

// DropCache elimina todos los mapas de un cache (destroy del store).
func (r *Repository) DropCache(cacheID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref := range r.maps {
		if ref.cacheID == cacheID {
			delete(r.maps, ref)
		}
	}
}

// Entry es una entrada calificada, usada para sincronizar passives.
type Entry struct {
	CacheID string
	MapID   string
	Key     []byte
	Value   []byte
}

// Snapshot devuelve todas las entradas de todos los mapas.
func (r *Repository) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for ref, m := range r.maps {
		for k, v := range m {
			out = append(out, Entry{CacheID: ref.cacheID, MapID: ref.mapID, Key: []byte(k), Value: bytes.Clone(v)})
		}
	}
	return out
}

// Reset vacía el repositorio.
func (r *Repository) Reset() {
	r.mu.Lock()
	r.maps = make(map[mapRef]map[string][]byte)
	r.mu.Unlock()
}
