// Package store contiene los server stores del tier: un mapa key → Chain por
// cache, respaldado por un ChainBackend intercambiable.
//
// Soporta:
//   - Memory (in-process, default y tests)
//   - Redis (una LIST por key)
//
// El orden por key lo garantiza el executor de lanes; el backend solo tiene que
// ser seguro ante escritores concurrentes sobre keys distintas.
package store

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/clustertier/internal/chain"
)

// ChainBackend es el proveedor de bytes de los chains.
type ChainBackend interface {
	// Load devuelve el chain de key; chain vacío si no existe.
	Load(ctx context.Context, cacheID string, key int64) (chain.Chain, error)

	// Append agrega un elemento al final del chain de key.
	Append(ctx context.Context, cacheID string, key int64, e chain.Element) error

	// Put reemplaza el chain completo de key. Un chain vacío borra la key.
	Put(ctx context.Context, cacheID string, key int64, c chain.Chain) error

	// Keys lista las keys con chain no vacío.
	Keys(ctx context.Context, cacheID string) ([]int64, error)

	// Drop elimina todos los chains de un cache.
	Drop(ctx context.Context, cacheID string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close() error
}

// BackendConfig configuración para crear un backend.
type BackendConfig struct {
	Driver    string // "memory" | "redis"
	RedisAddr string
	Password  string
	DB        int
	Prefix    string // prefijo para todas las keys redis
}

// NewBackend crea un backend según la configuración.
func NewBackend(ctx context.Context, cfg BackendConfig) (ChainBackend, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("store: unknown backend driver %q", cfg.Driver)
	}
}
