// Package entity implementa el tier manager del lado servidor: el Active que
// atiende clientes y replica, y el Passive que sigue al active y puede ser
// promovido.
package entity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/clustertier/internal/codec"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
	"github.com/dropDatabas3/clustertier/internal/replication"
	"github.com/dropDatabas3/clustertier/internal/staterepo"
	"github.com/dropDatabas3/clustertier/internal/store"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/dropDatabas3/clustertier/internal/tracker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configura un servidor del stripe, sea active o passive.
type Options struct {
	Name       string
	Backend    store.ChainBackend // nil = memoria
	Lanes      int
	LaneDepth  int
	AckTimeout time.Duration
	QueueDepth int
	Journal    replication.JournalConfig
	Codec      *codec.Codec
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Backend == nil {
		o.Backend = store.NewMemory()
	}
	if o.Lanes <= 0 {
		o.Lanes = 8
	}
	if o.LaneDepth <= 0 {
		o.LaneDepth = 64
	}
	if o.Codec == nil {
		o.Codec = codec.Default()
	}
	if o.Logger == nil {
		o.Logger = logger.Named("entity")
	}
	o.Logger = o.Logger.With(logger.Component(o.Name))
	return o
}

// ClientDescriptor identifica una conexión de cliente dentro del runtime.
type ClientDescriptor struct {
	Conn string
}

func (d ClientDescriptor) String() string { return d.Conn }

// state es lo que un passive mantiene al día y entrega al promoverse.
type state struct {
	stores  *store.Manager
	tracker *tracker.Tracker
	repo    *staterepo.Repository

	mu     sync.RWMutex
	config *tier.ServerSideConfiguration
	// conexión → cliente trackeado; se replica con ClientIDTrack
	conns map[ClientDescriptor]uuid.UUID
}

func newState(b store.ChainBackend) *state {
	return &state{
		stores:  store.NewManager(b),
		tracker: tracker.New(),
		repo:    staterepo.New(),
		conns:   make(map[ClientDescriptor]uuid.UUID),
	}
}

func (s *state) serverConfig() (tier.ServerSideConfiguration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return tier.ServerSideConfiguration{}, false
	}
	return *s.config, true
}

func (s *state) setServerConfig(cfg tier.ServerSideConfiguration) {
	s.mu.Lock()
	s.config = &cfg
	s.mu.Unlock()
}

func (s *state) bindConn(cd ClientDescriptor, id uuid.UUID) {
	if cd.Conn == "" {
		return
	}
	s.mu.Lock()
	s.conns[cd] = id
	s.mu.Unlock()
}

// takeConn quita cd y devuelve el cliente que tenía asociado.
func (s *state) takeConn(cd ClientDescriptor) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.conns[cd]
	delete(s.conns, cd)
	return id, ok
}

func (s *state) unbindClient(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cd, v := range s.conns {
		if v == id {
			delete(s.conns, cd)
		}
	}
}

// connsByClient invierte conns (sync de passives).
func (s *state) connsByClient() map[uuid.UUID]ClientDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]ClientDescriptor, len(s.conns))
	for cd, id := range s.conns {
		out[id] = cd
	}
	return out
}

func (s *state) reset(ctx context.Context) error {
	s.mu.Lock()
	s.config = nil
	clear(s.conns)
	s.mu.Unlock()
	s.tracker.Reset()
	s.repo.Reset()
	if err := s.stores.Reset(ctx); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}
