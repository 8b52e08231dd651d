package entity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/codec"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/lanes"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
	"github.com/dropDatabas3/clustertier/internal/replication"
	"github.com/dropDatabas3/clustertier/internal/store"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPromoted se devuelve al entregar a un passive que ya fue promovido.
var ErrPromoted = errors.New("entity: passive already promoted")

// Passive aplica, en orden, lo que le replica el active. No atiende clientes.
type Passive struct {
	opts  Options
	st    *state
	codec *codec.Codec
	lanes *lanes.Executor
	log   *zap.Logger

	mu       sync.Mutex
	pos      replication.Position
	promoted bool
}

// NewPassive crea un passive vacío.
func NewPassive(opts Options) *Passive {
	opts = opts.withDefaults()
	return &Passive{
		opts:  opts,
		st:    newState(opts.Backend),
		codec: opts.Codec,
		lanes: lanes.New(opts.Lanes, opts.LaneDepth),
		log:   opts.Logger,
	}
}

func (p *Passive) ID() string { return p.opts.Name }

// Stores expone el manager de stores.
func (p *Passive) Stores() *store.Manager { return p.st.stores }

// ServerConfig devuelve la configuración replicada, si existe.
func (p *Passive) ServerConfig() (tier.ServerSideConfiguration, bool) { return p.st.serverConfig() }

// IsTracked reporta si el passive conoce al cliente.
func (p *Passive) IsTracked(id uuid.UUID) bool { return p.st.tracker.IsTracked(id) }

// LastApplied es la posición de la última entrada aplicada.
func (p *Passive) LastApplied() replication.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Deliver decodifica e y lo aplica en el carril que le corresponde.
func (p *Passive) Deliver(ctx context.Context, e replication.Entry) error {
	p.mu.Lock()
	promoted := p.promoted
	p.mu.Unlock()
	if promoted {
		return ErrPromoted
	}

	m, err := p.codec.Decode(e.Payload)
	if err != nil {
		return fmt.Errorf("passive %s: seq %d: %w", p.ID(), e.Seq, err)
	}
	run := func() error { return p.apply(ctx, e, m) }
	if c, ok := m.(messages.Concurrent); ok {
		return p.lanes.Submit(ctx, c.ConcurrencyKey(), run)
	}
	return p.lanes.SubmitUniversal(ctx, run)
}

func (p *Passive) apply(ctx context.Context, e replication.Entry, m messages.Message) error {
	switch v := m.(type) {
	case *messages.SyncStartMessage:
		p.setPosition(replication.Position{})
		if err := p.st.reset(ctx); err != nil {
			return err
		}
		p.log.Info("full sync started", logger.Epoch(e.Epoch))
		return nil

	case *messages.SyncEndMessage:
		p.setPosition(replication.Position{Epoch: e.Epoch, Seq: v.Seq})
		p.log.Info("full sync completed", logger.Epoch(e.Epoch), logger.Seq(v.Seq))
		return nil

	case *messages.ConfigureStoreManager:
		p.st.setServerConfig(v.Config)

	case *messages.CreateServerStore:
		if _, err := p.st.stores.Create(v.Name, v.Config); err != nil {
			var le *errs.LifecycleError
			if !errors.As(err, &le) {
				return err
			}
		}

	case *messages.DestroyServerStore:
		if err := p.st.stores.Destroy(ctx, v.Name); err != nil {
			var ise *errs.InvalidStoreError
			if !errors.As(err, &ise) {
				return err
			}
		}
		p.st.repo.DropCache(v.Name)

	case *messages.ClearMessage:
		s, err := p.st.stores.Get(v.CacheID)
		if err != nil {
			p.log.Warn("clear for unknown clustered tier", logger.CacheID(v.CacheID))
			break
		}
		if err := s.Clear(ctx); err != nil {
			return err
		}

	case *messages.PutIfAbsentMessage:
		p.st.repo.PutIfAbsent(v.CacheID, v.MapID, v.Key, v.Value)

	case *messages.ChainReplicationMessage:
		if err := p.replicateChain(ctx, v); err != nil {
			return err
		}

	case *messages.ClientIDTrackerMessage:
		p.st.tracker.Mirror(v.ClientID(), v.ID())
		p.st.bindConn(ClientDescriptor{Conn: v.Conn()}, v.ClientID())

	case *messages.ClientIDUntrackMessage:
		p.st.tracker.Untrack(v.ClientID())
		p.st.unbindClient(v.ClientID())
		p.st.stores.DetachAll(v.ClientID())

	default:
		// validaciones y releases no cambian estado replicado
		p.log.Debug("ignored replicated message", logger.OpCode(m.OpCode()))
	}

	if e.Seq > 0 {
		p.setPosition(replication.Position{Epoch: e.Epoch, Seq: e.Seq})
	}
	return nil
}

func (p *Passive) replicateChain(ctx context.Context, m *messages.ChainReplicationMessage) error {
	s, err := p.st.stores.Get(m.CacheID)
	if err != nil {
		p.log.Warn("chain for unknown clustered tier, creating it", logger.CacheID(m.CacheID))
		if s, err = p.st.stores.Create(m.CacheID, tier.ServerStoreConfiguration{}); err != nil {
			return err
		}
	}
	local, err := s.Get(ctx, m.Key)
	if err != nil {
		return err
	}
	next, extends := extend(local, m.Chain)
	if !extends {
		return s.Put(ctx, m.Key, next)
	}
	for el := range m.Chain.Suffix(local.Len()).Elements() {
		if err := s.Append(ctx, m.Key, el); err != nil {
			return err
		}
	}
	return nil
}

// extend devuelve el chain resultante y si es una extensión de local.
func extend(local, incoming chain.Chain) (chain.Chain, bool) {
	if !incoming.HasPrefix(local) {
		return incoming, false
	}
	return local.Concat(incoming.Suffix(local.Len())), true
}

func (p *Passive) setPosition(pos replication.Position) {
	p.mu.Lock()
	p.pos = pos
	p.mu.Unlock()
}

// Promote convierte al passive en active: espera que termine lo que está
// aplicando, deja de aceptar entregas y entrega su estado a un Active nuevo.
func (p *Passive) Promote(ctx context.Context) (*Active, error) {
	err := p.lanes.SubmitUniversal(ctx, func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.promoted {
			return ErrPromoted
		}
		p.promoted = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("promote %s: %w", p.ID(), err)
	}
	p.lanes.Close()

	a, err := newActive(p.opts, p.st)
	if err != nil {
		return nil, fmt.Errorf("promote %s: %w", p.ID(), err)
	}
	p.log.Info("passive promoted to active",
		logger.Count(len(p.st.stores.Names())), zap.Int("tracked_clients", p.st.tracker.Len()))
	return a, nil
}

// Close detiene los carriles del passive.
func (p *Passive) Close() error {
	p.lanes.Close()
	return nil
}

var _ replication.Passive = (*Passive)(nil)
