// Package stripe arma en proceso un stripe de un active y K passives, con
// los controles de failover que usan los tests de integración y el daemon.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dropDatabas3/clustertier/internal/client"
	"github.com/dropDatabas3/clustertier/internal/entity"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
	"github.com/dropDatabas3/clustertier/internal/replication"
	"github.com/dropDatabas3/clustertier/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrPartitioned es el error de entrega a un passive particionado.
	ErrPartitioned = errors.New("stripe: passive partitioned")
	// ErrNoPassive: no hay passive para promover o terminar.
	ErrNoPassive = errors.New("stripe: no running passive")
	// ErrClosed: el stripe ya fue cerrado.
	ErrClosed = errors.New("stripe: closed")
)

// BackendFunc crea el backend de chains de un servidor.
type BackendFunc func(ctx context.Context, server string) (store.ChainBackend, error)

// Options configura el stripe.
type Options struct {
	Passives int
	// Server es la plantilla de cada servidor; Name y Backend se fijan por servidor.
	Server  entity.Options
	Backend BackendFunc // nil = memoria
	Logger  *zap.Logger
}

// member es un passive visto por el active: puede estar particionado.
type member struct {
	p           *entity.Passive
	backend     store.ChainBackend
	partitioned atomic.Bool
}

func (m *member) ID() string { return m.p.ID() }

func (m *member) LastApplied() replication.Position { return m.p.LastApplied() }

func (m *member) Deliver(ctx context.Context, e replication.Entry) error {
	if m.partitioned.Load() {
		return ErrPartitioned
	}
	return m.p.Deliver(ctx, e)
}

// Stripe es seguro para uso concurrente. Las operaciones de topología se
// serializan entre sí.
type Stripe struct {
	opts Options
	log  *zap.Logger

	mu            sync.RWMutex
	active        *entity.Active
	activeBackend store.ChainBackend
	passives      []*member
	servers       int
	closed        bool

	conns atomic.Int64
}

// New arranca el active y opts.Passives passives sincronizados.
func New(ctx context.Context, opts Options) (*Stripe, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Named("stripe")
	}
	s := &Stripe{opts: opts, log: opts.Logger}

	name := s.nextName()
	so, b, err := s.serverOptions(ctx, name)
	if err != nil {
		return nil, err
	}
	a, err := entity.NewActive(so)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	s.active, s.activeBackend = a, b
	s.log.Info("active started", logger.Component(name))

	for i := 0; i < opts.Passives; i++ {
		if err := s.StartOneServer(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Stripe) nextName() string {
	n := fmt.Sprintf("server-%d", s.servers)
	s.servers++
	return n
}

func (s *Stripe) serverOptions(ctx context.Context, name string) (entity.Options, store.ChainBackend, error) {
	so := s.opts.Server
	so.Name = name
	so.Logger = s.log.Named(name)
	if so.Journal.Dir != "" {
		so.Journal.Dir = filepath.Join(so.Journal.Dir, name)
	}
	var (
		b   store.ChainBackend
		err error
	)
	if s.opts.Backend != nil {
		b, err = s.opts.Backend(ctx, name)
	} else {
		b = store.NewMemory()
	}
	if err != nil {
		return so, nil, fmt.Errorf("stripe: backend for %s: %w", name, err)
	}
	so.Backend = b
	return so, b, nil
}

// Active devuelve el active actual.
func (s *Stripe) Active() *entity.Active {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Passives devuelve los passives en marcha, en orden de arranque.
func (s *Stripe) Passives() []*entity.Passive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Passive, len(s.passives))
	for i, m := range s.passives {
		out[i] = m.p
	}
	return out
}

// Connect abre una conexión nueva y devuelve el cliente con identidad id.
func (s *Stripe) Connect(id uuid.UUID) *client.Entity {
	c := &Connection{s: s, cd: entity.ClientDescriptor{Conn: fmt.Sprintf("conn-%d", s.conns.Add(1))}}
	return client.New(id, c, client.WithLogger(s.log.Named("client")))
}

// StartOneServer arranca un passive nuevo y vuelve cuando quedó sincronizado.
func (s *Stripe) StartOneServer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	name := s.nextName()
	so, b, err := s.serverOptions(ctx, name)
	if err != nil {
		return err
	}
	m := &member{p: entity.NewPassive(so), backend: b}
	if err := s.active.AddPassive(ctx, m); err != nil {
		_ = m.p.Close()
		_ = b.Close()
		return fmt.Errorf("stripe: start %s: %w", name, err)
	}
	s.passives = append(s.passives, m)
	s.log.Info("passive started", logger.PassiveID(name))
	return nil
}

// TerminateOnePassive detiene el último passive arrancado.
func (s *Stripe) TerminateOnePassive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.passives) == 0 {
		return ErrNoPassive
	}
	m := s.passives[len(s.passives)-1]
	s.passives = s.passives[:len(s.passives)-1]
	s.active.RemovePassive(m.ID())
	s.log.Info("passive terminated", logger.PassiveID(m.ID()))
	return closeMember(m)
}

// TerminateActive mata al active, promueve al primer passive y resincroniza
// al resto contra el nuevo active. Un passive que no puede sincronizar queda
// fuera del set del active.
func (s *Stripe) TerminateActive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.passives) == 0 {
		return ErrNoPassive
	}
	old := s.active
	if err := old.Close(); err != nil {
		s.log.Warn("closing old active", logger.Err(err))
	}
	_ = s.activeBackend.Close()

	next := s.passives[0]
	s.passives = s.passives[1:]
	a, err := next.p.Promote(ctx)
	if err != nil {
		return fmt.Errorf("stripe: promote %s: %w", next.ID(), err)
	}
	s.active, s.activeBackend = a, next.backend
	s.log.Info("passive promoted", logger.Component(next.ID()))

	for _, m := range s.passives {
		if err := a.AddPassive(ctx, m); err != nil {
			s.log.Warn("passive failed to resync", logger.PassiveID(m.ID()), logger.Err(err))
		}
	}
	return nil
}

// PartitionPassive hace fallar toda entrega al passive i.
func (s *Stripe) PartitionPassive(i int) error {
	m, err := s.member(i)
	if err != nil {
		return err
	}
	m.partitioned.Store(true)
	return nil
}

// Heal levanta la partición del passive i. Si el active ya lo había
// descartado, sigue afuera hasta Rejoin o el próximo failover.
func (s *Stripe) Heal(i int) error {
	m, err := s.member(i)
	if err != nil {
		return err
	}
	m.partitioned.Store(false)
	return nil
}

// Rejoin desconecta al passive i y lo vuelve a agregar conservando su estado,
// así que se pone al día por journal cuando es posible.
func (s *Stripe) Rejoin(ctx context.Context, i int) error {
	m, err := s.member(i)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active.RemovePassive(m.ID())
	return s.active.AddPassive(ctx, m)
}

func (s *Stripe) member(i int) (*member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.passives) {
		return nil, fmt.Errorf("stripe: passive %d: %w", i, ErrNoPassive)
	}
	return s.passives[i], nil
}

// Close detiene todos los servidores.
func (s *Stripe) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errList []error
	if s.active != nil {
		errList = append(errList, s.active.Close(), s.activeBackend.Close())
	}
	for _, m := range s.passives {
		errList = append(errList, closeMember(m))
	}
	s.passives = nil
	return errors.Join(errList...)
}

func closeMember(m *member) error {
	return errors.Join(m.p.Close(), m.backend.Close())
}

// Connection es una conexión de cliente; siempre invoca al active vigente.
type Connection struct {
	s  *Stripe
	cd entity.ClientDescriptor
}

func (c *Connection) Invoke(ctx context.Context, payload []byte) (*messages.Response, error) {
	return c.s.Active().Invoke(ctx, c.cd, payload)
}

// Close se procesa en el active como pérdida de conexión.
func (c *Connection) Close() error {
	return c.s.Active().Disconnect(context.Background(), c.cd)
}

var _ client.Connection = (*Connection)(nil)
