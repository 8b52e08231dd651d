package entity

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/clustertier/internal/codec"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/lanes"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/dropDatabas3/clustertier/internal/metrics"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
	"github.com/dropDatabas3/clustertier/internal/replication"
	"github.com/dropDatabas3/clustertier/internal/store"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/dropDatabas3/clustertier/internal/tracker"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Active es el tier manager autoritativo. Cada operación corre en el carril de
// su concurrency key; las que no tienen key corren como universales.
type Active struct {
	name  string
	st    *state
	codec *codec.Codec
	lanes *lanes.Executor
	ctrl  *replication.Controller
	log   *zap.Logger
}

// NewActive crea un active vacío.
func NewActive(opts Options) (*Active, error) {
	opts = opts.withDefaults()
	return newActive(opts, newState(opts.Backend))
}

func newActive(opts Options, st *state) (*Active, error) {
	j, err := replication.OpenJournal(opts.Journal)
	if err != nil {
		return nil, fmt.Errorf("active %s: %w", opts.Name, err)
	}
	ctrl, err := replication.NewController(replication.Options{
		AckTimeout: opts.AckTimeout,
		QueueDepth: opts.QueueDepth,
		Journal:    j,
		Codec:      opts.Codec,
		Logger:     opts.Logger.Named("replication"),
	})
	if err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("active %s: %w", opts.Name, err)
	}
	a := &Active{
		name:  opts.Name,
		st:    st,
		codec: opts.Codec,
		lanes: lanes.New(opts.Lanes, opts.LaneDepth),
		ctrl:  ctrl,
		log:   opts.Logger,
	}
	metrics.TrackedClients.Set(float64(st.tracker.Len()))
	return a, nil
}

func (a *Active) Name() string { return a.name }

// Stores expone el manager de stores (lectura, admin y tests).
func (a *Active) Stores() *store.Manager { return a.st.stores }

// Tracker expone el set de clientes adjuntos.
func (a *Active) Tracker() *tracker.Tracker { return a.st.tracker }

// ServerConfig devuelve la configuración del tier manager, si fue configurado.
func (a *Active) ServerConfig() (tier.ServerSideConfiguration, bool) { return a.st.serverConfig() }

// Passives lista los passives conectados.
func (a *Active) Passives() []string { return a.ctrl.Passives() }

// Epoch identifica a esta encarnación del active.
func (a *Active) Epoch() string { return a.ctrl.Epoch() }

// LastSeq es la última secuencia replicada.
func (a *Active) LastSeq() uint64 { return a.ctrl.LastSeq() }

// AddPassive conecta un passive y lo sincroniza con todos los carriles detenidos.
func (a *Active) AddPassive(ctx context.Context, p replication.Passive) error {
	return a.lanes.SubmitUniversal(ctx, func() error {
		return a.ctrl.AddPassive(ctx, p, a)
	})
}

// RemovePassive desconecta un passive (terminación ordenada).
func (a *Active) RemovePassive(id string) { a.ctrl.RemovePassive(id) }

// Invoke decodifica payload, lo ejecuta en su carril y devuelve la respuesta.
func (a *Active) Invoke(ctx context.Context, cd ClientDescriptor, payload []byte) (*messages.Response, error) {
	m, err := a.codec.Decode(payload)
	if err != nil {
		return nil, err
	}
	if m.Category() == messages.CategoryReplication {
		return nil, fmt.Errorf("client invoke %s: %w", m.OpCode(), errs.ErrUnsupported)
	}

	var resp *messages.Response
	run := func() error {
		var err error
		resp, err = a.apply(ctx, cd, m)
		return err
	}
	if c, ok := m.(messages.Concurrent); ok {
		err = a.lanes.Submit(ctx, c.ConcurrencyKey(), run)
	} else {
		err = a.lanes.SubmitUniversal(ctx, run)
	}
	if err != nil {
		logger.FromOr(ctx, a.log).Debug("invoke failed",
			logger.ClientID(m.ClientID()), logger.OpCode(m.OpCode()), logger.Err(err))
		return nil, err
	}
	return resp, nil
}

// Disconnect procesa la pérdida de conexión de un cliente: deja de
// trackearlo, lo desadjunta de todos los stores y lo replica.
func (a *Active) Disconnect(ctx context.Context, cd ClientDescriptor) error {
	return a.lanes.SubmitUniversal(ctx, func() error {
		id, ok := a.st.takeConn(cd)
		if !ok {
			return nil
		}
		a.st.unbindClient(id)
		a.st.tracker.Untrack(id)
		a.st.stores.DetachAll(id)
		metrics.TrackedClients.Set(float64(a.st.tracker.Len()))
		a.log.Info("client disconnected", logger.ClientID(id))
		return a.ctrl.Replicate(ctx, messages.NewClientIDUntrackMessage(0, id), tier.Strong)
	})
}

func (a *Active) apply(ctx context.Context, cd ClientDescriptor, m messages.Message) (*messages.Response, error) {
	switch v := m.(type) {
	case *messages.ConfigureStoreManager:
		return a.configure(ctx, cd, v)
	case *messages.ValidateStoreManager:
		return a.validate(ctx, cd, v)
	}

	// todo lo demás requiere un cliente trackeado
	id := m.ClientID()
	if !a.st.tracker.IsTracked(id) {
		return nil, fmt.Errorf("client %s (%s): %w", id, cd, errs.ErrNotAttached)
	}
	a.remember(cd, id)
	a.st.tracker.Observe(id, m.ID())

	switch v := m.(type) {
	case *messages.CreateServerStore:
		return a.createStore(ctx, v)
	case *messages.ValidateServerStore:
		return a.validateStore(v)
	case *messages.ReleaseServerStore:
		if err := a.st.stores.Detach(v.Name, id); err != nil {
			return nil, err
		}
		return messages.Success(), nil
	case *messages.DestroyServerStore:
		return a.destroyStore(ctx, v)
	case *messages.StateRepoGetMessage, *messages.PutIfAbsentMessage, *messages.EntrySetMessage:
		return a.stateRepo(ctx, m)
	default:
		return a.storeOp(ctx, m)
	}
}

func (a *Active) remember(cd ClientDescriptor, id uuid.UUID) { a.st.bindConn(cd, id) }

func (a *Active) track(ctx context.Context, cd ClientDescriptor, m messages.Message) error {
	tm, err := a.trackLocal(cd, m)
	if err != nil {
		return err
	}
	return a.ctrl.Replicate(ctx, tm, tier.Strong)
}

// trackLocal adjunta al cliente sin replicar y devuelve el mensaje que lo
// replica.
func (a *Active) trackLocal(cd ClientDescriptor, m messages.Message) (*messages.ClientIDTrackerMessage, error) {
	id := m.ClientID()
	if _, err := a.st.tracker.Track(id, m.ID()); err != nil {
		return nil, errs.Lifecycle("Client : %s is already being tracked with Client Id : %s", cd, id)
	}
	a.remember(cd, id)
	metrics.TrackedClients.Set(float64(a.st.tracker.Len()))
	return messages.NewClientIDTrackerMessage(m.ID(), id).WithConn(cd.Conn), nil
}

func (a *Active) configure(ctx context.Context, cd ClientDescriptor, m *messages.ConfigureStoreManager) (*messages.Response, error) {
	if _, ok := a.st.serverConfig(); ok {
		return nil, errs.Lifecycle("Clustered Tier Manager already configured")
	}
	// config y tracking se aplican juntos antes de replicar: si la
	// replicación falla, el cliente que configuró queda trackeado igual
	tm, err := a.trackLocal(cd, m)
	if err != nil {
		return nil, err
	}
	a.st.setServerConfig(m.Config)
	if err := a.ctrl.Replicate(ctx, m, tier.Strong); err != nil {
		return nil, err
	}
	if err := a.ctrl.Replicate(ctx, tm, tier.Strong); err != nil {
		return nil, err
	}
	a.log.Info("tier manager configured", logger.ClientID(m.ClientID()), logger.Count(len(m.Config.ResourcePools)))
	return messages.Success(), nil
}

func (a *Active) validate(ctx context.Context, cd ClientDescriptor, m *messages.ValidateStoreManager) (*messages.Response, error) {
	cfg, ok := a.st.serverConfig()
	if !ok {
		return nil, errs.Lifecycle("Clustered Tier Manager is not configured")
	}
	if err := cfg.Compatible(m.Config); err != nil {
		return nil, err
	}
	if err := a.track(ctx, cd, m); err != nil {
		return nil, err
	}
	return messages.Success(), nil
}

func (a *Active) createStore(ctx context.Context, m *messages.CreateServerStore) (*messages.Response, error) {
	if err := m.Config.Validate(); err != nil {
		return nil, &errs.InvalidServerStoreConfigurationError{Store: m.Name, Field: "configuration", Actual: err.Error()}
	}
	if err := a.checkPool(m.Name, m.Config.PoolAllocation); err != nil {
		return nil, err
	}
	if _, err := a.st.stores.Create(m.Name, m.Config); err != nil {
		return nil, err
	}
	if err := a.st.stores.Attach(m.Name, m.ClientID()); err != nil {
		return nil, err
	}
	a.log.Info("clustered tier created", logger.CacheID(m.Name), logger.Consistency(m.Config.Consistency))
	if err := a.ctrl.Replicate(ctx, m, tier.Strong); err != nil {
		return nil, err
	}
	return messages.Success(), nil
}

// checkPool verifica que un pool compartido exista en el tier manager.
func (a *Active) checkPool(name string, pa tier.PoolAllocation) error {
	if pa.Kind != tier.PoolShared {
		return nil
	}
	cfg, _ := a.st.serverConfig()
	if _, ok := cfg.ResourcePools[pa.ResourceName]; !ok {
		return &errs.InvalidServerStoreConfigurationError{
			Store:    name,
			Field:    "poolAllocation.resourceName",
			Expected: "a shared pool of the tier manager",
			Actual:   pa.ResourceName,
		}
	}
	return nil
}

func (a *Active) validateStore(m *messages.ValidateServerStore) (*messages.Response, error) {
	s, err := a.st.stores.Get(m.Name)
	if err != nil {
		return nil, err
	}
	if err := s.Config().Compatible(m.Name, m.Config); err != nil {
		return nil, err
	}
	if err := a.st.stores.Attach(m.Name, m.ClientID()); err != nil {
		return nil, err
	}
	return messages.Success(), nil
}

func (a *Active) destroyStore(ctx context.Context, m *messages.DestroyServerStore) (*messages.Response, error) {
	s, err := a.st.stores.Get(m.Name)
	if err != nil {
		return nil, err
	}
	var others int
	for _, id := range s.Attached() {
		if id != m.ClientID() {
			others++
		}
	}
	if others > 0 {
		return nil, errs.Lifecycle("Cannot destroy clustered tier '%s': in use by %d other client(s)", m.Name, others)
	}
	if err := a.st.stores.Destroy(ctx, m.Name); err != nil {
		return nil, err
	}
	a.st.repo.DropCache(m.Name)
	a.log.Info("clustered tier destroyed", logger.CacheID(m.Name))
	if err := a.ctrl.Replicate(ctx, m, tier.Strong); err != nil {
		return nil, err
	}
	return messages.Success(), nil
}

func (a *Active) stateRepo(ctx context.Context, m messages.Message) (*messages.Response, error) {
	switch v := m.(type) {
	case *messages.StateRepoGetMessage:
		if _, err := a.st.stores.Get(v.CacheID); err != nil {
			return nil, err
		}
		val, ok := a.st.repo.Get(v.CacheID, v.MapID, v.Key)
		return messages.MapValueResponse(val, ok), nil
	case *messages.PutIfAbsentMessage:
		if _, err := a.st.stores.Get(v.CacheID); err != nil {
			return nil, err
		}
		prev, existed := a.st.repo.PutIfAbsent(v.CacheID, v.MapID, v.Key, v.Value)
		if !existed {
			if err := a.ctrl.Replicate(ctx, v, tier.Strong); err != nil {
				return nil, err
			}
		}
		return messages.MapValueResponse(prev, existed), nil
	case *messages.EntrySetMessage:
		if _, err := a.st.stores.Get(v.CacheID); err != nil {
			return nil, err
		}
		return messages.EntrySetResponse(a.st.repo.EntrySet(v.CacheID, v.MapID)), nil
	default:
		return nil, &errs.UnrecognizedOpError{OpCode: byte(m.OpCode())}
	}
}

func (a *Active) storeOp(ctx context.Context, m messages.Message) (*messages.Response, error) {
	switch v := m.(type) {
	case *messages.GetMessage:
		s, err := a.st.stores.Get(v.CacheID)
		if err != nil {
			return nil, err
		}
		c, err := s.Get(ctx, v.Key)
		if err != nil {
			return nil, err
		}
		return messages.ChainResponse(c), nil

	case *messages.AppendMessage:
		s, err := a.st.stores.Get(v.CacheID)
		if err != nil {
			return nil, err
		}
		if err := s.Append(ctx, v.Key, v.Payload); err != nil {
			return nil, err
		}
		if err := a.replicateChain(ctx, s, v.Key, v); err != nil {
			return nil, err
		}
		return messages.Success(), nil

	case *messages.GetAndAppendMessage:
		s, err := a.st.stores.Get(v.CacheID)
		if err != nil {
			return nil, err
		}
		prev, err := s.GetAndAppend(ctx, v.Key, v.Payload)
		if err != nil {
			return nil, err
		}
		if err := a.replicateChain(ctx, s, v.Key, v); err != nil {
			return nil, err
		}
		return messages.ChainResponse(prev), nil

	case *messages.ReplaceAtHeadMessage:
		s, err := a.st.stores.Get(v.CacheID)
		if err != nil {
			return nil, err
		}
		ok, err := s.ReplaceAtHead(ctx, v.Key, v.Expect, v.Update)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := a.replicateChain(ctx, s, v.Key, v); err != nil {
				return nil, err
			}
		}
		return messages.ReplaceResponse(ok), nil

	case *messages.ClearMessage:
		s, err := a.st.stores.Get(v.CacheID)
		if err != nil {
			return nil, err
		}
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		if err := a.ctrl.Replicate(ctx, v, s.Config().Consistency); err != nil {
			return nil, err
		}
		return messages.Success(), nil

	default:
		return nil, &errs.UnrecognizedOpError{OpCode: byte(m.OpCode())}
	}
}

// replicateChain envía el chain completo de key tal como quedó en el active.
func (a *Active) replicateChain(ctx context.Context, s *store.ServerStore, key int64, cause messages.Message) error {
	c, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	crm := messages.NewChainReplicationMessage(s.Name(), key, c, cause.ID(), cause.ClientID())
	return a.ctrl.Replicate(ctx, crm, s.Config().Consistency)
}

// SyncMessages describe el estado completo del active para un passive nuevo.
// Se llama con todos los carriles detenidos.
func (a *Active) SyncMessages(ctx context.Context) ([]messages.Message, error) {
	var out []messages.Message
	if cfg, ok := a.st.serverConfig(); ok {
		out = append(out, messages.NewConfigureStoreManager(cfg, uuid.Nil))
	}
	for _, name := range a.st.stores.Names() {
		s, err := a.st.stores.Get(name)
		if err != nil {
			continue
		}
		out = append(out, messages.NewCreateServerStore(name, s.Config(), uuid.Nil))
		keys, err := s.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("sync %s: %w", name, err)
		}
		for _, k := range keys {
			c, err := s.Get(ctx, k)
			if err != nil {
				return nil, fmt.Errorf("sync %s/%d: %w", name, k, err)
			}
			out = append(out, messages.NewChainReplicationMessage(name, k, c, 0, uuid.Nil))
		}
	}
	conns := a.st.connsByClient()
	for _, att := range a.st.tracker.Snapshot() {
		out = append(out, messages.NewClientIDTrackerMessage(att.LastMsgID, att.ClientID).WithConn(conns[att.ClientID].Conn))
	}
	for _, e := range a.st.repo.Snapshot() {
		out = append(out, messages.NewPutIfAbsentMessage(e.CacheID, e.MapID, e.Key, e.Value, uuid.Nil))
	}
	return out, nil
}

// Close detiene la replicación y los carriles. El backend queda abierto: lo
// cierra quien lo creó.
func (a *Active) Close() error {
	err := a.ctrl.Close()
	a.lanes.Close()
	return err
}

var _ replication.SyncSource = (*Active)(nil)

