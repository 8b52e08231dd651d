// Package replication lleva las mutaciones del active a sus passives.
//
// Cada passive tiene una cola de salida ordenada; el orden de la cola es el
// orden de secuencia del journal. Un passive que no confirma dentro del
// timeout, o cuya entrega falla, sale del set: el active nunca revierte la
// mutación local.
package replication

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/clustertier/internal/codec"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/dropDatabas3/clustertier/internal/metrics"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrClosed se devuelve al replicar sobre un controller cerrado.
var ErrClosed = errors.New("replication: controller closed")

// DefaultAckTimeout es el timeout de ack si Options no lo fija.
const DefaultAckTimeout = 5 * time.Second

// Position es hasta dónde aplicó un passive: la secuencia dentro de la
// encarnación (epoch) del active que la asignó.
type Position struct {
	Epoch string
	Seq   uint64
}

// Entry es lo que se entrega a un passive. Seq es 0 para los mensajes de un
// full sync, que no pasan por el journal.
type Entry struct {
	Epoch   string
	Seq     uint64
	Payload []byte
}

// Passive es el lado receptor visto desde el active.
type Passive interface {
	ID() string
	LastApplied() Position
	// Deliver aplica la entrada y vuelve cuando el passive la confirmó.
	Deliver(ctx context.Context, e Entry) error
}

// SyncSource produce el estado completo del active como mensajes aplicables
// por un passive vacío.
type SyncSource interface {
	SyncMessages(ctx context.Context) ([]messages.Message, error)
}

// Options configura el controller.
type Options struct {
	AckTimeout time.Duration
	QueueDepth int // 0 = sin límite
	Journal    *Journal
	Codec      *codec.Codec
	Logger     *zap.Logger
}

// Controller es el lado active de la replicación.
type Controller struct {
	ackTimeout time.Duration
	queueDepth int
	journal    *Journal
	codec      *codec.Codec
	log        *zap.Logger
	epoch      string

	mu     sync.Mutex
	links  map[string]*link
	closed bool
	wg     sync.WaitGroup
}

// NewController crea un controller. Sin Journal usa uno en memoria.
func NewController(opts Options) (*Controller, error) {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("replication")
	}
	if opts.Journal == nil {
		j, err := OpenJournal(JournalConfig{Driver: "memory"})
		if err != nil {
			return nil, err
		}
		opts.Journal = j
	}
	c := &Controller{
		ackTimeout: opts.AckTimeout,
		queueDepth: opts.QueueDepth,
		journal:    opts.Journal,
		codec:      opts.Codec,
		epoch:      uuid.NewString(),
		links:      make(map[string]*link),
	}
	c.log = opts.Logger.With(logger.Epoch(c.epoch))
	return c, nil
}

// Epoch identifica a este active.
func (c *Controller) Epoch() string { return c.epoch }

// LastSeq es la última secuencia replicada.
func (c *Controller) LastSeq() uint64 { return c.journal.LastSeq() }

// Passives lista los ids de los passives conectados.
func (c *Controller) Passives() []string {
	c.mu.Lock()
	out := make([]string, 0, len(c.links))
	for id := range c.links {
		out = append(out, id)
	}
	c.mu.Unlock()
	sort.Strings(out)
	return out
}

// Replicate codifica m una vez, lo escribe en el journal y lo encola para
// cada passive. Con STRONG espera el ack de cada passive o su timeout; con
// EVENTUAL vuelve apenas encolado. Solo falla si m no se puede codificar o el
// contexto se cancela.
func (c *Controller) Replicate(ctx context.Context, m messages.Message, level tier.Consistency) error {
	payload, err := c.codec.Encode(m)
	if err != nil {
		return fmt.Errorf("replicate %s: %w", m.OpCode(), err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	seq, err := c.journal.Append(payload)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("replicate %s: %w", m.OpCode(), err)
	}
	entry := Entry{Epoch: c.epoch, Seq: seq, Payload: payload}

	type pending struct {
		l  *link
		it *item
	}
	var (
		waits    []pending
		overflow []*link
	)
	for _, l := range c.links {
		it := newItem(entry)
		if !l.push(it, false) {
			overflow = append(overflow, l)
			continue
		}
		waits = append(waits, pending{l, it})
	}
	c.mu.Unlock()

	metrics.ReplicatedMessages.WithLabelValues(m.OpCode().String()).Inc()
	metrics.JournalLastSeq.Set(float64(seq))
	for _, l := range overflow {
		c.drop(l, fmt.Errorf("passive %s: outbound queue full at seq %d: %w", l.id, seq, errs.ErrPassiveUnreachable), true)
	}

	if !level.WaitsForPassives() || len(waits) == 0 {
		return nil
	}

	start := time.Now()
	var g errgroup.Group
	for _, w := range waits {
		w := w
		g.Go(func() error {
			t := time.NewTimer(c.ackTimeout)
			defer t.Stop()
			select {
			case <-w.it.done:
				// un error de entrega ya sacó al passive del set
				return nil
			case <-t.C:
				c.drop(w.l, fmt.Errorf("passive %s: no ack for seq %d within %s: %w", w.l.id, seq, c.ackTimeout, errs.ErrPassiveUnreachable), true)
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	err = g.Wait()
	metrics.ReplicationAckLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)
	return err
}

// AddPassive registra p y lo pone al día: por replay del journal si p viene de
// esta misma encarnación y el journal conserva todo lo que le falta, o por un
// full sync (SyncStart, estado de src, SyncEnd) en caso contrario. Vuelve
// cuando p confirmó la última entrada del sync.
//
// El llamador debe garantizar que no haya mutaciones en vuelo (universal).
func (c *Controller) AddPassive(ctx context.Context, p Passive, src SyncSource) error {
	id := p.ID()
	pos := p.LastApplied()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, dup := c.links[id]; dup {
		c.mu.Unlock()
		return errs.Lifecycle("passive %s is already connected", id)
	}

	l := newLink(id, p, c)
	last := c.journal.LastSeq()
	mode := "journal"
	var final *item

	if pos.Epoch == c.epoch && c.journal.Covers(pos.Seq) {
		err := c.journal.Replay(pos.Seq, last, func(seq uint64, payload []byte) error {
			final = newItem(Entry{Epoch: c.epoch, Seq: seq, Payload: payload})
			l.push(final, true)
			return nil
		})
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("add passive %s: %w", id, err)
		}
	} else {
		mode = "full"
		frames, err := c.syncFrames(ctx, src, last)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("add passive %s: %w", id, err)
		}
		for _, f := range frames {
			final = newItem(Entry{Epoch: c.epoch, Payload: f})
			l.push(final, true)
		}
	}

	c.links[id] = l
	metrics.ConnectedPassives.Set(float64(len(c.links)))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		l.run()
	}()
	c.mu.Unlock()

	metrics.PassiveSyncs.WithLabelValues(mode).Inc()
	c.log.Info("passive joined", logger.PassiveID(id), logger.SyncMode(mode),
		logger.Seq(last), zap.Uint64("from_seq", pos.Seq))

	if final == nil {
		return nil
	}
	select {
	case err := <-final.done:
		if err != nil {
			return fmt.Errorf("add passive %s: sync: %w", id, err)
		}
		return nil
	case <-ctx.Done():
		c.drop(l, ctx.Err(), false)
		return ctx.Err()
	}
}

func (c *Controller) syncFrames(ctx context.Context, src SyncSource, last uint64) ([][]byte, error) {
	var msgs []messages.Message
	if src != nil {
		var err error
		if msgs, err = src.SyncMessages(ctx); err != nil {
			return nil, fmt.Errorf("sync source: %w", err)
		}
	}
	all := make([]messages.Message, 0, len(msgs)+2)
	all = append(all, messages.NewSyncStartMessage(0))
	all = append(all, msgs...)
	all = append(all, messages.NewSyncEndMessage(0, last))

	frames := make([][]byte, 0, len(all))
	for _, m := range all {
		b, err := c.codec.Encode(m)
		if err != nil {
			return nil, fmt.Errorf("encode sync %s: %w", m.OpCode(), err)
		}
		frames = append(frames, b)
	}
	return frames, nil
}

// RemovePassive desconecta un passive sin contarlo como inalcanzable.
func (c *Controller) RemovePassive(id string) {
	c.mu.Lock()
	l := c.links[id]
	c.mu.Unlock()
	if l != nil {
		c.drop(l, fmt.Errorf("passive %s removed", id), false)
	}
}

func (c *Controller) drop(l *link, cause error, unreachable bool) {
	if !l.fail(cause) {
		return
	}
	c.mu.Lock()
	if c.links[l.id] == l {
		delete(c.links, l.id)
	}
	n := len(c.links)
	c.mu.Unlock()

	metrics.ConnectedPassives.Set(float64(n))
	if unreachable {
		metrics.UnreachablePassives.Inc()
		c.log.Warn("passive dropped", logger.PassiveID(l.id), logger.Err(cause))
		return
	}
	c.log.Info("passive disconnected", logger.PassiveID(l.id))
}

// Close desconecta todos los passives y cierra el journal.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	links := make([]*link, 0, len(c.links))
	for _, l := range c.links {
		links = append(links, l)
	}
	c.mu.Unlock()

	for _, l := range links {
		c.drop(l, ErrClosed, false)
	}
	c.wg.Wait()
	return c.journal.Close()
}
