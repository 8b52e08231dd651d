package replication

import (
	"context"
	"fmt"
	"sync"

	"github.com/dropDatabas3/clustertier/internal/errs"
)

type item struct {
	entry Entry
	done  chan error
}

func newItem(e Entry) *item {
	return &item{entry: e, done: make(chan error, 1)}
}

// link es la cola de salida ordenada hacia un passive. Un solo goroutine
// entrega, así que el passive ve las entradas en orden de encolado.
type link struct {
	id   string
	p    Passive
	ctrl *Controller

	mu     sync.Mutex
	queue  []*item
	failed error
	wake   chan struct{}
	quit   chan struct{}
}

func newLink(id string, p Passive, ctrl *Controller) *link {
	return &link{
		id:   id,
		p:    p,
		ctrl: ctrl,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// push encola it. Devuelve false si el link ya falló o, sin force, si la cola
// está llena.
func (l *link) push(it *item, force bool) bool {
	l.mu.Lock()
	if l.failed != nil {
		l.mu.Unlock()
		return false
	}
	if !force && l.ctrl.queueDepth > 0 && len(l.queue) >= l.ctrl.queueDepth {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, it)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *link) next() (*item, bool) {
	for {
		l.mu.Lock()
		if l.failed != nil {
			l.mu.Unlock()
			return nil, false
		}
		if len(l.queue) > 0 {
			it := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return it, true
		}
		l.mu.Unlock()

		select {
		case <-l.wake:
		case <-l.quit:
			return nil, false
		}
	}
}

func (l *link) run() {
	for {
		it, ok := l.next()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.ctrl.ackTimeout)
		err := l.p.Deliver(ctx, it.entry)
		cancel()
		if err != nil {
			err = fmt.Errorf("passive %s: deliver seq %d: %v: %w", l.id, it.entry.Seq, err, errs.ErrPassiveUnreachable)
			l.ctrl.drop(l, err, true)
			it.done <- err
			return
		}
		it.done <- nil
	}
}

// fail marca el link como caído y falla lo pendiente. Solo la primera
// llamada tiene efecto.
func (l *link) fail(cause error) bool {
	l.mu.Lock()
	if l.failed != nil {
		l.mu.Unlock()
		return false
	}
	l.failed = cause
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()

	close(l.quit)
	for _, it := range pending {
		it.done <- cause
	}
	return true
}
