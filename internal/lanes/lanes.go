// Package lanes ejecuta operaciones en N carriles ordenados. Dos operaciones
// con la misma concurrency key caen en el mismo carril y se ejecutan en orden
// de llegada; keys distintas pueden correr en paralelo. Las operaciones
// universales corren solas, con todos los carriles detenidos.
package lanes

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed se devuelve al enviar trabajo a un executor cerrado.
var ErrClosed = errors.New("lanes: executor closed")

type task struct {
	fn   func() error
	done chan error
}

// Executor es el conjunto de carriles.
type Executor struct {
	lanes []chan task
	quit  chan struct{}
	wg    sync.WaitGroup

	universal sync.Mutex
	closeOnce sync.Once
}

// New arranca n carriles con una cola de depth tareas cada uno.
func New(n, depth int) *Executor {
	if n < 1 {
		n = 1
	}
	if depth < 0 {
		depth = 0
	}
	e := &Executor{lanes: make([]chan task, n), quit: make(chan struct{})}
	for i := range e.lanes {
		e.lanes[i] = make(chan task, depth)
		e.wg.Add(1)
		go e.run(e.lanes[i])
	}
	return e
}

func (e *Executor) run(ch chan task) {
	defer e.wg.Done()
	for {
		select {
		case t := <-ch:
			t.done <- safeCall(t.fn)
		case <-e.quit:
			for {
				select {
				case t := <-ch:
					t.done <- ErrClosed
				default:
					return
				}
			}
		}
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lanes: task panicked: %v", r)
		}
	}()
	return fn()
}

// Lanes devuelve la cantidad de carriles.
func (e *Executor) Lanes() int { return len(e.lanes) }

// LaneFor devuelve el carril de key.
func (e *Executor) LaneFor(key int32) int {
	return int(uint32(key) % uint32(len(e.lanes)))
}

func (e *Executor) enqueue(ctx context.Context, lane int, t task) error {
	select {
	case <-e.quit:
		return ErrClosed
	default:
	}
	select {
	case e.lanes[lane] <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}
}

// Submit ejecuta fn en el carril de key y espera su resultado. Si ctx se
// cancela después de encolar, fn igual se ejecuta.
func (e *Executor) Submit(ctx context.Context, key int32, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	if err := e.enqueue(ctx, e.LaneFor(key), t); err != nil {
		return err
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}
}

// SubmitUniversal detiene todos los carriles, ejecuta fn en el goroutine del
// llamador y los libera. Las universales se serializan entre sí.
func (e *Executor) SubmitUniversal(ctx context.Context, fn func() error) error {
	e.universal.Lock()
	defer e.universal.Unlock()

	parked := make(chan struct{}, len(e.lanes))
	release := make(chan struct{})
	defer close(release)

	barrier := func() error {
		parked <- struct{}{}
		<-release
		return nil
	}
	for i := range e.lanes {
		if err := e.enqueue(ctx, i, task{fn: barrier, done: make(chan error, 1)}); err != nil {
			return err
		}
	}
	for range e.lanes {
		select {
		case <-parked:
		case <-ctx.Done():
			return ctx.Err()
		case <-e.quit:
			return ErrClosed
		}
	}
	return safeCall(fn)
}

// Close detiene los carriles. Las tareas pendientes reciben ErrClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)
	})
	e.wg.Wait()
}
