// Package client es el proxy del lado cliente del tier manager: asigna message
// ids, codifica y despacha cada operación al active de turno.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/codec"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/dropDatabas3/clustertier/internal/observability/logger"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed se devuelve al usar un Entity cerrado.
var ErrClosed = errors.New("client: entity closed")

// Connection es el canal hacia el active. La implementa stripe.Connection.
type Connection interface {
	Invoke(ctx context.Context, payload []byte) (*messages.Response, error)
	Close() error
}

// ClusteredTierManagerValidationError envuelve el rechazo de Validate.
type ClusteredTierManagerValidationError struct {
	Cause error
}

func (e *ClusteredTierManagerValidationError) Error() string {
	return "clustered tier manager validation failed: " + e.Cause.Error()
}

func (e *ClusteredTierManagerValidationError) Unwrap() error { return e.Cause }

// ClusteredTierManagerConfigurationError envuelve el rechazo de Configure.
type ClusteredTierManagerConfigurationError struct {
	Cause error
}

func (e *ClusteredTierManagerConfigurationError) Error() string {
	return "clustered tier manager configuration failed: " + e.Cause.Error()
}

func (e *ClusteredTierManagerConfigurationError) Unwrap() error { return e.Cause }

// Entity es un cliente del tier manager. Seguro para uso concurrente.
type Entity struct {
	id    uuid.UUID
	conn  Connection
	codec *codec.Codec
	log   *zap.Logger

	nextID atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Option ajusta un Entity.
type Option func(*Entity)

func WithCodec(c *codec.Codec) Option { return func(e *Entity) { e.codec = c } }

func WithLogger(l *zap.Logger) Option { return func(e *Entity) { e.log = l } }

// New crea un Entity con identidad id sobre conn.
func New(id uuid.UUID, conn Connection, opts ...Option) *Entity {
	e := &Entity{id: id, conn: conn, codec: codec.Default()}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logger.Named("client")
	}
	e.log = e.log.With(logger.ClientID(id))
	return e
}

// ID es la identidad del cliente.
func (e *Entity) ID() uuid.UUID { return e.id }

func (e *Entity) invoke(ctx context.Context, m messages.Message) (*messages.Response, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	if err := m.SetID(e.nextID.Add(1)); err != nil {
		return nil, err
	}
	payload, err := e.codec.Encode(m)
	if err != nil {
		return nil, err
	}
	resp, err := e.conn.Invoke(ctx, payload)
	if err != nil {
		e.log.Debug("invoke failed", logger.OpCode(m.OpCode()), logger.MsgID(m.ID()), logger.Err(err))
		return nil, err
	}
	return resp, nil
}

// Configure crea el tier manager con cfg y adjunta al cliente.
func (e *Entity) Configure(ctx context.Context, cfg tier.ServerSideConfiguration) error {
	if _, err := e.invoke(ctx, messages.NewConfigureStoreManager(cfg, e.id)); err != nil {
		return &ClusteredTierManagerConfigurationError{Cause: err}
	}
	return nil
}

// Validate verifica que cfg coincida con el tier manager y adjunta al cliente.
func (e *Entity) Validate(ctx context.Context, cfg tier.ServerSideConfiguration) error {
	if _, err := e.invoke(ctx, messages.NewValidateStoreManager(cfg, e.id)); err != nil {
		return &ClusteredTierManagerValidationError{Cause: err}
	}
	return nil
}

func (e *Entity) CreateCache(ctx context.Context, name string, cfg tier.ServerStoreConfiguration) error {
	_, err := e.invoke(ctx, messages.NewCreateServerStore(name, cfg, e.id))
	return err
}

func (e *Entity) ValidateCache(ctx context.Context, name string, cfg tier.ServerStoreConfiguration) error {
	_, err := e.invoke(ctx, messages.NewValidateServerStore(name, cfg, e.id))
	return err
}

func (e *Entity) ReleaseCache(ctx context.Context, name string) error {
	_, err := e.invoke(ctx, messages.NewReleaseServerStore(name, e.id))
	return err
}

func (e *Entity) DestroyCache(ctx context.Context, name string) error {
	_, err := e.invoke(ctx, messages.NewDestroyServerStore(name, e.id))
	return err
}

func (e *Entity) Get(ctx context.Context, cache string, key int64) (chain.Chain, error) {
	resp, err := e.invoke(ctx, messages.NewGetMessage(cache, key, e.id))
	if err != nil {
		return chain.Chain{}, err
	}
	return expectKind(resp, messages.ResponseChain, func() chain.Chain { return resp.Chain })
}

func (e *Entity) Append(ctx context.Context, cache string, key int64, payload chain.Element) error {
	_, err := e.invoke(ctx, messages.NewAppendMessage(cache, key, payload, e.id))
	return err
}

// GetAndAppend devuelve el chain anterior al append.
func (e *Entity) GetAndAppend(ctx context.Context, cache string, key int64, payload chain.Element) (chain.Chain, error) {
	resp, err := e.invoke(ctx, messages.NewGetAndAppendMessage(cache, key, payload, e.id))
	if err != nil {
		return chain.Chain{}, err
	}
	return expectKind(resp, messages.ResponseChain, func() chain.Chain { return resp.Chain })
}

// ReplaceAtHead reporta si el reemplazo ocurrió.
func (e *Entity) ReplaceAtHead(ctx context.Context, cache string, key int64, expect, update chain.Chain) (bool, error) {
	resp, err := e.invoke(ctx, messages.NewReplaceAtHeadMessage(cache, key, expect, update, e.id))
	if err != nil {
		return false, err
	}
	return expectKind(resp, messages.ResponseReplace, func() bool { return resp.Replaced })
}

func (e *Entity) Clear(ctx context.Context, cache string) error {
	_, err := e.invoke(ctx, messages.NewClearMessage(cache, e.id))
	return err
}

func (e *Entity) StateRepoGet(ctx context.Context, cache, mapID string, key []byte) ([]byte, bool, error) {
	resp, err := e.invoke(ctx, messages.NewStateRepoGetMessage(cache, mapID, key, e.id))
	if err != nil {
		return nil, false, err
	}
	if resp == nil || resp.Kind != messages.ResponseMapValue {
		return nil, false, unexpected(resp)
	}
	return resp.Value, resp.Found, nil
}

// StateRepoPutIfAbsent devuelve el valor existente si la key ya estaba.
func (e *Entity) StateRepoPutIfAbsent(ctx context.Context, cache, mapID string, key, value []byte) ([]byte, bool, error) {
	resp, err := e.invoke(ctx, messages.NewPutIfAbsentMessage(cache, mapID, key, value, e.id))
	if err != nil {
		return nil, false, err
	}
	if resp == nil || resp.Kind != messages.ResponseMapValue {
		return nil, false, unexpected(resp)
	}
	return resp.Value, resp.Found, nil
}

func (e *Entity) StateRepoEntrySet(ctx context.Context, cache, mapID string) ([]messages.MapEntry, error) {
	resp, err := e.invoke(ctx, messages.NewEntrySetMessage(cache, mapID, e.id))
	if err != nil {
		return nil, err
	}
	return expectKind(resp, messages.ResponseEntrySet, func() []messages.MapEntry { return resp.Entries })
}

// Close cierra la conexión; el active lo procesa como desconexión.
func (e *Entity) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	return e.conn.Close()
}

func expectKind[T any](resp *messages.Response, kind messages.ResponseKind, get func() T) (T, error) {
	if resp == nil || resp.Kind != kind {
		var zero T
		return zero, unexpected(resp)
	}
	return get(), nil
}

func unexpected(resp *messages.Response) error {
	if resp == nil {
		return fmt.Errorf("empty response: %w", errs.ErrMalformedPayload)
	}
	return fmt.Errorf("unexpected response kind %d: %w", resp.Kind, errs.ErrMalformedPayload)
}
