package messages

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/google/uuid"
)

// ConcurrencyKeyFor derives the lane key for (cacheID, key). Store ops and
// chain replication use the same derivation so the active and every passive
// order mutations of one key identically.
func ConcurrencyKeyFor(cacheID string, key int64) int32 {
	return int32(uint32(xxhash.Sum64String(cacheID))) + int32(key)
}

type storeOp struct {
	clientMessage
	CacheID string
}

func (storeOp) Category() Category { return CategoryServerStore }

type keyedStoreOp struct {
	storeOp
	Key int64
}

func (m *keyedStoreOp) ConcurrencyKey() int32 { return ConcurrencyKeyFor(m.CacheID, m.Key) }

func newKeyed(cacheID string, key int64, clientID uuid.UUID) keyedStoreOp {
	return keyedStoreOp{storeOp: storeOp{clientMessage: clientMessage{clientID: clientID}, CacheID: cacheID}, Key: key}
}

type GetMessage struct {
	keyedStoreOp
}

func NewGetMessage(cacheID string, key int64, clientID uuid.UUID) *GetMessage {
	return &GetMessage{newKeyed(cacheID, key, clientID)}
}

func (*GetMessage) OpCode() OpCode { return OpGet }

type AppendMessage struct {
	keyedStoreOp
	Payload chain.Element
}

func NewAppendMessage(cacheID string, key int64, payload chain.Element, clientID uuid.UUID) *AppendMessage {
	return &AppendMessage{keyedStoreOp: newKeyed(cacheID, key, clientID), Payload: payload}
}

func (*AppendMessage) OpCode() OpCode { return OpAppend }

type GetAndAppendMessage struct {
	keyedStoreOp
	Payload chain.Element
}

func NewGetAndAppendMessage(cacheID string, key int64, payload chain.Element, clientID uuid.UUID) *GetAndAppendMessage {
	return &GetAndAppendMessage{keyedStoreOp: newKeyed(cacheID, key, clientID), Payload: payload}
}

func (*GetAndAppendMessage) OpCode() OpCode { return OpGetAndAppend }

// ReplaceAtHeadMessage swaps the head of the chain equal to Expect for Update.
// Elements appended after Expect are kept.
type ReplaceAtHeadMessage struct {
	keyedStoreOp
	Expect chain.Chain
	Update chain.Chain
}

func NewReplaceAtHeadMessage(cacheID string, key int64, expect, update chain.Chain, clientID uuid.UUID) *ReplaceAtHeadMessage {
	return &ReplaceAtHeadMessage{keyedStoreOp: newKeyed(cacheID, key, clientID), Expect: expect, Update: update}
}

func (*ReplaceAtHeadMessage) OpCode() OpCode { return OpReplaceAtHead }

// ClearMessage empties a whole store; it is not keyed.
type ClearMessage struct {
	storeOp
}

func NewClearMessage(cacheID string, clientID uuid.UUID) *ClearMessage {
	return &ClearMessage{storeOp{clientMessage: clientMessage{clientID: clientID}, CacheID: cacheID}}
}

func (*ClearMessage) OpCode() OpCode { return OpClear }
