package messages

import "github.com/google/uuid"

type stateRepoOp struct {
	clientMessage
	CacheID string
	MapID   string
}

func (stateRepoOp) Category() Category { return CategoryStateRepo }

func newStateRepoOp(cacheID, mapID string, clientID uuid.UUID) stateRepoOp {
	return stateRepoOp{clientMessage: clientMessage{clientID: clientID}, CacheID: cacheID, MapID: mapID}
}

type StateRepoGetMessage struct {
	stateRepoOp
	Key []byte
}

func NewStateRepoGetMessage(cacheID, mapID string, key []byte, clientID uuid.UUID) *StateRepoGetMessage {
	return &StateRepoGetMessage{stateRepoOp: newStateRepoOp(cacheID, mapID, clientID), Key: key}
}

func (*StateRepoGetMessage) OpCode() OpCode { return OpStateRepoGet }

type PutIfAbsentMessage struct {
	stateRepoOp
	Key   []byte
	Value []byte
}

func NewPutIfAbsentMessage(cacheID, mapID string, key, value []byte, clientID uuid.UUID) *PutIfAbsentMessage {
	return &PutIfAbsentMessage{stateRepoOp: newStateRepoOp(cacheID, mapID, clientID), Key: key, Value: value}
}

func (*PutIfAbsentMessage) OpCode() OpCode { return OpStateRepoPutIfAbsent }

// EntrySetMessage enumerates one auxiliary map.
type EntrySetMessage struct {
	stateRepoOp
}

func NewEntrySetMessage(cacheID, mapID string, clientID uuid.UUID) *EntrySetMessage {
	return &EntrySetMessage{newStateRepoOp(cacheID, mapID, clientID)}
}

func (*EntrySetMessage) OpCode() OpCode { return OpStateRepoEntrySet }
