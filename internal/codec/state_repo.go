package codec

import (
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/google/uuid"
)

// StateRepoCodec handles opcodes [21,30].
type StateRepoCodec struct{}

type stateRepoBody struct {
	MsgID    *int64    `json:"msgId,omitempty"`
	ClientID uuid.UUID `json:"clientId"`
	CacheID  string    `json:"cacheId"`
	MapID    string    `json:"mapId"`
	Key      []byte    `json:"key,omitempty"`
	Value    []byte    `json:"value,omitempty"`
}

func (StateRepoCodec) Encode(m messages.Message) ([]byte, error) {
	body := stateRepoBody{MsgID: assignedID(m), ClientID: m.ClientID()}
	switch v := m.(type) {
	case *messages.StateRepoGetMessage:
		body.CacheID, body.MapID, body.Key = v.CacheID, v.MapID, v.Key
	case *messages.PutIfAbsentMessage:
		body.CacheID, body.MapID, body.Key, body.Value = v.CacheID, v.MapID, v.Key, v.Value
	case *messages.EntrySetMessage:
		body.CacheID, body.MapID = v.CacheID, v.MapID
	default:
		return nil, wrongType("state repository", m)
	}
	return frame(m.OpCode(), body)
}

func (StateRepoCodec) Decode(payload []byte) (messages.Message, error) {
	if err := knownOp(payload,
		messages.OpStateRepoGet, messages.OpStateRepoPutIfAbsent, messages.OpStateRepoEntrySet); err != nil {
		return nil, err
	}
	var body stateRepoBody
	if err := unframe(payload, &body); err != nil {
		return nil, err
	}
	var m messages.Message
	switch messages.OpCode(payload[0]) {
	case messages.OpStateRepoGet:
		m = messages.NewStateRepoGetMessage(body.CacheID, body.MapID, body.Key, body.ClientID)
	case messages.OpStateRepoPutIfAbsent:
		m = messages.NewPutIfAbsentMessage(body.CacheID, body.MapID, body.Key, body.Value, body.ClientID)
	case messages.OpStateRepoEntrySet:
		m = messages.NewEntrySetMessage(body.CacheID, body.MapID, body.ClientID)
	default:
		return nil, &errs.UnrecognizedOpError{OpCode: payload[0]}
	}
	return restoreID(m, body.MsgID)
}
