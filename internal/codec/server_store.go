package codec

import (
	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/google/uuid"
)

// ServerStoreCodec handles opcodes [11,20].
type ServerStoreCodec struct{}

type serverStoreBody struct {
	MsgID    *int64        `json:"msgId,omitempty"`
	ClientID uuid.UUID     `json:"clientId"`
	CacheID  string        `json:"cacheId"`
	Key      int64         `json:"key,omitempty"`
	Payload  chain.Element `json:"payload,omitempty"`
	Expect   *chain.Chain  `json:"expect,omitempty"`
	Update   *chain.Chain  `json:"update,omitempty"`
}

func (ServerStoreCodec) Encode(m messages.Message) ([]byte, error) {
	body := serverStoreBody{MsgID: assignedID(m), ClientID: m.ClientID()}
	switch v := m.(type) {
	case *messages.GetMessage:
		body.CacheID, body.Key = v.CacheID, v.Key
	case *messages.AppendMessage:
		body.CacheID, body.Key, body.Payload = v.CacheID, v.Key, v.Payload
	case *messages.GetAndAppendMessage:
		body.CacheID, body.Key, body.Payload = v.CacheID, v.Key, v.Payload
	case *messages.ReplaceAtHeadMessage:
		body.CacheID, body.Key = v.CacheID, v.Key
		body.Expect, body.Update = &v.Expect, &v.Update
	case *messages.ClearMessage:
		body.CacheID = v.CacheID
	default:
		return nil, wrongType("server store", m)
	}
	return frame(m.OpCode(), body)
}

func (ServerStoreCodec) Decode(payload []byte) (messages.Message, error) {
	if err := knownOp(payload,
		messages.OpGet, messages.OpAppend, messages.OpGetAndAppend,
		messages.OpReplaceAtHead, messages.OpClear); err != nil {
		return nil, err
	}
	var body serverStoreBody
	if err := unframe(payload, &body); err != nil {
		return nil, err
	}
	var m messages.Message
	switch messages.OpCode(payload[0]) {
	case messages.OpGet:
		m = messages.NewGetMessage(body.CacheID, body.Key, body.ClientID)
	case messages.OpAppend:
		m = messages.NewAppendMessage(body.CacheID, body.Key, body.Payload, body.ClientID)
	case messages.OpGetAndAppend:
		m = messages.NewGetAndAppendMessage(body.CacheID, body.Key, body.Payload, body.ClientID)
	case messages.OpReplaceAtHead:
		var expect, update chain.Chain
		if body.Expect != nil {
			expect = *body.Expect
		}
		if body.Update != nil {
			update = *body.Update
		}
		m = messages.NewReplaceAtHeadMessage(body.CacheID, body.Key, expect, update, body.ClientID)
	case messages.OpClear:
		m = messages.NewClearMessage(body.CacheID, body.ClientID)
	default:
		return nil, &errs.UnrecognizedOpError{OpCode: payload[0]}
	}
	return restoreID(m, body.MsgID)
}
