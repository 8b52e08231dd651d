package codec

import (
	"fmt"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/google/uuid"
)

// ReplicationCodec handles opcodes [31,40]. The opcode byte is the
// ReplicationOp tag; bytes outside the closed set fail, they never map to a
// default operation.
type ReplicationCodec struct{}

type replicationBody struct {
	MsgID    int64        `json:"msgId"`
	ClientID uuid.UUID    `json:"clientId"`
	CacheID  string       `json:"cacheId,omitempty"`
	Key      int64        `json:"key,omitempty"`
	Chain    *chain.Chain `json:"chain,omitempty"`
	Seq      uint64       `json:"seq,omitempty"`
	Conn     string       `json:"conn,omitempty"`
}

func (ReplicationCodec) Encode(m messages.Message) ([]byte, error) {
	body := replicationBody{MsgID: m.ID(), ClientID: m.ClientID()}
	switch v := m.(type) {
	case *messages.ChainReplicationMessage:
		body.CacheID, body.Key, body.Chain = v.CacheID, v.Key, &v.Chain
	case *messages.SyncEndMessage:
		body.Seq = v.Seq
	case *messages.ClientIDTrackerMessage:
		body.Conn = v.Conn()
	case *messages.ClientIDUntrackMessage, *messages.SyncStartMessage:
	default:
		return nil, wrongType("replication", m)
	}
	return frame(m.OpCode(), body)
}

func (ReplicationCodec) Decode(payload []byte) (messages.Message, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("decode replication: empty payload: %w", errs.ErrMalformedPayload)
	}
	op, err := messages.ParseReplicationOp(payload[0])
	if err != nil {
		return nil, err
	}
	var body replicationBody
	if err := unframe(payload, &body); err != nil {
		return nil, err
	}
	switch op {
	case messages.ChainReplicationOp:
		var c chain.Chain
		if body.Chain != nil {
			c = *body.Chain
		}
		return messages.NewChainReplicationMessage(body.CacheID, body.Key, c, body.MsgID, body.ClientID), nil
	case messages.ClientIDTrackOp:
		return messages.NewClientIDTrackerMessage(body.MsgID, body.ClientID).WithConn(body.Conn), nil
	case messages.ClientIDUntrackOp:
		return messages.NewClientIDUntrackMessage(body.MsgID, body.ClientID), nil
	case messages.SyncStartOp:
		return messages.NewSyncStartMessage(body.MsgID), nil
	default: // SyncEndOp
		return messages.NewSyncEndMessage(body.MsgID, body.Seq), nil
	}
}
