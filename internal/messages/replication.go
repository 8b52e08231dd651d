package messages

import (
	"fmt"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/google/uuid"
)

// ReplicationOp tags the replication sub-operation. It is a closed set; each
// value is also the opcode byte on the wire.
type ReplicationOp byte

const (
	ChainReplicationOp ReplicationOp = 31
	ClientIDTrackOp    ReplicationOp = 32
	ClientIDUntrackOp  ReplicationOp = 33
	SyncStartOp        ReplicationOp = 34
	SyncEndOp          ReplicationOp = 35
)

// ParseReplicationOp fails for any byte outside the closed set.
func ParseReplicationOp(b byte) (ReplicationOp, error) {
	switch op := ReplicationOp(b); op {
	case ChainReplicationOp, ClientIDTrackOp, ClientIDUntrackOp, SyncStartOp, SyncEndOp:
		return op, nil
	default:
		return 0, fmt.Errorf("replication operation not defined for %d: %w", b, &errs.UnrecognizedOpError{OpCode: b})
	}
}

func (op ReplicationOp) String() string { return OpCode(op).String() }

// ClientIDTrackerMessage is sent by the active to its passives only. Its id is
// assigned by the server at construction and can never be reassigned.
type ClientIDTrackerMessage struct {
	msgID    int64
	clientID uuid.UUID
	conn     string
}

func NewClientIDTrackerMessage(msgID int64, clientID uuid.UUID) *ClientIDTrackerMessage {
	return &ClientIDTrackerMessage{msgID: msgID, clientID: clientID}
}

// WithConn fija el descriptor de la conexión que trackeó al cliente.
func (m *ClientIDTrackerMessage) WithConn(conn string) *ClientIDTrackerMessage {
	m.conn = conn
	return m
}

func (m *ClientIDTrackerMessage) Conn() string { return m.conn }

func (*ClientIDTrackerMessage) Category() Category { return CategoryReplication }

func (*ClientIDTrackerMessage) Operation() ReplicationOp { return ClientIDTrackOp }

func (m *ClientIDTrackerMessage) OpCode() OpCode { return OpCode(m.Operation()) }

func (m *ClientIDTrackerMessage) ID() int64 { return m.msgID }

func (*ClientIDTrackerMessage) SetID(int64) error { return errs.ErrUnsupported }

func (m *ClientIDTrackerMessage) ClientID() uuid.UUID { return m.clientID }

func (*ClientIDTrackerMessage) sealed() {}

// ClientIDUntrackMessage replicates a detach or connection loss.
type ClientIDUntrackMessage struct {
	ClientIDTrackerMessage
}

func NewClientIDUntrackMessage(msgID int64, clientID uuid.UUID) *ClientIDUntrackMessage {
	return &ClientIDUntrackMessage{ClientIDTrackerMessage{msgID: msgID, clientID: clientID}}
}

func (*ClientIDUntrackMessage) Operation() ReplicationOp { return ClientIDUntrackOp }

func (m *ClientIDUntrackMessage) OpCode() OpCode { return OpCode(m.Operation()) }

// ChainReplicationMessage carries the chain of one key as it stands on the
// active after a mutation.
type ChainReplicationMessage struct {
	ClientIDTrackerMessage
	CacheID string
	Key     int64
	Chain   chain.Chain
}

func NewChainReplicationMessage(cacheID string, key int64, c chain.Chain, msgID int64, clientID uuid.UUID) *ChainReplicationMessage {
	return &ChainReplicationMessage{
		ClientIDTrackerMessage: ClientIDTrackerMessage{msgID: msgID, clientID: clientID},
		CacheID:                cacheID,
		Key:                    key,
		Chain:                  c,
	}
}

func (*ChainReplicationMessage) Operation() ReplicationOp { return ChainReplicationOp }

func (m *ChainReplicationMessage) OpCode() OpCode { return OpCode(m.Operation()) }

func (m *ChainReplicationMessage) ConcurrencyKey() int32 { return ConcurrencyKeyFor(m.CacheID, m.Key) }

// SyncStartMessage tells a joining passive to drop whatever it holds.
type SyncStartMessage struct {
	ClientIDTrackerMessage
}

func NewSyncStartMessage(msgID int64) *SyncStartMessage {
	return &SyncStartMessage{ClientIDTrackerMessage{msgID: msgID}}
}

func (*SyncStartMessage) Operation() ReplicationOp { return SyncStartOp }

func (m *SyncStartMessage) OpCode() OpCode { return OpCode(m.Operation()) }

// SyncEndMessage closes a full sync; Seq is the journal position the synced
// state corresponds to.
type SyncEndMessage struct {
	ClientIDTrackerMessage
	Seq uint64
}

func NewSyncEndMessage(msgID int64, seq uint64) *SyncEndMessage {
	return &SyncEndMessage{ClientIDTrackerMessage: ClientIDTrackerMessage{msgID: msgID}, Seq: seq}
}

func (*SyncEndMessage) Operation() ReplicationOp { return SyncEndOp }

func (m *SyncEndMessage) OpCode() OpCode { return OpCode(m.Operation()) }
