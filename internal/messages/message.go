// Package messages defines the closed family of operations that cross the
// client/active and active/passive boundaries.
//
// Every message belongs to exactly one Category and carries a one-byte OpCode
// from that category's reserved range:
//
//	LIFECYCLE_OP    [1,10]
//	SERVER_STORE_OP [11,20]
//	STATE_REPO_OP   [21,30]
//	REPLICATION_OP  [31,40]
//
// The boundaries are part of the wire contract. The set of variants is sealed:
// only types declared here satisfy Message.
package messages

import (
	"fmt"

	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/google/uuid"
)

// Category groups opcodes; its code is the top of its range.
type Category uint8

const (
	CategoryLifecycle   Category = 10
	CategoryServerStore Category = 20
	CategoryStateRepo   Category = 30
	CategoryReplication Category = 40
)

// Categories in wire order.
var Categories = []Category{CategoryLifecycle, CategoryServerStore, CategoryStateRepo, CategoryReplication}

func (c Category) Code() byte { return byte(c) }

// Range returns the inclusive opcode bounds reserved for c.
func (c Category) Range() (lo, hi OpCode) {
	return OpCode(byte(c) - 9), OpCode(c)
}

func (c Category) String() string {
	switch c {
	case CategoryLifecycle:
		return "LIFECYCLE_OP"
	case CategoryServerStore:
		return "SERVER_STORE_OP"
	case CategoryStateRepo:
		return "STATE_REPO_OP"
	case CategoryReplication:
		return "REPLICATION_OP"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// CategoryOf maps an opcode to its category by range lookup.
func CategoryOf(op OpCode) (Category, bool) {
	for _, c := range Categories {
		lo, hi := c.Range()
		if op >= lo && op <= hi {
			return c, true
		}
	}
	return 0, false
}

// OpCode is the first byte of every encoded message.
type OpCode byte

const (
	OpConfigureStoreManager OpCode = 1
	OpValidateStoreManager  OpCode = 2
	OpCreateServerStore     OpCode = 3
	OpValidateServerStore   OpCode = 4
	OpReleaseServerStore    OpCode = 5
	OpDestroyServerStore    OpCode = 6

	OpGet           OpCode = 11
	OpAppend        OpCode = 12
	OpGetAndAppend  OpCode = 13
	OpReplaceAtHead OpCode = 14
	OpClear         OpCode = 15

	OpStateRepoGet         OpCode = 21
	OpStateRepoPutIfAbsent OpCode = 22
	OpStateRepoEntrySet    OpCode = 23

	OpChainReplication OpCode = OpCode(ChainReplicationOp)
	OpClientIDTrack    OpCode = OpCode(ClientIDTrackOp)
	OpClientIDUntrack  OpCode = OpCode(ClientIDUntrackOp)
	OpSyncStart        OpCode = OpCode(SyncStartOp)
	OpSyncEnd          OpCode = OpCode(SyncEndOp)
)

var opNames = map[OpCode]string{
	OpConfigureStoreManager: "ConfigureStoreManager",
	OpValidateStoreManager:  "ValidateStoreManager",
	OpCreateServerStore:     "CreateServerStore",
	OpValidateServerStore:   "ValidateServerStore",
	OpReleaseServerStore:    "ReleaseServerStore",
	OpDestroyServerStore:    "DestroyServerStore",
	OpGet:                   "Get",
	OpAppend:                "Append",
	OpGetAndAppend:          "GetAndAppend",
	OpReplaceAtHead:         "ReplaceAtHead",
	OpClear:                 "Clear",
	OpStateRepoGet:          "StateRepoGet",
	OpStateRepoPutIfAbsent:  "StateRepoPutIfAbsent",
	OpStateRepoEntrySet:     "StateRepoEntrySet",
	OpChainReplication:      "ChainReplication",
	OpClientIDTrack:         "ClientIDTrack",
	OpClientIDUntrack:       "ClientIDUntrack",
	OpSyncStart:             "SyncStart",
	OpSyncEnd:               "SyncEnd",
}

func (o OpCode) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("OpCode(%d)", byte(o))
}

// Message is implemented by every operation record.
type Message interface {
	Category() Category
	OpCode() OpCode
	// ID is the message id: client assigned for client categories,
	// fixed at construction for replication messages.
	ID() int64
	// SetID assigns the id exactly once; replication messages always refuse.
	SetID(id int64) error
	ClientID() uuid.UUID

	sealed()
}

// Concurrent messages are routed to the ordered lane selected by their key.
// Messages that are not Concurrent run with every lane quiesced.
type Concurrent interface {
	Message
	ConcurrencyKey() int32
}

// clientMessage is the shared state of client-originated categories.
type clientMessage struct {
	id       int64
	idSet    bool
	clientID uuid.UUID
}

func (m *clientMessage) ID() int64 { return m.id }

func (m *clientMessage) SetID(id int64) error {
	if m.idSet {
		return fmt.Errorf("set id %d (current %d): %w", id, m.id, errs.ErrIDAlreadySet)
	}
	m.id = id
	m.idSet = true
	return nil
}

// IDAssigned reports whether SetID already ran.
func (m *clientMessage) IDAssigned() bool { return m.idSet }

func (m *clientMessage) ClientID() uuid.UUID { return m.clientID }

func (m *clientMessage) sealed() {}
