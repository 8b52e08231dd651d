package codec_test

import (
	"errors"
	"testing"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/codec"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/messages"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var clientID = uuid.New()

type mockSubCodec struct{ mock.Mock }

func (m *mockSubCodec) Encode(msg messages.Message) ([]byte, error) {
	args := m.Called(msg)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *mockSubCodec) Decode(payload []byte) (messages.Message, error) {
	args := m.Called(payload)
	msg, _ := args.Get(0).(messages.Message)
	return msg, args.Error(1)
}

type mocks struct {
	lifecycle, serverStore, stateRepo, replication *mockSubCodec
}

func newMocked(t *testing.T) (*codec.Codec, mocks) {
	t.Helper()
	ms := mocks{&mockSubCodec{}, &mockSubCodec{}, &mockSubCodec{}, &mockSubCodec{}}
	for _, m := range []*mockSubCodec{ms.lifecycle, ms.serverStore, ms.stateRepo, ms.replication} {
		m.On("Encode", mock.Anything).Return([]byte{0}, nil)
		m.On("Decode", mock.Anything).Return(nil, nil)
	}
	return codec.New(ms.lifecycle, ms.serverStore, ms.stateRepo, ms.replication), ms
}

func TestCodec_EncodeRoutesByCategory(t *testing.T) {
	c, ms := newMocked(t)

	_, err := c.Encode(messages.NewDestroyServerStore("foo", clientID))
	require.NoError(t, err)
	ms.lifecycle.AssertNumberOfCalls(t, "Encode", 1)
	ms.serverStore.AssertNotCalled(t, "Encode", mock.Anything)
	ms.stateRepo.AssertNotCalled(t, "Encode", mock.Anything)
	ms.replication.AssertNotCalled(t, "Encode", mock.Anything)

	_, err = c.Encode(messages.NewClearMessage("foo", clientID))
	require.NoError(t, err)
	ms.lifecycle.AssertNumberOfCalls(t, "Encode", 1)
	ms.serverStore.AssertNumberOfCalls(t, "Encode", 1)
	ms.stateRepo.AssertNotCalled(t, "Encode", mock.Anything)

	_, err = c.Encode(messages.NewEntrySetMessage("foo", "bar", clientID))
	require.NoError(t, err)
	ms.stateRepo.AssertNumberOfCalls(t, "Encode", 1)
	ms.replication.AssertNotCalled(t, "Encode", mock.Anything)

	_, err = c.Encode(messages.NewClientIDTrackerMessage(20, clientID))
	require.NoError(t, err)
	ms.lifecycle.AssertNumberOfCalls(t, "Encode", 1)
	ms.serverStore.AssertNumberOfCalls(t, "Encode", 1)
	ms.stateRepo.AssertNumberOfCalls(t, "Encode", 1)
	ms.replication.AssertNumberOfCalls(t, "Encode", 1)
}

func TestCodec_DecodeRoutesByOpcodeRange(t *testing.T) {
	c, ms := newMocked(t)
	order := []*mockSubCodec{ms.lifecycle, ms.serverStore, ms.stateRepo, ms.replication}

	for i, cat := range messages.Categories {
		lo, hi := cat.Range()
		for op := lo; op <= hi; op++ {
			_, err := c.Decode([]byte{byte(op)})
			require.NoError(t, err)
		}
		for j, m := range order {
			switch {
			case j <= i:
				m.AssertNumberOfCalls(t, "Decode", 10)
			default:
				m.AssertNotCalled(t, "Decode", mock.Anything)
			}
		}
	}
}

func TestCodec_DecodeRejectsOutOfRange(t *testing.T) {
	c, ms := newMocked(t)
	for _, b := range []byte{0, 41, 42, 127, 255} {
		_, err := c.Decode([]byte{b, '{', '}'})
		var unrec *errs.UnrecognizedOpError
		require.True(t, errors.As(err, &unrec), "opcode %d", b)
		assert.Equal(t, b, unrec.OpCode)
	}
	for _, m := range []*mockSubCodec{ms.lifecycle, ms.serverStore, ms.stateRepo, ms.replication} {
		m.AssertNotCalled(t, "Decode", mock.Anything)
	}

	_, err := c.Decode(nil)
	assert.True(t, errors.Is(err, errs.ErrMalformedPayload))
}

// bogus reports a category outside the four known ones.
type bogus struct{ *messages.ClearMessage }

func (bogus) Category() messages.Category { return 99 }

func TestCodec_EncodeUnknownCategoryFails(t *testing.T) {
	c, ms := newMocked(t)
	_, err := c.Encode(bogus{messages.NewClearMessage("foo", clientID)})
	assert.True(t, errors.Is(err, errs.ErrUnknownCategory))
	ms.serverStore.AssertNotCalled(t, "Encode", mock.Anything)
}

func TestCodec_RoundTripEveryOpcode(t *testing.T) {
	c := codec.Default()
	storeCfg := tier.ServerStoreConfiguration{
		PoolAllocation:  tier.PoolAllocation{Kind: tier.PoolShared, ResourceName: "primary"},
		StoredKeyType:   "int64",
		StoredValueType: "string",
		Consistency:     tier.Eventual,
	}
	serverCfg := tier.ServerSideConfiguration{DefaultServerResource: "test", ResourcePools: map[string]tier.Pool{"foo": {Size: 8}}}
	ch := chain.FromElements(chain.Element("a"), chain.Element("b"))

	msgs := []messages.Message{
		messages.NewConfigureStoreManager(serverCfg, clientID),
		messages.NewValidateStoreManager(serverCfg, clientID),
		messages.NewCreateServerStore("foo", storeCfg, clientID),
		messages.NewValidateServerStore("foo", storeCfg, clientID),
		messages.NewReleaseServerStore("foo", clientID),
		messages.NewDestroyServerStore("foo", clientID),
		messages.NewGetMessage("foo", 7, clientID),
		messages.NewAppendMessage("foo", 7, chain.Element("x"), clientID),
		messages.NewGetAndAppendMessage("foo", 7, chain.Element("x"), clientID),
		messages.NewReplaceAtHeadMessage("foo", 7, ch, chain.FromElements(chain.Element("ab")), clientID),
		messages.NewClearMessage("foo", clientID),
		messages.NewStateRepoGetMessage("foo", "bar", []byte("k"), clientID),
		messages.NewPutIfAbsentMessage("foo", "bar", []byte("k"), []byte("v"), clientID),
		messages.NewEntrySetMessage("foo", "bar", clientID),
		messages.NewClientIDTrackerMessage(20, clientID),
		messages.NewClientIDUntrackMessage(21, clientID),
		messages.NewChainReplicationMessage("foo", 7, ch, 22, clientID),
		messages.NewSyncStartMessage(23),
		messages.NewSyncEndMessage(24, 99),
	}

	for i, m := range msgs {
		if m.Category() != messages.CategoryReplication {
			require.NoError(t, m.SetID(int64(100+i)))
		}
		b, err := c.Encode(m)
		require.NoError(t, err, "%T", m)
		assert.Equal(t, byte(m.OpCode()), b[0])

		back, err := c.Decode(b)
		require.NoError(t, err, "%T", m)
		assert.IsType(t, m, back)
		assert.Equal(t, m.OpCode(), back.OpCode())
		assert.Equal(t, m.Category(), back.Category())
		assert.Equal(t, m.ID(), back.ID())
		assert.Equal(t, m.ClientID(), back.ClientID())
	}
}

func TestCodec_RoundTripPreservesPayloads(t *testing.T) {
	c := codec.Default()
	ch := chain.FromElements(chain.Element("a"), chain.Element{0, 1, 2})

	b, err := c.Encode(messages.NewChainReplicationMessage("foo", 5, ch, 3, clientID))
	require.NoError(t, err)
	back, err := c.Decode(b)
	require.NoError(t, err)
	crm := back.(*messages.ChainReplicationMessage)
	assert.Equal(t, "foo", crm.CacheID)
	assert.Equal(t, int64(5), crm.Key)
	assert.True(t, ch.Equal(crm.Chain))

	create := messages.NewCreateServerStore("foo", tier.ServerStoreConfiguration{Consistency: tier.Strong, StoredKeyType: "k"}, clientID)
	b, err = c.Encode(create)
	require.NoError(t, err)
	back, err = c.Decode(b)
	require.NoError(t, err)
	cs := back.(*messages.CreateServerStore)
	assert.Equal(t, create.Config, cs.Config)
	assert.Equal(t, "foo", cs.Name)

	// unassigned ids stay unassigned across the wire
	b, err = c.Encode(messages.NewGetMessage("foo", 1, clientID))
	require.NoError(t, err)
	back, err = c.Decode(b)
	require.NoError(t, err)
	require.NoError(t, back.SetID(9))
}

func TestCodec_MalformedBodies(t *testing.T) {
	c := codec.Default()
	for _, payload := range [][]byte{
		{byte(messages.OpCreateServerStore)},
		{byte(messages.OpAppend), '{'},
		{byte(messages.OpChainReplication), 'x'},
	} {
		_, err := c.Decode(payload)
		assert.True(t, errors.Is(err, errs.ErrMalformedPayload), "payload %v", payload)
	}

	// in-range opcodes that no variant owns
	for _, op := range []byte{7, 10, 16, 24, 36, 40} {
		_, err := c.Decode([]byte{op, '{', '}'})
		var unrec *errs.UnrecognizedOpError
		assert.True(t, errors.As(err, &unrec), "opcode %d", op)
	}
}

func TestCodec_UnknownOpWithoutBody(t *testing.T) {
	c := codec.Default()
	for _, op := range []byte{7, 10, 16, 20, 24, 30, 36} {
		_, err := c.Decode([]byte{op})
		var unrec *errs.UnrecognizedOpError
		require.True(t, errors.As(err, &unrec), "opcode %d", op)
		assert.Equal(t, op, unrec.OpCode)
		assert.False(t, errors.Is(err, errs.ErrMalformedPayload), "opcode %d", op)
	}
}

func TestCodec_TrackerCarriesConnection(t *testing.T) {
	c := codec.Default()
	id := uuid.New()
	b, err := c.Encode(messages.NewClientIDTrackerMessage(12, id).WithConn("conn-3"))
	require.NoError(t, err)

	back, err := c.Decode(b)
	require.NoError(t, err)
	tm, ok := back.(*messages.ClientIDTrackerMessage)
	require.True(t, ok)
	assert.Equal(t, "conn-3", tm.Conn())
	assert.Equal(t, int64(12), tm.ID())
	assert.Equal(t, id, tm.ClientID())
}
