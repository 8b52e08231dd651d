package stripe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/client"
	"github.com/dropDatabas3/clustertier/internal/entity"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/replication"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serverCfg() tier.ServerSideConfiguration {
	return tier.ServerSideConfiguration{
		DefaultServerResource: "primary-server-resource",
		ResourcePools: map[string]tier.Pool{
			"resource-pool-a": {Size: 28 << 20, ServerResource: "secondary-server-resource"},
			"resource-pool-b": {Size: 32 << 20},
		},
	}
}

func cacheCfg(c tier.Consistency) tier.ServerStoreConfiguration {
	return tier.ServerStoreConfiguration{
		PoolAllocation:  tier.PoolAllocation{Kind: tier.PoolShared, ResourceName: "resource-pool-a"},
		StoredKeyType:   "java.lang.Long",
		StoredValueType: "java.lang.String",
		Consistency:     c,
	}
}

func newStripe(t *testing.T, passives int) *Stripe {
	t.Helper()
	s, err := New(context.Background(), Options{
		Passives: passives,
		Server:   entity.Options{AckTimeout: time.Second},
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func el(s string) chain.Element { return chain.Element(s) }

func passiveChain(t *testing.T, p *entity.Passive, cache string, key int64) chain.Chain {
	t.Helper()
	st, err := p.Stores().Get(cache)
	require.NoError(t, err)
	c, err := st.Get(context.Background(), key)
	require.NoError(t, err)
	return c
}

func TestStripe_StrongAppendReachesEveryPassive(t *testing.T) {
	s := newStripe(t, 2)
	ctx := context.Background()
	c := s.Connect(uuid.New())

	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.NoError(t, c.CreateCache(ctx, "test", cacheCfg(tier.Strong)))
	require.NoError(t, c.Append(ctx, "test", 1, el("v1")))
	require.NoError(t, c.Append(ctx, "test", 1, el("v2")))

	want := chain.FromElements(el("v1"), el("v2"))
	for _, p := range s.Passives() {
		assert.True(t, passiveChain(t, p, "test", 1).Equal(want), p.ID())
	}
}

func TestStripe_EventualAppendEventuallyReachesPassive(t *testing.T) {
	s := newStripe(t, 1)
	ctx := context.Background()
	c := s.Connect(uuid.New())

	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.NoError(t, c.CreateCache(ctx, "test", cacheCfg(tier.Eventual)))
	require.NoError(t, c.Append(ctx, "test", 9, el("x")))

	p := s.Passives()[0]
	assert.Eventually(t, func() bool {
		return passiveChain(t, p, "test", 9).Equal(chain.FromElements(el("x")))
	}, time.Second, 10*time.Millisecond)
}

func TestStripe_PassiveRestartResyncs(t *testing.T) {
	s := newStripe(t, 1)
	ctx := context.Background()
	c := s.Connect(uuid.New())

	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.NoError(t, c.CreateCache(ctx, "test", cacheCfg(tier.Strong)))
	require.NoError(t, c.Append(ctx, "test", 1, el("a")))

	require.NoError(t, s.TerminateOnePassive())
	require.NoError(t, c.Append(ctx, "test", 2, el("b")))
	_, _, err := c.StateRepoPutIfAbsent(ctx, "test", "m", []byte("k"), []byte("v"))
	require.NoError(t, err)

	require.NoError(t, s.StartOneServer(ctx))
	p := s.Passives()[0]
	assert.True(t, passiveChain(t, p, "test", 1).Equal(chain.FromElements(el("a"))))
	assert.True(t, passiveChain(t, p, "test", 2).Equal(chain.FromElements(el("b"))))

	require.NoError(t, s.TerminateActive(ctx))
	got, err := c.Get(ctx, "test", 2)
	require.NoError(t, err)
	assert.True(t, got.Equal(chain.FromElements(el("b"))))

	v, found, err := c.StateRepoGet(ctx, "test", "m", []byte("k"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), v)
}

func TestStripe_ValidateAfterFailoverFailsWhenTrackingWasSynced(t *testing.T) {
	s := newStripe(t, 1)
	ctx := context.Background()
	c := s.Connect(uuid.New())

	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.NoError(t, s.TerminateActive(ctx))

	err := c.Validate(ctx, serverCfg())
	var ve *client.ClusteredTierManagerValidationError
	require.ErrorAs(t, err, &ve)
	var le *errs.LifecycleError
	require.ErrorAs(t, ve.Cause, &le)
	assert.Contains(t, le.Msg, "is already being tracked with Client Id")
}

func TestStripe_ValidateAfterFailoverSucceedsWhenTrackingWasLost(t *testing.T) {
	s := newStripe(t, 1)
	ctx := context.Background()
	owner := s.Connect(uuid.New())
	require.NoError(t, owner.Configure(ctx, serverCfg()))

	require.NoError(t, s.PartitionPassive(0))
	late := s.Connect(uuid.New())
	require.NoError(t, late.Validate(ctx, serverCfg()))
	// el passive no confirmó: el active lo descartó
	assert.Empty(t, s.Active().Passives())

	require.NoError(t, s.Heal(0))
	require.NoError(t, s.TerminateActive(ctx))

	assert.NoError(t, late.Validate(ctx, serverCfg()))
}

func TestStripe_ValidateCacheAfterFailover(t *testing.T) {
	s := newStripe(t, 1)
	ctx := context.Background()
	c := s.Connect(uuid.New())

	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.NoError(t, c.CreateCache(ctx, "test", cacheCfg(tier.Strong)))
	require.NoError(t, c.Append(ctx, "test", 1, el("a")))

	require.NoError(t, s.TerminateActive(ctx))

	require.NoError(t, c.ValidateCache(ctx, "test", cacheCfg(tier.Strong)))
	got, err := c.Get(ctx, "test", 1)
	require.NoError(t, err)
	assert.True(t, got.Equal(chain.FromElements(el("a"))))

	err = c.ValidateCache(ctx, "test", cacheCfg(tier.Eventual))
	var sce *errs.InvalidServerStoreConfigurationError
	assert.ErrorAs(t, err, &sce)
}

func TestStripe_RejoinCatchesUpFromJournal(t *testing.T) {
	s := newStripe(t, 1)
	ctx := context.Background()
	c := s.Connect(uuid.New())

	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.NoError(t, c.CreateCache(ctx, "test", cacheCfg(tier.Strong)))

	require.NoError(t, s.PartitionPassive(0))
	require.NoError(t, c.Append(ctx, "test", 1, el("missed")))
	require.NoError(t, s.Heal(0))

	p := s.Passives()[0]
	before := p.LastApplied()
	require.NoError(t, s.Rejoin(ctx, 0))

	after := p.LastApplied()
	assert.Equal(t, before.Epoch, after.Epoch)
	assert.Equal(t, s.Active().LastSeq(), after.Seq)
	assert.True(t, passiveChain(t, p, "test", 1).Equal(chain.FromElements(el("missed"))))
}

func TestStripe_CloseDisconnectsClient(t *testing.T) {
	s := newStripe(t, 1)
	ctx := context.Background()
	id := uuid.New()
	c := s.Connect(id)
	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.True(t, s.Passives()[0].IsTracked(id))

	require.NoError(t, c.Close())
	assert.False(t, s.Active().Tracker().IsTracked(id))
	assert.False(t, s.Passives()[0].IsTracked(id))
}

func TestStripe_CloseAfterFailoverUntracksClient(t *testing.T) {
	s := newStripe(t, 1)
	ctx := context.Background()
	id := uuid.New()
	c := s.Connect(id)
	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.NoError(t, c.CreateCache(ctx, "test", cacheCfg(tier.Strong)))

	require.NoError(t, s.TerminateActive(ctx))
	require.True(t, s.Active().Tracker().IsTracked(id))

	require.NoError(t, c.Close())
	assert.False(t, s.Active().Tracker().IsTracked(id))

	// el mismo id puede volver a adjuntarse
	again := s.Connect(id)
	assert.NoError(t, again.Validate(ctx, serverCfg()))
}

func TestStripe_RejoinFromBoltJournalKeepsChainsInOrder(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, Options{
		Passives: 1,
		Server: entity.Options{
			AckTimeout: time.Second,
			Journal:    replication.JournalConfig{Driver: "bolt", Dir: t.TempDir()},
		},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	c := s.Connect(uuid.New())
	require.NoError(t, c.Configure(ctx, serverCfg()))
	require.NoError(t, c.CreateCache(ctx, "test", cacheCfg(tier.Strong)))

	require.NoError(t, s.PartitionPassive(0))
	for k := int64(1); k <= 3; k++ {
		require.NoError(t, c.Append(ctx, "test", k, el(fmt.Sprintf("v%d", k))))
	}
	require.NoError(t, s.Heal(0))
	require.NoError(t, s.Rejoin(ctx, 0))

	p := s.Passives()[0]
	for k := int64(1); k <= 3; k++ {
		assert.True(t, passiveChain(t, p, "test", k).Equal(chain.FromElements(el(fmt.Sprintf("v%d", k)))), "key %d", k)
	}
}

func TestStripe_TopologyErrors(t *testing.T) {
	s := newStripe(t, 0)
	assert.ErrorIs(t, s.TerminateOnePassive(), ErrNoPassive)
	assert.ErrorIs(t, s.TerminateActive(context.Background()), ErrNoPassive)
	assert.ErrorIs(t, s.PartitionPassive(3), ErrNoPassive)
}
