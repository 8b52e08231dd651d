package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/dropDatabas3/clustertier/internal/tier"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func el(s string) chain.Element { return chain.Element(s) }

func chainOf(ss ...string) chain.Chain {
	elems := make([]chain.Element, len(ss))
	for i, s := range ss {
		elems[i] = el(s)
	}
	return chain.FromElements(elems...)
}

// backends devuelve memory siempre y redis si CLUSTERTIER_TEST_REDIS_ADDR está seteado.
func backends(t *testing.T) map[string]ChainBackend {
	t.Helper()
	out := map[string]ChainBackend{"memory": NewMemory()}
	if addr := os.Getenv("CLUSTERTIER_TEST_REDIS_ADDR"); addr != "" {
		b, err := NewRedis(context.Background(), BackendConfig{RedisAddr: addr, Prefix: "test-" + uuid.NewString()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		out["redis"] = b
	}
	return out
}

func TestBackend_Conformance(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, err := b.Load(ctx, "foo", 1)
			require.NoError(t, err)
			assert.True(t, c.IsEmpty())

			require.NoError(t, b.Append(ctx, "foo", 1, el("a")))
			require.NoError(t, b.Append(ctx, "foo", 1, el("b")))
			require.NoError(t, b.Append(ctx, "foo", 2, el("x")))
			require.NoError(t, b.Append(ctx, "bar", 1, el("z")))

			c, err = b.Load(ctx, "foo", 1)
			require.NoError(t, err)
			assert.True(t, chainOf("a", "b").Equal(c))

			keys, err := b.Keys(ctx, "foo")
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2}, keys)

			require.NoError(t, b.Put(ctx, "foo", 2, chainOf("p", "q")))
			c, _ = b.Load(ctx, "foo", 2)
			assert.True(t, chainOf("p", "q").Equal(c))

			require.NoError(t, b.Put(ctx, "foo", 2, chain.Empty()))
			keys, _ = b.Keys(ctx, "foo")
			assert.Equal(t, []int64{1}, keys)

			require.NoError(t, b.Drop(ctx, "foo"))
			keys, _ = b.Keys(ctx, "foo")
			assert.Empty(t, keys)
			c, _ = b.Load(ctx, "bar", 1)
			assert.True(t, chainOf("z").Equal(c))
		})
	}
}

func TestMemory_ConcurrentAppendsSameKey(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Append(ctx, "foo", 1, el(fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()
	c, _ := b.Load(ctx, "foo", 1)
	assert.Equal(t, 64, c.Len())
}

func newStore(t *testing.T) *ServerStore {
	t.Helper()
	m := NewManager(NewMemory())
	s, err := m.Create("foo", tier.ServerStoreConfiguration{Consistency: tier.Strong})
	require.NoError(t, err)
	return s
}

func TestServerStore_GetAndAppendReturnsPrevious(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	prev, err := s.GetAndAppend(ctx, 5, el("a"))
	require.NoError(t, err)
	assert.True(t, prev.IsEmpty())

	prev, err = s.GetAndAppend(ctx, 5, el("b"))
	require.NoError(t, err)
	assert.True(t, chainOf("a").Equal(prev))

	cur, _ := s.Get(ctx, 5)
	assert.True(t, chainOf("a", "b").Equal(cur))
}

func TestServerStore_ReplaceAtHeadKeepsSuffix(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, e := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Append(ctx, 1, el(e)))
	}

	ok, err := s.ReplaceAtHead(ctx, 1, chainOf("a", "b"), chainOf("ab"))
	require.NoError(t, err)
	require.True(t, ok)
	cur, _ := s.Get(ctx, 1)
	assert.True(t, chainOf("ab", "c", "d").Equal(cur))

	// expect que ya no es prefijo
	ok, err = s.ReplaceAtHead(ctx, 1, chainOf("a", "b"), chainOf("zz"))
	require.NoError(t, err)
	assert.False(t, ok)
	cur, _ = s.Get(ctx, 1)
	assert.True(t, chainOf("ab", "c", "d").Equal(cur))

	ok, _ = s.ReplaceAtHead(ctx, 1, chain.Empty(), chainOf("x"))
	assert.False(t, ok)
}

func TestServerStore_ClearOnlyOwnCache(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemory())
	foo, _ := m.Create("foo", tier.ServerStoreConfiguration{})
	bar, _ := m.Create("bar", tier.ServerStoreConfiguration{})
	require.NoError(t, foo.Append(ctx, 1, el("a")))
	require.NoError(t, bar.Append(ctx, 1, el("b")))

	require.NoError(t, foo.Clear(ctx))
	keys, _ := foo.Keys(ctx)
	assert.Empty(t, keys)
	c, _ := bar.Get(ctx, 1)
	assert.Equal(t, 1, c.Len())
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemory())

	_, err := m.Create("foo", tier.ServerStoreConfiguration{})
	require.NoError(t, err)
	_, err = m.Create("foo", tier.ServerStoreConfiguration{})
	var le *errs.LifecycleError
	assert.True(t, errors.As(err, &le))

	_, err = m.Get("nope")
	var ise *errs.InvalidStoreError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "nope", ise.Name)

	_, _ = m.Create("bar", tier.ServerStoreConfiguration{})
	assert.Equal(t, []string{"bar", "foo"}, m.Names())

	require.NoError(t, m.Destroy(ctx, "foo"))
	assert.Equal(t, []string{"bar"}, m.Names())
	assert.True(t, errors.As(m.Destroy(ctx, "foo"), &ise))
}

func TestManager_Attachments(t *testing.T) {
	m := NewManager(NewMemory())
	_, _ = m.Create("foo", tier.ServerStoreConfiguration{})
	_, _ = m.Create("bar", tier.ServerStoreConfiguration{})
	a, b := uuid.New(), uuid.New()

	require.NoError(t, m.Attach("foo", a))
	require.NoError(t, m.Attach("foo", b))
	require.NoError(t, m.Attach("bar", a))
	ids, err := m.Attached("foo")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, m.Detach("foo", b))
	var le *errs.LifecycleError
	assert.True(t, errors.As(m.Detach("foo", b), &le))

	m.DetachAll(a)
	ids, _ = m.Attached("foo")
	assert.Empty(t, ids)
	ids, _ = m.Attached("bar")
	assert.Empty(t, ids)

	var ise *errs.InvalidStoreError
	assert.True(t, errors.As(m.Attach("nope", a), &ise))
}

func TestManager_Reset(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemory())
	s, _ := m.Create("foo", tier.ServerStoreConfiguration{})
	require.NoError(t, s.Append(ctx, 1, el("a")))

	require.NoError(t, m.Reset(ctx))
	assert.Empty(t, m.Names())
	s, _ = m.Create("foo", tier.ServerStoreConfiguration{})
	c, _ := s.Get(ctx, 1)
	assert.True(t, c.IsEmpty())
}

func TestNewBackend_UnknownDriver(t *testing.T) {
	_, err := NewBackend(context.Background(), BackendConfig{Driver: "etcd"})
	assert.Error(t, err)
	b, err := NewBackend(context.Background(), BackendConfig{})
	require.NoError(t, err)
	assert.NoError(t, b.Ping(context.Background()))
}
