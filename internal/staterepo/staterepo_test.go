package staterepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutIfAbsent_KeepsFirstValue(t *testing.T) {
	r := New()
	prev, existed := r.PutIfAbsent("foo", "m", []byte("k"), []byte("v1"))
	assert.False(t, existed)
	assert.Nil(t, prev)

	prev, existed = r.PutIfAbsent("foo", "m", []byte("k"), []byte("v2"))
	assert.True(t, existed)
	assert.Equal(t, []byte("v1"), prev)

	v, ok := r.Get("foo", "m", []byte("k"))
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestMapsAreScoped(t *testing.T) {
	r := New()
	r.PutIfAbsent("foo", "m", []byte("k"), []byte("a"))
	r.PutIfAbsent("foo", "n", []byte("k"), []byte("b"))
	r.PutIfAbsent("bar", "m", []byte("k"), []byte("c"))

	v, _ := r.Get("foo", "n", []byte("k"))
	assert.Equal(t, []byte("b"), v)
	_, ok := r.Get("baz", "m", []byte("k"))
	assert.False(t, ok)

	r.DropCache("foo")
	_, ok = r.Get("foo", "m", []byte("k"))
	assert.False(t, ok)
	assert.Len(t, r.Snapshot(), 1)
}

func TestEntrySet_SortedCopies(t *testing.T) {
	r := New()
	r.PutIfAbsent("foo", "m", []byte("b"), []byte("2"))
	r.PutIfAbsent("foo", "m", []byte("a"), []byte("1"))

	es := r.EntrySet("foo", "m")
	require.Len(t, es, 2)
	assert.Equal(t, []byte("a"), es[0].Key)
	assert.Equal(t, []byte("2"), es[1].Value)

	es[0].Value[0] = 'x'
	v, _ := r.Get("foo", "m", []byte("a"))
	assert.Equal(t, []byte("1"), v)

	assert.Empty(t, r.EntrySet("foo", "none"))
	r.Reset()
	assert.Empty(t, r.Snapshot())
}
