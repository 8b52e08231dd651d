package tracker

import (
	"errors"
	"sync"
	"testing"

	"github.com/dropDatabas3/clustertier/internal/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_DuplicateFails(t *testing.T) {
	tr := New()
	id := uuid.New()

	ok, err := tr.Track(id, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tr.Track(id, 2)
	require.False(t, ok)
	var le *errs.LifecycleError
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.Error(), "is already being tracked with Client Id")

	a, found := tr.Get(id)
	require.True(t, found)
	assert.Equal(t, int64(1), a.LastMsgID)
	assert.Equal(t, 1, tr.Len())
}

func TestMirror_Idempotent(t *testing.T) {
	tr := New()
	id := uuid.New()
	tr.Mirror(id, 4)
	tr.Mirror(id, 4)
	assert.True(t, tr.IsTracked(id))
	assert.Equal(t, 1, tr.Len())

	_, err := tr.Track(id, 3)
	assert.Error(t, err)
}

func TestMirror_KeepsHighestMsgID(t *testing.T) {
	tr := New()
	id := uuid.New()
	tr.Mirror(id, 7)
	a, ok := tr.Get(id)
	require.True(t, ok)
	assert.Equal(t, int64(7), a.LastMsgID)

	tr.Mirror(id, 3)
	a, _ = tr.Get(id)
	assert.Equal(t, int64(7), a.LastMsgID)

	tr.Mirror(id, 9)
	a, _ = tr.Get(id)
	assert.Equal(t, int64(9), a.LastMsgID)
}

func TestObserve_ConcurrentNeverLowers(t *testing.T) {
	tr := New()
	id := uuid.New()
	_, err := tr.Track(id, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := int64(1); i <= 200; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			tr.Observe(id, n)
		}(i)
	}
	wg.Wait()
	a, _ := tr.Get(id)
	assert.Equal(t, int64(200), a.LastMsgID)
}

func TestUntrack_UnknownIsNoop(t *testing.T) {
	tr := New()
	known := uuid.New()
	_, err := tr.Track(known, 0)
	require.NoError(t, err)

	tr.Untrack(uuid.New())
	assert.Equal(t, 1, tr.Len())

	tr.Untrack(known)
	assert.False(t, tr.IsTracked(known))
	_, err = tr.Track(known, 0)
	assert.NoError(t, err)
}

func TestObserve_Monotonic(t *testing.T) {
	tr := New()
	id := uuid.New()
	tr.Observe(id, 5)
	assert.False(t, tr.IsTracked(id))

	_, err := tr.Track(id, 1)
	require.NoError(t, err)
	tr.Observe(id, 5)
	tr.Observe(id, 3)
	a, _ := tr.Get(id)
	assert.Equal(t, int64(5), a.LastMsgID)
}

func TestSnapshotAndReset(t *testing.T) {
	tr := New()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		tr.Mirror(id, 0)
	}
	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].ClientID.String(), snap[i].ClientID.String())
	}

	tr.Reset()
	assert.Zero(t, tr.Len())
	assert.Empty(t, tr.Snapshot())
}

func TestTrack_ConcurrentSameID(t *testing.T) {
	tr := New()
	id := uuid.New()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if ok, _ := tr.Track(id, int64(i)); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
