package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/segment"
)

func testBundle() Bundle {
	seg, _ := segment.NewSegment(
		segment.Descriptor{Names: []string{"a"}, Types: []segment.Type{segment.TypeInt64}},
		[]segment.Column{segment.NewInt64Column([]int64{1, 2, 3})},
		segment.RowRange{Start: 0, End: 3},
	)
	return Bundle{Segment: seg, RowRange: segment.RowRange{Start: 0, End: 3}}
}

func TestPushAndGet(t *testing.T) {
	m := NewManager(0)
	id, err := m.Push(testBundle())
	require.NoError(t, err)
	assert.True(t, id.Valid())

	b, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Segment.NumRows())
	assert.EqualValues(t, 1, m.LiveCount())
}

func TestGetUnknownID(t *testing.T) {
	m := NewManager(0)
	_, err := m.Get(ID{index: 99, generation: 1})
	assert.Error(t, err)
}

func TestReleaseFreesSlotAtZeroRefcount(t *testing.T) {
	m := NewManager(0)
	id, err := m.Push(testBundle())
	require.NoError(t, err)

	require.NoError(t, m.Retain(id))
	assert.EqualValues(t, 1, m.LiveCount())

	m.Release([]ID{id})
	_, err = m.Get(id)
	require.NoError(t, err, "one reference remains after a single release")

	m.Release([]ID{id})
	_, err = m.Get(id)
	assert.Error(t, err, "slot must be gone once refcount reaches zero")
	assert.EqualValues(t, 0, m.LiveCount())
}

func TestGetManyPreservesOrder(t *testing.T) {
	m := NewManager(0)
	var ids []ID
	for i := 0; i < 3; i++ {
		id, err := m.Push(testBundle())
		require.NoError(t, err)
		ids = append(ids, id)
	}
	bundles, err := m.GetMany(ids)
	require.NoError(t, err)
	assert.Len(t, bundles, 3)
}

func TestBackpressureBlocksAtHighWaterMark(t *testing.T) {
	m := NewManager(1)
	_, err := m.Push(testBundle())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = m.Push(testBundle())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second push should have blocked on the high-water mark")
	default:
	}

	m.Release([]ID{ID{index: 1, generation: 1}})
	<-done
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	m := NewManager(0)
	seen := map[ID]bool{}
	for i := 0; i < 50; i++ {
		id, err := m.Push(testBundle())
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
