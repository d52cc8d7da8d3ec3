package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/segment"
)

func newTestSegment() *segment.Segment {
	seg, err := segment.NewSegment(
		segment.Descriptor{Names: []string{"v"}, Types: []segment.Type{segment.TypeInt64}},
		[]segment.Column{segment.NewInt64Column([]int64{1, 2, 3})},
		segment.RowRange{Start: 0, End: 3},
	)
	if err != nil {
		panic(err)
	}
	return seg
}

func TestMemoryCollaboratorRoundTrip(t *testing.T) {
	m := NewMemoryCollaborator()
	ctx := context.Background()
	seg := newTestSegment()

	require.NoError(t, m.Write(ctx, "k1", seg))

	ok, err := m.Exists(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := m.Fetch(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, got.Column("v").(*segment.Int64Column).Values)

	ranges, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	require.Equal(t, "k1", ranges[0].StorageKey)

	require.NoError(t, m.Delete(ctx, "k1"))
	ok, err = m.Exists(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCollaboratorFetchMissingKeyErrors(t *testing.T) {
	m := NewMemoryCollaborator()
	_, err := m.Fetch(context.Background(), "absent")
	require.Error(t, err)
}

func TestFilesystemCollaboratorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFilesystemCollaborator(dir)
	require.NoError(t, err)

	ctx := context.Background()
	seg := newTestSegment()
	require.NoError(t, f.Write(ctx, "segments/a", seg))

	got, err := f.Fetch(ctx, "segments/a")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, got.Column("v").(*segment.Int64Column).Values)

	ranges, err := f.List(ctx)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	require.Equal(t, "segments/a", ranges[0].StorageKey)

	require.NoError(t, f.Delete(ctx, "segments/a"))
	ok, err := f.Exists(ctx, "segments/a")
	require.NoError(t, err)
	require.False(t, ok)
}
