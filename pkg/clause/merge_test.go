package clause

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/segment"
)

func TestMergeInterleavesByTimestampWithSymbolColumn(t *testing.T) {
	mgr := entity.NewManager(1000)
	s1 := pushSegment(t, mgr, []string{"ts", "v"}, []segment.Column{
		segment.NewTimestampColumn([]int64{1, 3, 5}),
		segment.NewStringColumn([]string{"a", "b", "c"}),
	})
	s2 := pushSegment(t, mgr, []string{"ts", "v"}, []segment.Column{
		segment.NewTimestampColumn([]int64{2, 3, 4}),
		segment.NewStringColumn([]string{"x", "y", "z"}),
	})

	m := NewMerge("ts", true, []string{"S1", "S2"})
	m.SetComponentManager(mgr)

	groups, err := m.StructureForEntities([][]entity.ID{{s1}, {s2}})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	out, err := m.Process(context.Background(), groups[0])
	require.NoError(t, err)
	require.Len(t, out, 1)

	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, 6, b.Segment.NumRows())

	ts := b.Segment.Column("ts").(*segment.TimestampColumn)
	v := b.Segment.Column("v").(*segment.StringColumn)
	sym := b.Segment.Column("symbol").(*segment.StringColumn)

	require.Equal(t, []int64{1, 2, 3, 3, 4, 5}, ts.Values)
	require.Equal(t, "a", v.At(0))
	require.Equal(t, "x", v.At(1))
	// tie at ts=3: stream S1 (index 0) wins before S2 (index 1)
	require.Equal(t, "b", v.At(2))
	require.Equal(t, "y", v.At(3))
	require.Equal(t, "S1", sym.At(0))
	require.Equal(t, "S2", sym.At(1))
}

func TestMergeInvalidAsFirstClause(t *testing.T) {
	m := NewMerge("ts", false, nil)
	_, err := m.StructureForPlan(nil)
	require.Error(t, err)
}

// TestMergeFatalSchemaMismatchWhenDynamicSchemaOff checks that a column
// present in one input but absent from another is a fatal error, not a
// silent null-fill, when DynamicSchema is off.
func TestMergeFatalSchemaMismatchWhenDynamicSchemaOff(t *testing.T) {
	mgr := entity.NewManager(1000)
	s1 := pushSegment(t, mgr, []string{"ts", "v"}, []segment.Column{
		segment.NewTimestampColumn([]int64{1, 3}),
		segment.NewStringColumn([]string{"a", "b"}),
	})
	s2 := pushSegment(t, mgr, []string{"ts"}, []segment.Column{
		segment.NewTimestampColumn([]int64{2}),
	})

	m := NewMerge("ts", false, nil)
	m.SetComponentManager(mgr)
	m.SetProcessingConfig(ProcessingConfig{DynamicSchema: false})

	groups, err := m.StructureForEntities([][]entity.ID{{s1}, {s2}})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	_, err = m.Process(context.Background(), groups[0])
	require.Error(t, err)
}

// TestMergeDynamicSchemaNullFillsMissingColumns checks the opposite: with
// DynamicSchema on, a column missing from one input is null-filled rather
// than erroring.
func TestMergeDynamicSchemaNullFillsMissingColumns(t *testing.T) {
	mgr := entity.NewManager(1000)
	s1 := pushSegment(t, mgr, []string{"ts", "v"}, []segment.Column{
		segment.NewTimestampColumn([]int64{1, 3}),
		segment.NewStringColumn([]string{"a", "b"}),
	})
	s2 := pushSegment(t, mgr, []string{"ts"}, []segment.Column{
		segment.NewTimestampColumn([]int64{2}),
	})

	m := NewMerge("ts", false, nil)
	m.SetComponentManager(mgr)
	m.SetProcessingConfig(ProcessingConfig{DynamicSchema: true})

	groups, err := m.StructureForEntities([][]entity.ID{{s1}, {s2}})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	out, err := m.Process(context.Background(), groups[0])
	require.NoError(t, err)
	require.Len(t, out, 1)

	b, err := mgr.Get(out[0])
	require.NoError(t, err)
	require.Equal(t, 3, b.Segment.NumRows())
}
