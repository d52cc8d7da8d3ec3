package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSegment(t *testing.T) *Segment {
	desc := Descriptor{Names: []string{"a", "b"}, Types: []Type{TypeInt64, TypeFloat64}}
	cols := []Column{
		NewInt64Column([]int64{1, 2, 3}),
		NewFloat64Column([]float64{1.5, 2.5, 3.5}),
	}
	seg, err := NewSegment(desc, cols, RowRange{Start: 0, End: 3})
	require.NoError(t, err)
	return seg
}

func TestNewSegmentLengthMismatch(t *testing.T) {
	desc := Descriptor{Names: []string{"a"}, Types: []Type{TypeInt64}}
	cols := []Column{NewInt64Column([]int64{1, 2})}
	_, err := NewSegment(desc, cols, RowRange{Start: 0, End: 3})
	assert.Error(t, err)
}

func TestSegmentColumn(t *testing.T) {
	seg := testSegment(t)
	assert.NotNil(t, seg.Column("a"))
	assert.Nil(t, seg.Column("missing"))
	assert.Equal(t, 3, seg.NumRows())
}

func TestSegmentSlice(t *testing.T) {
	seg := testSegment(t)
	sub := seg.Slice(1, 3)
	assert.Equal(t, 2, sub.NumRows())
	assert.Equal(t, RowRange{Start: 1, End: 3}, sub.RowRange)
}

func TestSegmentProject(t *testing.T) {
	seg := testSegment(t)
	proj, err := seg.Project([]string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, proj.Descriptor.Names)

	_, err = seg.Project([]string{"nope"})
	assert.Error(t, err)
}

func TestRowRangeIntersectsAndContains(t *testing.T) {
	r := RowRange{Start: 10, End: 20}
	assert.True(t, r.Contains(10))
	assert.False(t, r.Contains(20))
	assert.True(t, r.Intersects(RowRange{Start: 15, End: 25}))
	assert.False(t, r.Intersects(RowRange{Start: 20, End: 30}))
}

func TestOutputSchemaWithColumn(t *testing.T) {
	s := OutputSchema{Descriptor: Descriptor{Names: []string{"a"}, Types: []Type{TypeInt64}}}
	s2 := s.WithColumn("b", TypeFloat64)
	assert.Equal(t, []string{"a", "b"}, s2.Descriptor.Names)
	// original untouched
	assert.Equal(t, []string{"a"}, s.Descriptor.Names)

	s3 := s2.WithColumn("a", TypeString)
	idx := s3.Descriptor.IndexOf("a")
	assert.Equal(t, TypeString, s3.Descriptor.Types[idx])
}

func TestOutputSchemaWithoutColumn(t *testing.T) {
	s := OutputSchema{Descriptor: Descriptor{Names: []string{"a", "b"}, Types: []Type{TypeInt64, TypeFloat64}}}
	s2 := s.WithoutColumn("a")
	assert.Equal(t, []string{"b"}, s2.Descriptor.Names)
}

func TestJoinSchemasInner(t *testing.T) {
	a := OutputSchema{Descriptor: Descriptor{Names: []string{"x", "y"}, Types: []Type{TypeInt64, TypeFloat64}}}
	b := OutputSchema{Descriptor: Descriptor{Names: []string{"x", "z"}, Types: []Type{TypeInt64, TypeString}}}

	joined, err := JoinSchemas([]OutputSchema{a, b}, JoinInner)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, joined.Descriptor.Names)
	assert.False(t, joined.DynamicSchema)
}

func TestJoinSchemasOuter(t *testing.T) {
	a := OutputSchema{Descriptor: Descriptor{Names: []string{"x", "y"}, Types: []Type{TypeInt64, TypeFloat64}}}
	b := OutputSchema{Descriptor: Descriptor{Names: []string{"x", "z"}, Types: []Type{TypeInt64, TypeString}}}

	joined, err := JoinSchemas([]OutputSchema{a, b}, JoinOuter)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "y", "z"}, joined.Descriptor.Names)
	assert.True(t, joined.DynamicSchema)
}

func TestJoinSchemasEmpty(t *testing.T) {
	_, err := JoinSchemas(nil, JoinInner)
	assert.Error(t, err)
}
