package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitsetSetGet(t *testing.T) {
	b := NewBitset(70)
	b.Set(0, true)
	b.Set(63, true)
	b.Set(64, true)
	b.Set(69, true)

	assert.True(t, b.Get(0))
	assert.False(t, b.Get(1))
	assert.True(t, b.Get(63))
	assert.True(t, b.Get(64))
	assert.True(t, b.Get(69))
	assert.Equal(t, 4, b.CountSet())
	assert.False(t, b.AllSet())
	assert.False(t, b.AllClear())
}

func TestBitsetAnd(t *testing.T) {
	a := NewBitset(4)
	a.Set(0, true)
	a.Set(1, true)

	b := NewBitset(4)
	b.Set(1, true)
	b.Set(2, true)

	a.And(b)
	assert.False(t, a.Get(0))
	assert.True(t, a.Get(1))
	assert.False(t, a.Get(2))
}

func TestNullMapNilIsDense(t *testing.T) {
	var m NullMap
	assert.True(t, m.Get(5))
}

func TestNullMapSetGet(t *testing.T) {
	m := NewNullMap(10)
	assert.False(t, m.Get(3))
	m.Set(3, true)
	assert.True(t, m.Get(3))
	m.Set(3, false)
	assert.False(t, m.Get(3))
}

func TestInt64ColumnSlice(t *testing.T) {
	c := NewInt64Column([]int64{1, 2, 3, 4, 5})
	sub := c.Slice(1, 4).(*Int64Column)
	require.Equal(t, 3, sub.Len())
	assert.Equal(t, int64(2), sub.At(0))
	assert.Equal(t, int64(4), sub.At(2))
}

func TestStringColumnDenseMode(t *testing.T) {
	c := NewStringColumn([]string{"a", "b", "c"})
	require.Equal(t, 3, c.Len())
	assert.Equal(t, "b", c.At(1))
	assert.False(t, c.dictMode)
}

func TestStringColumnDictionaryEncoding(t *testing.T) {
	values := make([]string, 200)
	for i := range values {
		if i%2 == 0 {
			values[i] = "even"
		} else {
			values[i] = "odd"
		}
	}
	c := NewStringColumn(values)
	require.True(t, c.dictMode)
	assert.Equal(t, "even", c.At(0))
	assert.Equal(t, "odd", c.At(1))
	assert.Equal(t, 200, c.Len())
	assert.Len(t, c.dict, 2)
}

func TestStringColumnSliceDictMode(t *testing.T) {
	values := make([]string, 200)
	for i := range values {
		if i%2 == 0 {
			values[i] = "even"
		} else {
			values[i] = "odd"
		}
	}
	c := NewStringColumn(values)
	sub := c.Slice(0, 4).(*StringColumn)
	require.Equal(t, 4, sub.Len())
	assert.Equal(t, "even", sub.At(0))
	assert.Equal(t, "odd", sub.At(1))
}

func TestBoolColumn(t *testing.T) {
	c := NewBoolColumn([]bool{true, false, true, true})
	assert.Equal(t, 4, c.Len())
	assert.True(t, c.At(0))
	assert.False(t, c.At(1))

	sub := c.Slice(1, 3).(*BoolColumn)
	assert.False(t, sub.At(0))
	assert.True(t, sub.At(1))
}

func TestNewColumnLikeAllMissing(t *testing.T) {
	c := NewColumnLike(TypeFloat64, 5)
	require.Equal(t, 5, c.Len())
	for i := 0; i < 5; i++ {
		assert.True(t, c.IsNull(i))
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "int64", TypeInt64.String())
	assert.Equal(t, "unknown", Type(99).String())
}
