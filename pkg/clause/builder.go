package clause

import "github.com/colstream/qpipe/pkg/segment"

// builderColumn accumulates values of a single declared type row-by-row,
// used by Merge and Concat to assemble an output segment from rows drawn
// out of order (or out of stream) from multiple input segments.
type builderColumn struct {
	typ      segment.Type
	i64      []int64
	f64      []float64
	b        []bool
	ts       []int64
	str      []string
	present  []bool
}

func newBuilderColumn(t segment.Type) builderColumn {
	return builderColumn{typ: t}
}

func (b *builderColumn) appendFrom(col segment.Column, row int) {
	null := col.IsNull(row)
	switch b.typ {
	case segment.TypeInt64:
		v := int64(0)
		if !null {
			v = col.(*segment.Int64Column).At(row)
		}
		b.i64 = append(b.i64, v)
	case segment.TypeFloat64:
		v := float64(0)
		if !null {
			v = col.(*segment.Float64Column).At(row)
		}
		b.f64 = append(b.f64, v)
	case segment.TypeBool:
		v := false
		if !null {
			v = col.(*segment.BoolColumn).At(row)
		}
		b.b = append(b.b, v)
	case segment.TypeTimestamp:
		v := int64(0)
		if !null {
			v = col.(*segment.TimestampColumn).At(row)
		}
		b.ts = append(b.ts, v)
	case segment.TypeString:
		v := ""
		if !null {
			v = col.(*segment.StringColumn).At(row)
		}
		b.str = append(b.str, v)
	}
	b.present = append(b.present, !null)
}

func (b *builderColumn) appendNull() {
	switch b.typ {
	case segment.TypeInt64:
		b.i64 = append(b.i64, 0)
	case segment.TypeFloat64:
		b.f64 = append(b.f64, 0)
	case segment.TypeBool:
		b.b = append(b.b, false)
	case segment.TypeTimestamp:
		b.ts = append(b.ts, 0)
	case segment.TypeString:
		b.str = append(b.str, "")
	}
	b.present = append(b.present, false)
}

func (b *builderColumn) appendString(s string) {
	b.str = append(b.str, s)
	b.present = append(b.present, true)
}

// build materialises the accumulated values into a segment.Column,
// attaching a sparse null map only if at least one value was absent.
func (b *builderColumn) build() segment.Column {
	allPresent := true
	for _, p := range b.present {
		if !p {
			allPresent = false
			break
		}
	}
	var nulls segment.NullMap
	if !allPresent {
		nulls = segment.NewNullMap(len(b.present))
		for i, p := range b.present {
			nulls.Set(i, p)
		}
	}
	switch b.typ {
	case segment.TypeInt64:
		return &segment.Int64Column{Values: b.i64, Nulls: nulls}
	case segment.TypeFloat64:
		return &segment.Float64Column{Values: b.f64, Nulls: nulls}
	case segment.TypeBool:
		bs := segment.NewBitset(len(b.b))
		for i, v := range b.b {
			bs.Set(i, v)
		}
		return &segment.BoolColumn{Values: bs, Nulls: nulls}
	case segment.TypeTimestamp:
		return &segment.TimestampColumn{Values: b.ts, Nulls: nulls}
	case segment.TypeString:
		sc := segment.NewStringColumn(b.str)
		sc.Nulls = nulls
		return sc
	default:
		return &segment.Int64Column{Values: b.i64, Nulls: nulls}
	}
}
