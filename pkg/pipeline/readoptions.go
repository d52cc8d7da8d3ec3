package pipeline

// OutputFormat selects the shape the driver hands the final logical table
// back in.
type OutputFormat int

const (
	OutputFormatPandas OutputFormat = iota
	OutputFormatArrow
	OutputFormatNative
)

// ReadOptions are the per-run query knobs a caller constructs fresh for
// each read; unlike PipelineConfig they vary per query, not per
// deployment, so they are never loaded from YAML directly (though
// cmd/qpipe's demo CLI does unmarshal one from a file for convenience).
//
// Every boolean is a *bool rather than bool, mirroring the original's
// std::optional<bool>: unset and explicitly-false are distinct and
// observable through the Get* accessors below, which apply the documented
// default only when the field is nil.
type ReadOptions struct {
	ForceStringsToFixed   *bool
	ForceStringsToObject  *bool
	Incompletes           *bool
	DynamicSchema         *bool
	AllowSparse           *bool
	SetTZ                 *bool
	OptimiseStringMemory  *bool
	BatchThrowOnError     *bool
	OutputFormat          OutputFormat
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// GetForceStringsToFixed defaults to false: string columns keep their
// dictionary encoding rather than being forced to a fixed-width layout.
func (o ReadOptions) GetForceStringsToFixed() bool { return boolOr(o.ForceStringsToFixed, false) }

// GetForceStringsToObject defaults to false.
func (o ReadOptions) GetForceStringsToObject() bool { return boolOr(o.ForceStringsToObject, false) }

// GetIncompletes defaults to false: staged-but-not-yet-compacted segments
// are excluded from a read unless explicitly requested.
func (o ReadOptions) GetIncompletes() bool { return boolOr(o.Incompletes, false) }

// GetDynamicSchema defaults to false: a missing column is a MissingColumn
// error rather than degrading to an all-missing column.
func (o ReadOptions) GetDynamicSchema() bool { return boolOr(o.DynamicSchema, false) }

// GetAllowSparse defaults to false: output columns are dense unless the
// caller opts into sparse (NullMap-backed) representation.
func (o ReadOptions) GetAllowSparse() bool { return boolOr(o.AllowSparse, false) }

// GetSetTZ defaults to false: timestamp columns are left tz-naive.
func (o ReadOptions) GetSetTZ() bool { return boolOr(o.SetTZ, false) }

// GetOptimiseStringMemory defaults to false.
func (o ReadOptions) GetOptimiseStringMemory() bool { return boolOr(o.OptimiseStringMemory, false) }

// GetBatchThrowOnError defaults to false. The driver does not read it: a
// failure in any group aborts the run whichever value it holds.
func (o ReadOptions) GetBatchThrowOnError() bool { return boolOr(o.BatchThrowOnError, false) }
