// Package storage implements the external collaborator the pipeline driver
// fetches segments from and writes results to. The core clause algorithms
// never see a Collaborator directly — structure_for_plan only consumes the
// RangesAndKey listing it returns — but the driver that schedules those
// algorithms against real data needs concrete backends to retry and back
// off against.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/gob"

	"github.com/colstream/qpipe/pkg/pool"
	"github.com/colstream/qpipe/pkg/qerrors"
	"github.com/colstream/qpipe/pkg/segment"
)

// encodeBufPool reuses the bytes.Buffer each encodeSegment call writes
// gzip+gob output into, instead of allocating a fresh one per segment.
var encodeBufPool = pool.New(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) { b.Reset() },
)

func init() {
	gob.Register(&segment.Int64Column{})
	gob.Register(&segment.Float64Column{})
	gob.Register(&segment.StringColumn{})
	gob.Register(&segment.BoolColumn{})
	gob.Register(&segment.TimestampColumn{})
}

// Collaborator is the storage back-end boundary every driver fetch and
// write crosses. Implementations own the actual bytes; the pipeline only
// ever sees decoded segments and opaque keys.
type Collaborator interface {
	// Fetch decodes the segment stored under key.
	Fetch(ctx context.Context, key string) (*segment.Segment, error)
	// Write stores seg under key, replacing any prior value.
	Write(ctx context.Context, key string, seg *segment.Segment) error
	// List returns every RangesAndKey currently stored, the input to
	// structure_for_plan before any segment bytes are read.
	List(ctx context.Context) ([]segment.RangesAndKey, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key is present, without fetching it.
	Exists(ctx context.Context, key string) (bool, error)
}

// wireSegment is the gob-serializable shape of a *segment.Segment. Segment
// itself isn't used directly because its Columns field is an interface
// slice; gob needs every concrete element type registered (done in init)
// but otherwise round-trips an interface slice natively.
type wireSegment struct {
	Descriptor segment.Descriptor
	Columns    []segment.Column
	RowRange   segment.RowRange
}

// encodeSegment gzip+gob encodes seg, the codec both FilesystemCollaborator
// and S3Collaborator share.
func encodeSegment(seg *segment.Segment) ([]byte, error) {
	buf := encodeBufPool.Get()
	defer encodeBufPool.Put(buf)

	gw := gzip.NewWriter(buf)
	enc := gob.NewEncoder(gw)
	if err := enc.Encode(wireSegment{Descriptor: seg.Descriptor, Columns: seg.Columns, RowRange: seg.RowRange}); err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "encode segment")
	}
	if err := gw.Close(); err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "close gzip writer")
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// decodeSegment reverses encodeSegment.
func decodeSegment(data []byte) (*segment.Segment, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "open gzip reader")
	}
	defer gr.Close()
	var w wireSegment
	if err := gob.NewDecoder(gr).Decode(&w); err != nil {
		return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "decode segment")
	}
	return &segment.Segment{Descriptor: w.Descriptor, Columns: w.Columns, RowRange: w.RowRange}, nil
}
