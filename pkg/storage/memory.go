package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/colstream/qpipe/pkg/qerrors"
	"github.com/colstream/qpipe/pkg/segment"
)

// MemoryCollaborator is an in-process, map-backed Collaborator. It never
// touches disk or network and is what the clause and driver tests run
// against; ColCount on a stored entry covers every column of the segment
// it was given, since a bare in-memory map has no notion of column
// pruning at the storage layer.
type MemoryCollaborator struct {
	mu   sync.RWMutex
	data map[string]*segment.Segment
}

// NewMemoryCollaborator returns an empty MemoryCollaborator.
func NewMemoryCollaborator() *MemoryCollaborator {
	return &MemoryCollaborator{data: make(map[string]*segment.Segment)}
}

func (m *MemoryCollaborator) Fetch(ctx context.Context, key string) (*segment.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seg, ok := m.data[key]
	if !ok {
		return nil, qerrors.Newf(qerrors.TypeStorageError, "memory collaborator: no segment stored for key %q", key)
	}
	return seg, nil
}

func (m *MemoryCollaborator) Write(ctx context.Context, key string, seg *segment.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = seg
	return nil
}

func (m *MemoryCollaborator) List(ctx context.Context) ([]segment.RangesAndKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]segment.RangesAndKey, 0, len(m.data))
	for key, seg := range m.data {
		rak := segment.RangesAndKey{
			StorageKey: key,
			Rows:       seg.RowRange,
			Cols:       segment.ColRange{Start: 0, End: len(seg.Descriptor.Names)},
		}
		rak.TimeStart, rak.TimeEnd, rak.HasTimeRange = seg.TimeBounds()
		out = append(out, rak)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StorageKey < out[j].StorageKey })
	return out, nil
}

func (m *MemoryCollaborator) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryCollaborator) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}
