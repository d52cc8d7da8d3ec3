// Package entity implements the component manager: a process-local store
// mapping opaque entity handles to component bundles (segment, row-range,
// col-range, and optional derived fields), with refcounted slots and a
// backpressure limit on live occupancy.
package entity

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/colstream/qpipe/pkg/qerrors"
	"github.com/colstream/qpipe/pkg/segment"
)

// ID is an opaque, unique, non-reusable handle minted by a Manager. It is
// encoded as an (arena index, generation) pair so that a stale ID from a
// released and reused slot can never be mistaken for the slot's current
// occupant.
type ID struct {
	index      uint32
	generation uint32
}

// Valid reports whether id denotes any slot at all (the zero ID never
// does, since generation 0 is never handed out).
func (id ID) Valid() bool { return id.generation != 0 }

func (id ID) String() string { return fmt.Sprintf("entity#%d.%d", id.index, id.generation) }

// Bundle is the heterogeneous payload attached to one ID: at minimum a
// segment, row-range and col-range; optionally a filter bitset, a
// hash-key vector (GroupBy partitioning) or aggregation partial state.
type Bundle struct {
	Segment    *segment.Segment
	RowRange   segment.RowRange
	ColRange   segment.ColRange
	Bitset     *segment.Bitset
	HashKeys   []uint64
	// BucketID labels which GroupBy bucket (or time bucket) this bundle
	// belongs to, shared by entities from the same bucket across
	// different row-slices.
	BucketID    int
	AggState    any
	OwnsOverlap bool // not set by any structuring helper; StructureByTimeBucket returns owners separately
	// OrigRowIndex preserves each row's absolute row index from before a
	// hash-partitioning shuffle, the hidden companion column
	// AggregationClause's first/last aggregators tie-break on.
	OrigRowIndex []int64
}

type slot struct {
	generation uint32
	bundle     Bundle
	refcount   atomic.Int64
	occupied   bool
}

const numStripes = 32

type stripe struct {
	mu    sync.RWMutex
	slots map[uint32]*slot
}

// Manager is the process-local component manager. It is safe for
// concurrent use: id allocation is lock-free (an atomic counter), slot
// lookup is striped by id to bound lock contention, and per-slot
// refcounts are atomic so release() takes only the stripe read lock unless
// the count reaches zero.
type Manager struct {
	stripes     [numStripes]stripe
	nextIndex   atomic.Uint32
	liveCount   atomic.Int64
	highWater   int64
	backpressure *semaphoreGate
}

// NewManager constructs a Manager whose live-entity-slot count is capped
// at highWaterMark; Push blocks (PushContext also honouring ctx) once that
// many bundles are alive, implementing the driver's backpressure policy.
func NewManager(highWaterMark int64) *Manager {
	m := &Manager{highWater: highWaterMark}
	for i := range m.stripes {
		m.stripes[i].slots = make(map[uint32]*slot)
	}
	m.backpressure = newSemaphoreGate(highWaterMark)
	return m
}

func (m *Manager) stripeFor(index uint32) *stripe {
	return &m.stripes[index%numStripes]
}

// Push mints a fresh ID for bundle and stores it with refcount 1. It
// blocks until a live-slot budget is available (§5's backpressure
// policy); it cannot be cancelled, use PushContext for that.
func (m *Manager) Push(bundle Bundle) (ID, error) {
	return m.PushContext(context.Background(), bundle)
}

// PushContext is Push with cancellation honored while waiting on the
// backpressure high-water mark.
func (m *Manager) PushContext(ctx context.Context, bundle Bundle) (ID, error) {
	if err := m.backpressure.acquireCtx(ctx); err != nil {
		return ID{}, qerrors.Wrap(err, qerrors.TypeCancelled, "entity: push cancelled while waiting on backpressure gate")
	}
	index := m.nextIndex.Add(1)
	gen := index // generation starts equal to the mint sequence; unique per index since indexes are never reused
	if gen == 0 {
		gen = 1
	}
	s := &slot{generation: gen, bundle: bundle, occupied: true}
	s.refcount.Store(1)

	st := m.stripeFor(index)
	st.mu.Lock()
	st.slots[index] = s
	st.mu.Unlock()

	m.liveCount.Add(1)
	return ID{index: index, generation: gen}, nil
}

// Get returns the bundle for id, or a TypeAssertionFailure error if the id
// is unknown, stale (generation mismatch), or its slot was released.
func (m *Manager) Get(id ID) (*Bundle, error) {
	st := m.stripeFor(id.index)
	st.mu.RLock()
	s, ok := st.slots[id.index]
	st.mu.RUnlock()
	if !ok || !s.occupied || s.generation != id.generation {
		return nil, qerrors.New(qerrors.TypeAssertionFailure, fmt.Sprintf("entity: unknown or released id %s", id))
	}
	return &s.bundle, nil
}

// GetMany batch-fetches bundles for ids, preserving order, the primitive
// structuring helpers and process() entry points use.
func (m *Manager) GetMany(ids []ID) ([]*Bundle, error) {
	out := make([]*Bundle, len(ids))
	for i, id := range ids {
		b, err := m.Get(id)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Retain bumps the refcount of id, used when a clause re-publishes an
// input id unchanged (the Filter all-one-bitset fast path, Passthrough).
func (m *Manager) Retain(id ID) error {
	st := m.stripeFor(id.index)
	st.mu.RLock()
	s, ok := st.slots[id.index]
	st.mu.RUnlock()
	if !ok || !s.occupied || s.generation != id.generation {
		return qerrors.New(qerrors.TypeAssertionFailure, fmt.Sprintf("entity: retain of unknown id %s", id))
	}
	s.refcount.Add(1)
	return nil
}

// Release decrements the refcount of each id, freeing (and signalling the
// backpressure gate for) any slot whose count reaches zero.
func (m *Manager) Release(ids []ID) {
	for _, id := range ids {
		m.releaseOne(id)
	}
}

func (m *Manager) releaseOne(id ID) {
	st := m.stripeFor(id.index)
	st.mu.RLock()
	s, ok := st.slots[id.index]
	st.mu.RUnlock()
	if !ok || !s.occupied || s.generation != id.generation {
		return
	}
	if s.refcount.Add(-1) > 0 {
		return
	}
	st.mu.Lock()
	if s.occupied {
		s.occupied = false
		s.bundle = Bundle{}
		delete(st.slots, id.index)
	}
	st.mu.Unlock()

	m.liveCount.Add(-1)
	m.backpressure.release()
}

// LiveCount reports the current number of occupied slots, exported for
// telemetry's component-manager occupancy gauge.
func (m *Manager) LiveCount() int64 { return m.liveCount.Load() }
