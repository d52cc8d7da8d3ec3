// Package pipeline is the execution driver: it schedules structure_for_plan
// once against a storage collaborator's listing, materialises segments into
// the component manager as entities, runs every clause's process() over a
// bounded worker pool, retries storage fetches with backoff, and assembles
// the final logical table from the terminal clause's output. It generalises
// the channel/worker-pool architecture of a conventional streaming pipeline
// (source -> transform workers -> batch collector -> destination) to the
// clause pipeline's plan/group/stage scheduling model, using
// golang.org/x/sync/errgroup for the bounded pool instead of hand-rolled
// goroutines and WaitGroups.
package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/colstream/qpipe/pkg/clause"
	"github.com/colstream/qpipe/pkg/config"
	"github.com/colstream/qpipe/pkg/entity"
	"github.com/colstream/qpipe/pkg/qerrors"
	"github.com/colstream/qpipe/pkg/segment"
	"github.com/colstream/qpipe/pkg/storage"
	"github.com/colstream/qpipe/pkg/telemetry"
)

// Driver runs one or more reads against a storage.Collaborator using a
// single component manager. A Driver is not reused across concurrent runs;
// build a fresh one per Run call if concurrent reads against the same
// collaborator are needed, since RunID and the component manager are
// per-run state.
type Driver struct {
	collaborator storage.Collaborator
	mgr          *entity.Manager
	cfg          *config.PipelineConfig
	logger       *telemetry.StructuredLogger
	tracer       trace.Tracer
	RunID        string
}

// NewDriver wires a Driver against collaborator using cfg's sizing and
// retry settings. logger and tracer may be nil, in which case logging is a
// no-op and a no-op tracer from the global otel provider is used.
func NewDriver(collaborator storage.Collaborator, cfg *config.PipelineConfig, logger *telemetry.StructuredLogger, tracer trace.Tracer) *Driver {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig("qpipe")
	}
	runID := uuid.NewString()
	if logger == nil {
		logger = telemetry.NewStructuredLogger(zap.NewNop(), runID)
	}
	if tracer == nil {
		tracer = otel.Tracer("qpipe/pipeline")
	}
	return &Driver{
		collaborator: collaborator,
		mgr:          entity.NewManager(cfg.Performance.ComponentManagerHighWaterMark),
		cfg:          cfg,
		logger:       logger,
		tracer:       tracer,
		RunID:        runID,
	}
}

// Run executes clauses[0] against the collaborator's current listing, then
// every subsequent clause against the previous stage's output, and returns
// the assembled logical table.
func (d *Driver) Run(ctx context.Context, clauses []clause.Clause, opts ReadOptions) (*segment.Segment, error) {
	if len(clauses) == 0 {
		return nil, qerrors.New(qerrors.TypeInvalidUserArgument, "pipeline: at least one clause is required")
	}

	op := d.logger.WithOperation("pipeline.run")
	op.LogStart("starting pipeline run", zap.String("run_id", d.RunID), zap.Int("clauses", len(clauses)))

	plan, err := d.collaborator.List(ctx)
	if err != nil {
		err = qerrors.Wrap(err, qerrors.TypeStorageError, "list storage plan")
		op.LogError("pipeline run failed", err)
		return nil, err
	}

	var totalRows int64
	for _, p := range plan {
		totalRows += p.Rows.Len()
	}
	procCfg := clause.ProcessingConfig{DynamicSchema: opts.GetDynamicSchema(), TotalRowCount: totalRows}
	for _, c := range clauses {
		c.SetComponentManager(d.mgr)
		c.SetProcessingConfig(procCfg)
	}

	planGroups, err := clauses[0].StructureForPlan(plan)
	if err != nil {
		op.LogError("pipeline run failed", err)
		return nil, err
	}

	// sourceSchema is learned from the first materialized segment, used
	// only to derive a correctly-shaped empty result if every entity is
	// filtered out somewhere downstream (assemble's zero-entity path).
	var sourceSchema segment.OutputSchema
	idGroups := make([][]entity.ID, 0, len(planGroups))
	for _, group := range planGroups {
		if err := ctx.Err(); err != nil {
			return nil, qerrors.Wrap(err, qerrors.TypeCancelled, "pipeline run cancelled during materialization")
		}
		ids, err := d.materializeGroup(ctx, plan, group)
		if err != nil {
			op.LogError("pipeline run failed", err)
			return nil, err
		}
		if sourceSchema.Descriptor.Names == nil {
			for _, id := range ids {
				if b, getErr := d.mgr.Get(id); getErr == nil {
					sourceSchema = segment.OutputSchema{Descriptor: b.Segment.Descriptor, DynamicSchema: procCfg.DynamicSchema}
					break
				}
			}
		}
		idGroups = append(idGroups, ids)
	}

	idGroups, err = d.runStage(ctx, clauses[0], idGroups)
	if err != nil {
		op.LogError("pipeline run failed", err)
		return nil, err
	}

	for _, c := range clauses[1:] {
		if err := ctx.Err(); err != nil {
			return nil, qerrors.Wrap(err, qerrors.TypeCancelled, "pipeline run cancelled between clause boundaries")
		}
		idGroups, err = c.StructureForEntities(idGroups)
		if err != nil {
			op.LogError("pipeline run failed", err)
			return nil, err
		}
		idGroups, err = d.runStage(ctx, c, idGroups)
		if err != nil {
			op.LogError("pipeline run failed", err)
			return nil, err
		}
	}

	telemetry.LiveEntitySlots.Set(float64(d.mgr.LiveCount()))

	result, err := d.assemble(clauses, sourceSchema, idGroups)
	if err != nil {
		op.LogError("pipeline run failed", err)
		return nil, err
	}

	op.LogComplete("pipeline run completed", zap.Int("output_rows", result.NumRows()))
	return result, nil
}

// materializeGroup fetches every plan entry in group, retrying transient
// storage errors, and publishes each fetched segment as a fresh entity.
func (d *Driver) materializeGroup(ctx context.Context, plan []segment.RangesAndKey, group []int) ([]entity.ID, error) {
	ids := make([]entity.ID, 0, len(group))
	for _, idx := range group {
		entry := plan[idx]
		seg, err := d.fetchWithRetry(ctx, entry.StorageKey)
		if err != nil {
			return nil, err
		}
		id, err := d.mgr.PushContext(ctx, entity.Bundle{Segment: seg, RowRange: entry.Rows, ColRange: entry.Cols})
		if err != nil {
			return nil, qerrors.Wrap(err, qerrors.TypeStorageError, "push materialized segment")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// fetchWithRetry wraps Collaborator.Fetch with exponential backoff, up to
// cfg.Reliability.StorageRetryMax additional attempts, honoring
// qerrors.IsRetryable so a non-storage error fails immediately.
func (d *Driver) fetchWithRetry(ctx context.Context, key string) (*segment.Segment, error) {
	delay := d.cfg.Reliability.StorageRetryBaseDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	maxDelay := d.cfg.Reliability.StorageRetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.Reliability.StorageRetryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, qerrors.Wrap(err, qerrors.TypeCancelled, "fetch cancelled")
		}
		start := time.Now()
		seg, err := d.collaborator.Fetch(ctx, key)
		telemetry.StorageFetchDuration.WithLabelValues(backendLabel(d.collaborator)).Observe(time.Since(start).Seconds())
		if err == nil {
			return seg, nil
		}
		lastErr = err
		if !qerrors.IsRetryable(err) || attempt == d.cfg.Reliability.StorageRetryMax {
			break
		}
		telemetry.StorageFetchRetries.WithLabelValues(backendLabel(d.collaborator)).Inc()
		sleep := time.Duration(math.Min(float64(maxDelay), float64(delay)*math.Pow(2, float64(attempt))))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, qerrors.Wrap(ctx.Err(), qerrors.TypeCancelled, "fetch cancelled during backoff")
		}
	}
	return nil, qerrors.Wrap(lastErr, qerrors.TypeStorageError, "fetch segment after retries")
}

func backendLabel(c storage.Collaborator) string {
	switch c.(type) {
	case *storage.MemoryCollaborator:
		return "memory"
	case *storage.FilesystemCollaborator:
		return "filesystem"
	case *storage.S3Collaborator:
		return "s3"
	default:
		return "unknown"
	}
}

// runStage runs c.Process over every group in idGroups concurrently,
// bounded by the driver's configured worker pool size. Input ids are
// released after their group's Process call returns; a clause that
// re-published an input id unchanged already bumped its refcount via
// entity.Manager.Retain, so a uniform release here is safe.
func (d *Driver) runStage(ctx context.Context, c clause.Clause, idGroups [][]entity.ID) ([][]entity.ID, error) {
	out := make([][]entity.ID, len(idGroups))
	g, gctx := errgroup.WithContext(ctx)
	if n := d.cfg.Performance.WorkerPoolSize; n > 0 {
		g.SetLimit(n)
	}

	clauseName := clauseTypeName(c)
	for i, ids := range idGroups {
		i, ids := i, ids
		g.Go(func() error {
			ctx, span := telemetry.StartClauseSpan(gctx, d.tracer, clauseName, len(ids))
			resultIDs, err := c.Process(ctx, ids)
			telemetry.EndSpan(span, err)
			if err != nil {
				return err
			}
			d.mgr.Release(ids)
			rows := 0
			for _, id := range resultIDs {
				if b, getErr := d.mgr.Get(id); getErr == nil {
					rows += b.Segment.NumRows()
				}
			}
			telemetry.RowsProcessed.WithLabelValues(clauseName).Add(float64(rows))
			out[i] = resultIDs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
