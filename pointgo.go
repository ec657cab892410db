package pointgo

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/pointgo/engine"
	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/index/kdtree"
	"github.com/hupe1980/pointgo/pointcloud"
	"github.com/hupe1980/pointgo/table"
)

// AggregateFunc is re-exported so that most callers only import pointgo.
type AggregateFunc = engine.AggregateFunc

// ComputePointMetrics computes, for every processed point of the cloud,
// the caller-defined statistics over the attributes of the point's k
// nearest neighbors, and returns one table row per processed point in
// cloud order.
//
// k must be at least 2 and less than the number of points; invalid
// arguments fail before any index work begins. The neighbor candidate
// pool is always the full cloud, even when a filter narrows the
// processed points. On error no table is returned; the error carries the
// offending point index where one exists.
func ComputePointMetrics(ctx context.Context, cloud *pointcloud.Cloud, k int, aggregate AggregateFunc, optFns ...Option) (*table.Table, error) {
	opts := applyOptions(optFns)

	if cloud == nil {
		return nil, fmt.Errorf("%w: cloud must not be nil", ErrInvalidArgument)
	}
	if aggregate == nil {
		return nil, fmt.Errorf("%w: aggregate must not be nil", ErrInvalidArgument)
	}
	if k < 2 {
		return nil, fmt.Errorf("%w: k must be >= 2, got %d", ErrInvalidArgument, k)
	}
	if err := index.ValidateK(k, cloud.Len()); err != nil {
		return nil, translateError(err)
	}

	idx := opts.index
	if idx == nil {
		builder := opts.builder
		if builder == nil {
			builder = kdtree.New()
		}

		buildStart := time.Now()
		built, err := builder(cloud)
		opts.logger.LogIndexBuild(ctx, cloud.Len(), time.Since(buildStart), err)
		opts.metricsCollector.RecordIndexBuild(cloud.Len(), time.Since(buildStart), err)
		if err != nil {
			return nil, translateError(err)
		}
		idx = built
	}

	start := time.Now()
	tbl, err := engine.Run(ctx, cloud, k, aggregate, func(o *engine.Options) {
		o.IncludeCoordinates = opts.includeCoordinates
		o.Predicate = opts.predicate
		o.Workers = opts.workers
		o.Index = idx
	})
	err = translateError(err)

	rows := 0
	if tbl != nil {
		rows = tbl.NumRows()
	}
	opts.logger.WithK(k).LogRun(ctx, cloud.Len(), rows, time.Since(start), err)
	opts.metricsCollector.RecordRun(cloud.Len(), time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return tbl, nil
}
