package pointgo

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointgo/engine"
	"github.com/hupe1980/pointgo/index/brute"
	"github.com/hupe1980/pointgo/index/kdtree"
	"github.com/hupe1980/pointgo/neighborhood"
	"github.com/hupe1980/pointgo/pointcloud"
	"github.com/hupe1980/pointgo/table"
	"github.com/hupe1980/pointgo/testutil"
)

func meanZ(b *neighborhood.Buffer) (engine.Output, error) {
	var sum float64
	for _, z := range b.Z() {
		sum += z
	}
	return engine.Single(sum / float64(b.K())), nil
}

func TestComputePointMetrics(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(1)
	cloud := rng.UniformCloud(300, 20)

	t.Run("default run", func(t *testing.T) {
		tbl, err := ComputePointMetrics(ctx, cloud, 5, meanZ)
		require.NoError(t, err)
		require.Equal(t, cloud.Len(), tbl.NumRows())
		require.Equal(t, []string{table.ColumnX, table.ColumnY, table.ColumnZ, engine.DefaultMetricName}, tbl.Names())
	})

	t.Run("without coordinates", func(t *testing.T) {
		tbl, err := ComputePointMetrics(ctx, cloud, 5, meanZ, WithoutCoordinates())
		require.NoError(t, err)
		require.Equal(t, []string{engine.DefaultMetricName}, tbl.Names())
	})

	t.Run("with filter", func(t *testing.T) {
		tbl, err := ComputePointMetrics(ctx, cloud, 5, meanZ,
			WithFilter(func(p pointcloud.Point) (bool, error) {
				return p.Index() < 10, nil
			}),
		)
		require.NoError(t, err)
		require.Equal(t, 10, tbl.NumRows())
	})

	t.Run("with workers", func(t *testing.T) {
		serial, err := ComputePointMetrics(ctx, cloud, 5, meanZ)
		require.NoError(t, err)

		parallel, err := ComputePointMetrics(ctx, cloud, 5, meanZ, WithWorkers(4))
		require.NoError(t, err)

		for i := 0; i < serial.NumCols(); i++ {
			require.Equal(t, serial.Column(i).Values, parallel.Column(i).Values)
		}
	})

	t.Run("with prebuilt index", func(t *testing.T) {
		idx, err := kdtree.Build(cloud)
		require.NoError(t, err)

		tbl, err := ComputePointMetrics(ctx, cloud, 5, meanZ, WithIndex(idx))
		require.NoError(t, err)
		require.Equal(t, cloud.Len(), tbl.NumRows())
	})

	t.Run("with brute-force builder", func(t *testing.T) {
		tbl, err := ComputePointMetrics(ctx, cloud, 5, meanZ, WithIndexBuilder(brute.New()))
		require.NoError(t, err)
		require.Equal(t, cloud.Len(), tbl.NumRows())
	})
}

func TestComputePointMetrics_Errors(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(2)
	cloud := rng.UniformCloud(10, 5)

	t.Run("nil cloud", func(t *testing.T) {
		_, err := ComputePointMetrics(ctx, nil, 5, meanZ)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("nil aggregate", func(t *testing.T) {
		_, err := ComputePointMetrics(ctx, cloud, 5, nil)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("k too small", func(t *testing.T) {
		_, err := ComputePointMetrics(ctx, cloud, 1, meanZ)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("k not below point count", func(t *testing.T) {
		_, err := ComputePointMetrics(ctx, cloud, 10, meanZ)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("malformed cloud surfaces as invalid input", func(t *testing.T) {
		_, err := pointcloud.New([]float64{0, math.NaN()}, []float64{0, 0}, []float64{0, 0})
		require.Error(t, err)
		require.ErrorIs(t, translateError(err), ErrInvalidInput)
	})

	t.Run("predicate failure", func(t *testing.T) {
		_, err := ComputePointMetrics(ctx, cloud, 5, meanZ,
			WithFilter(func(p pointcloud.Point) (bool, error) {
				_, err := p.Attr("NoSuchColumn")
				return false, err
			}),
		)
		require.ErrorIs(t, err, ErrPredicate)
	})

	t.Run("aggregation failure", func(t *testing.T) {
		cause := errors.New("unstable")
		_, err := ComputePointMetrics(ctx, cloud, 5, func(*neighborhood.Buffer) (engine.Output, error) {
			return nil, cause
		})
		require.ErrorIs(t, err, ErrAggregation)
		require.ErrorIs(t, err, cause)
	})

	t.Run("schema drift", func(t *testing.T) {
		calls := 0
		_, err := ComputePointMetrics(ctx, cloud, 5, func(*neighborhood.Buffer) (engine.Output, error) {
			calls++
			if calls == 1 {
				return engine.Output{engine.Scalar("a", 1)}, nil
			}
			return engine.Output{engine.Scalar("b", 1)}, nil
		})
		require.ErrorIs(t, err, ErrAggregation)
	})
}

func TestComputePointMetrics_Observability(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(3)
	cloud := rng.UniformCloud(100, 10)

	t.Run("basic metrics collector", func(t *testing.T) {
		mc := &BasicMetricsCollector{}

		_, err := ComputePointMetrics(ctx, cloud, 5, meanZ, WithMetricsCollector(mc))
		require.NoError(t, err)

		stats := mc.GetStats()
		require.Equal(t, int64(1), stats.IndexBuildCount)
		require.Equal(t, int64(1), stats.RunCount)
		require.Zero(t, stats.RunErrors)
		require.Equal(t, int64(cloud.Len()), stats.RunPoints)
	})

	t.Run("errors are counted", func(t *testing.T) {
		mc := &BasicMetricsCollector{}

		_, err := ComputePointMetrics(ctx, cloud, 5, func(*neighborhood.Buffer) (engine.Output, error) {
			return nil, errors.New("boom")
		}, WithMetricsCollector(mc))
		require.Error(t, err)

		stats := mc.GetStats()
		require.Equal(t, int64(1), stats.RunErrors)
	})

	t.Run("nil collector and logger fall back to noop", func(t *testing.T) {
		_, err := ComputePointMetrics(ctx, cloud, 5, meanZ,
			WithMetricsCollector(nil),
			WithLogger(nil),
		)
		require.NoError(t, err)
	})
}
