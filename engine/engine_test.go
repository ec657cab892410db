package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/index/brute"
	"github.com/hupe1980/pointgo/mask"
	"github.com/hupe1980/pointgo/neighborhood"
	"github.com/hupe1980/pointgo/pointcloud"
	"github.com/hupe1980/pointgo/table"
	"github.com/hupe1980/pointgo/testutil"
)

// collinearCloud returns five points on the X axis at x = 0..4.
func collinearCloud(t *testing.T) *pointcloud.Cloud {
	t.Helper()

	cloud, err := pointcloud.New(
		[]float64{0, 1, 2, 3, 4},
		[]float64{0, 0, 0, 0, 0},
		[]float64{0, 0, 0, 0, 0},
	)
	require.NoError(t, err)
	return cloud
}

// meanX averages the neighbors' X coordinates.
func meanX(b *neighborhood.Buffer) (Output, error) {
	var sum float64
	for _, x := range b.X() {
		sum += x
	}
	return Single(sum / float64(b.K())), nil
}

func TestRun_Collinear(t *testing.T) {
	cloud := collinearCloud(t)

	tbl, err := Run(context.Background(), cloud, 2, meanX)
	require.NoError(t, err)
	require.Equal(t, 5, tbl.NumRows())
	require.Equal(t, []string{table.ColumnX, table.ColumnY, table.ColumnZ, DefaultMetricName}, tbl.Names())

	// Each point's 2-NN is itself plus its nearest neighbor; interior
	// points resolve the two-sided tie toward the lower index.
	col, ok := tbl.ColumnByName(DefaultMetricName)
	require.True(t, ok)
	require.Equal(t, []float64{0.5, 0.5, 1.5, 2.5, 3.5}, col.Values)

	// Coordinate columns mirror the cloud in point order.
	x, _ := tbl.ColumnByName(table.ColumnX)
	require.Equal(t, cloud.X(), x.Values)
}

func TestRun_WithoutCoordinates(t *testing.T) {
	cloud := collinearCloud(t)

	tbl, err := Run(context.Background(), cloud, 2, meanX, func(o *Options) {
		o.IncludeCoordinates = false
	})
	require.NoError(t, err)
	require.Equal(t, []string{DefaultMetricName}, tbl.Names())
	require.Equal(t, 5, tbl.NumRows())
}

func TestRun_Filter(t *testing.T) {
	cloud := collinearCloud(t)

	t.Run("even indexes give three rows", func(t *testing.T) {
		tbl, err := Run(context.Background(), cloud, 2, meanX, func(o *Options) {
			o.Predicate = func(p pointcloud.Point) (bool, error) {
				return p.Index()%2 == 0, nil
			}
		})
		require.NoError(t, err)
		require.Equal(t, 3, tbl.NumRows())

		// Neighbors still come from the full cloud: point 2 still sees
		// point 1 even though point 1 is filtered out.
		col, _ := tbl.ColumnByName(DefaultMetricName)
		require.Equal(t, []float64{0.5, 1.5, 3.5}, col.Values)

		x, _ := tbl.ColumnByName(table.ColumnX)
		require.Equal(t, []float64{0, 2, 4}, x.Values)
	})

	t.Run("select-all equals no filter", func(t *testing.T) {
		all, err := Run(context.Background(), cloud, 2, meanX, func(o *Options) {
			o.Predicate = func(pointcloud.Point) (bool, error) { return true, nil }
		})
		require.NoError(t, err)

		plain, err := Run(context.Background(), cloud, 2, meanX)
		require.NoError(t, err)

		require.Equal(t, plain.Names(), all.Names())
		for i := 0; i < plain.NumCols(); i++ {
			require.Equal(t, plain.Column(i).Values, all.Column(i).Values)
		}
	})

	t.Run("empty selection gives empty table", func(t *testing.T) {
		tbl, err := Run(context.Background(), cloud, 2, meanX, func(o *Options) {
			o.Predicate = func(pointcloud.Point) (bool, error) { return false, nil }
		})
		require.NoError(t, err)
		require.Zero(t, tbl.NumRows())
		require.Zero(t, tbl.NumCols())
	})

	t.Run("predicate error aborts", func(t *testing.T) {
		cause := errors.New("bad attribute")
		_, err := Run(context.Background(), cloud, 2, meanX, func(o *Options) {
			o.Predicate = func(pointcloud.Point) (bool, error) { return false, cause }
		})
		require.Error(t, err)

		var pe *mask.ErrPredicate
		require.ErrorAs(t, err, &pe)
	})
}

func TestRun_ArgumentValidation(t *testing.T) {
	cloud := collinearCloud(t)

	t.Run("nil cloud", func(t *testing.T) {
		_, err := Run(context.Background(), nil, 2, meanX)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("nil aggregate", func(t *testing.T) {
		_, err := Run(context.Background(), cloud, 2, nil)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("k below 2", func(t *testing.T) {
		_, err := Run(context.Background(), cloud, 1, meanX)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("k not below point count", func(t *testing.T) {
		_, err := Run(context.Background(), cloud, 5, meanX)
		require.Error(t, err)
	})

	t.Run("three points with k=2 succeed", func(t *testing.T) {
		small, err := pointcloud.New([]float64{0, 1, 2}, []float64{0, 0, 0}, []float64{0, 0, 0})
		require.NoError(t, err)

		tbl, err := Run(context.Background(), small, 2, meanX)
		require.NoError(t, err)
		require.Equal(t, 3, tbl.NumRows())
	})

	t.Run("prebuilt index must cover the cloud", func(t *testing.T) {
		other, err := pointcloud.New([]float64{0, 1, 2}, []float64{0, 0, 0}, []float64{0, 0, 0})
		require.NoError(t, err)
		idx, err := brute.Build(other)
		require.NoError(t, err)

		_, err = Run(context.Background(), cloud, 2, meanX, func(o *Options) {
			o.Index = idx
		})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}

// shortIndex drops the last neighbor of every query, violating the
// index contract of returning exactly k results.
type shortIndex struct {
	inner index.Index
}

func (s *shortIndex) Size() int { return s.inner.Size() }

func (s *shortIndex) KNN(x, y, z float64, k int, dst []index.Neighbor) ([]index.Neighbor, error) {
	res, err := s.inner.KNN(x, y, z, k, dst)
	if err != nil {
		return nil, err
	}
	return res[:k-1], nil
}

func TestRun_FaultyIndexIsInternal(t *testing.T) {
	cloud := collinearCloud(t)

	idx, err := brute.Build(cloud)
	require.NoError(t, err)

	_, err = Run(context.Background(), cloud, 2, meanX, func(o *Options) {
		o.Index = &shortIndex{inner: idx}
	})
	require.ErrorIs(t, err, ErrInternal)

	// A broken index is not an aggregation failure; no aggregation ran.
	var ae *ErrAggregation
	require.False(t, errors.As(err, &ae))
}

func TestRun_AggregationErrors(t *testing.T) {
	cloud := collinearCloud(t)

	t.Run("failure carries the point index", func(t *testing.T) {
		cause := errors.New("cannot compute")
		_, err := Run(context.Background(), cloud, 2, func(b *neighborhood.Buffer) (Output, error) {
			if b.Indices()[0] == 3 {
				return nil, cause
			}
			return Single(0), nil
		})
		require.Error(t, err)

		var ae *ErrAggregation
		require.ErrorAs(t, err, &ae)
		require.Equal(t, uint32(3), ae.PointIndex)
		require.ErrorIs(t, err, cause)
	})

	t.Run("empty output", func(t *testing.T) {
		_, err := Run(context.Background(), cloud, 2, func(*neighborhood.Buffer) (Output, error) {
			return Output{}, nil
		})
		require.Error(t, err)

		var ae *ErrAggregation
		require.ErrorAs(t, err, &ae)
	})

	t.Run("schema drift", func(t *testing.T) {
		calls := 0
		_, err := Run(context.Background(), cloud, 2, func(*neighborhood.Buffer) (Output, error) {
			calls++
			if calls == 1 {
				return Output{Scalar("a", 1)}, nil
			}
			return Output{Scalar("b", 1)}, nil
		})
		require.Error(t, err)

		var ae *ErrAggregation
		require.ErrorAs(t, err, &ae)
	})

	t.Run("arity drift", func(t *testing.T) {
		calls := 0
		_, err := Run(context.Background(), cloud, 2, func(*neighborhood.Buffer) (Output, error) {
			calls++
			if calls == 1 {
				return Output{Vector("v", 1, 2)}, nil
			}
			return Output{Vector("v", 1)}, nil
		})
		require.Error(t, err)
	})
}

func TestRun_VectorMetrics(t *testing.T) {
	cloud := collinearCloud(t)

	tbl, err := Run(context.Background(), cloud, 2, func(b *neighborhood.Buffer) (Output, error) {
		return Output{
			Scalar("n", float64(b.K())),
			Vector("range", b.X()[0], b.X()[b.K()-1]),
		}, nil
	}, func(o *Options) {
		o.IncludeCoordinates = false
	})
	require.NoError(t, err)
	require.Equal(t, []string{"n", "range.0", "range.1"}, tbl.Names())
}

func TestRun_BruteBuilder(t *testing.T) {
	cloud := collinearCloud(t)

	viaKD, err := Run(context.Background(), cloud, 2, meanX)
	require.NoError(t, err)

	viaBrute, err := Run(context.Background(), cloud, 2, meanX, func(o *Options) {
		o.Builder = brute.New()
	})
	require.NoError(t, err)

	require.Equal(t, viaKD.Names(), viaBrute.Names())
	for i := 0; i < viaKD.NumCols(); i++ {
		require.Equal(t, viaKD.Column(i).Values, viaBrute.Column(i).Values)
	}
}

func TestRun_ParallelEquivalence(t *testing.T) {
	rng := testutil.NewRNG(2024)
	cloud := rng.UniformCloud(2000, 100)

	aggregate := func(b *neighborhood.Buffer) (Output, error) {
		var sumZ, sumI float64
		intensity, err := b.Attr("Intensity")
		if err != nil {
			return nil, err
		}
		for i, z := range b.Z() {
			sumZ += z
			sumI += intensity[i]
		}
		n := float64(b.K())
		return Output{
			Scalar("zmean", sumZ/n),
			Scalar("imean", sumI/n),
		}, nil
	}

	serial, err := Run(context.Background(), cloud, 8, aggregate)
	require.NoError(t, err)

	for _, workers := range []int{2, 4, 7} {
		parallel, err := Run(context.Background(), cloud, 8, aggregate, func(o *Options) {
			o.Workers = workers
		})
		require.NoError(t, err)

		require.Equal(t, serial.Names(), parallel.Names())
		require.Equal(t, serial.NumRows(), parallel.NumRows())
		for i := 0; i < serial.NumCols(); i++ {
			require.Equal(t, serial.Column(i).Values, parallel.Column(i).Values, "workers=%d col=%d", workers, i)
		}
	}
}

func TestRun_ParallelWithFilter(t *testing.T) {
	rng := testutil.NewRNG(11)
	cloud := rng.UniformCloud(1000, 50)

	pred := func(p pointcloud.Point) (bool, error) {
		return p.Index()%3 == 0, nil
	}

	serial, err := Run(context.Background(), cloud, 4, meanX, func(o *Options) {
		o.Predicate = pred
	})
	require.NoError(t, err)

	parallel, err := Run(context.Background(), cloud, 4, meanX, func(o *Options) {
		o.Predicate = pred
		o.Workers = 4
	})
	require.NoError(t, err)

	require.Equal(t, serial.NumRows(), parallel.NumRows())
	for i := 0; i < serial.NumCols(); i++ {
		require.Equal(t, serial.Column(i).Values, parallel.Column(i).Values)
	}
}

func TestRun_Idempotent(t *testing.T) {
	rng := testutil.NewRNG(5)
	cloud := rng.UniformCloud(500, 10)

	first, err := Run(context.Background(), cloud, 6, meanX)
	require.NoError(t, err)

	second, err := Run(context.Background(), cloud, 6, meanX)
	require.NoError(t, err)

	for i := 0; i < first.NumCols(); i++ {
		require.Equal(t, first.Column(i).Values, second.Column(i).Values)
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	rng := testutil.NewRNG(3)
	cloud := rng.UniformCloud(5000, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cloud, 4, meanX)
	require.ErrorIs(t, err, context.Canceled)
}
