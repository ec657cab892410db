// Package engine implements the neighbor-query-and-aggregate sweep at the
// core of pointgo.
//
// For each processed point the engine queries the spatial index for the
// point's k nearest neighbors, fills a reusable neighborhood buffer with
// their attributes, invokes the caller-supplied aggregation function, and
// appends the output to a columnar result table. A filter predicate
// narrows which points are processed, never which points are searched.
package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/index/kdtree"
	"github.com/hupe1980/pointgo/mask"
	"github.com/hupe1980/pointgo/neighborhood"
	"github.com/hupe1980/pointgo/pointcloud"
	"github.com/hupe1980/pointgo/table"
)

// ErrInvalidArgument is returned for arguments rejected before any index
// or sweep work begins.
var ErrInvalidArgument = errors.New("engine: invalid argument")

// ErrInternal is returned when an engine invariant breaks mid-sweep, such
// as an index returning a result that does not match the neighborhood
// buffer size. It indicates a faulty index implementation, not a caller
// mistake.
var ErrInternal = errors.New("engine: internal error")

// ErrAggregation reports an aggregation function that failed, returned no
// output, or produced output whose shape differs from the schema fixed by
// the first call of the run.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrAggregation struct {
	PointIndex uint32
	cause      error
}

func (e *ErrAggregation) Error() string {
	return fmt.Sprintf("engine: aggregation failed at point %d: %v", e.PointIndex, e.cause)
}

func (e *ErrAggregation) Unwrap() error { return e.cause }

// AggregateFunc computes one Output from the current neighborhood buffer.
// The buffer's views are only valid for the duration of the call; the
// engine overwrites the buffer before the next invocation.
//
// The engine cannot preempt a hung AggregateFunc; keeping it bounded is
// the caller's responsibility.
type AggregateFunc func(b *neighborhood.Buffer) (Output, error)

// Options contains configuration options for a metrics run.
type Options struct {
	// IncludeCoordinates prepends X, Y, Z columns for the processed
	// points to the result table.
	IncludeCoordinates bool

	// Predicate selects which points are processed. Nil processes every
	// point, at the same cost as running without a filter.
	Predicate mask.Predicate

	// Workers is the number of concurrent sweep workers. Values <= 1 run
	// the canonical single-threaded sweep. Each worker gets its own
	// neighborhood buffer and query scratch; the index is shared
	// read-only. The aggregation function must be safe for concurrent
	// calls when Workers > 1.
	Workers int

	// Builder constructs the spatial index. Defaults to a k-d tree.
	Builder index.Builder

	// Index reuses a prebuilt index instead of building one. It must
	// cover exactly the full cloud.
	Index index.Index
}

// DefaultOptions contains the default configuration options for a run.
var DefaultOptions = Options{
	IncludeCoordinates: true,
	Workers:            1,
}

// ctxCheckInterval bounds how many points are processed between context
// cancellation checks.
const ctxCheckInterval = 1024

// Run executes one metrics sweep and returns the result table. Row order
// is the cloud's point order restricted to the filtered points; this
// ordering is part of the contract, not an accident. On any error no
// table is returned.
func Run(ctx context.Context, cloud *pointcloud.Cloud, k int, aggregate AggregateFunc, optFns ...func(o *Options)) (*table.Table, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if cloud == nil {
		return nil, fmt.Errorf("%w: cloud must not be nil", ErrInvalidArgument)
	}
	if aggregate == nil {
		return nil, fmt.Errorf("%w: aggregate must not be nil", ErrInvalidArgument)
	}
	if k < 2 {
		return nil, fmt.Errorf("%w: k must be >= 2, got %d", ErrInvalidArgument, k)
	}

	idx := opts.Index
	if idx == nil {
		builder := opts.Builder
		if builder == nil {
			builder = kdtree.New()
		}
		built, err := builder(cloud)
		if err != nil {
			return nil, err
		}
		idx = built
	}
	if idx.Size() != cloud.Len() {
		return nil, fmt.Errorf("%w: index covers %d points, cloud has %d", ErrInvalidArgument, idx.Size(), cloud.Len())
	}
	if err := index.ValidateK(k, idx.Size()); err != nil {
		return nil, err
	}

	// The mask narrows only which points are queried. The index above
	// always covers the full cloud.
	var selected []uint32
	if opts.Predicate != nil {
		m, err := mask.Select(cloud, opts.Predicate)
		if err != nil {
			return nil, err
		}
		selected = m.Indices()
	}

	count := cloud.Len()
	if selected != nil {
		count = len(selected)
	}
	if count == 0 {
		return table.NewAssembler(nil, 0).Finalize(nil, nil, nil)
	}

	s := &sweep{
		cloud:     cloud,
		idx:       idx,
		k:         k,
		aggregate: aggregate,
		selected:  selected,
		count:     count,
	}

	var err error
	if opts.Workers > 1 {
		err = s.runParallel(ctx, opts.Workers)
	} else {
		err = s.runSerial(ctx)
	}
	if err != nil {
		return nil, err
	}

	if !opts.IncludeCoordinates {
		return s.asm.Finalize(nil, nil, nil)
	}
	x, y, z := s.processedCoordinates()
	return s.asm.Finalize(x, y, z)
}

// sweep carries the per-run state shared between the serial and parallel
// paths.
type sweep struct {
	cloud     *pointcloud.Cloud
	idx       index.Index
	k         int
	aggregate AggregateFunc
	selected  []uint32 // nil means all points in order
	count     int

	sch *schema
	asm *table.Assembler
}

// pointAt maps a processed-point position to a cloud point index.
func (s *sweep) pointAt(pos int) uint32 {
	if s.selected == nil {
		return uint32(pos)
	}
	return s.selected[pos]
}

// worker owns the mutable per-worker query state.
type worker struct {
	buf *neighborhood.Buffer
	dst []index.Neighbor
	row []float64
}

func (s *sweep) newWorker() *worker {
	buf := neighborhood.NewBuffer(s.cloud.AttributeNames())
	buf.Resize(s.k)
	return &worker{
		buf: buf,
		dst: make([]index.Neighbor, 0, s.k),
	}
}

// step processes one point: query, fill, aggregate. The output is checked
// against the run schema and flattened into w.row.
func (s *sweep) step(w *worker, pi uint32) error {
	xs, ys, zs := s.cloud.X(), s.cloud.Y(), s.cloud.Z()

	res, err := s.idx.KNN(xs[pi], ys[pi], zs[pi], s.k, s.dstFor(w))
	if err != nil {
		return err
	}
	w.dst = res

	if err := w.buf.Fill(s.cloud, res); err != nil {
		return fmt.Errorf("%w: at point %d: %v", ErrInternal, pi, err)
	}

	out, err := s.aggregate(w.buf)
	if err != nil {
		return &ErrAggregation{PointIndex: pi, cause: err}
	}
	if len(out) == 0 {
		return &ErrAggregation{PointIndex: pi, cause: errors.New("aggregation returned no output")}
	}
	if err := s.sch.check(out); err != nil {
		return &ErrAggregation{PointIndex: pi, cause: err}
	}
	s.sch.flatten(out, w.row)
	return nil
}

func (s *sweep) dstFor(w *worker) []index.Neighbor {
	return w.dst[:0]
}

// first processes the first selected point synchronously, fixing the run
// schema and creating the assembler.
func (s *sweep) first(w *worker) error {
	pi := s.pointAt(0)
	xs, ys, zs := s.cloud.X(), s.cloud.Y(), s.cloud.Z()

	res, err := s.idx.KNN(xs[pi], ys[pi], zs[pi], s.k, s.dstFor(w))
	if err != nil {
		return err
	}
	w.dst = res

	if err := w.buf.Fill(s.cloud, res); err != nil {
		return fmt.Errorf("%w: at point %d: %v", ErrInternal, pi, err)
	}

	out, err := s.aggregate(w.buf)
	if err != nil {
		return &ErrAggregation{PointIndex: pi, cause: err}
	}
	sch, err := newSchema(out)
	if err != nil {
		return &ErrAggregation{PointIndex: pi, cause: err}
	}

	s.sch = sch
	s.asm = table.NewAssembler(sch.columnNames(), s.count)
	w.row = make([]float64, sch.width)
	s.sch.flatten(out, w.row)
	return s.asm.Push(w.row)
}

func (s *sweep) runSerial(ctx context.Context) error {
	w := s.newWorker()
	if err := s.first(w); err != nil {
		return err
	}

	for pos := 1; pos < s.count; pos++ {
		if pos%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := s.step(w, s.pointAt(pos)); err != nil {
			return err
		}
		if err := s.asm.Push(w.row); err != nil {
			return err
		}
	}
	return nil
}

// runParallel fans the sweep out over n workers. The first point runs
// synchronously to fix the schema; the rest are split into contiguous
// chunks whose outputs land in preassigned row slots, so the final table
// order is identical to the serial sweep.
func (s *sweep) runParallel(ctx context.Context, n int) error {
	w0 := s.newWorker()
	if err := s.first(w0); err != nil {
		return err
	}

	rest := s.count - 1
	if rest == 0 {
		return nil
	}
	if n > rest {
		n = rest
	}

	width := s.sch.width
	rows := make([]float64, rest*width)

	g, gctx := errgroup.WithContext(ctx)
	chunk := (rest + n - 1) / n
	for start := 0; start < rest; start += chunk {
		end := start + chunk
		if end > rest {
			end = rest
		}
		start, end := start, end

		g.Go(func() error {
			w := s.newWorker()
			for pos := start; pos < end; pos++ {
				if (pos-start)%ctxCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				w.row = rows[pos*width : (pos+1)*width]
				if err := s.step(w, s.pointAt(pos+1)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for pos := 0; pos < rest; pos++ {
		if err := s.asm.Push(rows[pos*width : (pos+1)*width]); err != nil {
			return err
		}
	}
	return nil
}

// processedCoordinates returns the coordinate columns of the processed
// points, in row order. Unfiltered runs share the cloud's columns
// directly; filtered runs gather a narrowed copy.
func (s *sweep) processedCoordinates() (x, y, z []float64) {
	if s.selected == nil {
		return s.cloud.X(), s.cloud.Y(), s.cloud.Z()
	}
	xs, ys, zs := s.cloud.X(), s.cloud.Y(), s.cloud.Z()
	x = make([]float64, len(s.selected))
	y = make([]float64, len(s.selected))
	z = make([]float64, len(s.selected))
	for i, pi := range s.selected {
		x[i] = xs[pi]
		y[i] = ys[pi]
		z[i] = zs[pi]
	}
	return x, y, z
}
