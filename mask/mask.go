// Package mask provides the filter mask that selects which points of a
// cloud the engine processes.
//
// A mask restricts only the set of queried points. It never narrows the
// neighbor candidate pool: the spatial index is always built over, and
// searched against, the entire cloud.
package mask

import (
	"fmt"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/pointgo/pointcloud"
)

// Predicate is a per-point filter test. Returning an error (for example
// because a referenced attribute does not exist) aborts the whole run;
// points are never silently skipped.
type Predicate func(p pointcloud.Point) (bool, error)

// ErrPredicate reports a predicate that could not be evaluated for a
// point.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrPredicate struct {
	PointIndex uint32
	cause      error
}

func (e *ErrPredicate) Error() string {
	return fmt.Sprintf("mask: predicate failed at point %d: %v", e.PointIndex, e.cause)
}

func (e *ErrPredicate) Unwrap() error { return e.cause }

// Mask is a set of selected point indexes backed by a Roaring bitmap.
// Iteration order is ascending, which preserves the cloud's point order
// among selected points.
type Mask struct {
	rb *roaring.Bitmap
}

// Select evaluates the predicate once per point, in point order, and
// returns the mask of points for which it held.
func Select(cloud *pointcloud.Cloud, pred Predicate) (*Mask, error) {
	rb := roaring.New()
	n := cloud.Len()
	for i := 0; i < n; i++ {
		ok, err := pred(cloud.At(uint32(i)))
		if err != nil {
			return nil, &ErrPredicate{PointIndex: uint32(i), cause: err}
		}
		if ok {
			rb.Add(uint32(i))
		}
	}
	return &Mask{rb: rb}, nil
}

// Cardinality returns the number of selected points.
func (m *Mask) Cardinality() int {
	return int(m.rb.GetCardinality())
}

// Contains reports whether the point index is selected.
func (m *Mask) Contains(i uint32) bool {
	return m.rb.Contains(i)
}

// Iterator returns the selected point indexes in ascending order.
func (m *Mask) Iterator() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := m.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// Indices materializes the selected point indexes in ascending order.
func (m *Mask) Indices() []uint32 {
	return m.rb.ToArray()
}
