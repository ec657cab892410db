// Package brute provides a brute-force spatial index for small clouds and
// for cross-checking tree-based indexes in tests.
package brute

import (
	"fmt"

	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/internal/queue"
	"github.com/hupe1980/pointgo/pointcloud"
)

// Compile-time check to ensure Force satisfies the index contract.
var _ index.Index = (*Force)(nil)

// Force scans every point per query: O(n) per query, zero build cost
// beyond referencing the cloud's coordinate columns. Results follow the
// same (distance, index) ordering contract as every other index.
type Force struct {
	xs, ys, zs []float64
}

// Build creates a brute-force index over all points of the cloud.
func Build(cloud *pointcloud.Cloud) (*Force, error) {
	if cloud == nil {
		return nil, fmt.Errorf("brute: cloud must not be nil")
	}
	return &Force{xs: cloud.X(), ys: cloud.Y(), zs: cloud.Z()}, nil
}

// New returns an index.Builder for the engine.
func New() index.Builder {
	return func(cloud *pointcloud.Cloud) (index.Index, error) {
		return Build(cloud)
	}
}

// Size returns the number of indexed points.
func (f *Force) Size() int { return len(f.xs) }

// KNN returns the k nearest neighbors of (x, y, z) by full scan.
func (f *Force) KNN(x, y, z float64, k int, dst []index.Neighbor) ([]index.Neighbor, error) {
	if err := index.ValidateK(k, f.Size()); err != nil {
		return nil, err
	}

	h := queue.NewNeighborHeap(dst, k)
	for i := range f.xs {
		d := index.SquaredDistance(x, y, z, f.xs[i], f.ys[i], f.zs[i])
		h.PushBounded(index.Neighbor{Index: uint32(i), Distance: d}, k)
	}
	return h.Sort(), nil
}
