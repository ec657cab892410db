// Package index defines the contract for spatial indexes used by the
// pointgo engine.
//
// An index is built once over the full point cloud and then serves
// repeated, read-only k-nearest-neighbor queries. Indexes never see a
// filtered subset of the cloud: the neighbor candidate pool is always the
// entire point set, regardless of which points the engine chooses to
// query.
package index

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pointgo/pointcloud"
)

// ErrInvalidK is returned when k is outside [1, Size()-1].
var ErrInvalidK = errors.New("k must satisfy 1 <= k < number of indexed points")

// Neighbor is one entry of a k-NN query result: a point index and the
// squared Euclidean distance from the query location.
type Neighbor struct {
	Index    uint32
	Distance float64
}

// Index answers exact k-nearest-neighbor queries over an immutable point
// cloud.
//
// Results are sorted by ascending distance; equal distances sort by
// ascending point index, so identical inputs produce identical results on
// every implementation. A query location that coincides with an indexed
// point returns that point among its own neighbors: there is no implicit
// self-exclusion. Callers that want a point's neighborhood without the
// point itself query k+1 and drop the first hit.
type Index interface {
	// Size returns the number of indexed points.
	Size() int

	// KNN returns the k nearest neighbors of the query location.
	//
	// dst is an optional scratch slice; when it has sufficient capacity
	// the result is written into it, so a caller issuing millions of
	// queries can amortize the result allocation to zero. The returned
	// slice is only valid until the next KNN call with the same dst.
	KNN(x, y, z float64, k int, dst []Neighbor) ([]Neighbor, error)
}

// Builder constructs an Index from a cloud. Implementations validate the
// cloud themselves so the engine can stay index-agnostic.
type Builder func(cloud *pointcloud.Cloud) (Index, error)

// ValidateK checks a query k against the indexed point count. Shared by
// all implementations so they reject queries identically.
func ValidateK(k, size int) error {
	if k < 1 || k >= size {
		return fmt.Errorf("%w: k=%d, size=%d", ErrInvalidK, k, size)
	}
	return nil
}

// SquaredDistance returns the squared Euclidean distance between two 3D
// locations. Squared form avoids the sqrt on the hot path; ordering is
// unaffected.
func SquaredDistance(ax, ay, az, bx, by, bz float64) float64 {
	dx := ax - bx
	dy := ay - by
	dz := az - bz
	return dx*dx + dy*dy + dz*dz
}
