// Package kdtree provides an exact k-d tree spatial index over a point
// cloud.
//
// The tree is stored in flat arrays: a node slice with explicit child
// links and a permutation of point indexes partitioned into leaf buckets.
// Construction is O(n log n) via median quickselect; queries run in
// expected O(log n + k) with a bounded candidate heap.
package kdtree

import (
	"fmt"

	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/internal/queue"
	"github.com/hupe1980/pointgo/pointcloud"
)

// Compile-time check to ensure Tree satisfies the index contract.
var _ index.Index = (*Tree)(nil)

// Options contains configuration options for the k-d tree.
type Options struct {
	// LeafSize is the maximum number of points per leaf bucket. Larger
	// leaves trade tree depth for linear scans at the bottom.
	LeafSize int
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	LeafSize: 16,
}

const leafAxis = int8(-1)

// node is one tree node. Internal nodes carry a split axis/value and
// child links; leaves carry a range into the permutation array.
type node struct {
	axis        int8 // 0=X, 1=Y, 2=Z, leafAxis for leaves
	split       float64
	left, right int32
	start, end  int32
}

// Tree is an immutable k-d tree over the coordinates of a point cloud.
// It references the cloud's coordinate columns; it never copies or
// mutates them. Safe for concurrent queries.
type Tree struct {
	coords [3][]float64
	nodes  []node
	perm   []uint32
	opts   Options
}

// Build constructs a k-d tree over all points of the cloud.
func Build(cloud *pointcloud.Cloud, optFns ...func(o *Options)) (*Tree, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if cloud == nil {
		return nil, fmt.Errorf("kdtree: cloud must not be nil")
	}
	if opts.LeafSize < 1 {
		return nil, fmt.Errorf("kdtree: invalid leaf size: %d", opts.LeafSize)
	}

	n := cloud.Len()
	perm := make([]uint32, n)
	for i := range perm {
		perm[i] = uint32(i)
	}

	t := &Tree{
		coords: [3][]float64{cloud.X(), cloud.Y(), cloud.Z()},
		perm:   perm,
		nodes:  make([]node, 0, 2*n/opts.LeafSize+1),
		opts:   opts,
	}
	t.buildNode(0, int32(n))
	return t, nil
}

// New returns an index.Builder so the tree can be plugged into the engine
// without exposing kdtree types at the call site.
func New(optFns ...func(o *Options)) index.Builder {
	return func(cloud *pointcloud.Cloud) (index.Index, error) {
		return Build(cloud, optFns...)
	}
}

// buildNode builds the subtree over perm[start:end] and returns its node
// id.
func (t *Tree) buildNode(start, end int32) int32 {
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{})

	count := end - start
	if count <= int32(t.opts.LeafSize) {
		t.nodes[id] = node{axis: leafAxis, start: start, end: end}
		return id
	}

	axis := t.spreadAxis(start, end)
	mid := start + count/2
	t.selectNth(start, end, mid, axis)
	split := t.coords[axis][t.perm[mid]]

	left := t.buildNode(start, mid)
	right := t.buildNode(mid, end)
	t.nodes[id] = node{axis: int8(axis), split: split, left: left, right: right}
	return id
}

// spreadAxis returns the axis with the greatest coordinate spread among
// perm[start:end]. Splitting on the widest axis keeps cells close to
// cubic, which tightens query pruning.
func (t *Tree) spreadAxis(start, end int32) int {
	best, bestSpread := 0, -1.0
	for axis := 0; axis < 3; axis++ {
		col := t.coords[axis]
		lo := col[t.perm[start]]
		hi := lo
		for i := start + 1; i < end; i++ {
			v := col[t.perm[i]]
			if v < lo {
				lo = v
			} else if v > hi {
				hi = v
			}
		}
		if spread := hi - lo; spread > bestSpread {
			best, bestSpread = axis, spread
		}
	}
	return best
}

// selectNth partitions perm[start:end] so that perm[nth] holds the
// element of rank nth along the given axis (quickselect, O(n) expected).
// Ties on the coordinate are broken by point index so the partition is
// deterministic for any input order.
func (t *Tree) selectNth(start, end, nth int32, axis int) {
	col := t.coords[axis]
	lo, hi := start, end-1
	for lo < hi {
		// Median-of-three pivot to avoid quadratic behavior on sorted
		// input.
		mid := lo + (hi-lo)/2
		if t.less(col, t.perm[mid], t.perm[lo]) {
			t.perm[mid], t.perm[lo] = t.perm[lo], t.perm[mid]
		}
		if t.less(col, t.perm[hi], t.perm[lo]) {
			t.perm[hi], t.perm[lo] = t.perm[lo], t.perm[hi]
		}
		if t.less(col, t.perm[hi], t.perm[mid]) {
			t.perm[hi], t.perm[mid] = t.perm[mid], t.perm[hi]
		}
		pivot := t.perm[mid]

		i, j := lo, hi
		for i <= j {
			for t.less(col, t.perm[i], pivot) {
				i++
			}
			for t.less(col, pivot, t.perm[j]) {
				j--
			}
			if i <= j {
				t.perm[i], t.perm[j] = t.perm[j], t.perm[i]
				i++
				j--
			}
		}
		if nth <= j {
			hi = j
		} else if nth >= i {
			lo = i
		} else {
			return
		}
	}
}

// less orders point ids by coordinate along col, ties by id.
func (t *Tree) less(col []float64, a, b uint32) bool {
	if col[a] != col[b] {
		return col[a] < col[b]
	}
	return a < b
}

// Size returns the number of indexed points.
func (t *Tree) Size() int { return len(t.perm) }

// KNN returns the k nearest neighbors of (x, y, z), sorted by ascending
// squared distance with ties broken by ascending point index. The query
// location itself is a valid neighbor when it coincides with an indexed
// point.
func (t *Tree) KNN(x, y, z float64, k int, dst []index.Neighbor) ([]index.Neighbor, error) {
	if err := index.ValidateK(k, t.Size()); err != nil {
		return nil, err
	}

	h := queue.NewNeighborHeap(dst, k)
	q := [3]float64{x, y, z}
	t.search(0, q, k, &h)
	return h.Sort(), nil
}

func (t *Tree) search(id int32, q [3]float64, k int, h *queue.NeighborHeap) {
	nd := &t.nodes[id]

	if nd.axis == leafAxis {
		xs, ys, zs := t.coords[0], t.coords[1], t.coords[2]
		for i := nd.start; i < nd.end; i++ {
			p := t.perm[i]
			d := index.SquaredDistance(q[0], q[1], q[2], xs[p], ys[p], zs[p])
			h.PushBounded(index.Neighbor{Index: p, Distance: d}, k)
		}
		return
	}

	delta := q[nd.axis] - nd.split
	near, far := nd.left, nd.right
	if delta >= 0 {
		near, far = nd.right, nd.left
	}

	t.search(near, q, k, h)

	// Descend the far side unless the splitting plane is strictly
	// farther than the current worst candidate. Equality must descend:
	// an equal-distance point with a lower index still wins the tie.
	if worst, ok := h.WorstDistance(); !h.Full(k) || !ok || delta*delta <= worst {
		t.search(far, q, k, h)
	}
}
