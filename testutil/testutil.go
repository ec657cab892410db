// Package testutil provides deterministic data generators for tests and
// benchmarks.
package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/pointgo/pointcloud"
)

// NeighborResult is a ground-truth nearest neighbor.
type NeighborResult struct {
	Index    uint32
	Distance float64
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
// Locks only once per call (preferred over calling Float64 in a loop).
func (r *RNG) FillUniformRange(dst []float64, minVal, maxVal float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float64()*span
	}
}

// UniformCoords generates n coordinate triples uniformly in [0, extent).
func (r *RNG) UniformCoords(n int, extent float64) (x, y, z []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	x = make([]float64, n)
	y = make([]float64, n)
	z = make([]float64, n)
	for i := range n {
		x[i] = r.rand.Float64() * extent
		y[i] = r.rand.Float64() * extent
		z[i] = r.rand.Float64() * extent
	}
	return x, y, z
}

// UniformCloud generates a cloud of n points uniformly in [0, extent)
// with a single "Intensity" attribute in [0, 1).
func (r *RNG) UniformCloud(n int, extent float64) *pointcloud.Cloud {
	x, y, z := r.UniformCoords(n, extent)

	intensity := make([]float64, n)
	r.FillUniformRange(intensity, 0, 1)

	cloud, err := pointcloud.New(x, y, z, pointcloud.WithAttribute("Intensity", intensity))
	if err != nil {
		panic(err)
	}
	return cloud
}

// ClusteredCloud generates a cloud whose points gather around random
// cluster centers with Gaussian spread. Useful for exercising uneven
// spatial partitions.
func (r *RNG) ClusteredCloud(n, clusters int, extent, spread float64) *pointcloud.Cloud {
	r.mu.Lock()

	cx := make([]float64, clusters)
	cy := make([]float64, clusters)
	cz := make([]float64, clusters)
	for i := range clusters {
		cx[i] = r.rand.Float64() * extent
		cy[i] = r.rand.Float64() * extent
		cz[i] = r.rand.Float64() * extent
	}

	x := make([]float64, n)
	y := make([]float64, n)
	z := make([]float64, n)
	for i := range n {
		c := i % clusters
		x[i] = cx[c] + r.rand.NormFloat64()*spread
		y[i] = cy[c] + r.rand.NormFloat64()*spread
		z[i] = cz[c] + r.rand.NormFloat64()*spread
	}
	r.mu.Unlock()

	cloud, err := pointcloud.New(x, y, z)
	if err != nil {
		panic(err)
	}
	return cloud
}

// BruteForceKNN computes exact nearest neighbors of the query by full
// scan, ordered by ascending distance and ascending index on ties.
// Ground truth for index tests.
func BruteForceKNN(x, y, z []float64, qx, qy, qz float64, k int) []NeighborResult {
	results := make([]NeighborResult, len(x))
	for i := range x {
		dx := x[i] - qx
		dy := y[i] - qy
		dz := z[i] - qz
		results[i] = NeighborResult{
			Index:    uint32(i),
			Distance: dx*dx + dy*dy + dz*dz,
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Index < results[j].Index
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}
