// Package neighborhood provides the reusable buffer that carries one
// query's k neighbors to the caller-supplied aggregation function.
package neighborhood

import (
	"fmt"

	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/pointcloud"
)

// Buffer holds the coordinates, attributes and distances of the k
// neighbors returned by the most recent query. Fill overwrites the buffer
// in place; once k is fixed for a run, repeated fills allocate nothing.
//
// Every slice returned by an accessor is a view into the buffer: it is
// invalidated by the next Fill and must be read synchronously. This is
// the central memory-reuse contract of the engine, which fills one buffer
// once per processed point, potentially millions of times per run.
type Buffer struct {
	k       int
	indices []uint32
	dists   []float64
	coords  [3][]float64
	names   []string
	attrs   map[string][]float64
}

// NewBuffer creates a buffer exposing the given attribute columns. Pass
// the cloud's attribute names to expose everything the cloud carries.
func NewBuffer(attrNames []string) *Buffer {
	b := &Buffer{
		names: append([]string(nil), attrNames...),
		attrs: make(map[string][]float64, len(attrNames)),
	}
	for _, name := range attrNames {
		b.attrs[name] = nil
	}
	return b
}

// Resize sets the buffer capacity to k neighbors. Growing reallocates;
// shrinking only narrows the views.
func (b *Buffer) Resize(k int) {
	if cap(b.indices) < k {
		b.indices = make([]uint32, k)
		b.dists = make([]float64, k)
		for axis := range b.coords {
			b.coords[axis] = make([]float64, k)
		}
		for _, name := range b.names {
			b.attrs[name] = make([]float64, k)
		}
	}
	b.k = k
	b.indices = b.indices[:k]
	b.dists = b.dists[:k]
	for axis := range b.coords {
		b.coords[axis] = b.coords[axis][:k]
	}
	for _, name := range b.names {
		b.attrs[name] = b.attrs[name][:k]
	}
}

// Fill gathers the neighbors' coordinates and attributes from the cloud
// into the buffer, overwriting the previous contents. The result length
// must equal the buffer's k.
func (b *Buffer) Fill(cloud *pointcloud.Cloud, result []index.Neighbor) error {
	if len(result) != b.k {
		return fmt.Errorf("neighborhood: result has %d neighbors, buffer sized for %d", len(result), b.k)
	}

	xs, ys, zs := cloud.X(), cloud.Y(), cloud.Z()
	for i, n := range result {
		b.indices[i] = n.Index
		b.dists[i] = n.Distance
		b.coords[0][i] = xs[n.Index]
		b.coords[1][i] = ys[n.Index]
		b.coords[2][i] = zs[n.Index]
	}
	for _, name := range b.names {
		col, err := cloud.Attribute(name)
		if err != nil {
			return err
		}
		dst := b.attrs[name]
		for i, n := range result {
			dst[i] = col[n.Index]
		}
	}
	return nil
}

// K returns the buffer's neighbor capacity.
func (b *Buffer) K() int { return b.k }

// Indices returns the neighbors' point indexes, nearest first.
func (b *Buffer) Indices() []uint32 { return b.indices }

// Distances returns the neighbors' squared distances from the query
// location, ascending.
func (b *Buffer) Distances() []float64 { return b.dists }

// X returns the neighbors' X coordinates.
func (b *Buffer) X() []float64 { return b.coords[0] }

// Y returns the neighbors' Y coordinates.
func (b *Buffer) Y() []float64 { return b.coords[1] }

// Z returns the neighbors' Z coordinates.
func (b *Buffer) Z() []float64 { return b.coords[2] }

// AttributeNames returns the attribute columns exposed by the buffer.
func (b *Buffer) AttributeNames() []string { return b.names }

// Attr returns the neighbors' values for the named attribute column.
func (b *Buffer) Attr(name string) ([]float64, error) {
	col, ok := b.attrs[name]
	if !ok {
		return nil, &pointcloud.ErrUnknownAttribute{Name: name}
	}
	return col, nil
}
