// Package pointcloud provides the columnar point-cloud model that the
// pointgo engine operates on.
//
// A Cloud stores coordinates and attributes in a structure-of-arrays (SOA)
// layout: one contiguous float64 slice per column. This keeps neighbor
// gathers cache-friendly and lets the engine hand out zero-copy column
// views where ownership allows it.
package pointcloud

import (
	"fmt"
	"math"
	"sort"
)

// ErrEmpty is returned when a Cloud is constructed with no points.
type ErrEmpty struct{}

func (e *ErrEmpty) Error() string {
	return "pointcloud: cloud must contain at least one point"
}

// ErrColumnLength indicates a column whose length differs from the
// coordinate columns.
type ErrColumnLength struct {
	Column   string
	Expected int
	Actual   int
}

func (e *ErrColumnLength) Error() string {
	return fmt.Sprintf("pointcloud: column %q has length %d, want %d", e.Column, e.Actual, e.Expected)
}

// ErrNonFinite indicates a NaN or infinite coordinate value.
type ErrNonFinite struct {
	Axis       string
	PointIndex int
}

func (e *ErrNonFinite) Error() string {
	return fmt.Sprintf("pointcloud: non-finite %s coordinate at point %d", e.Axis, e.PointIndex)
}

// ErrUnknownAttribute indicates a lookup of an attribute column that does
// not exist in the cloud.
type ErrUnknownAttribute struct {
	Name string
}

func (e *ErrUnknownAttribute) Error() string {
	return fmt.Sprintf("pointcloud: unknown attribute %q", e.Name)
}

// Cloud is an immutable ordered set of 3D points with named scalar
// attribute columns. Point order is stable and defines the row order of
// every table derived from the cloud.
//
// The Cloud takes ownership of the slices passed to New; callers must not
// mutate them afterwards.
type Cloud struct {
	x, y, z []float64
	attrs   map[string][]float64
	names   []string // attribute names, sorted for deterministic iteration
}

// Options configures Cloud construction.
type Options struct {
	// Attributes holds named per-point scalar columns. Every column must
	// have the same length as the coordinate slices.
	Attributes map[string][]float64
}

// New creates a Cloud from coordinate columns and optional attribute
// columns. It fails if the cloud is empty, if any column length disagrees
// with the coordinate length, or if any coordinate is non-finite.
func New(x, y, z []float64, optFns ...func(o *Options)) (*Cloud, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	n := len(x)
	if n == 0 {
		return nil, &ErrEmpty{}
	}
	if len(y) != n {
		return nil, &ErrColumnLength{Column: "Y", Expected: n, Actual: len(y)}
	}
	if len(z) != n {
		return nil, &ErrColumnLength{Column: "Z", Expected: n, Actual: len(z)}
	}

	for i := 0; i < n; i++ {
		switch {
		case !isFinite(x[i]):
			return nil, &ErrNonFinite{Axis: "X", PointIndex: i}
		case !isFinite(y[i]):
			return nil, &ErrNonFinite{Axis: "Y", PointIndex: i}
		case !isFinite(z[i]):
			return nil, &ErrNonFinite{Axis: "Z", PointIndex: i}
		}
	}

	attrs := make(map[string][]float64, len(opts.Attributes))
	names := make([]string, 0, len(opts.Attributes))
	for name, col := range opts.Attributes {
		if len(col) != n {
			return nil, &ErrColumnLength{Column: name, Expected: n, Actual: len(col)}
		}
		attrs[name] = col
		names = append(names, name)
	}
	sort.Strings(names)

	return &Cloud{x: x, y: y, z: z, attrs: attrs, names: names}, nil
}

// WithAttribute adds a named attribute column.
func WithAttribute(name string, values []float64) func(o *Options) {
	return func(o *Options) {
		if o.Attributes == nil {
			o.Attributes = make(map[string][]float64)
		}
		o.Attributes[name] = values
	}
}

// Len returns the number of points in the cloud.
func (c *Cloud) Len() int { return len(c.x) }

// X returns the X coordinate column. The returned slice is shared with the
// cloud and must be treated as read-only.
func (c *Cloud) X() []float64 { return c.x }

// Y returns the Y coordinate column (read-only).
func (c *Cloud) Y() []float64 { return c.y }

// Z returns the Z coordinate column (read-only).
func (c *Cloud) Z() []float64 { return c.z }

// AttributeNames returns the attribute column names in sorted order.
func (c *Cloud) AttributeNames() []string { return c.names }

// Attribute returns the named attribute column (read-only).
func (c *Cloud) Attribute(name string) ([]float64, error) {
	col, ok := c.attrs[name]
	if !ok {
		return nil, &ErrUnknownAttribute{Name: name}
	}
	return col, nil
}

// HasAttribute reports whether the cloud carries the named column.
func (c *Cloud) HasAttribute(name string) bool {
	_, ok := c.attrs[name]
	return ok
}

// At returns an indexed view of a single point. The view stays valid for
// the lifetime of the cloud.
func (c *Cloud) At(i uint32) Point {
	return Point{cloud: c, index: i}
}

// Point is a lightweight per-point view used by filter predicates. It
// carries no data of its own; all reads go through the owning cloud.
type Point struct {
	cloud *Cloud
	index uint32
}

// Index returns the point's position in cloud order.
func (p Point) Index() uint32 { return p.index }

// X returns the point's X coordinate.
func (p Point) X() float64 { return p.cloud.x[p.index] }

// Y returns the point's Y coordinate.
func (p Point) Y() float64 { return p.cloud.y[p.index] }

// Z returns the point's Z coordinate.
func (p Point) Z() float64 { return p.cloud.z[p.index] }

// Attr returns the named attribute value for this point.
func (p Point) Attr(name string) (float64, error) {
	col, ok := p.cloud.attrs[name]
	if !ok {
		return 0, &ErrUnknownAttribute{Name: name}
	}
	return col[p.index], nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
