package neighborhood

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointgo/index"
	"github.com/hupe1980/pointgo/pointcloud"
)

func newTestCloud(t *testing.T) *pointcloud.Cloud {
	t.Helper()

	cloud, err := pointcloud.New(
		[]float64{0, 1, 2, 3},
		[]float64{10, 11, 12, 13},
		[]float64{20, 21, 22, 23},
		pointcloud.WithAttribute("Intensity", []float64{0.1, 0.2, 0.3, 0.4}),
	)
	require.NoError(t, err)
	return cloud
}

func TestBuffer_Fill(t *testing.T) {
	cloud := newTestCloud(t)

	b := NewBuffer(cloud.AttributeNames())
	b.Resize(2)

	err := b.Fill(cloud, []index.Neighbor{
		{Index: 2, Distance: 0},
		{Index: 0, Distance: 8},
	})
	require.NoError(t, err)

	require.Equal(t, 2, b.K())
	require.Equal(t, []uint32{2, 0}, b.Indices())
	require.Equal(t, []float64{0, 8}, b.Distances())
	require.Equal(t, []float64{2, 0}, b.X())
	require.Equal(t, []float64{12, 10}, b.Y())
	require.Equal(t, []float64{22, 20}, b.Z())

	intensity, err := b.Attr("Intensity")
	require.NoError(t, err)
	require.Equal(t, []float64{0.3, 0.1}, intensity)

	_, err = b.Attr("Missing")
	require.Error(t, err)
}

func TestBuffer_FillOverwrites(t *testing.T) {
	cloud := newTestCloud(t)

	b := NewBuffer(cloud.AttributeNames())
	b.Resize(2)

	require.NoError(t, b.Fill(cloud, []index.Neighbor{{Index: 0}, {Index: 1}}))
	first := b.X()

	require.NoError(t, b.Fill(cloud, []index.Neighbor{{Index: 2}, {Index: 3}}))
	require.Equal(t, []float64{2, 3}, b.X())

	// Same backing array: accessors are views, not copies.
	require.Equal(t, &first[0], &b.X()[0])
}

func TestBuffer_FillLengthMismatch(t *testing.T) {
	cloud := newTestCloud(t)

	b := NewBuffer(nil)
	b.Resize(3)

	err := b.Fill(cloud, []index.Neighbor{{Index: 0}})
	require.Error(t, err)
}

func TestBuffer_Resize(t *testing.T) {
	cloud := newTestCloud(t)

	b := NewBuffer(cloud.AttributeNames())
	b.Resize(4)
	require.NoError(t, b.Fill(cloud, []index.Neighbor{
		{Index: 0}, {Index: 1}, {Index: 2}, {Index: 3},
	}))
	grown := b.X()

	// Shrinking narrows the views without reallocating.
	b.Resize(2)
	require.Equal(t, 2, b.K())
	require.Len(t, b.X(), 2)
	require.Equal(t, &grown[0], &b.X()[0])
}
