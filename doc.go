// Package pointgo computes per-point neighborhood statistics over large
// 3D point clouds.
//
// For every point of interest, pointgo retrieves the point's k nearest
// spatial neighbors from an exact spatial index, exposes the neighbors'
// attributes through a reusable zero-allocation buffer, and hands the
// buffer to a caller-supplied aggregation function. The per-point outputs
// are collected into a single columnar table, optionally prefixed with
// the processed points' coordinates. It is the point-wise analogue of
// grid-based aggregation: each point defines its own neighborhood.
//
// Features:
//
//   - Exact k-NN over 3D coordinates: k-d tree (default) or brute force
//   - Deterministic results: distance ties break by point index
//   - Reusable neighbor buffer: no per-point allocation across millions
//     of queries
//   - Pluggable aggregation: any func(*neighborhood.Buffer) produces one
//     or more named scalar/vector metrics per point
//   - Roaring-bitmap filter masks that narrow the queried points without
//     touching the neighbor candidate pool
//   - Optional parallel sweep with per-worker buffers
//   - Snapshot persistence for clouds (zstd/lz4) with local, in-memory,
//     S3 and MinIO blob storage
//
// # Quick Start
//
//	cloud, err := pointcloud.New(xs, ys, zs,
//	    pointcloud.WithAttribute("intensity", intensity))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tbl, err := pointgo.ComputePointMetrics(ctx, cloud, 8,
//	    func(b *neighborhood.Buffer) (engine.Output, error) {
//	        vals, _ := b.Attr("intensity")
//	        var sum float64
//	        for _, v := range vals {
//	            sum += v
//	        }
//	        return engine.Output{
//	            engine.Scalar("imean", sum/float64(len(vals))),
//	        }, nil
//	    })
//
// The resulting table has one row per processed point, in cloud order,
// with columns X, Y, Z, imean.
//
// # Neighbor conventions
//
// Queries are by location, not by point identity: a query location that
// coincides with an indexed point returns that point among its own k
// neighbors. Callers wanting self-exclusion request k+1 neighbors and
// drop the first (zero-distance) hit. Distances are squared Euclidean.
package pointgo
