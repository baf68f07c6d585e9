// Package snapshot reads Dedalus-style snapshot archives.
//
// An archive is an HDF5 file with two groups:
//
//   - scales: 1-D coordinate datasets, each declaring its logical axis name in
//     a NAME attribute, plus the time series scales/sim_time.
//   - tasks: one dataset per field with a leading time dimension, shaped
//     (T, Nx, Nz) for scalars or (T, 2, Nx, Nz) for vectors.
//
// Everything here goes through the narrow [Handle] interface. [Open] returns
// the HDF5-backed implementation; tests substitute an in-memory one.
//
// # Resolution
//
// Axis storage keys are arbitrary (Dedalus writes names like x_hash_<digest>),
// so [ResolveAxis] matches on the NAME attribute and never on position. A
// missing or ambiguous axis is a [*ResolutionError].
//
// # Classification
//
// [ScanTasks] stats every task once and classifies it as [Scalar] or [Vector]
// from its per-frame shape. Any other shape, or a leading dimension that
// disagrees with the time series, is a [*SchemaError]. [ReadField] then loads
// the data and serves per-frame slabs without copying.
package snapshot
