// Package record implements the table model used to reconstruct end-to-end
// latency paths from sparse, timestamped instrumentation rows.
//
// The package provides:
//   - Record: a sparse row of named int64 fields where unset is distinct
//     from zero
//   - Records: an ordered row collection with a named column schema
//   - Merge, MergeSequential, MergeSequentialForAddrTrack: deterministic
//     join operations that stitch rows from different trace sources into
//     causal chains
//   - GroupBy / GroupedRecords: single-scan partitioning with stable,
//     first-occurrence key ordering
//   - Clip / Strip: window and margin trimming shapers
//   - Latency, Frequency, Period: per-table timing transforms
//
// Rows arriving from different trace sources are correlated via reused and
// ambiguous resource identifiers such as buffer addresses. The sequential
// merges resolve that ambiguity by ordering candidates on a sequencing
// column; MergeSequentialForAddrTrack additionally keeps a FIFO queue per
// address value so that recycled addresses bind to the oldest pending
// occurrence rather than crossing over to a later one.
//
// All merge, group, shape and transform operations are pure: they return a
// new Records and never mutate their inputs. Returned tables may share row
// storage with their inputs; use Clone for an independent snapshot.
package record
