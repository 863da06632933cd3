// Package segment implements an algebra of half-open integer intervals.
//
// The solver represents active Jacobian rows and free tangent columns as
// normalized interval sets rather than dense boolean masks: operations on a
// handful of runs stay cheap no matter how large the index space is.
//
// Two layers are provided:
//
//   - pairwise operations on single segments (Overlap, Union, Diff)
//   - set-level operations on normalized ordered sets (Set), built by
//     folding the pairwise operations over one operand
package segment
