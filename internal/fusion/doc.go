// Package fusion reduces a batch of aligned grids to one composite.
//
// Every input must already sit on the same target grid; Fuse asserts this
// and refuses to fabricate output for an empty batch. Policies are pure
// functions of the grids, weights, timestamps and tolerance. Per-pixel
// values are combined in sorted order so the result does not depend on the
// order of the inputs.
package fusion
