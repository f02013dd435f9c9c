// Package quality decides which scenes are clear enough to fuse and masks
// the pixels their quality bands flag as invalid.
//
// The cloud fraction is the share of quality-band pixels a FlagDecoder marks
// invalid. The decoder is policy, configured per sensor class: NonZero is
// the permissive placeholder, BitMask applies mission bit semantics.
package quality
