package quality

import (
	"fmt"
	"math"
)

// FlagDecoder interprets one quality-band value.
type FlagDecoder interface {
	// Invalid reports whether the pixel must be excluded from fusion.
	// NaN means the pixel carries no quality information and is never
	// reported invalid.
	Invalid(v float64) bool
}

// NonZero flags every non-zero quality value.
type NonZero struct{}

// Invalid implements FlagDecoder.
func (NonZero) Invalid(v float64) bool {
	return v != 0 && !math.IsNaN(v)
}

// BitMask flags a quality value when any of Bits is set in its integer part.
type BitMask struct {
	Bits uint64
}

// NewBitMask builds a mask from bit positions (0 = least significant).
func NewBitMask(positions ...int) (BitMask, error) {
	var m BitMask
	if len(positions) == 0 {
		return m, fmt.Errorf("bit mask needs at least one bit position")
	}
	for _, p := range positions {
		if p < 0 || p > 63 {
			return BitMask{}, fmt.Errorf("bit position %d out of range 0-63", p)
		}
		m.Bits |= 1 << uint(p)
	}
	return m, nil
}

// Invalid implements FlagDecoder.
func (m BitMask) Invalid(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return uint64(int64(v))&m.Bits != 0
}
