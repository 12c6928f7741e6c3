package rangecoder

import (
	"fmt"
)

// MaxAlphabet is the largest alphabet a FrequencyTable accepts
const MaxAlphabet = 1 << 16

// MaxFrequency is the largest total a table may reach. With 32-bit code
// registers the renormalized range never drops below a quarter of the code
// space, so the total must stay below 2^30 for every symbol to keep a
// non-empty sub-interval.
const MaxFrequency = 1<<30 - 1

// DefaultCeiling is the rescale threshold used when none is configured
const DefaultCeiling = 1 << 20

// FrequencyTable is an adaptive cumulative frequency table.
//
// cum has length alphabet+1 with cum[0] == 0 and cum[alphabet] == total. Every
// symbol keeps a frequency of at least 1, so no symbol ever reaches zero
// probability.
type FrequencyTable struct {
	cum      []uint32
	ceiling  uint32
	rescales int
}

// NewFrequencyTable creates a table with a uniform pseudo-count of 1 per symbol
func NewFrequencyTable(alphabet int, ceiling uint32) (*FrequencyTable, error) {
	if alphabet < 1 || alphabet > MaxAlphabet {
		return nil, fmt.Errorf("%w: alphabet size %d outside [1, %d]", ErrInvalidTable, alphabet, MaxAlphabet)
	}
	if ceiling == 0 {
		ceiling = DefaultCeiling
	}
	if ceiling > MaxFrequency {
		return nil, fmt.Errorf("%w: ceiling %d exceeds %d", ErrInvalidTable, ceiling, MaxFrequency)
	}
	if uint64(ceiling) < 2*uint64(alphabet) {
		return nil, fmt.Errorf("%w: ceiling %d below twice the alphabet size %d", ErrInvalidTable, ceiling, alphabet)
	}

	cum := make([]uint32, alphabet+1)
	for i := 1; i <= alphabet; i++ {
		cum[i] = uint32(i)
	}

	return &FrequencyTable{cum: cum, ceiling: ceiling}, nil
}

// Alphabet returns the number of symbols in the table
func (t *FrequencyTable) Alphabet() int { return len(t.cum) - 1 }

// Total returns the sum of all symbol frequencies
func (t *FrequencyTable) Total() uint32 { return t.cum[len(t.cum)-1] }

// Ceiling returns the configured rescale threshold
func (t *FrequencyTable) Ceiling() uint32 { return t.ceiling }

// Rescales returns how many times the table has been halved
func (t *FrequencyTable) Rescales() int { return t.rescales }

// Range returns the cumulative interval [low, high) of sym
func (t *FrequencyTable) Range(sym int) (uint32, uint32, error) {
	if sym < 0 || sym >= t.Alphabet() {
		return 0, 0, fmt.Errorf("%w: symbol %d outside alphabet of %d", ErrSymbolRange, sym, t.Alphabet())
	}
	return t.cum[sym], t.cum[sym+1], nil
}

// Frequency returns the frequency of sym, or 0 if sym is out of range
func (t *FrequencyTable) Frequency(sym int) uint32 {
	if sym < 0 || sym >= t.Alphabet() {
		return 0
	}
	return t.cum[sym+1] - t.cum[sym]
}

// Cumulative returns a copy of the cumulative array
func (t *FrequencyTable) Cumulative() []uint32 {
	out := make([]uint32, len(t.cum))
	copy(out, t.cum)
	return out
}

// Find returns the symbol whose interval contains target.
// The caller guarantees target < Total().
func (t *FrequencyTable) Find(target uint32) int {
	lo, hi := 0, t.Alphabet()
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if t.cum[mid] > target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// Increment adds one occurrence of sym and rescales if the ceiling is exceeded
func (t *FrequencyTable) Increment(sym int) error {
	return t.Boost(sym, 1)
}

// Boost adds n occurrences of sym and rescales while the total exceeds the ceiling
func (t *FrequencyTable) Boost(sym int, n uint32) error {
	if sym < 0 || sym >= t.Alphabet() {
		return fmt.Errorf("%w: symbol %d outside alphabet of %d", ErrSymbolRange, sym, t.Alphabet())
	}
	if n == 0 {
		return nil
	}
	if n > t.ceiling {
		n = t.ceiling
	}

	for i := sym + 1; i < len(t.cum); i++ {
		t.cum[i] += n
	}
	for t.Total() > t.ceiling {
		t.rescale()
	}
	return nil
}

// rescale halves every frequency, keeping each at least 1
func (t *FrequencyTable) rescale() {
	var acc uint32
	for i := 1; i < len(t.cum); i++ {
		span := t.cum[i] - t.cum[i-1]
		span /= 2
		if span == 0 {
			span = 1
		}
		t.cum[i-1] = acc
		acc += span
	}
	t.cum[len(t.cum)-1] = acc
	t.rescales++
}

// Validate checks the table invariants
func (t *FrequencyTable) Validate() error {
	if t.cum[0] != 0 {
		return fmt.Errorf("%w: cum[0] = %d", ErrTableInvariant, t.cum[0])
	}
	for i := 1; i < len(t.cum); i++ {
		if t.cum[i] <= t.cum[i-1] {
			return fmt.Errorf("%w: symbol %d has zero or negative frequency", ErrTableInvariant, i-1)
		}
	}
	if t.Total() > t.ceiling {
		return fmt.Errorf("%w: total %d exceeds ceiling %d", ErrTableInvariant, t.Total(), t.ceiling)
	}
	return nil
}

// Clone returns an independent copy of the table
func (t *FrequencyTable) Clone() *FrequencyTable {
	return &FrequencyTable{
		cum:      t.Cumulative(),
		ceiling:  t.ceiling,
		rescales: t.rescales,
	}
}
