// Package quant maps continuous symbol components onto a bounded discrete
// alphabet and back.
package quant

import (
	"errors"
	"fmt"
	"math"

	"github.com/ssargent/biocoder/pkg/symbol"
)

// MaxLevels is the largest alphabet the range coder tables accept
const MaxLevels = 1 << 16

// ErrInvalidTable is returned when a table cannot be built from its parameters
var ErrInvalidTable = errors.New("invalid quantization table")

// Table is a uniform quantizer over [Min, Max] with Levels reconstruction points.
// A Table is immutable once built and must be built identically on the encoding
// and decoding side of a stream.
type Table struct {
	levels int
	min    float64
	max    float64
	step   float64
}

// New builds a quantization table
func New(levels int, min, max float64) (*Table, error) {
	if levels < 2 || levels > MaxLevels {
		return nil, fmt.Errorf("%w: levels must be in [2, %d], got %d", ErrInvalidTable, MaxLevels, levels)
	}
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return nil, fmt.Errorf("%w: range bounds must be finite", ErrInvalidTable)
	}
	if min >= max {
		return nil, fmt.Errorf("%w: min (%g) must be less than max (%g)", ErrInvalidTable, min, max)
	}

	return &Table{
		levels: levels,
		min:    min,
		max:    max,
		step:   (max - min) / float64(levels-1),
	}, nil
}

// Levels returns the alphabet size
func (t *Table) Levels() int { return t.levels }

// Min returns the lower bound of the value range
func (t *Table) Min() float64 { return t.min }

// Max returns the upper bound of the value range
func (t *Table) Max() float64 { return t.max }

// Step returns the distance between adjacent reconstruction values
func (t *Table) Step() float64 { return t.step }

// EncodeIndex returns the index of the reconstruction value nearest to v.
// Values outside the range are clipped; NaN maps to index 0.
func (t *Table) EncodeIndex(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if v <= t.min {
		return 0
	}
	if v >= t.max {
		return t.levels - 1
	}

	pos := (v - t.min) / (t.max - t.min)
	idx := int(math.Round(pos * float64(t.levels-1)))
	if idx < 0 {
		return 0
	}
	if idx > t.levels-1 {
		return t.levels - 1
	}
	return idx
}

// DecodeValue returns the reconstruction value of idx, clamping idx into the alphabet
func (t *Table) DecodeValue(idx int) float64 {
	if idx < 0 {
		idx = 0
	}
	if idx > t.levels-1 {
		idx = t.levels - 1
	}
	if idx == t.levels-1 {
		return t.max
	}
	return t.min + float64(idx)*(t.max-t.min)/float64(t.levels-1)
}

// Indices returns the alphabet indices of every component of s
func (t *Table) Indices(s symbol.Symbol) []int {
	if s.Kind == symbol.MotionVector {
		return []int{t.EncodeIndex(s.X), t.EncodeIndex(s.Y)}
	}
	return []int{t.EncodeIndex(s.X)}
}

// Canonical snaps every component of s to its reconstruction value. Both sides
// of a stream only ever see canonical symbols, so all adaptive state is derived
// from them.
func (t *Table) Canonical(s symbol.Symbol) symbol.Symbol {
	out := symbol.Symbol{Kind: s.Kind, X: t.DecodeValue(t.EncodeIndex(s.X))}
	if s.Kind == symbol.MotionVector {
		out.Y = t.DecodeValue(t.EncodeIndex(s.Y))
	}
	return out
}

// FromIndices rebuilds a canonical symbol of kind k from its component indices
func (t *Table) FromIndices(k symbol.Kind, idx []int) symbol.Symbol {
	s := symbol.Symbol{Kind: k}
	if len(idx) > 0 {
		s.X = t.DecodeValue(idx[0])
	}
	if k == symbol.MotionVector && len(idx) > 1 {
		s.Y = t.DecodeValue(idx[1])
	}
	return s
}
