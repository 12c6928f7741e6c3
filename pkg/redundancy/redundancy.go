// Package redundancy drops symbols that the temporal memory frame already
// predicts and reinserts them after decoding.
//
// Every decision depends only on the memory frame, which both sides build from
// frames that have already been decoded. The per-position keep/drop mask is
// the only thing that has to travel with the stream.
package redundancy

import (
	"errors"
	"fmt"

	"github.com/ssargent/biocoder/pkg/quant"
	"github.com/ssargent/biocoder/pkg/symbol"
	"github.com/ssargent/biocoder/pkg/temporal"
)

// ErrMaskMismatch is returned when a mask does not fit the reduced sequence
var ErrMaskMismatch = errors.New("redundancy mask does not match symbols")

// Eliminator classifies symbols as redundant against a memory frame
type Eliminator struct {
	threshold float64
	quant     *quant.Table
}

// New creates an eliminator. Positions whose memory stability is below
// threshold are never elided.
func New(threshold float64, q *quant.Table) (*Eliminator, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("redundancy threshold must be in [0, 1], got %g", threshold)
	}
	if q == nil {
		return nil, fmt.Errorf("redundancy eliminator requires a quantization table")
	}
	return &Eliminator{threshold: threshold, quant: q}, nil
}

// Threshold returns the stability threshold
func (e *Eliminator) Threshold() float64 { return e.threshold }

// Eligible reports whether position i may be elided at all. It does not look
// at the symbol, so the decoder can evaluate it before decoding position i.
func (e *Eliminator) Eligible(mem *temporal.Memory, i int) bool {
	slot := mem.Slot(i)
	return slot != nil && len(slot.Indices) > 0 && slot.Stability >= e.threshold
}

// IsRedundant reports whether s at position i equals the memory's prediction
func (e *Eliminator) IsRedundant(mem *temporal.Memory, i int, s symbol.Symbol) bool {
	if !e.Eligible(mem, i) {
		return false
	}
	slot := mem.Slot(i)
	if s.Kind != slot.Kind {
		return false
	}
	idx := e.quant.Indices(s)
	if len(idx) != len(slot.Indices) {
		return false
	}
	for j := range idx {
		if idx[j] != slot.Indices[j] {
			return false
		}
	}
	return true
}

// Eliminate returns the symbols that must be coded and a mask marking the
// dropped positions (true = dropped). With a nil memory nothing is dropped.
func (e *Eliminator) Eliminate(symbols []symbol.Symbol, mem *temporal.Memory) ([]symbol.Symbol, []bool) {
	reduced := make([]symbol.Symbol, 0, len(symbols))
	mask := make([]bool, len(symbols))
	for i, s := range symbols {
		if e.IsRedundant(mem, i, s) {
			mask[i] = true
			continue
		}
		reduced = append(reduced, s)
	}
	return reduced, mask
}

// Restore reinserts the dropped positions from the memory frame
func (e *Eliminator) Restore(reduced []symbol.Symbol, mask []bool, mem *temporal.Memory) ([]symbol.Symbol, error) {
	out := make([]symbol.Symbol, 0, len(mask))
	next := 0
	for i, dropped := range mask {
		if dropped {
			slot := mem.Slot(i)
			if slot == nil {
				return nil, fmt.Errorf("%w: position %d not covered by memory", ErrMaskMismatch, i)
			}
			out = append(out, slot.Predicted(e.quant))
			continue
		}
		if next >= len(reduced) {
			return nil, fmt.Errorf("%w: mask keeps more than %d symbols", ErrMaskMismatch, len(reduced))
		}
		out = append(out, reduced[next])
		next++
	}
	if next != len(reduced) {
		return nil, fmt.Errorf("%w: %d symbols left over", ErrMaskMismatch, len(reduced)-next)
	}
	return out, nil
}
