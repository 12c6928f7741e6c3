// Package temporal keeps a bounded history of recently coded frames and derives
// a decay-weighted memory frame from it.
//
// Encoder and decoder feed the manager the same canonical frames in the same
// order, so ComputeMemory returns bit-identical results on both sides. That is
// what lets redundancy decisions be re-derived by the decoder instead of being
// transmitted.
package temporal

import (
	"errors"
	"fmt"
	"math"

	"github.com/ssargent/biocoder/pkg/quant"
	"github.com/ssargent/biocoder/pkg/symbol"
)

// ErrNoHistory is returned when memory is requested before any frame was stored
var ErrNoHistory = errors.New("no context history")

// DefaultDecay is the per-frame decay applied to older frames
const DefaultDecay = 0.9

// FeatureLen is the length of a frame feature vector: mean value then count, per kind
const FeatureLen = 2 * symbol.NumKinds

// Frame is one entry of the context ring buffer
type Frame struct {
	Symbols              []symbol.Symbol
	Features             []float64
	TemporalPosition     int
	PredictionConfidence float64
}

// Manager is a fixed-capacity FIFO of frames
type Manager struct {
	frames   []Frame // ring storage
	head     int     // index of the oldest frame
	count    int
	decay    float64
	position int // temporal position assigned to the next frame
}

// New creates a manager holding at most windowSize frames
func New(windowSize int, decay float64) (*Manager, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("context window size must be positive, got %d", windowSize)
	}
	if !(decay > 0 && decay <= 1) {
		return nil, fmt.Errorf("temporal decay must be in (0, 1], got %g", decay)
	}
	return &Manager{
		frames: make([]Frame, windowSize),
		decay:  decay,
	}, nil
}

// Capacity returns the maximum number of frames kept
func (m *Manager) Capacity() int { return len(m.frames) }

// Len returns the number of frames currently stored
func (m *Manager) Len() int { return m.count }

// Update pushes a copy of symbols as the newest frame, evicting the oldest
// frame when the buffer is full.
func (m *Manager) Update(symbols []symbol.Symbol, confidence float64) {
	frame := Frame{
		Symbols:              append([]symbol.Symbol(nil), symbols...),
		Features:             Features(symbols),
		TemporalPosition:     m.position,
		PredictionConfidence: confidence,
	}
	m.position++

	if m.count < len(m.frames) {
		m.frames[(m.head+m.count)%len(m.frames)] = frame
		m.count++
		return
	}
	m.frames[m.head] = frame
	m.head = (m.head + 1) % len(m.frames)
}

// Frames returns the stored frames, oldest first
func (m *Manager) Frames() []Frame {
	out := make([]Frame, 0, m.count)
	for i := 0; i < m.count; i++ {
		out = append(out, m.frames[(m.head+i)%len(m.frames)])
	}
	return out
}

// newest returns the frame of the given age (0 = most recent)
func (m *Manager) newest(age int) *Frame {
	return &m.frames[(m.head+m.count-1-age)%len(m.frames)]
}

// Clone returns an independent copy of the manager. Frame symbol slices are
// never mutated after Update, so they are shared.
func (m *Manager) Clone() *Manager {
	c := *m
	c.frames = make([]Frame, len(m.frames))
	copy(c.frames, m.frames)
	return &c
}

// Features summarizes a frame as the mean X value and the count of each kind
func Features(symbols []symbol.Symbol) []float64 {
	f := make([]float64, FeatureLen)
	for _, s := range symbols {
		if !s.Kind.Valid() {
			continue
		}
		f[int(s.Kind)] += s.X
		f[symbol.NumKinds+int(s.Kind)]++
	}
	for k := 0; k < symbol.NumKinds; k++ {
		if n := f[symbol.NumKinds+k]; n > 0 {
			f[k] /= n
		}
	}
	return f
}

// Slot is the memory frame's view of one position
type Slot struct {
	Kind      symbol.Kind
	X         float64
	Y         float64
	Indices   []int
	Stability float64
}

// Memory is the decay-weighted summary of the stored frames
type Memory struct {
	Slots []Slot
	// Weight is the total decay weight over all stored frames
	Weight float64
}

// Len returns the number of positions covered by the memory frame
func (mem *Memory) Len() int {
	if mem == nil {
		return 0
	}
	return len(mem.Slots)
}

// Slot returns the slot at position i, or nil when i is not covered
func (mem *Memory) Slot(i int) *Slot {
	if mem == nil || i < 0 || i >= len(mem.Slots) {
		return nil
	}
	return &mem.Slots[i]
}

// Predicted returns the canonical symbol the memory predicts at slot s
func (s *Slot) Predicted(q *quant.Table) symbol.Symbol {
	return q.FromIndices(s.Kind, s.Indices)
}

// ComputeMemory returns the decay-weighted memory frame (weight = decay^age,
// newest frame age 0). For every position the slot kind is that of the newest
// frame covering the position; only frames of that kind contribute to the mean.
// Stability is the weight share of contributing frames whose indices equal the
// indices of the weighted mean.
func (m *Manager) ComputeMemory(q *quant.Table) (*Memory, error) {
	if m.count == 0 {
		return nil, ErrNoHistory
	}

	width := 0
	for age := 0; age < m.count; age++ {
		if n := len(m.newest(age).Symbols); n > width {
			width = n
		}
	}

	mem := &Memory{Slots: make([]Slot, width)}
	weights := make([]float64, m.count)
	w := 1.0
	for age := 0; age < m.count; age++ {
		weights[age] = w
		mem.Weight += w
		w *= m.decay
	}

	for i := 0; i < width; i++ {
		slot := &mem.Slots[i]
		kindSet := false
		var sumW, sumX, sumY, coverW float64
		for age := 0; age < m.count; age++ {
			syms := m.newest(age).Symbols
			if i >= len(syms) {
				continue
			}
			coverW += weights[age]
			s := syms[i]
			if !kindSet {
				slot.Kind = s.Kind
				kindSet = true
			}
			if s.Kind != slot.Kind {
				continue
			}
			sumW += weights[age]
			sumX += weights[age] * s.X
			sumY += weights[age] * s.Y
		}

		// every covering frame has decayed to zero weight
		if sumW == 0 {
			continue
		}
		slot.X = sumX / sumW
		slot.Y = sumY / sumW
		if slot.Kind == symbol.MotionVector {
			slot.Indices = []int{q.EncodeIndex(slot.X), q.EncodeIndex(slot.Y)}
		} else {
			slot.Indices = []int{q.EncodeIndex(slot.X)}
		}

		var agreeW float64
		for age := 0; age < m.count; age++ {
			syms := m.newest(age).Symbols
			if i >= len(syms) || syms[i].Kind != slot.Kind {
				continue
			}
			if indicesEqual(q.Indices(syms[i]), slot.Indices) {
				agreeW += weights[age]
			}
		}
		slot.Stability = math.Min(1, agreeW/coverW)
	}

	return mem, nil
}

func indicesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
