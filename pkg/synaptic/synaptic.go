// Package synaptic implements the Hebbian probability model that biases the
// entropy coder toward predicted symbols.
//
// The model never acts as a second probability source. Its advisory
// probability is turned into an integer boost which the coder adds to the one
// value frequency table before coding a symbol, on both sides, in the same
// order.
package synaptic

import (
	"fmt"
	"math"

	"github.com/ssargent/biocoder/pkg/symbol"
)

const (
	// NeutralWeight is the initial weight of every kind
	NeutralWeight = 0.1

	baseStrength       = -0.5
	contextStrength    = 0.5
	hitStrength        = 1.0
	sameKindStrength   = 0.25
	contextInfluence   = 0.1
	homeostaticTarget  = 0.5
	minHomeostaticGain = 0.5
	maxHomeostaticGain = 2.0

	// DefaultHistoryCapacity bounds the adaptation event ring
	DefaultHistoryCapacity = 256

	// MaxRate is the largest accepted adaptation rate. A single update can
	// move a weight by at most a tenth of its range.
	MaxRate = 0.1
)

// AdaptationEvent records one weight update. It is diagnostic only.
type AdaptationEvent struct {
	Symbol             symbol.Symbol
	Context            []symbol.Symbol
	AdaptationStrength float64
	Relevance          float64
	// Timestamp is the model's logical step counter
	Timestamp uint64
}

// Model holds one synaptic weight per symbol kind
type Model struct {
	weights     [symbol.NumKinds]float64
	rate        float64
	homeostatic float64
	step        uint64

	history     []AdaptationEvent
	historyHead int
	historyLen  int
}

// New creates a model with neutral weights
func New(rate float64, historyCapacity int) (*Model, error) {
	if math.IsNaN(rate) || rate < 0 || rate > MaxRate {
		return nil, fmt.Errorf("adaptation rate must be in [0, %g], got %g", MaxRate, rate)
	}
	if historyCapacity < 0 {
		return nil, fmt.Errorf("history capacity must not be negative, got %d", historyCapacity)
	}

	m := &Model{
		rate:        rate,
		homeostatic: 1.0,
		history:     make([]AdaptationEvent, historyCapacity),
	}
	for k := range m.weights {
		m.weights[k] = NeutralWeight
	}
	return m, nil
}

// Weight returns the current weight of kind k
func (m *Model) Weight(k symbol.Kind) float64 {
	if !k.Valid() {
		return 0
	}
	return m.weights[k]
}

// HomeostaticScale returns the current homeostatic gain
func (m *Model) HomeostaticScale() float64 { return m.homeostatic }

// Steps returns the number of adaptations applied
func (m *Model) Steps() uint64 { return m.step }

// Relevance returns the biological relevance of a symbol kind
func Relevance(k symbol.Kind) float64 {
	switch k {
	case symbol.Luminance:
		return 0.9
	case symbol.Chrominance:
		return 0.7
	case symbol.MotionVector:
		return 0.8
	case symbol.TransformCoeff:
		return 0.6
	case symbol.PredictionResidual:
		return 0.5
	case symbol.BiologicalFeature:
		return 1.0
	}
	return 0
}

// Strength computes base + context bonus + prediction bonus for s
func Strength(s symbol.Symbol, context []symbol.Symbol, prediction *symbol.Symbol, hit bool) float64 {
	strength := baseStrength
	if len(context) > 0 {
		same := symbol.CountKind(context, s.Kind)
		strength += contextStrength * float64(same) / float64(len(context))
	}
	switch {
	case hit:
		strength += hitStrength
	case prediction != nil && prediction.Kind == s.Kind:
		strength += sameKindStrength
	}
	return strength
}

// Adapt applies the bounded Hebbian update for s and records an event
func (m *Model) Adapt(s symbol.Symbol, context []symbol.Symbol, prediction *symbol.Symbol, hit bool) {
	if !s.Kind.Valid() {
		return
	}
	strength := Strength(s, context, prediction, hit)
	w := m.weights[s.Kind] + m.rate*strength
	m.weights[s.Kind] = clamp01(w)
	m.step++

	var sum float64
	for _, v := range m.weights {
		sum += v
	}
	mean := sum / float64(len(m.weights))
	if mean > 0 {
		m.homeostatic = math.Max(minHomeostaticGain, math.Min(maxHomeostaticGain, homeostaticTarget/mean))
	} else {
		m.homeostatic = maxHomeostaticGain
	}

	m.record(AdaptationEvent{
		Symbol:             s,
		Context:            append([]symbol.Symbol(nil), context...),
		AdaptationStrength: strength,
		Relevance:          Relevance(s.Kind),
		Timestamp:          m.step,
	})
}

func (m *Model) record(ev AdaptationEvent) {
	if len(m.history) == 0 {
		return
	}
	if m.historyLen < len(m.history) {
		m.history[(m.historyHead+m.historyLen)%len(m.history)] = ev
		m.historyLen++
		return
	}
	m.history[m.historyHead] = ev
	m.historyHead = (m.historyHead + 1) % len(m.history)
}

// History returns the retained adaptation events, oldest first
func (m *Model) History() []AdaptationEvent {
	out := make([]AdaptationEvent, 0, m.historyLen)
	for i := 0; i < m.historyLen; i++ {
		out = append(out, m.history[(m.historyHead+i)%len(m.history)])
	}
	return out
}

// Probability returns the advisory probability of s given context:
// weight * context influence * homeostatic scale, clamped to [0, 1].
func (m *Model) Probability(s symbol.Symbol, context []symbol.Symbol) float64 {
	if !s.Kind.Valid() {
		return 0
	}
	influence := 1 + contextInfluence*float64(symbol.CountKind(context, s.Kind))
	return clamp01(m.weights[s.Kind] * influence * m.homeostatic)
}

// Boost converts the advisory probability of s into an integer frequency
// increment in [0, maxBoost].
func (m *Model) Boost(s symbol.Symbol, context []symbol.Symbol, maxBoost uint32) uint32 {
	p := m.Probability(s, context)
	return uint32(math.Floor(float64(p * float64(maxBoost))))
}

// Clone returns an independent copy of the model
func (m *Model) Clone() *Model {
	c := *m
	c.history = make([]AdaptationEvent, len(m.history))
	copy(c.history, m.history)
	return &c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
