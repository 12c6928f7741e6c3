package coder

import (
	"fmt"

	"github.com/ssargent/biocoder/pkg/predictor"
	"github.com/ssargent/biocoder/pkg/rangecoder"
	"github.com/ssargent/biocoder/pkg/redundancy"
	"github.com/ssargent/biocoder/pkg/symbol"
	"github.com/ssargent/biocoder/pkg/synaptic"
	"github.com/ssargent/biocoder/pkg/temporal"
)

// Status is the lifecycle state of a coder
type Status int

const (
	StatusIdle Status = iota
	StatusEncoding
	StatusFinalized
	StatusDecoding
	StatusExhausted
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusEncoding:
		return "encoding"
	case StatusFinalized:
		return "finalized"
	case StatusDecoding:
		return "decoding"
	case StatusExhausted:
		return "exhausted"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Direction is the role an instance is bound to after its first call
type Direction int

const (
	DirectionNone Direction = iota
	DirectionEncode
	DirectionDecode
)

func (d Direction) String() string {
	switch d {
	case DirectionEncode:
		return "encode"
	case DirectionDecode:
		return "decode"
	}
	return "none"
}

// model is every piece of adaptive state that must evolve identically on both
// sides of a stream
type model struct {
	kinds  *rangecoder.FrequencyTable
	values *rangecoder.FrequencyTable
	flags  *rangecoder.FrequencyTable

	context   *temporal.Manager
	predictor *predictor.Predictor
	synaptic  *synaptic.Model

	// history holds the most recent coded symbols, oldest first
	history []symbol.Symbol
	window  int
}

func newModel(cfg Config) (*model, error) {
	kinds, err := rangecoder.NewFrequencyTable(kindAlphabet, auxCeiling())
	if err != nil {
		return nil, err
	}
	values, err := rangecoder.NewFrequencyTable(cfg.AlphabetSize, cfg.ceiling())
	if err != nil {
		return nil, err
	}
	flags, err := rangecoder.NewFrequencyTable(flagAlphabet, auxCeiling())
	if err != nil {
		return nil, err
	}
	ctx, err := temporal.New(cfg.ContextWindowSize, cfg.TemporalDecay)
	if err != nil {
		return nil, err
	}
	pred, err := predictor.New(cfg.ContextWindowSize, cfg.AdaptationRate)
	if err != nil {
		return nil, err
	}
	syn, err := synaptic.New(cfg.AdaptationRate, cfg.HistoryCapacity)
	if err != nil {
		return nil, err
	}

	return &model{
		kinds:     kinds,
		values:    values,
		flags:     flags,
		context:   ctx,
		predictor: pred,
		synaptic:  syn,
		history:   make([]symbol.Symbol, 0, cfg.ContextWindowSize),
		window:    cfg.ContextWindowSize,
	}, nil
}

func (m *model) clone() *model {
	h := make([]symbol.Symbol, len(m.history), m.window)
	copy(h, m.history)
	return &model{
		kinds:     m.kinds.Clone(),
		values:    m.values.Clone(),
		flags:     m.flags.Clone(),
		context:   m.context.Clone(),
		predictor: m.predictor.Clone(),
		synaptic:  m.synaptic.Clone(),
		history:   h,
		window:    m.window,
	}
}

// push appends s to the history, dropping the oldest symbol when full
func (m *model) push(s symbol.Symbol) {
	if len(m.history) == m.window {
		copy(m.history, m.history[1:])
		m.history[len(m.history)-1] = s
		return
	}
	m.history = append(m.history, s)
}

func (m *model) rescales() int {
	return m.kinds.Rescales() + m.values.Rescales() + m.flags.Rescales()
}

// Stats describes the most recent successful call
type Stats struct {
	Symbols        int `json:"symbols"`
	Coded          int `json:"coded"`
	Eliminated     int `json:"eliminated"`
	Bytes          int `json:"bytes"`
	Rescales       int `json:"rescales"`
	PredictionHits int `json:"prediction_hits"`

	// Patterns splits Eliminated by the redundancy each elision exploited
	Patterns redundancy.Counts `json:"patterns"`
}

// Snapshot is a comparable view of the adaptive state. Two instances that
// processed the same frames hold equal snapshots.
type Snapshot struct {
	Kinds            []uint32                 `json:"kinds"`
	Values           []uint32                 `json:"values"`
	Flags            []uint32                 `json:"flags"`
	PredictorWeights []float64                `json:"predictor_weights"`
	SynapticWeights  [symbol.NumKinds]float64 `json:"synaptic_weights"`
	Homeostatic      float64                  `json:"homeostatic"`
	Frames           int                      `json:"frames"`
	History          []symbol.Symbol          `json:"history"`
}

func (m *model) snapshot() Snapshot {
	s := Snapshot{
		Kinds:            m.kinds.Cumulative(),
		Values:           m.values.Cumulative(),
		Flags:            m.flags.Cumulative(),
		PredictorWeights: m.predictor.Weights(),
		Homeostatic:      m.synaptic.HomeostaticScale(),
		Frames:           m.context.Len(),
		History:          append([]symbol.Symbol(nil), m.history...),
	}
	for k := range s.SynapticWeights {
		s.SynapticWeights[k] = m.synaptic.Weight(symbol.Kind(k))
	}
	return s
}
