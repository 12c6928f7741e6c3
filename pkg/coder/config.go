package coder

import (
	"fmt"
	"math"

	"github.com/ssargent/biocoder/pkg/quant"
	"github.com/ssargent/biocoder/pkg/rangecoder"
	"github.com/ssargent/biocoder/pkg/symbol"
	"github.com/ssargent/biocoder/pkg/synaptic"
)

// Upper bounds on the parameters that size allocations
const (
	MaxContextWindow   = 4096
	MaxHistoryCapacity = 1 << 16
)

// Config holds the construction parameters of a coder. The encoder and the
// decoder of one stream must be built from identical configs; a mismatch is
// not detected.
type Config struct {
	EnableNeuralPrediction      bool `json:"enable_neural_prediction"`
	EnableSynapticAdaptation    bool `json:"enable_synaptic_adaptation"`
	EnableRedundancyElimination bool `json:"enable_redundancy_elimination"`

	ContextWindowSize   int     `json:"context_window_size"`  // frames kept by the context manager and symbols seen by the predictor
	AdaptationRate      float64 `json:"adaptation_rate"`      // synaptic and predictor learning rate
	RedundancyThreshold float64 `json:"redundancy_threshold"` // memory stability required before a position may be elided

	AlphabetSize int     `json:"alphabet_size"` // quantization levels
	MinValue     float64 `json:"min_value"`
	MaxValue     float64 `json:"max_value"`

	TemporalDecay    float64 `json:"temporal_decay"`    // per-frame decay of the memory frame
	FrequencyCeiling uint32  `json:"frequency_ceiling"` // value table rescale threshold
	SynapticBoost    uint32  `json:"synaptic_boost"`    // largest frequency nudge applied per symbol
	HistoryCapacity  int     `json:"history_capacity"`  // retained adaptation events
}

// DefaultConfig returns the standard configuration
func DefaultConfig() Config {
	return Config{
		EnableNeuralPrediction:      true,
		EnableSynapticAdaptation:    true,
		EnableRedundancyElimination: true,
		ContextWindowSize:           16,
		AdaptationRate:              0.01,
		RedundancyThreshold:         0.8,
		AlphabetSize:                4096,
		MinValue:                    -10_000,
		MaxValue:                    10_000,
		TemporalDecay:               0.9,
		FrequencyCeiling:            rangecoder.DefaultCeiling,
		SynapticBoost:               8,
		HistoryCapacity:             256,
	}
}

// Validate checks every parameter and returns an error wrapping ErrConfig
func (c Config) Validate() error {
	if c.ContextWindowSize < 1 || c.ContextWindowSize > MaxContextWindow {
		return fmt.Errorf("%w: context window size must be in [1, %d], got %d", ErrConfig, MaxContextWindow, c.ContextWindowSize)
	}
	if math.IsNaN(c.AdaptationRate) || c.AdaptationRate < 0 || c.AdaptationRate > synaptic.MaxRate {
		return fmt.Errorf("%w: adaptation rate must be in [0, %g], got %g", ErrConfig, synaptic.MaxRate, c.AdaptationRate)
	}
	if math.IsNaN(c.RedundancyThreshold) || c.RedundancyThreshold < 0 || c.RedundancyThreshold > 1 {
		return fmt.Errorf("%w: redundancy threshold must be in [0, 1], got %g", ErrConfig, c.RedundancyThreshold)
	}
	if _, err := quant.New(c.AlphabetSize, c.MinValue, c.MaxValue); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if !(c.TemporalDecay > 0 && c.TemporalDecay <= 1) {
		return fmt.Errorf("%w: temporal decay must be in (0, 1], got %g", ErrConfig, c.TemporalDecay)
	}
	if c.FrequencyCeiling > rangecoder.MaxFrequency {
		return fmt.Errorf("%w: frequency ceiling %d exceeds %d", ErrConfig, c.FrequencyCeiling, rangecoder.MaxFrequency)
	}
	if c.FrequencyCeiling != 0 && uint64(c.FrequencyCeiling) < 2*uint64(c.AlphabetSize) {
		return fmt.Errorf("%w: frequency ceiling %d below twice the alphabet size %d", ErrConfig, c.FrequencyCeiling, c.AlphabetSize)
	}
	if c.HistoryCapacity < 0 || c.HistoryCapacity > MaxHistoryCapacity {
		return fmt.Errorf("%w: history capacity must be in [0, %d], got %d", ErrConfig, MaxHistoryCapacity, c.HistoryCapacity)
	}
	return nil
}

// ceiling returns the value table ceiling, applying the default
func (c Config) ceiling() uint32 {
	if c.FrequencyCeiling == 0 {
		return rangecoder.DefaultCeiling
	}
	return c.FrequencyCeiling
}

// auxCeiling is the ceiling of the small kind and flag tables. It keeps them
// responsive to recent statistics.
func auxCeiling() uint32 {
	return 1 << 12
}

// alphabet sizes of the auxiliary tables
const (
	kindAlphabet = symbol.NumKinds
	flagAlphabet = 2
)
