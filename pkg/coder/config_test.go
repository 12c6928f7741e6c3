package coder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssargent/biocoder/pkg/rangecoder"
	"github.com/ssargent/biocoder/pkg/synaptic"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"largest window", func(c *Config) { c.ContextWindowSize = MaxContextWindow }, false},
		{"largest history", func(c *Config) { c.HistoryCapacity = MaxHistoryCapacity }, false},
		{"rate at limit", func(c *Config) { c.AdaptationRate = synaptic.MaxRate }, false},
		{"zero window", func(c *Config) { c.ContextWindowSize = 0 }, true},
		{"huge window", func(c *Config) { c.ContextWindowSize = 1_000_000_000 }, true},
		{"negative history", func(c *Config) { c.HistoryCapacity = -1 }, true},
		{"huge history", func(c *Config) { c.HistoryCapacity = MaxHistoryCapacity + 1 }, true},
		{"rate above limit", func(c *Config) { c.AdaptationRate = 0.5 }, true},
		{"nan rate", func(c *Config) { c.AdaptationRate = math.NaN() }, true},
		{"threshold above one", func(c *Config) { c.RedundancyThreshold = 1.5 }, true},
		{"alphabet too large", func(c *Config) { c.AlphabetSize = rangecoder.MaxAlphabet + 1 }, true},
		{"zero decay", func(c *Config) { c.TemporalDecay = 0 }, true},
		{"ceiling below alphabet", func(c *Config) { c.FrequencyCeiling = 100 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}
