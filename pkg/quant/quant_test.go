package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/biocoder/pkg/symbol"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		levels  int
		min     float64
		max     float64
		wantErr bool
	}{
		{"default", 4096, -10000, 10000, false},
		{"two levels", 2, 0, 1, false},
		{"largest alphabet", MaxLevels, -1, 1, false},
		{"one level", 1, 0, 1, true},
		{"too many levels", MaxLevels + 1, 0, 1, true},
		{"empty range", 16, 5, 5, true},
		{"inverted range", 16, 5, -5, true},
		{"nan bound", 16, math.NaN(), 1, true},
		{"infinite bound", 16, 0, math.Inf(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := New(tt.levels, tt.min, tt.max)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.levels, q.Levels())
			assert.Equal(t, tt.min, q.Min())
			assert.Equal(t, tt.max, q.Max())
		})
	}
}

func TestEncodeIndexClips(t *testing.T) {
	q, err := New(4096, -10000, 10000)
	require.NoError(t, err)

	tests := []struct {
		name  string
		value float64
		want  int
	}{
		{"min", -10000, 0},
		{"below min", -1e9, 0},
		{"max", 10000, 4095},
		{"above max", 1e9, 4095},
		{"negative infinity", math.Inf(-1), 0},
		{"positive infinity", math.Inf(1), 4095},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.EncodeIndex(tt.value))
		})
	}
}

func TestIndexRoundTrip(t *testing.T) {
	q, err := New(4096, -10000, 10000)
	require.NoError(t, err)

	for idx := 0; idx < q.Levels(); idx++ {
		require.Equal(t, idx, q.EncodeIndex(q.DecodeValue(idx)), "index %d", idx)
	}
	assert.Equal(t, -10000.0, q.DecodeValue(0))
	assert.Equal(t, 10000.0, q.DecodeValue(4095))
	assert.Equal(t, 10000.0, q.DecodeValue(9999))
	assert.Equal(t, -10000.0, q.DecodeValue(-3))
}

func TestQuantizationError(t *testing.T) {
	q, err := New(4096, -10000, 10000)
	require.NoError(t, err)

	for _, v := range []float64{0.5, -0.5, 0, 1234.567, -9999.9, 9999.9} {
		got := q.DecodeValue(q.EncodeIndex(v))
		assert.InDelta(t, v, got, q.Step()/2+1e-9, "value %g", v)
	}
}

func TestCanonical(t *testing.T) {
	q, err := New(256, -1, 1)
	require.NoError(t, err)

	mv := symbol.NewMotionVector(0.3, -0.71)
	c := q.Canonical(mv)
	assert.Equal(t, symbol.MotionVector, c.Kind)
	assert.Equal(t, c, q.Canonical(c))
	assert.Equal(t, q.Indices(mv), q.Indices(c))
	assert.Len(t, q.Indices(mv), 2)

	lum := q.Canonical(symbol.Symbol{Kind: symbol.Luminance, X: 0.2, Y: 7})
	assert.Zero(t, lum.Y)
	assert.Len(t, q.Indices(lum), 1)

	assert.Equal(t, c, q.FromIndices(symbol.MotionVector, q.Indices(c)))
}
