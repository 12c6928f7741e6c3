package temporal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/biocoder/pkg/quant"
	"github.com/ssargent/biocoder/pkg/symbol"
)

func testQuant(t *testing.T) *quant.Table {
	t.Helper()
	q, err := quant.New(4096, -10000, 10000)
	require.NoError(t, err)
	return q
}

func canonical(q *quant.Table, syms ...symbol.Symbol) []symbol.Symbol {
	out := make([]symbol.Symbol, len(syms))
	for i, s := range syms {
		out[i] = q.Canonical(s)
	}
	return out
}

func TestNew(t *testing.T) {
	_, err := New(0, 0.9)
	assert.Error(t, err)
	_, err = New(4, 0)
	assert.Error(t, err)
	_, err = New(4, 1.5)
	assert.Error(t, err)

	m, err := New(4, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Capacity())
	assert.Equal(t, 0, m.Len())
}

func TestNoHistory(t *testing.T) {
	m, err := New(4, DefaultDecay)
	require.NoError(t, err)

	mem, err := m.ComputeMemory(testQuant(t))
	assert.ErrorIs(t, err, ErrNoHistory)
	assert.Nil(t, mem)
	assert.Nil(t, mem.Slot(0))
	assert.Equal(t, 0, mem.Len())
}

func TestWindowIsBounded(t *testing.T) {
	m, err := New(3, DefaultDecay)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		m.Update([]symbol.Symbol{symbol.NewLuminance(float64(i))}, 0.5)
		assert.LessOrEqual(t, m.Len(), 3)
	}

	frames := m.Frames()
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, float64(7+i), f.Symbols[0].X)
		assert.Equal(t, 7+i, f.TemporalPosition)
	}
}

func TestUpdateCopiesSymbols(t *testing.T) {
	m, err := New(2, DefaultDecay)
	require.NoError(t, err)

	syms := []symbol.Symbol{symbol.NewLuminance(1)}
	m.Update(syms, 1)
	syms[0] = symbol.NewLuminance(99)

	assert.Equal(t, 1.0, m.Frames()[0].Symbols[0].X)
}

func TestFeatures(t *testing.T) {
	f := Features([]symbol.Symbol{
		symbol.NewLuminance(2),
		symbol.NewLuminance(4),
		symbol.NewMotionVector(1, 1),
	})
	require.Len(t, f, FeatureLen)
	assert.Equal(t, 3.0, f[symbol.Luminance])
	assert.Equal(t, 2.0, f[symbol.NumKinds+int(symbol.Luminance)])
	assert.Equal(t, 1.0, f[symbol.NumKinds+int(symbol.MotionVector)])
	assert.Equal(t, 0.0, f[symbol.Chrominance])
}

func TestComputeMemoryStableFrames(t *testing.T) {
	q := testQuant(t)
	m, err := New(4, DefaultDecay)
	require.NoError(t, err)

	frame := canonical(q, symbol.NewLuminance(100), symbol.NewMotionVector(5, -5))
	for i := 0; i < 3; i++ {
		m.Update(frame, 1)
	}

	mem, err := m.ComputeMemory(q)
	require.NoError(t, err)
	require.Equal(t, 2, mem.Len())
	assert.InDelta(t, 1+0.9+0.81, mem.Weight, 1e-12)

	for i, want := range frame {
		slot := mem.Slot(i)
		require.NotNil(t, slot)
		assert.Equal(t, want.Kind, slot.Kind)
		assert.Equal(t, q.Indices(want), slot.Indices)
		assert.Equal(t, 1.0, slot.Stability)
		assert.Equal(t, want, slot.Predicted(q))
	}
	assert.Nil(t, mem.Slot(2))
}

func TestComputeMemoryUnstablePosition(t *testing.T) {
	q := testQuant(t)
	m, err := New(4, DefaultDecay)
	require.NoError(t, err)

	m.Update(canonical(q, symbol.NewLuminance(0), symbol.NewLuminance(500)), 0)
	m.Update(canonical(q, symbol.NewLuminance(0), symbol.NewLuminance(-500)), 0)

	mem, err := m.ComputeMemory(q)
	require.NoError(t, err)
	assert.Equal(t, 1.0, mem.Slot(0).Stability)
	assert.Less(t, mem.Slot(1).Stability, 0.5)
}

func TestComputeMemoryKindFromNewestFrame(t *testing.T) {
	q := testQuant(t)
	m, err := New(4, DefaultDecay)
	require.NoError(t, err)

	m.Update(canonical(q, symbol.NewLuminance(10)), 0)
	m.Update(canonical(q, symbol.NewChrominance(20)), 0)

	mem, err := m.ComputeMemory(q)
	require.NoError(t, err)
	slot := mem.Slot(0)
	assert.Equal(t, symbol.Chrominance, slot.Kind)
	assert.Equal(t, []int{q.EncodeIndex(20)}, slot.Indices)
	assert.InDelta(t, 1/1.9, slot.Stability, 1e-12)
}

func TestComputeMemoryRaggedFrames(t *testing.T) {
	q := testQuant(t)
	m, err := New(4, DefaultDecay)
	require.NoError(t, err)

	m.Update(canonical(q, symbol.NewLuminance(1), symbol.NewLuminance(2), symbol.NewLuminance(3)), 0)
	m.Update(canonical(q, symbol.NewLuminance(1)), 0)

	mem, err := m.ComputeMemory(q)
	require.NoError(t, err)
	assert.Equal(t, 3, mem.Len())
	assert.Equal(t, 1.0, mem.Slot(2).Stability)
}

func TestComputeMemoryUnderflowedWeights(t *testing.T) {
	q := testQuant(t)
	m, err := New(8, 1e-200)
	require.NoError(t, err)

	m.Update(canonical(q, symbol.NewLuminance(1), symbol.NewLuminance(2), symbol.NewLuminance(3)), 0)
	m.Update(canonical(q, symbol.NewLuminance(1)), 0)
	m.Update(canonical(q, symbol.NewLuminance(1)), 0)

	mem, err := m.ComputeMemory(q)
	require.NoError(t, err)
	require.Equal(t, 3, mem.Len())
	assert.Equal(t, 1.0, mem.Slot(0).Stability)
	for i := 1; i < 3; i++ {
		slot := mem.Slot(i)
		assert.False(t, math.IsNaN(slot.X), "slot %d", i)
		assert.False(t, math.IsNaN(slot.Stability), "slot %d", i)
		assert.Equal(t, 0.0, slot.Stability)
		assert.Empty(t, slot.Indices)
	}
}

func TestComputeMemoryDeterministic(t *testing.T) {
	q := testQuant(t)
	build := func() *Memory {
		m, err := New(8, DefaultDecay)
		require.NoError(t, err)
		for i := 0; i < 12; i++ {
			m.Update(canonical(q,
				symbol.NewLuminance(float64(i%3)*7.3),
				symbol.NewMotionVector(float64(i), float64(-i)),
			), float64(i)/12)
		}
		mem, err := m.ComputeMemory(q)
		require.NoError(t, err)
		return mem
	}
	assert.Equal(t, build(), build())
}

func TestClone(t *testing.T) {
	m, err := New(2, DefaultDecay)
	require.NoError(t, err)
	m.Update([]symbol.Symbol{symbol.NewLuminance(1)}, 0)

	c := m.Clone()
	c.Update([]symbol.Symbol{symbol.NewLuminance(2)}, 0)
	c.Update([]symbol.Symbol{symbol.NewLuminance(3)}, 0)

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1.0, m.Frames()[0].Symbols[0].X)
	assert.Equal(t, 2, c.Len())
}
