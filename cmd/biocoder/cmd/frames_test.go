package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/logging"
	"github.com/ssargent/biocoder/pkg/store"
	"github.com/ssargent/biocoder/pkg/symbol"
)

func testFrames(n int) [][]symbol.Symbol {
	frames := make([][]symbol.Symbol, n)
	for i := range frames {
		frames[i] = []symbol.Symbol{
			symbol.NewLuminance(100),
			symbol.NewLuminance(float64(i * 3)),
			symbol.NewMotionVector(float64(i%2), -1),
			symbol.NewChrominance(-4),
		}
	}
	return frames
}

func canonicalFrames(t *testing.T, cfg coder.Config, frames [][]symbol.Symbol) [][]symbol.Symbol {
	t.Helper()
	c, err := coder.New(cfg)
	require.NoError(t, err)
	out := make([][]symbol.Symbol, len(frames))
	for i, f := range frames {
		out[i] = make([]symbol.Symbol, len(f))
		for j, s := range f {
			out[i][j] = c.Quantizer().Canonical(s)
		}
	}
	return out
}

func openTestLog(t *testing.T, path string) *store.UnitLog {
	t.Helper()
	log, _, err := store.OpenUnitLog(store.UnitLogConfig{FilePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestReadWriteFrames(t *testing.T) {
	input := `[{"kind":"luminance","value":12.5},{"kind":"motion_vector","x":1,"y":-2}]

[]
[{"kind":"biological_feature","value":0.25}]
`
	frames, err := readFrames(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, []symbol.Symbol{symbol.NewLuminance(12.5), symbol.NewMotionVector(1, -2)}, frames[0])
	assert.Empty(t, frames[1])
	assert.Equal(t, symbol.BiologicalFeature, frames[2][0].Kind)

	var buf bytes.Buffer
	require.NoError(t, writeFrames(&buf, frames))
	again, err := readFrames(&buf)
	require.NoError(t, err)
	assert.Equal(t, len(frames), len(again))
	assert.Equal(t, frames[0], again[0])
	assert.Equal(t, frames[2], again[2])
}

func TestReadFramesErrors(t *testing.T) {
	_, err := readFrames(strings.NewReader("[]\n[{\"kind\":\"sound\",\"value\":1}]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = readFrames(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestAppendAndDecodeLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cam.units")
	cfg := coder.DefaultConfig()
	frames := testFrames(6)

	log := openTestLog(t, path)
	stats, err := appendFrames(log, cfg, logging.Discard(), frames[:4])
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.Equal(t, 4, stats[0].Symbols)
	require.NoError(t, log.Close())

	// a second invocation resumes the model from the log
	log = openTestLog(t, path)
	_, err = appendFrames(log, cfg, logging.Discard(), frames[4:])
	require.NoError(t, err)
	assert.Equal(t, 6, log.Len())

	res, err := decodeLog(log, cfg, logging.Discard(), 0, false)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Equal(t, canonicalFrames(t, cfg, frames), res.Frames)
	assert.Len(t, res.Stats, 6)
	assert.Equal(t, 6, res.Final.Frames)

	// the bytes match one uninterrupted session
	ref, err := coder.New(cfg)
	require.NoError(t, err)
	for i, f := range frames {
		data, err := ref.Encode(f)
		require.NoError(t, err)
		unit, err := log.Get(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, data, unit.Payload, "unit %d", i)
	}

	tail, err := decodeLog(log, cfg, logging.Discard(), 4, false)
	require.NoError(t, err)
	assert.Equal(t, canonicalFrames(t, cfg, frames[4:]), tail.Frames)
}

func TestDecodeLogBestEffort(t *testing.T) {
	cfg := coder.DefaultConfig()
	frames := testFrames(3)

	log := openTestLog(t, filepath.Join(t.TempDir(), "cam.units"))
	_, err := appendFrames(log, cfg, logging.Discard(), frames)
	require.NoError(t, err)

	res, err := decodeLog(log, cfg, logging.Discard(), 0, true)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	require.Len(t, res.Frames, 3)
	assert.Len(t, res.Stats, 2)

	want := canonicalFrames(t, cfg, frames)
	assert.Equal(t, want[:2], res.Frames[:2])
	require.GreaterOrEqual(t, len(res.Frames[2]), len(frames[2]))
	assert.Equal(t, want[2], res.Frames[2][:len(frames[2])])

	// the truncated unit is not committed
	assert.Equal(t, 2, res.Final.Frames)
}

func TestDecodeLogWrongConfig(t *testing.T) {
	cfg := coder.DefaultConfig()
	log := openTestLog(t, filepath.Join(t.TempDir(), "cam.units"))
	_, err := appendFrames(log, cfg, logging.Discard(), testFrames(2))
	require.NoError(t, err)

	bad := cfg
	bad.AlphabetSize = 1
	_, err = decodeLog(log, bad, logging.Discard(), 0, false)
	assert.ErrorIs(t, err, coder.ErrConfig)
}
