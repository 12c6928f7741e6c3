package store

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUnits(t *testing.T, filePath string, payloads ...[]byte) []int64 {
	t.Helper()
	writer, err := NewLogWriter(LogWriterConfig{FilePath: filePath})
	require.NoError(t, err)
	defer writer.Close()

	offsets := make([]int64, len(payloads))
	for i, p := range payloads {
		off, _, err := writer.Append(len(p)*2, p)
		require.NoError(t, err)
		offsets[i] = off
	}
	return offsets
}

func TestLogReader_ReadNext(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "stream.units")
	payloads := [][]byte{{1}, {2, 3}, {}, {4, 5, 6}}
	writeUnits(t, filePath, payloads...)

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	for i, want := range payloads {
		unit, err := reader.ReadNext()
		require.NoError(t, err, "unit %d", i)
		assert.Equal(t, want, unit.Payload)
		assert.Equal(t, uint32(len(want)*2), unit.SymbolCount)
	}

	_, err = reader.ReadNext()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLogReader_ReadAt(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "stream.units")
	offsets := writeUnits(t, filePath, []byte{1}, []byte{2, 3}, []byte{4, 5, 6})

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	unit, err := reader.ReadAt(offsets[2])
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5, 6}, unit.Payload)

	unit, err = reader.ReadAt(offsets[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, unit.Payload)
	assert.Equal(t, int64(0), reader.Offset())

	_, err = reader.ReadAt(offsets[1] + 1)
	assert.Error(t, err)
}

func TestLogReader_TornTail(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "stream.units")
	writeUnits(t, filePath, []byte{1, 2}, []byte{3, 4, 5, 6})

	info, err := os.Stat(filePath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(filePath, info.Size()-2))

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadNext()
	require.NoError(t, err)
	_, err = reader.ReadNext()
	assert.ErrorIs(t, err, ErrCorruption)
}

func TestLogReader_SeekAndIterator(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "stream.units")
	offsets := writeUnits(t, filePath, []byte{1}, []byte{2}, []byte{3})

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath, StartOffset: offsets[1]})
	require.NoError(t, err)
	defer reader.Close()

	var got []byte
	it := reader.Iterator()
	for it.Next() {
		got = append(got, it.Unit().Payload...)
	}
	assert.NoError(t, it.Err())
	assert.Equal(t, []byte{2, 3}, got)

	require.NoError(t, reader.Seek(0))
	unit, err := reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, unit.Payload)
}
