package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ssargent/biocoder/pkg/codec"
)

// UnitLog is an append-only file of framed units with an in-memory sequence
// index. Units are kept in stream order, which is the order a decoder must
// consume them in.
type UnitLog struct {
	config UnitLogConfig
	writer *LogWriter
	reader *LogReader
	index  *SeqIndex
	mutex  sync.Mutex
	isOpen bool
}

// NewUnitLog creates a unit log for the given file. Call Open before use.
func NewUnitLog(config UnitLogConfig) (*UnitLog, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}
	return &UnitLog{
		config: config,
		index:  NewSeqIndex(),
	}, nil
}

// OpenUnitLog creates and opens a unit log in one step
func OpenUnitLog(config UnitLogConfig) (*UnitLog, *RecoveryResult, error) {
	l, err := NewUnitLog(config)
	if err != nil {
		return nil, nil, err
	}
	res, err := l.Open()
	if err != nil {
		return nil, nil, err
	}
	return l, res, nil
}

// Open validates the file, truncates a torn or corrupt tail and rebuilds the
// index
func (l *UnitLog) Open() (*RecoveryResult, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.isOpen {
		return &RecoveryResult{}, nil
	}

	res, err := recoverLogFile(l.config.FilePath)
	if err != nil {
		return nil, err
	}

	writer, err := NewLogWriter(LogWriterConfig{
		FilePath:      l.config.FilePath,
		FsyncInterval: l.config.FsyncInterval,
		BufferSize:    l.config.BufferSize,
	})
	if err != nil {
		return nil, err
	}

	reader, err := NewLogReader(LogReaderConfig{FilePath: l.config.FilePath})
	if err != nil {
		_ = writer.Close()
		return nil, err
	}

	if err := l.index.BuildFromLog(reader); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, err
	}

	l.writer = writer
	l.reader = reader
	l.isOpen = true
	return res, nil
}

// Append writes a coded payload of count symbols and returns its sequence number
func (l *UnitLog) Append(count int, payload []byte) (uint64, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.isOpen {
		return 0, ErrClosed
	}

	offset, unit, err := l.writer.Append(count, payload)
	if err != nil {
		return 0, err
	}

	return l.index.Append(IndexEntry{
		Offset:      offset,
		Size:        uint32(unit.Size()),
		SymbolCount: unit.SymbolCount,
		Timestamp:   unit.Timestamp,
	}), nil
}

// Get reads unit seq
func (l *UnitLog) Get(seq uint64) (*codec.Unit, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.isOpen {
		return nil, ErrClosed
	}

	entry, ok := l.index.Get(seq)
	if !ok {
		return nil, ErrUnitNotFound
	}
	if err := l.writer.Flush(); err != nil {
		return nil, err
	}
	return l.reader.ReadAt(entry.Offset)
}

// Len returns the number of units in the log
func (l *UnitLog) Len() int {
	return l.index.Len()
}

// Entries returns the index entries in stream order
func (l *UnitLog) Entries() []IndexEntry {
	return l.index.Entries()
}

// Stats returns log statistics
func (l *UnitLog) Stats() *LogStats {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	s := l.index.Stats()
	out := &LogStats{
		Units:   s.TotalUnits,
		Symbols: s.TotalSymbols,
	}
	if l.writer != nil {
		out.FileSize = l.writer.Size()
	}
	for _, e := range l.index.Entries() {
		out.PayloadBytes += int64(e.Size) - codec.HeaderSize
	}
	return out
}

// LogStats holds statistics about a unit log
type LogStats struct {
	Units        int    `json:"units"`
	Symbols      uint64 `json:"symbols"`
	FileSize     int64  `json:"file_size"`
	PayloadBytes int64  `json:"payload_bytes"`
}

// Close flushes and closes the log
func (l *UnitLog) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.isOpen {
		return nil
	}
	l.isOpen = false

	rerr := l.reader.Close()
	if err := l.writer.Close(); err != nil {
		return err
	}
	return rerr
}

// recoverLogFile validates every unit and truncates the file after the last
// valid one
func recoverLogFile(filePath string) (*RecoveryResult, error) {
	start := time.Now()

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &RecoveryResult{RecoveryTime: time.Since(start).Nanoseconds()}, nil
		}
		return nil, err
	}
	sizeBefore := info.Size()

	reader, err := NewLogReader(LogReaderConfig{FilePath: filePath})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var validated int64
	var lastValid int64
	corrupt := false
	for {
		_, err := reader.ReadNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			corrupt = true
			break
		}
		validated++
		lastValid = reader.Offset()
	}

	sizeAfter := sizeBefore
	if corrupt {
		if err := os.Truncate(filePath, lastValid); err != nil {
			return nil, err
		}
		sizeAfter = lastValid
	}

	return &RecoveryResult{
		UnitsValidated: validated,
		BytesTruncated: sizeBefore - sizeAfter,
		FileSizeBefore: sizeBefore,
		FileSizeAfter:  sizeAfter,
		RecoveryTime:   time.Since(start).Nanoseconds(),
	}, nil
}
