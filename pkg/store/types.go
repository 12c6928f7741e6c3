package store

import (
	"time"

	"github.com/ssargent/biocoder/pkg/codec"
)

// IndexEntry is the location of one unit in the log
type IndexEntry struct {
	Seq         uint64 // position of the unit in the stream, from 0
	Offset      int64  // byte offset within the file
	Size        uint32 // framed size in bytes
	SymbolCount uint32 // symbols in the coded frame
	Timestamp   uint64 // unit timestamp
}

// LogWriterConfig holds configuration for the log writer
type LogWriterConfig struct {
	FilePath      string        // Path to the unit log
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
}

// LogReaderConfig holds configuration for the log reader
type LogReaderConfig struct {
	FilePath    string // Path to the unit log
	StartOffset int64  // Offset to start reading from
}

// UnitLogConfig holds configuration for a unit log
type UnitLogConfig struct {
	FilePath      string
	FsyncInterval time.Duration
	BufferSize    int
}

// UnitIterator provides streaming access to units
type UnitIterator interface {
	Next() bool
	Unit() *codec.Unit
	Err() error
	Close() error
}

// Store is an ordered, append-only sequence of coded units
type Store interface {
	Append(count int, payload []byte) (uint64, error)
	Get(seq uint64) (*codec.Unit, error)
	Len() int
	Close() error
}

// RecoveryResult reports what Open found in an existing log
type RecoveryResult struct {
	UnitsValidated int64 `json:"units_validated"`
	BytesTruncated int64 `json:"bytes_truncated"`
	FileSizeBefore int64 `json:"file_size_before"`
	FileSizeAfter  int64 `json:"file_size_after"`
	RecoveryTime   int64 `json:"recovery_time_ns"`
}

// Errors
var (
	ErrUnitNotFound = &StoreError{"unit not found"}
	ErrCorruption   = &StoreError{"data corruption detected"}
	ErrClosed       = &StoreError{"unit log is not open"}
)

// StoreError represents a unit log error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
