package store

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/ssargent/biocoder/pkg/codec"
)

// LogReader provides sequential access to units in a log file
type LogReader struct {
	file   *os.File
	reader *bufio.Reader
	codec  *codec.UnitCodec
	offset int64
	config LogReaderConfig
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(config LogReaderConfig) (*LogReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}

	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return &LogReader{
		file:   file,
		reader: bufio.NewReader(file),
		codec:  codec.NewUnitCodec(),
		offset: config.StartOffset,
		config: config,
	}, nil
}

// ReadNext reads the unit at the current offset. It returns io.EOF at a clean
// end of file and ErrCorruption for a torn or damaged unit.
func (r *LogReader) ReadNext() (*codec.Unit, error) {
	unit, n, err := readUnit(r.reader, r.codec)
	if err != nil {
		return nil, err
	}
	r.offset += int64(n)
	return unit, nil
}

// ReadAt reads the unit starting at offset without moving the read position
func (r *LogReader) ReadAt(offset int64) (*codec.Unit, error) {
	section := io.NewSectionReader(r.file, offset, 1<<62)
	unit, _, err := readUnit(section, r.codec)
	if errors.Is(err, io.EOF) {
		return nil, ErrCorruption
	}
	return unit, err
}

func readUnit(src io.Reader, uc *codec.UnitCodec) (*codec.Unit, int, error) {
	header := make([]byte, codec.HeaderSize)
	if _, err := io.ReadFull(src, header); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, 0, ErrCorruption
		}
		return nil, 0, err
	}

	hdr, err := codec.DecodeHeader(header)
	if err != nil {
		return nil, 0, ErrCorruption
	}

	// a damaged header can claim any size, so grow with what is actually read
	payload, err := io.ReadAll(io.LimitReader(src, int64(hdr.PayloadSize)))
	if err != nil {
		return nil, 0, err
	}
	if len(payload) != int(hdr.PayloadSize) {
		return nil, 0, ErrCorruption
	}
	data := append(header, payload...)

	unit, err := uc.Decode(data)
	if err != nil {
		return nil, 0, ErrCorruption
	}
	if err := unit.Validate(); err != nil {
		return nil, 0, ErrCorruption
	}
	return unit, len(data), nil
}

// Seek sets the read offset
func (r *LogReader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.reader = bufio.NewReader(r.file)
	r.offset = offset
	return nil
}

// Offset returns the current read offset
func (r *LogReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining units
func (r *LogReader) Iterator() UnitIterator {
	return &logUnitIterator{reader: r}
}

// Close closes the log reader
func (r *LogReader) Close() error {
	return r.file.Close()
}

type logUnitIterator struct {
	reader *LogReader
	unit   *codec.Unit
	err    error
}

func (it *logUnitIterator) Next() bool {
	it.unit, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *logUnitIterator) Unit() *codec.Unit {
	return it.unit
}

// Err returns the error that stopped iteration, nil at a clean end of file
func (it *logUnitIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

func (it *logUnitIterator) Close() error {
	return nil
}
