package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/store"
	"github.com/ssargent/biocoder/pkg/symbol"
)

// maxLineBytes bounds one JSON frame line
const maxLineBytes = 64 << 20

// readFrames parses JSON lines, one frame per non-blank line
func readFrames(r io.Reader) ([][]symbol.Symbol, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var frames [][]symbol.Symbol
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var frame []symbol.Symbol
		if err := json.Unmarshal(text, &frame); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, frame)
	}
	return frames, scanner.Err()
}

// writeFrames writes one JSON line per frame
func writeFrames(w io.Writer, frames [][]symbol.Symbol) error {
	enc := json.NewEncoder(w)
	for _, frame := range frames {
		if frame == nil {
			frame = []symbol.Symbol{}
		}
		if err := enc.Encode(frame); err != nil {
			return err
		}
	}
	return nil
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// resumeEncoder returns an encoder holding the state reached after every unit
// already in log. The units are decoded and the frames re-encoded, which
// reproduces the original encoder exactly.
func resumeEncoder(log store.Store, cfg coder.Config, logger *slog.Logger) (*coder.Coder, error) {
	enc, err := coder.New(cfg, coder.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	dec, err := coder.New(cfg, coder.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	for seq := 0; seq < log.Len(); seq++ {
		unit, err := log.Get(uint64(seq))
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", seq, err)
		}
		frame, err := dec.Decode(unit.Payload, int(unit.SymbolCount))
		if err != nil {
			return nil, fmt.Errorf("replaying unit %d: %w", seq, err)
		}
		if _, err := enc.Encode(frame); err != nil {
			return nil, fmt.Errorf("replaying unit %d: %w", seq, err)
		}
	}
	return enc, nil
}

// appendFrames codes frames after the units already in log and appends one
// unit per frame
func appendFrames(log store.Store, cfg coder.Config, logger *slog.Logger, frames [][]symbol.Symbol) ([]coder.Stats, error) {
	enc, err := resumeEncoder(log, cfg, logger)
	if err != nil {
		return nil, err
	}

	stats := make([]coder.Stats, 0, len(frames))
	for i, frame := range frames {
		data, err := enc.Encode(frame)
		if err != nil {
			return stats, fmt.Errorf("frame %d: %w", i, err)
		}
		if _, err := log.Append(len(frame), data); err != nil {
			return stats, fmt.Errorf("frame %d: %w", i, err)
		}
		stats = append(stats, enc.LastStats())
	}
	return stats, nil
}

// decodeResult is the outcome of decoding a unit log
type decodeResult struct {
	Frames    [][]symbol.Symbol
	Stats     []coder.Stats
	Truncated bool
	Final     coder.Snapshot
}

// decodeLog decodes every unit of log and keeps the frames from seq from. With
// bestEffort the last unit ignores its symbol count.
func decodeLog(log store.Store, cfg coder.Config, logger *slog.Logger, from uint64, bestEffort bool) (*decodeResult, error) {
	dec, err := coder.New(cfg, coder.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	res := &decodeResult{}
	n := log.Len()
	for seq := 0; seq < n; seq++ {
		unit, err := log.Get(uint64(seq))
		if err != nil {
			return res, fmt.Errorf("unit %d: %w", seq, err)
		}

		count := int(unit.SymbolCount)
		if bestEffort && seq == n-1 {
			count = -1
		}

		frame, err := dec.Decode(unit.Payload, count)
		if err != nil {
			if count < 0 && errors.Is(err, coder.ErrTruncated) {
				if uint64(seq) >= from {
					res.Frames = append(res.Frames, frame)
				}
				res.Truncated = true
				break
			}
			return res, fmt.Errorf("unit %d: %w", seq, err)
		}
		if uint64(seq) >= from {
			res.Frames = append(res.Frames, frame)
			res.Stats = append(res.Stats, dec.LastStats())
		}
	}
	res.Final = dec.Snapshot()
	return res, nil
}
