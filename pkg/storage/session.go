package storage

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/symbol"
)

// StreamCoder codes frames into stored streams. Coding is stateful across the
// frames of a stream, so it keeps one live encoder per stream; an encoder that
// is missing (after a restart or a failed append) is rebuilt by decoding the
// stored units and re-encoding them, which reproduces its state exactly.
type StreamCoder struct {
	store    *StreamStore
	logger   *slog.Logger
	mutex    sync.Mutex
	encoders map[ksuid.KSUID]*coder.Coder
}

// NewStreamCoder creates a StreamCoder over store
func NewStreamCoder(store *StreamStore, logger *slog.Logger) *StreamCoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamCoder{
		store:    store,
		logger:   logger,
		encoders: make(map[ksuid.KSUID]*coder.Coder),
	}
}

// Store returns the underlying stream store
func (sc *StreamCoder) Store() *StreamStore {
	return sc.store
}

// AppendFrames encodes frames in order and appends one unit per frame
func (sc *StreamCoder) AppendFrames(id ksuid.KSUID, frames [][]symbol.Symbol) ([]coder.Stats, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	enc, err := sc.encoder(id)
	if err != nil {
		return nil, err
	}

	stats := make([]coder.Stats, 0, len(frames))
	for i, frame := range frames {
		data, err := enc.Encode(frame)
		if err != nil {
			// a failed encode leaves the encoder untouched
			return stats, fmt.Errorf("frame %d: %w", i, err)
		}
		if _, err := sc.store.AppendUnit(id, len(frame), data); err != nil {
			// the encoder is now ahead of the store
			delete(sc.encoders, id)
			return stats, fmt.Errorf("frame %d: %w", i, err)
		}
		stats = append(stats, enc.LastStats())
	}
	return stats, nil
}

func (sc *StreamCoder) encoder(id ksuid.KSUID) (*coder.Coder, error) {
	if enc, ok := sc.encoders[id]; ok {
		return enc, nil
	}

	st, err := sc.store.GetStream(id)
	if err != nil {
		return nil, err
	}
	frames, err := sc.decode(st, 0)
	if err != nil {
		return nil, err
	}

	enc, err := coder.New(st.Coder, coder.WithLogger(sc.logger))
	if err != nil {
		return nil, err
	}
	for i, frame := range frames {
		if _, err := enc.Encode(frame); err != nil {
			return nil, fmt.Errorf("replaying frame %d: %w", i, err)
		}
	}

	if len(frames) > 0 {
		sc.logger.Info("rebuilt stream encoder", "stream", id.String(), "frames", len(frames))
	}
	sc.encoders[id] = enc
	return enc, nil
}

// ReadFrames decodes a stream and returns its frames from seq onwards. The
// whole stream is decoded since every frame depends on the ones before it.
func (sc *StreamCoder) ReadFrames(id ksuid.KSUID, from uint64) ([][]symbol.Symbol, error) {
	st, err := sc.store.GetStream(id)
	if err != nil {
		return nil, err
	}
	return sc.decode(st, from)
}

func (sc *StreamCoder) decode(st *Stream, from uint64) ([][]symbol.Symbol, error) {
	units, err := sc.store.Units(st.ID, 0)
	if err != nil {
		return nil, err
	}

	dec, err := coder.New(st.Coder, coder.WithLogger(sc.logger))
	if err != nil {
		return nil, err
	}

	var frames [][]symbol.Symbol
	for seq, unit := range units {
		frame, err := dec.Decode(unit.Payload, int(unit.SymbolCount))
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", seq, err)
		}
		if uint64(seq) >= from {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}

// Forget drops the live encoder of a stream
func (sc *StreamCoder) Forget(id ksuid.KSUID) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	delete(sc.encoders, id)
}

// DeleteStream deletes a stream and its live encoder
func (sc *StreamCoder) DeleteStream(id ksuid.KSUID) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	delete(sc.encoders, id)
	return sc.store.DeleteStream(id)
}
