// Package storage keeps named coded streams in a pebble database. Each stream
// carries the coder configuration both sides must share and an ordered list
// of framed units, keyed by a ksuid.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/biocoder/pkg/codec"
	"github.com/ssargent/biocoder/pkg/coder"
)

var (
	ErrStreamNotFound = errors.New("stream not found")
	ErrUnitNotFound   = errors.New("unit not found")
)

const (
	streamPrefix = 's'
	unitPrefix   = 'u'
)

// Stream describes one coded stream
type Stream struct {
	ID      ksuid.KSUID  `json:"id"`
	Name    string       `json:"name"`
	Coder   coder.Config `json:"coder"`
	Created time.Time    `json:"created"`
	Units   uint64       `json:"units"`
	Symbols uint64       `json:"symbols"`
	Bytes   uint64       `json:"bytes"`
}

// StreamStore persists streams and their units
type StreamStore struct {
	db    *pebble.DB
	units *codec.UnitCodec
	mutex sync.Mutex
}

// NewStreamStore opens or creates the store at path
func NewStreamStore(path string) (*StreamStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &StreamStore{db: db, units: codec.NewUnitCodec()}, nil
}

func streamKey(id ksuid.KSUID) []byte {
	return append([]byte{streamPrefix}, id.Bytes()...)
}

func unitKey(id ksuid.KSUID, seq uint64) []byte {
	key := make([]byte, 1+len(ksuid.KSUID{})+8)
	key[0] = unitPrefix
	copy(key[1:], id.Bytes())
	binary.BigEndian.PutUint64(key[1+len(ksuid.KSUID{}):], seq)
	return key
}

// CreateStream registers a new stream coded with cfg
func (s *StreamStore) CreateStream(name string, cfg coder.Config) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := &Stream{
		ID:      ksuid.New(),
		Name:    name,
		Coder:   cfg,
		Created: time.Now().UTC(),
	}
	if err := s.putStream(s.db, st, pebble.Sync); err != nil {
		return nil, err
	}
	return st, nil
}

type setter interface {
	Set(key, value []byte, opts *pebble.WriteOptions) error
}

func (s *StreamStore) putStream(w setter, st *Stream, opts *pebble.WriteOptions) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}
	return w.Set(streamKey(st.ID), data, opts)
}

// GetStream returns the stream with the given id
func (s *StreamStore) GetStream(id ksuid.KSUID) (*Stream, error) {
	data, closer, err := s.db.Get(streamKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	var st Stream
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse stream %s: %w", id, err)
	}
	return &st, nil
}

// ListStreams returns every stream ordered by id, which is creation order
func (s *StreamStore) ListStreams() ([]*Stream, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{streamPrefix},
		UpperBound: []byte{streamPrefix + 1},
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var streams []*Stream
	for iter.First(); iter.Valid(); iter.Next() {
		var st Stream
		if err := json.Unmarshal(iter.Value(), &st); err != nil {
			return nil, fmt.Errorf("failed to parse stream: %w", err)
		}
		streams = append(streams, &st)
	}
	return streams, iter.Error()
}

// AppendUnit frames a payload of count symbols as the next unit of the stream
// and returns its sequence number
func (s *StreamStore) AppendUnit(id ksuid.KSUID, count int, payload []byte) (uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	st, err := s.GetStream(id)
	if err != nil {
		return 0, err
	}

	data, err := s.units.Encode(count, payload)
	if err != nil {
		return 0, err
	}

	seq := st.Units
	st.Units++
	st.Symbols += uint64(count)
	st.Bytes += uint64(len(payload))

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(unitKey(id, seq), data, nil); err != nil {
		return 0, err
	}
	if err := s.putStream(batch, st, nil); err != nil {
		return 0, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return seq, nil
}

// GetUnit returns unit seq of a stream
func (s *StreamStore) GetUnit(id ksuid.KSUID, seq uint64) (*codec.Unit, error) {
	data, closer, err := s.db.Get(unitKey(id, seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%d", ErrUnitNotFound, id, seq)
		}
		return nil, err
	}
	defer closer.Close()

	return s.decodeUnit(data)
}

func (s *StreamStore) decodeUnit(data []byte) (*codec.Unit, error) {
	// pebble owns data only until the closer or iterator moves on
	unit, err := s.units.Decode(append([]byte(nil), data...))
	if err != nil {
		return nil, err
	}
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	return unit, nil
}

// Units returns the units of a stream from seq onwards, in stream order
func (s *StreamStore) Units(id ksuid.KSUID, from uint64) ([]*codec.Unit, error) {
	if _, err := s.GetStream(id); err != nil {
		return nil, err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: unitKey(id, from),
		UpperBound: append([]byte{unitPrefix}, id.Next().Bytes()...),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var units []*codec.Unit
	for iter.First(); iter.Valid(); iter.Next() {
		unit, err := s.decodeUnit(iter.Value())
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, iter.Error()
}

// DeleteStream removes a stream and all of its units
func (s *StreamStore) DeleteStream(id ksuid.KSUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, err := s.GetStream(id); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	start := append([]byte{unitPrefix}, id.Bytes()...)
	end := append([]byte{unitPrefix}, id.Next().Bytes()...)
	if err := batch.DeleteRange(start, end, nil); err != nil {
		return err
	}
	if err := batch.Delete(streamKey(id), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Close closes the underlying database
func (s *StreamStore) Close() error {
	return s.db.Close()
}
