package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"time"
)

// HeaderSize is the fixed size of a unit header
const HeaderSize = 20

var (
	// ErrShortUnit is returned when data ends inside a header or payload
	ErrShortUnit = errors.New("unit shorter than declared")

	// ErrCorrupt is returned when a unit fails its CRC check
	ErrCorrupt = errors.New("unit checksum mismatch")

	// ErrTooLarge is returned for payloads or counts that do not fit the header
	ErrTooLarge = errors.New("unit too large")
)

// Unit is one coded frame together with the metadata the decoder needs
type Unit struct {
	CRC32       uint32 // CRC32 over everything after this field
	SymbolCount uint32 // symbols in the original frame
	PayloadSize uint32 // size of the range coded payload in bytes
	Timestamp   uint64 // Unix timestamp in nanoseconds
	Payload     []byte // range coded frame
}

// UnitCodec frames and unframes coded units
type UnitCodec struct {
	now func() time.Time
}

// NewUnitCodec creates a codec stamping units with the current time
func NewUnitCodec() *UnitCodec {
	return &UnitCodec{now: time.Now}
}

// NewUnit creates a unit stamped with the current time
func NewUnit(count int, payload []byte) (*Unit, error) {
	return newUnit(count, payload, time.Now())
}

func newUnit(count int, payload []byte, ts time.Time) (*Unit, error) {
	if count < 0 || uint64(count) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: symbol count %d", ErrTooLarge, count)
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrTooLarge, len(payload))
	}
	return &Unit{
		SymbolCount: uint32(count),
		PayloadSize: uint32(len(payload)),
		Timestamp:   uint64(ts.UnixNano()),
		Payload:     payload,
	}, nil
}

// Encode frames a payload of count symbols
// Format: [CRC32(4)][SymbolCount(4)][PayloadSize(4)][Timestamp(8)][Payload]
func (c *UnitCodec) Encode(count int, payload []byte) ([]byte, error) {
	u, err := newUnit(count, payload, c.now())
	if err != nil {
		return nil, err
	}
	return u.Marshal(), nil
}

// Marshal serializes u, recomputing its checksum
func (u *Unit) Marshal() []byte {
	u.CRC32 = u.checksum()

	buf := make([]byte, u.Size())
	binary.LittleEndian.PutUint32(buf[0:], u.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], u.SymbolCount)
	binary.LittleEndian.PutUint32(buf[8:], u.PayloadSize)
	binary.LittleEndian.PutUint64(buf[12:], u.Timestamp)
	copy(buf[HeaderSize:], u.Payload)
	return buf
}

// Decode parses the unit at the start of data. Trailing bytes are ignored;
// use Size to advance past the unit. The payload aliases data.
func (c *UnitCodec) Decode(data []byte) (*Unit, error) {
	u, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	end := HeaderSize + uint64(u.PayloadSize)
	if uint64(len(data)) < end {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortUnit, len(data), end)
	}
	u.Payload = data[HeaderSize:end]
	return u, nil
}

// DecodeHeader parses only the fixed header of a unit
func DecodeHeader(data []byte) (*Unit, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, got %d", ErrShortUnit, HeaderSize, len(data))
	}
	return &Unit{
		CRC32:       binary.LittleEndian.Uint32(data[0:4]),
		SymbolCount: binary.LittleEndian.Uint32(data[4:8]),
		PayloadSize: binary.LittleEndian.Uint32(data[8:12]),
		Timestamp:   binary.LittleEndian.Uint64(data[12:20]),
	}, nil
}

// Validate checks the integrity of a unit using CRC32
func (u *Unit) Validate() error {
	if uint32(len(u.Payload)) != u.PayloadSize {
		return fmt.Errorf("%w: payload is %d bytes, header says %d", ErrShortUnit, len(u.Payload), u.PayloadSize)
	}
	if sum := u.checksum(); u.CRC32 != sum {
		return fmt.Errorf("%w: %d != %d", ErrCorrupt, u.CRC32, sum)
	}
	return nil
}

// Size returns the encoded size of the unit
func (u *Unit) Size() int {
	return HeaderSize + len(u.Payload)
}

// Time returns the unit timestamp
func (u *Unit) Time() time.Time {
	return time.Unix(0, int64(u.Timestamp))
}

// checksum covers SymbolCount, PayloadSize, Timestamp and Payload
func (u *Unit) checksum() uint32 {
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:], u.SymbolCount)
	binary.LittleEndian.PutUint32(hdr[4:], u.PayloadSize)
	binary.LittleEndian.PutUint64(hdr[8:], u.Timestamp)

	crc := crc32.NewIEEE()
	crc.Write(hdr[:])
	crc.Write(u.Payload)
	return crc.Sum32()
}
