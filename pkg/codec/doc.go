// Package codec frames range coded units for storage and transport.
//
// The entropy coder produces bare payloads with no header and no symbol count.
// A decoder cannot tell where a payload ends or how many symbols it holds, so
// every unit written to disk or sent over the wire is wrapped in a small
// header that carries the count and an integrity checksum.
//
// # Unit Format
//
//	[CRC32(4)][SymbolCount(4)][PayloadSize(4)][Timestamp(8)][Payload]
//
// Fields:
//   - CRC32: checksum over every following byte (little-endian)
//   - SymbolCount: number of symbols in the coded frame (little-endian)
//   - PayloadSize: length of the payload in bytes (little-endian)
//   - Timestamp: Unix timestamp in nanoseconds (little-endian)
//   - Payload: the range coded frame
//
// The total unit size is 20 bytes of header plus the payload.
//
// # Usage
//
//	uc := codec.NewUnitCodec()
//
//	payload, err := enc.Encode(frame)
//	if err != nil {
//	    return err
//	}
//	framed, err := uc.Encode(len(frame), payload)
//
//	unit, err := uc.Decode(framed)
//	if err != nil {
//	    return err
//	}
//	if err := unit.Validate(); err != nil {
//	    return err // unit is corrupted
//	}
//	symbols, err := dec.Decode(unit.Payload, int(unit.SymbolCount))
//
// A unit that fails Validate must not reach the decoder: the adaptive state
// of a stream only stays in sync when every unit is decoded in order.
//
// # Thread Safety
//
// UnitCodec instances are safe for concurrent use. Decoded units alias the
// input buffer.
package codec
