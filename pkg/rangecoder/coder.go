// Package rangecoder implements a binary arithmetic (range) coder over integer
// low/high registers with adaptive cumulative frequency tables.
//
// The encoder and decoder use 32-bit code values held in 64-bit words. After
// every symbol the interval is renormalized with the usual three scalings:
// emit 0 when the interval sits in the lower half, emit 1 when it sits in the
// upper half, and defer a bit (pending) when it straddles the midpoint inside
// the middle half. The decoder mirrors the scalings exactly, so both sides
// shift the same number of bits for the same symbol sequence.
//
// The output carries no header or symbol count. Callers record the count
// out-of-band and decode exactly that many symbols.
package rangecoder

import (
	"fmt"
)

const (
	codeBits = 32
	topValue = uint64(1)<<codeBits - 1
	half     = uint64(1) << (codeBits - 1)
	firstQtr = half >> 1
	thirdQtr = half + firstQtr
)

// Encoder narrows the coding interval for each symbol and emits the bits that
// become fully determined.
type Encoder struct {
	writer   *BitWriter
	low      uint64
	high     uint64
	pending  uint64
	coded    int
	finished bool
}

// NewEncoder creates an encoder with an empty output buffer
func NewEncoder() *Encoder {
	return &Encoder{
		writer: NewBitWriter(256),
		high:   topValue,
	}
}

// Coded returns the number of symbols encoded so far
func (e *Encoder) Coded() int { return e.coded }

// EncodeSymbol codes sym with the probabilities held in table. The table is not
// modified; adaptation is the caller's job and must mirror the decoder's.
func (e *Encoder) EncodeSymbol(table *FrequencyTable, sym int) error {
	if e.finished {
		return ErrFinished
	}
	lo, hi, err := table.Range(sym)
	if err != nil {
		return err
	}

	total := uint64(table.Total())
	rng := e.high - e.low + 1
	newHigh := e.low + rng*uint64(hi)/total - 1
	newLow := e.low + rng*uint64(lo)/total
	if newHigh < newLow {
		return fmt.Errorf("%w: symbol %d, low=%d high=%d", ErrRangeCollapsed, sym, newLow, newHigh)
	}
	e.low, e.high = newLow, newHigh

	for {
		switch {
		case e.high < half:
			e.emit(0)
		case e.low >= half:
			e.emit(1)
			e.low -= half
			e.high -= half
		case e.low >= firstQtr && e.high < thirdQtr:
			e.pending++
			e.low -= firstQtr
			e.high -= firstQtr
		default:
			e.coded++
			return nil
		}
		e.low <<= 1
		e.high = e.high<<1 | 1
	}
}

// emit writes bit followed by every deferred opposite bit
func (e *Encoder) emit(bit uint8) {
	e.writer.WriteBit(bit)
	for ; e.pending > 0; e.pending-- {
		e.writer.WriteBit(1 - bit)
	}
}

// Finish flushes enough bits to identify the final interval and returns the
// output. It may be called once; an encoder that coded nothing returns an
// empty buffer.
func (e *Encoder) Finish() ([]byte, error) {
	if e.finished {
		return nil, ErrFinished
	}
	e.finished = true
	if e.coded == 0 {
		return []byte{}, nil
	}

	e.pending++
	if e.low < firstQtr {
		e.emit(0)
	} else {
		e.emit(1)
	}
	return e.writer.Bytes(), nil
}

// Decoder is the mirror of Encoder
type Decoder struct {
	reader  *BitReader
	low     uint64
	high    uint64
	code    uint64
	decoded int
}

// NewDecoder primes a decoder with the first 32 code bits of data.
// Missing bits read as zero.
func NewDecoder(data []byte) *Decoder {
	d := &Decoder{
		reader: NewBitReader(data),
		high:   topValue,
	}
	for i := 0; i < codeBits; i++ {
		d.code = d.code<<1 | uint64(d.reader.ReadBit())
	}
	return d
}

// Decoded returns the number of symbols decoded so far
func (d *Decoder) Decoded() int { return d.decoded }

// Exhausted reports whether the scalings performed so far, plus the two
// termination bits the encoder always appends, no longer fit in the input.
// A stream of n symbols carries exactly scalings(n)+2 bits before padding, so
// a well-formed stream never reaches this state while its n symbols decode.
func (d *Decoder) Exhausted() bool {
	return d.scalings()+2 > d.reader.Len()
}

// scalings is the number of bits shifted into the code window after priming
func (d *Decoder) scalings() uint64 {
	return d.reader.Consumed() - codeBits
}

// Finish checks that the input ends where the decoded symbols say it should:
// the encoder's termination value followed by zero padding to the next byte.
// It returns ErrMalformed for trailing bytes, a wrong termination or non-zero
// padding. Input that passes is exactly what the encoder would have written
// for the symbols decoded so far.
func (d *Decoder) Finish() error {
	if d.decoded == 0 {
		if d.reader.Len() != 0 {
			return fmt.Errorf("%w: %d bytes after an empty stream", ErrMalformed, d.reader.Len()/8)
		}
		return nil
	}

	if want := (d.scalings() + 2 + 7) &^ 7; d.reader.Len() != want {
		return fmt.Errorf("%w: %d input bits, stream ends at %d", ErrMalformed, d.reader.Len(), want)
	}
	term := half
	if d.low < firstQtr {
		term = firstQtr
	}
	if d.code != term {
		return fmt.Errorf("%w: stream does not terminate after %d symbols", ErrMalformed, d.decoded)
	}
	return nil
}

// DecodeSymbol returns the next symbol under table. The table is not modified.
func (d *Decoder) DecodeSymbol(table *FrequencyTable) (int, error) {
	if d.Exhausted() {
		return 0, fmt.Errorf("%w: after %d symbols", ErrStreamExhausted, d.decoded)
	}

	total := uint64(table.Total())
	rng := d.high - d.low + 1
	if d.code < d.low || d.code > d.high {
		return 0, fmt.Errorf("%w: code value outside interval", ErrMalformed)
	}
	target := ((d.code-d.low+1)*total - 1) / rng
	if target >= total {
		return 0, fmt.Errorf("%w: target %d outside table total %d", ErrMalformed, target, total)
	}

	sym := table.Find(uint32(target))
	lo, hi, err := table.Range(sym)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	d.high = d.low + rng*uint64(hi)/total - 1
	d.low = d.low + rng*uint64(lo)/total

	for {
		switch {
		case d.high < half:
		case d.low >= half:
			d.low -= half
			d.high -= half
			d.code -= half
		case d.low >= firstQtr && d.high < thirdQtr:
			d.low -= firstQtr
			d.high -= firstQtr
			d.code -= firstQtr
		default:
			if d.Exhausted() {
				return 0, fmt.Errorf("%w: symbol %d runs past the input", ErrStreamExhausted, d.decoded)
			}
			d.decoded++
			return sym, nil
		}
		d.low <<= 1
		d.high = d.high<<1 | 1
		d.code = d.code<<1 | uint64(d.reader.ReadBit())
	}
}

// AdaptiveEncoder couples an Encoder with a single adaptive table
type AdaptiveEncoder struct {
	enc   *Encoder
	table *FrequencyTable
}

// NewAdaptiveEncoder creates an encoder over a uniform table of the given alphabet
func NewAdaptiveEncoder(alphabet int, ceiling uint32) (*AdaptiveEncoder, error) {
	table, err := NewFrequencyTable(alphabet, ceiling)
	if err != nil {
		return nil, err
	}
	return &AdaptiveEncoder{enc: NewEncoder(), table: table}, nil
}

// EncodeSymbol codes sym then increments its frequency
func (a *AdaptiveEncoder) EncodeSymbol(sym int) error {
	if err := a.enc.EncodeSymbol(a.table, sym); err != nil {
		return err
	}
	return a.table.Increment(sym)
}

// Finish flushes the encoder
func (a *AdaptiveEncoder) Finish() ([]byte, error) { return a.enc.Finish() }

// Table returns the live table
func (a *AdaptiveEncoder) Table() *FrequencyTable { return a.table }

// AdaptiveDecoder couples a Decoder with a single adaptive table
type AdaptiveDecoder struct {
	dec   *Decoder
	table *FrequencyTable
}

// NewAdaptiveDecoder creates a decoder over a uniform table of the given alphabet
func NewAdaptiveDecoder(data []byte, alphabet int, ceiling uint32) (*AdaptiveDecoder, error) {
	table, err := NewFrequencyTable(alphabet, ceiling)
	if err != nil {
		return nil, err
	}
	return &AdaptiveDecoder{dec: NewDecoder(data), table: table}, nil
}

// DecodeSymbol decodes the next symbol then increments its frequency
func (a *AdaptiveDecoder) DecodeSymbol() (int, error) {
	sym, err := a.dec.DecodeSymbol(a.table)
	if err != nil {
		return 0, err
	}
	return sym, a.table.Increment(sym)
}

// Table returns the live table
func (a *AdaptiveDecoder) Table() *FrequencyTable { return a.table }
