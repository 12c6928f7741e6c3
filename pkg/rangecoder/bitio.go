package rangecoder

// BitWriter packs bits MSB-first into an in-memory buffer
type BitWriter struct {
	buf  []byte
	acc  byte
	used uint8
	bits uint64
}

// NewBitWriter creates a writer with room for sizeHint bytes
func NewBitWriter(sizeHint int) *BitWriter {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &BitWriter{buf: make([]byte, 0, sizeHint)}
}

// WriteBit appends the low bit of bit
func (w *BitWriter) WriteBit(bit uint8) {
	w.acc = w.acc<<1 | bit&1
	w.used++
	w.bits++
	if w.used == 8 {
		w.buf = append(w.buf, w.acc)
		w.acc = 0
		w.used = 0
	}
}

// WriteBits appends the nbits low bits of value, most significant first
func (w *BitWriter) WriteBits(value uint64, nbits uint8) {
	for nbits > 0 {
		nbits--
		w.WriteBit(uint8(value>>nbits) & 1)
	}
}

// BitsWritten returns the number of bits appended so far
func (w *BitWriter) BitsWritten() uint64 { return w.bits }

// Bytes pads the final partial byte with zeros and returns the buffer.
// The writer must not be used afterwards.
func (w *BitWriter) Bytes() []byte {
	if w.used > 0 {
		w.buf = append(w.buf, w.acc<<(8-w.used))
		w.acc = 0
		w.used = 0
	}
	return w.buf
}

// BitReader reads bits MSB-first from an in-memory buffer. Reads past the end
// return zero bits; Remaining reports how many real bits are left.
type BitReader struct {
	data []byte
	pos  uint64
}

// NewBitReader creates a reader over data
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// ReadBit returns the next bit, or 0 past the end of the buffer
func (r *BitReader) ReadBit() uint8 {
	bit := r.pos
	r.pos++
	if bit>>3 >= uint64(len(r.data)) {
		return 0
	}
	return (r.data[bit>>3] >> (7 - bit&7)) & 1
}

// Consumed returns the number of bits read, padding included
func (r *BitReader) Consumed() uint64 { return r.pos }

// Len returns the number of real bits in the buffer
func (r *BitReader) Len() uint64 { return uint64(len(r.data)) * 8 }

// Remaining returns how many real bits have not been read yet
func (r *BitReader) Remaining() uint64 {
	if r.pos >= r.Len() {
		return 0
	}
	return r.Len() - r.pos
}
