package store

import (
	"sync"
)

// SeqIndex maps stream sequence numbers to unit locations
type SeqIndex struct {
	entries []IndexEntry
	symbols uint64
	mutex   sync.RWMutex
}

// NewSeqIndex creates an empty index
func NewSeqIndex() *SeqIndex {
	return &SeqIndex{}
}

// Append records the next unit and returns its sequence number
func (idx *SeqIndex) Append(entry IndexEntry) uint64 {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()
	return idx.appendLocked(entry)
}

func (idx *SeqIndex) appendLocked(entry IndexEntry) uint64 {
	entry.Seq = uint64(len(idx.entries))
	idx.entries = append(idx.entries, entry)
	idx.symbols += uint64(entry.SymbolCount)
	return entry.Seq
}

// Get retrieves the entry of unit seq
func (idx *SeqIndex) Get(seq uint64) (IndexEntry, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	if seq >= uint64(len(idx.entries)) {
		return IndexEntry{}, false
	}
	return idx.entries[seq], true
}

// Len returns the number of indexed units
func (idx *SeqIndex) Len() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	return len(idx.entries)
}

// Entries returns a copy of all entries in stream order
func (idx *SeqIndex) Entries() []IndexEntry {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	return append([]IndexEntry(nil), idx.entries...)
}

// Clear removes all entries
func (idx *SeqIndex) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()
	idx.entries = nil
	idx.symbols = 0
}

// BuildFromLog scans a log file from the start and rebuilds the index
func (idx *SeqIndex) BuildFromLog(reader *LogReader) error {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = nil
	idx.symbols = 0

	if err := reader.Seek(0); err != nil {
		return err
	}

	it := reader.Iterator()
	defer it.Close()

	for it.Next() {
		unit := it.Unit()
		idx.appendLocked(IndexEntry{
			Offset:      reader.Offset() - int64(unit.Size()),
			Size:        uint32(unit.Size()),
			SymbolCount: unit.SymbolCount,
			Timestamp:   unit.Timestamp,
		})
	}
	return it.Err()
}

// Stats returns index statistics
func (idx *SeqIndex) Stats() *IndexStats {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return &IndexStats{
		TotalUnits:   len(idx.entries),
		TotalSymbols: idx.symbols,
	}
}

// IndexStats holds statistics about the index
type IndexStats struct {
	TotalUnits   int    `json:"total_units"`
	TotalSymbols uint64 `json:"total_symbols"`
}
