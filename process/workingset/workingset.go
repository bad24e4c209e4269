// Package workingset decodes working-set tables and computes the unique set
// size from them.
package workingset

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a table is too small to hold its count
var ErrShortBuffer = errors.New("workingset: buffer shorter than header")

// Entry is one resident page. Only the sharing bits are kept.
type Entry struct {
	Shared     bool
	ShareCount uint8
}

// IsPrivate reports whether the page counts toward the unique set size. A
// page with a single referent is private from this process's point of view.
func (e Entry) IsPrivate() bool {
	return !e.Shared || e.ShareCount <= 1
}

// PrivatePages counts the entries that are private
func PrivatePages(entries []Entry) uint64 {
	var n uint64
	for _, e := range entries {
		if e.IsPrivate() {
			n++
		}
	}
	return n
}

// Bit layout of a MEMORY_WORKING_SET_BLOCK
const (
	shareCountShift = 5
	shareCountMask  = 0x7
	sharedBit       = 1 << 8
)

// DecodeEntry unpacks the flags word of one working-set block
func DecodeEntry(v uint64) Entry {
	return Entry{
		Shared:     v&sharedBit != 0,
		ShareCount: uint8((v >> shareCountShift) & shareCountMask),
	}
}

// Parse decodes a MEMORY_WORKING_SET_INFORMATION buffer: a pointer-sized
// entry count followed by one pointer-sized block per page. Decoding stops at
// the buffer end if the count claims more entries than fit.
func Parse(buf []byte, ptrSize int) ([]Entry, error) {
	if ptrSize != 4 && ptrSize != 8 {
		ptrSize = 8
	}
	if len(buf) < ptrSize {
		return nil, ErrShortBuffer
	}

	read := func(off int) uint64 {
		if ptrSize == 4 {
			return uint64(binary.NativeEndian.Uint32(buf[off:]))
		}
		return binary.NativeEndian.Uint64(buf[off:])
	}

	count := read(0)
	room := uint64((len(buf) - ptrSize) / ptrSize)
	if count > room {
		count = room
	}

	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		entries = append(entries, DecodeEntry(read(ptrSize+int(i)*ptrSize)))
	}
	return entries, nil
}

// UniqueSetSize parses buf and returns the private byte count
func UniqueSetSize(buf []byte, ptrSize, pageSize int) (uint64, error) {
	entries, err := Parse(buf, ptrSize)
	if err != nil {
		return 0, err
	}
	return PrivatePages(entries) * uint64(pageSize), nil
}
