package process

import (
	"fmt"
	"unsafe"
)

// ProcessMemoryAddress is an address inside another process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) String() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

// MemoryReader reads raw bytes out of another address space
type MemoryReader interface {
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
	// PointerSize is the pointer width of the target, 4 or 8
	PointerSize() int
}

// ReadPath reads a value of type T at the end of a pointer path.
// It starts at base, adds the first offset, reads a pointer, adds the next offset, reads a pointer, etc.
// The last offset is added to the final pointer, and then T is read from that address.
// If offsets is empty, it reads T from base.
func ReadPath[T any](r MemoryReader, base ProcessMemoryAddress, offsets ...ProcessMemorySize) (T, error) {
	var zero T
	currentAddr := base

	for i := 0; i < len(offsets)-1; i++ {
		ptrAddr := currentAddr + ProcessMemoryAddress(offsets[i])

		ptrVal, err := ReadPointer(r, ptrAddr)
		if err != nil {
			return zero, fmt.Errorf("read pointer at offset %d (addr %s): %w", i, ptrAddr, err)
		}
		if ptrVal == 0 {
			return zero, fmt.Errorf("pointer at offset %d (addr %s) is null: %w", i, ptrAddr, ErrInvalidPointer)
		}

		currentAddr = ptrVal
	}

	finalOffset := ProcessMemorySize(0)
	if len(offsets) > 0 {
		finalOffset = offsets[len(offsets)-1]
	}
	finalAddr := currentAddr + ProcessMemoryAddress(finalOffset)

	val, err := Read[T](r, finalAddr)
	if err != nil {
		return zero, fmt.Errorf("read final value at %s: %w", finalAddr, err)
	}
	return val, nil
}

// ReadPointer reads one pointer of the target's width
func ReadPointer(r MemoryReader, addr ProcessMemoryAddress) (ProcessMemoryAddress, error) {
	if r.PointerSize() == 4 {
		v, err := Read[uint32](r, addr)
		return ProcessMemoryAddress(v), err
	}
	v, err := Read[uint64](r, addr)
	return ProcessMemoryAddress(v), err
}

// Read copies one value of type T out of the target. T must not contain Go
// pointers; remote addresses are held as uintptr or ProcessMemoryAddress.
func Read[T any](r MemoryReader, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := ProcessMemorySize(unsafe.Sizeof(t))
	if size == 0 {
		return t, nil
	}

	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return t, err
	}
	if len(data) < int(size) {
		return t, ErrShortRead
	}

	copyTo(&t, data)
	return t, nil
}

// copyTo copies bytes to *T
func copyTo[T any](dst *T, src []byte) {
	size := int(unsafe.Sizeof(*dst))
	dstBytes := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstBytes, src)
}
