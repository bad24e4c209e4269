// Package buffer implements the retry loop shared by every variable-length
// native query: allocate, call, grow on "too small", give up at a ceiling.
package buffer

import (
	"fmt"

	"procscope/process"
)

// DefaultInitial is used when a Policy does not set Initial
const DefaultInitial = 0x100

// Query fills buf. On success n is the number of bytes used (0 means the
// whole buffer). On a too-small failure n is the size the native API asked
// for, or 0 when it did not say.
type Query func(buf []byte) (n int, err error)

// Policy configures one call site
type Policy struct {
	Syscall  string
	Initial  int
	Ceiling  int // defaults to process.DefaultBufferCeiling
	TooSmall func(err error) bool
}

// Read runs query with growing buffers until it succeeds, fails for another
// reason, or would need more than the ceiling. The returned slice has the
// length that was last handed to the native call; used is the part it filled.
//
// A reported size is tried once. If the retry at that size is still too
// small the loop doubles from there, since some native calls under-report.
func Read(p Policy, query Query) (buf []byte, used int, err error) {
	size := p.Initial
	if size <= 0 {
		size = DefaultInitial
	}
	ceiling := p.Ceiling
	if ceiling <= 0 {
		ceiling = process.DefaultBufferCeiling
	}

	triedReported := false
	for {
		if size > ceiling {
			return nil, 0, process.Fatal(0, p.Syscall, fmt.Errorf("%w: need %d bytes, ceiling %d", process.ErrBufferCeiling, size, ceiling))
		}

		buf = make([]byte, size)
		n, err := query(buf)
		if err == nil {
			if n <= 0 || n > len(buf) {
				n = len(buf)
			}
			return buf, n, nil
		}

		if p.TooSmall == nil || !p.TooSmall(err) {
			return nil, 0, err
		}

		size, triedReported = next(size, n, triedReported)
	}
}

// next picks the following candidate size
func next(size, reported int, triedReported bool) (int, bool) {
	if reported > size && !triedReported {
		return reported, true
	}
	return size * 2, false
}
