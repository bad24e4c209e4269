// Package decode walks packed native buffers of NUL-terminated fields.
//
// The macOS procargs2 layout is
//
//	[argc int32][exec path\0][\0 padding][argv0\0]...[argvN\0][env0\0]...[\0]
//
// Linux /proc cmdline and environ are the same fields without the header,
// and a Windows environment block is UTF-16 entries ending in an empty one.
// No walker ever reads past len(buf), whatever the header claims.
package decode

import (
	"encoding/binary"
	"errors"
	"unicode/utf16"
)

// ErrShortBuffer is returned when the buffer cannot even hold its header
var ErrShortBuffer = errors.New("decode: buffer shorter than header")

const argcSize = 4

// Unit is a code unit of a packed string block
type Unit interface {
	~byte | ~uint16
}

// walker is a cursor over a packed block
type walker[T Unit] struct {
	buf []T
	pos int
}

// skipNULs advances past any run of NUL padding
func (w *walker[T]) skipNULs() {
	for w.pos < len(w.buf) && w.buf[w.pos] == 0 {
		w.pos++
	}
}

// field returns the next NUL-terminated field. ok is false at the buffer end
// or when the rest of the buffer is not terminated; pos does not move then.
func (w *walker[T]) field() (f []T, ok bool) {
	start := w.pos
	for i := start; i < len(w.buf); i++ {
		if w.buf[i] == 0 {
			w.pos = i + 1
			return w.buf[start:i], true
		}
	}
	return nil, false
}

// Fields walks up to limit NUL-terminated fields (limit < 0 means no limit)
// starting at the beginning of buf. It stops at the buffer end, at an
// unterminated tail, or at an empty field when stopAtEmpty is set.
func Fields[T Unit](buf []T, limit int, stopAtEmpty bool) [][]T {
	w := &walker[T]{buf: buf}
	return w.collect(limit, stopAtEmpty)
}

func (w *walker[T]) collect(limit int, stopAtEmpty bool) [][]T {
	var out [][]T
	for limit != 0 && w.pos < len(w.buf) {
		f, ok := w.field()
		if !ok {
			break
		}
		if stopAtEmpty && len(f) == 0 {
			break
		}
		out = append(out, f)
		if limit > 0 {
			limit--
		}
	}
	return out
}

// header reads argc and positions a walker at the first argument, past the
// exec path and its padding.
func header(buf []byte) (*walker[byte], int, error) {
	if len(buf) < argcSize {
		return nil, 0, ErrShortBuffer
	}
	argc := int(int32(binary.NativeEndian.Uint32(buf[:argcSize])))
	if argc < 0 {
		argc = 0
	}

	w := &walker[byte]{buf: buf, pos: argcSize}
	w.field() // exec path
	w.skipNULs()
	return w, argc, nil
}

// ExecPath returns the executable path stored ahead of the argument vector
func ExecPath(buf []byte) (string, error) {
	if len(buf) < argcSize {
		return "", ErrShortBuffer
	}
	w := &walker[byte]{buf: buf, pos: argcSize}
	f, ok := w.field()
	if !ok {
		return "", nil
	}
	return string(f), nil
}

// Argv decodes the argument vector of a procargs2 buffer. A header count
// larger than the fields actually present truncates cleanly.
func Argv(buf []byte) ([]string, error) {
	w, argc, err := header(buf)
	if err != nil {
		return nil, err
	}
	return toStrings(w.collect(argc, false)), nil
}

// Environ decodes the environment that follows the argument vector. It skips
// exactly argc argument fields, then collects entries up to the first empty
// one or the buffer end.
func Environ(buf []byte) ([]string, error) {
	w, argc, err := header(buf)
	if err != nil {
		return nil, err
	}
	for i := 0; i < argc && w.pos < len(w.buf); i++ {
		if _, ok := w.field(); !ok {
			return nil, nil
		}
	}
	return toStrings(w.collect(-1, true)), nil
}

// SplitNUL splits a header-less block such as /proc/<pid>/cmdline. A
// trailing field without a terminator is kept, matching how the kernel
// truncates these files.
func SplitNUL(buf []byte) []string {
	w := &walker[byte]{buf: buf}
	out := toStrings(w.collect(-1, false))
	if w.pos < len(buf) {
		out = append(out, string(buf[w.pos:]))
	}
	return out
}

// UTF16Block decodes a Windows environment block: UTF-16 entries, each NUL
// terminated, the block itself ending with an empty entry.
func UTF16Block(block []uint16) []string {
	fields := Fields(block, -1, true)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(utf16.Decode(f)))
	}
	return out
}

func toStrings(fields [][]byte) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return out
}
