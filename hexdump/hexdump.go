// Package hexdump renders remote memory as an annotated hex listing. Aligned
// words whose value lands inside a mapped region are marked as pointers.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"procscope/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options controls the layout of a dump
type Options struct {
	// Base is the address of the first byte
	Base uint64

	// Width is the number of bytes per line, 16 when zero
	Width int

	// PointerSize is the word size used for pointer detection, 8 when zero
	PointerSize int

	// Regions is the sorted memory map of the process. Nil disables pointer
	// detection.
	Regions []memory_map.MemoryRegion

	// Color enables ANSI colors
	Color bool
}

func (o Options) normalized() Options {
	if o.Width <= 0 {
		o.Width = 16
	}
	if o.PointerSize != 4 {
		o.PointerSize = 8
	}
	// pointer words never straddle two lines
	if o.Width%o.PointerSize != 0 {
		o.Width += o.PointerSize - o.Width%o.PointerSize
	}
	return o
}

// Pointer is a word in the dump that points into a mapped region
type Pointer struct {
	Offset int                     `json:"offset"` // offset of the word in the data
	Value  uint64                  `json:"value"`  // decoded little endian value
	Region memory_map.MemoryRegion `json:"region"`
}

// Pointers returns every aligned word of data that points into regions
func Pointers(data []byte, opts Options) []Pointer {
	opts = opts.normalized()
	if len(opts.Regions) == 0 {
		return nil
	}

	var out []Pointer
	for off := 0; off+opts.PointerSize <= len(data); off += opts.PointerSize {
		v := word(data[off:], opts.PointerSize)
		if v == 0 {
			continue
		}
		if r := memory_map.Find(v, opts.Regions); r != nil {
			out = append(out, Pointer{Offset: off, Value: v, Region: *r})
		}
	}
	return out
}

func word(b []byte, size int) uint64 {
	if size == 4 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}

// Dump writes data to w, one line per Width bytes:
//
//	00007ffd5a3c1000  48 65 6c 6c 6f 00 00 00  10 20 3c 5a fd 7f 00 00  Hello.... <Z....  -> 7ffd5a3c2010 [stack]
func Dump(w io.Writer, data []byte, opts Options) error {
	opts = opts.normalized()

	marked := make(map[int]Pointer)
	for _, p := range Pointers(data, opts) {
		marked[p.Offset] = p
	}

	var line bytes.Buffer
	for off := 0; off < len(data); off += opts.Width {
		end := min(off+opts.Width, len(data))
		line.Reset()
		formatLine(&line, data[off:end], off, marked, opts)
		if _, err := w.Write(line.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// String is Dump into a string
func String(data []byte, opts Options) string {
	var sb strings.Builder
	_ = Dump(&sb, data, opts)
	return sb.String()
}

func formatLine(buf *bytes.Buffer, data []byte, off int, marked map[int]Pointer, opts Options) {
	paint := func(c coloransi.ColorCode, s string) string {
		if !opts.Color {
			return s
		}
		return coloransi.Foreground(c, s)
	}

	buf.WriteString(paint(coloransi.Cyan, fmt.Sprintf("%016x", opts.Base+uint64(off))))
	buf.WriteString("  ")

	// bytes belonging to a pointer word
	inPointer := make([]bool, len(data))
	var notes []string
	for i := 0; i < len(data); i += opts.PointerSize {
		p, ok := marked[off+i]
		if !ok {
			continue
		}
		for j := i; j < i+opts.PointerSize && j < len(data); j++ {
			inPointer[j] = true
		}
		note := fmt.Sprintf("-> %x", p.Value)
		if p.Region.Path != "" {
			note += " " + p.Region.Path
		}
		notes = append(notes, note)
	}

	half := opts.Width / 2
	for i := 0; i < opts.Width; i++ {
		if i == half {
			buf.WriteByte(' ')
		}
		if i >= len(data) {
			buf.WriteString("   ")
			continue
		}
		hex := fmt.Sprintf("%02x", data[i])
		switch {
		case inPointer[i]:
			hex = paint(coloransi.Yellow, hex)
		case data[i] == 0:
			hex = paint(coloransi.BrightBlack, hex)
		default:
			hex = paint(coloransi.Green, hex)
		}
		buf.WriteString(hex)
		buf.WriteByte(' ')
	}

	buf.WriteByte(' ')
	for _, b := range data {
		if b >= 0x20 && b < 0x7f {
			buf.WriteByte(b)
		} else {
			buf.WriteString(paint(coloransi.BrightBlack, "."))
		}
	}

	if len(notes) > 0 {
		buf.WriteString(strings.Repeat(" ", opts.Width-len(data)+1))
		buf.WriteString(paint(coloransi.Yellow, strings.Join(notes, ", ")))
	}
	buf.WriteByte('\n')
}
