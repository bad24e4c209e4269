package hexdump

import (
	"encoding/binary"
	"strings"
	"testing"

	"procscope/process/memory_map"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var regions = []memory_map.MemoryRegion{
	{Address: 0x1000, Size: 0x1000, Protection: memory_map.ProtRead, Path: "/usr/lib/libc.so.6"},
	{Address: 0x7000, Size: 0x2000, Protection: memory_map.ProtRead | memory_map.ProtWrite},
}

func TestPointers(t *testing.T) {
	data := make([]byte, 32)
	binary.LittleEndian.PutUint64(data[0:], 0x1010)
	binary.LittleEndian.PutUint64(data[8:], 0x5000) // unmapped
	binary.LittleEndian.PutUint64(data[24:], 0x8ff8)

	ptrs := Pointers(data, Options{Regions: regions})
	require.Len(t, ptrs, 2)
	assert.Equal(t, 0, ptrs[0].Offset)
	assert.Equal(t, uint64(0x1010), ptrs[0].Value)
	assert.Equal(t, "/usr/lib/libc.so.6", ptrs[0].Region.Path)
	assert.Equal(t, 24, ptrs[1].Offset)

	assert.Empty(t, Pointers(data, Options{}))
}

func TestPointersNarrowWords(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[4:], 0x7004)

	ptrs := Pointers(data, Options{Regions: regions, PointerSize: 4})
	require.Len(t, ptrs, 1)
	assert.Equal(t, 4, ptrs[0].Offset)
}

func TestDump(t *testing.T) {
	data := []byte("Hello, world!\x00\x01\x02more")
	out := String(data, Options{Base: 0x400000})

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "0000000000400000  48 65 6c 6c"))
	assert.True(t, strings.HasSuffix(lines[0], "Hello, world!..."))
	assert.True(t, strings.HasPrefix(lines[1], "0000000000400010  6d 6f 72 65"))
	assert.True(t, strings.HasSuffix(lines[1], "more"))
	assert.Equal(t, len(lines[0])-len("Hello, world!..."), len(lines[1])-len("more"))
	assert.NotContains(t, out, "\x1b[")
}

func TestDumpAnnotatesPointers(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[8:], 0x1234)

	out := String(data, Options{Regions: regions})
	assert.Contains(t, out, "-> 1234 /usr/lib/libc.so.6")

	colored := String(data, Options{Regions: regions, Color: true})
	assert.Contains(t, colored, "\x1b[")
}

func TestWidthRoundsToWords(t *testing.T) {
	opts := Options{Width: 10}.normalized()
	assert.Equal(t, 16, opts.Width)
	assert.Equal(t, 8, opts.PointerSize)
}
