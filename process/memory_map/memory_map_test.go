package memory_map

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectionFromWin32(t *testing.T) {
	cases := []struct {
		protect uint32
		want    string
	}{
		{pageNoAccess, ""},
		{pageReadOnly, "r"},
		{pageReadWrite, "rw"},
		{pageWriteCopy, "wc"},
		{pageExecute, "x"},
		{pageExecuteRead, "xr"},
		{pageExecuteReadWrite, "xrw"},
		{pageExecuteWriteCopy, "xwc"},
		{pageReadWrite | 0x100, "rw"}, // PAGE_GUARD
		{0x3, "?"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ProtectionFromWin32(tc.protect).String(), "protect 0x%x", tc.protect)
	}
}

func TestProtectionFromPerms(t *testing.T) {
	assert.Equal(t, "xr", ProtectionFromPerms(true, false, true, true).String())
	assert.Equal(t, "rwc", ProtectionFromPerms(true, true, false, true).String())
	assert.Equal(t, "rw", ProtectionFromPerms(true, true, false, false).String())
	assert.Equal(t, "", ProtectionFromPerms(false, false, false, true).String())
}

func TestFind(t *testing.T) {
	regions := []MemoryRegion{
		{Address: 0x1000, Size: 0x1000},
		{Address: 0x4000, Size: 0x2000},
	}

	r := Find(0x4800, regions)
	require.NotNil(t, r)
	assert.Equal(t, uint64(0x4000), r.Address)

	assert.Nil(t, Find(0x2000, regions))
	assert.Nil(t, Find(0x6000, regions))
	assert.NotNil(t, Find(0x1000, regions))
}

func TestMemoryRegionJSON(t *testing.T) {
	b, err := json.Marshal(MemoryRegion{Address: 1, Size: 2, Protection: ProtRead | ProtExecute, Path: "/lib/x.so"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":1,"size":2,"protection":"xr","path":"/lib/x.so"}`, string(b))
}

func TestProtectionFromMach(t *testing.T) {
	assert.Equal(t, "xr", ProtectionFromMach(vmProtRead|vmProtExecute, smCOW).String())
	assert.Equal(t, "rwc", ProtectionFromMach(vmProtRead|vmProtWrite, smPrivate).String())
	assert.Equal(t, "rw", ProtectionFromMach(vmProtRead|vmProtWrite, 4).String()) // SM_SHARED
	assert.Equal(t, "", ProtectionFromMach(0, smPrivate).String())
}

func TestScan(t *testing.T) {
	layout := []MemoryRegion{
		{Address: 0x1000, Size: 0x1000, Path: "/usr/lib/dyld"},
		{Address: 0x4000, Size: 0x2000},
	}
	next := func(addr uint64) (MemoryRegion, bool, error) {
		for _, r := range layout {
			if r.End() > addr {
				return r, true, nil
			}
		}
		return MemoryRegion{}, false, nil
	}

	t.Run("walks_in_order", func(t *testing.T) {
		regions, err := Scan(next)
		require.NoError(t, err)
		assert.Equal(t, layout, regions)
	})

	t.Run("first_failure_is_returned", func(t *testing.T) {
		_, err := Scan(func(uint64) (MemoryRegion, bool, error) {
			return MemoryRegion{}, false, assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("later_failure_ends_the_walk", func(t *testing.T) {
		regions, err := Scan(func(addr uint64) (MemoryRegion, bool, error) {
			if addr > 0 {
				return MemoryRegion{}, false, assert.AnError
			}
			return layout[0], true, nil
		})
		require.NoError(t, err)
		assert.Len(t, regions, 1)
	})

	t.Run("stuck_cursor_ends_the_walk", func(t *testing.T) {
		regions, err := Scan(func(uint64) (MemoryRegion, bool, error) {
			return layout[0], true, nil
		})
		require.NoError(t, err)
		assert.Len(t, regions, 1)
	})
}
