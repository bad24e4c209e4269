//go:build windows

package memory_map

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// NameFunc resolves the file mapped at base. ok is false when the region
// has no backing file or the name cannot be obtained.
type NameFunc func(base uintptr) (name string, ok bool)

// Walk enumerates the address space of h from lo to hi with VirtualQueryEx.
// Only regions with a resolvable backing file are returned; others are
// skipped rather than failing the walk. The walk ends at hi, at a query
// failure past the first region, or when a region would wrap around.
func Walk(h windows.Handle, lo, hi uintptr, name NameFunc) ([]MemoryRegion, error) {
	var regions []MemoryRegion
	var mbi windows.MemoryBasicInformation

	addr := lo
	for addr < hi {
		if err := windows.VirtualQueryEx(h, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			if len(regions) == 0 && addr == lo {
				return nil, err
			}
			break
		}
		if mbi.RegionSize == 0 {
			break
		}

		if path, ok := name(mbi.BaseAddress); ok {
			regions = append(regions, MemoryRegion{
				Address:    uint64(mbi.BaseAddress),
				Size:       uint64(mbi.RegionSize),
				Protection: ProtectionFromWin32(mbi.Protect),
				Path:       path,
			})
		}

		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}
	return regions, nil
}
