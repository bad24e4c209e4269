package memory_map

import (
	"fmt"
	"sort"
)

// Protection is the access mask of a region
type Protection uint8

const (
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExecute
	ProtCopyOnWrite
	ProtUnknown
)

// String renders the compact form: x, r, w, c in that order, "" for no
// access and "?" for a protection the platform code did not recognise.
func (p Protection) String() string {
	if p&ProtUnknown != 0 {
		return "?"
	}
	var b []byte
	if p&ProtExecute != 0 {
		b = append(b, 'x')
	}
	if p&ProtRead != 0 {
		b = append(b, 'r')
	}
	if p&ProtWrite != 0 {
		b = append(b, 'w')
	}
	if p&ProtCopyOnWrite != 0 {
		b = append(b, 'c')
	}
	return string(b)
}

func (p Protection) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Win32 page protection constants
const (
	pageNoAccess         = 0x01
	pageReadOnly         = 0x02
	pageReadWrite        = 0x04
	pageWriteCopy        = 0x08
	pageExecute          = 0x10
	pageExecuteRead      = 0x20
	pageExecuteReadWrite = 0x40
	pageExecuteWriteCopy = 0x80
	pageModifierMask     = 0x700 // PAGE_GUARD, PAGE_NOCACHE, PAGE_WRITECOMBINE
)

// ProtectionFromWin32 converts a PAGE_* value
func ProtectionFromWin32(protect uint32) Protection {
	switch protect &^ pageModifierMask {
	case pageNoAccess:
		return 0
	case pageReadOnly:
		return ProtRead
	case pageReadWrite:
		return ProtRead | ProtWrite
	case pageWriteCopy:
		return ProtWrite | ProtCopyOnWrite
	case pageExecute:
		return ProtExecute
	case pageExecuteRead:
		return ProtExecute | ProtRead
	case pageExecuteReadWrite:
		return ProtExecute | ProtRead | ProtWrite
	case pageExecuteWriteCopy:
		return ProtExecute | ProtWrite | ProtCopyOnWrite
	default:
		return ProtUnknown
	}
}

// ProtectionFromPerms converts /proc/<pid>/maps style flags. A private
// writable mapping is copy-on-write.
func ProtectionFromPerms(read, write, execute, private bool) Protection {
	var p Protection
	if read {
		p |= ProtRead
	}
	if write {
		p |= ProtWrite
		if private {
			p |= ProtCopyOnWrite
		}
	}
	if execute {
		p |= ProtExecute
	}
	return p
}

// MemoryRegion is one contiguous region of a process's address space
type MemoryRegion struct {
	Address    uint64     `json:"address"`
	Size       uint64     `json:"size"`
	Protection Protection `json:"protection"`
	Path       string     `json:"path"` // backing file, empty when anonymous
}

// String returns a string representation of the memory region
func (r MemoryRegion) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", r.Address, r.Size, r.Protection, r.Path)
}

// End is the first address past the region
func (r MemoryRegion) End() uint64 {
	return r.Address + r.Size
}

func (r MemoryRegion) IsReadable() bool {
	return r.Protection&ProtRead != 0
}

func (r MemoryRegion) IsWritable() bool {
	return r.Protection&ProtWrite != 0
}

// Find returns the region containing addr. regions must be sorted by address.
func Find(addr uint64, regions []MemoryRegion) *MemoryRegion {
	i := sort.Search(len(regions), func(i int) bool {
		return regions[i].End() > addr
	})
	if i < len(regions) && regions[i].Address <= addr {
		return &regions[i]
	}
	return nil
}
