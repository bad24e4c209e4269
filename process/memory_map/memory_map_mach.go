package memory_map

// Mach vm_prot_t bits and the private share modes of vm_region.h
const (
	vmProtRead    = 0x1
	vmProtWrite   = 0x2
	vmProtExecute = 0x4

	smCOW            = 1
	smPrivate        = 2
	smPrivateAliased = 6
)

// ProtectionFromMach converts a vm_prot_t and the region share mode
func ProtectionFromMach(prot, shareMode uint32) Protection {
	private := shareMode == smCOW || shareMode == smPrivate || shareMode == smPrivateAliased
	return ProtectionFromPerms(prot&vmProtRead != 0, prot&vmProtWrite != 0, prot&vmProtExecute != 0, private)
}

// NextFunc returns the first region at or above addr. ok is false once
// there are no more regions.
type NextFunc func(addr uint64) (r MemoryRegion, ok bool, err error)

// Scan walks an address space region by region from address 0. An error on
// the first region fails the scan, a later one ends it, as does a region
// that does not move the cursor forward.
func Scan(next NextFunc) ([]MemoryRegion, error) {
	var regions []MemoryRegion
	var addr uint64
	for {
		r, ok, err := next(addr)
		if err != nil {
			if len(regions) == 0 {
				return nil, err
			}
			break
		}
		if !ok || r.Size == 0 || r.End() <= addr {
			break
		}
		regions = append(regions, r)
		addr = r.End()
	}
	return regions, nil
}
