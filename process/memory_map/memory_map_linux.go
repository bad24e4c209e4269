//go:build linux

package memory_map

import (
	"github.com/prometheus/procfs"
)

// ReadProcMaps reads /proc/<pid>/maps through procfs. Every mapping line is
// one region; anonymous mappings keep an empty path and pseudo paths such
// as [heap] are passed through.
func ReadProcMaps(p procfs.Proc) ([]MemoryRegion, error) {
	maps, err := p.ProcMaps()
	if err != nil {
		return nil, err
	}

	regions := make([]MemoryRegion, 0, len(maps))
	for _, m := range maps {
		if m == nil || m.EndAddr < m.StartAddr {
			continue
		}
		var prot Protection
		if m.Perms != nil {
			prot = ProtectionFromPerms(m.Perms.Read, m.Perms.Write, m.Perms.Execute, m.Perms.Private)
		}
		regions = append(regions, MemoryRegion{
			Address:    uint64(m.StartAddr),
			Size:       uint64(m.EndAddr - m.StartAddr),
			Protection: prot,
			Path:       m.Pathname,
		})
	}
	return regions, nil
}
