//go:build windows

package process_windows

import (
	"strings"

	"golang.org/x/sys/windows"
)

// devices maps NT device names such as \Device\HarddiskVolume3 to drive
// letters. It is loaded per call since drives come and go.
type devices map[string]string

func loadDevices() devices {
	d := devices{}
	mask, err := windows.GetLogicalDrives()
	if err != nil {
		return d
	}

	target := make([]uint16, windows.MAX_PATH)
	for i := 0; i < 26; i++ {
		if mask&(1<<i) == 0 {
			continue
		}
		drive := string(rune('A'+i)) + ":"
		name, err := windows.UTF16PtrFromString(drive)
		if err != nil {
			continue
		}
		n, err := windows.QueryDosDevice(name, &target[0], uint32(len(target)))
		if err != nil || n == 0 {
			continue
		}
		d[windows.UTF16ToString(target[:n])] = drive
	}
	return d
}

// dosPath rewrites an NT device path to a drive letter path. Paths on
// devices without a drive letter are returned unchanged.
func (d devices) dosPath(nt string) string {
	for device, drive := range d {
		if strings.HasPrefix(nt, device) && (len(nt) == len(device) || nt[len(device)] == '\\') {
			return drive + nt[len(device):]
		}
	}
	return nt
}

// trimLongPrefix drops the \\?\ prefix GetFinalPathNameByHandle adds
func trimLongPrefix(p string) string {
	if strings.HasPrefix(p, `\\?\UNC\`) {
		return `\\` + p[len(`\\?\UNC\`):]
	}
	return strings.TrimPrefix(p, `\\?\`)
}
