package process

// 100ns ticks between 1601-01-01 and 1970-01-01
const filetimeUnixOffset = 116444736000000000

// TicksToSeconds converts a duration in 100ns ticks to seconds
func TicksToSeconds(ticks uint64) float64 {
	return float64(ticks) * 1e-7
}

// FiletimeToUnix converts an absolute FILETIME tick count to a unix
// timestamp in seconds. Times before the unix epoch clamp to 0.
func FiletimeToUnix(ticks uint64) float64 {
	if ticks < filetimeUnixOffset {
		return 0
	}
	return float64(ticks-filetimeUnixOffset) / 1e7
}

// JiffiesToSeconds converts clock ticks to seconds
func JiffiesToSeconds(jiffies uint64, clockTicks int) float64 {
	if clockTicks <= 0 {
		clockTicks = 100
	}
	return float64(jiffies) / float64(clockTicks)
}
