package process

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// DefaultBufferCeiling caps every adaptive buffer unless a call site sets its own
const DefaultBufferCeiling = 256 << 20

// SystemConfig is the process-wide static configuration shared by all
// queries. Backends fill it once at construction and never change it, so it
// is safe to read from any goroutine.
type SystemConfig struct {
	PageSize      int
	ClockTicks    int       // jiffies per second, linux only
	MinAddress    uintptr   // lowest user-mode address
	MaxAddress    uintptr   // highest user-mode address
	BootTime      time.Time // zero when the platform does not report it
	NumCPU        int
	BufferCeiling int
}

// DefaultSystemConfig returns the values every platform agrees on, with the
// PAGE_SIZE, CLK_TCK and PROCSCOPE_BUFFER_CEILING overrides applied.
func DefaultSystemConfig() SystemConfig {
	cfg := SystemConfig{
		PageSize:      os.Getpagesize(),
		ClockTicks:    100,
		NumCPU:        runtime.NumCPU(),
		BufferCeiling: DefaultBufferCeiling,
	}
	cfg.applyEnv()
	return cfg
}

func (c *SystemConfig) applyEnv() {
	if v := envInt("PAGE_SIZE"); v > 0 {
		c.PageSize = v
	}
	if v := envInt("CLK_TCK"); v > 0 {
		c.ClockTicks = v
	}
	if v := envInt("PROCSCOPE_BUFFER_CEILING"); v > 0 {
		c.BufferCeiling = v
	}
}

func envInt(name string) int {
	s := os.Getenv(name)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
