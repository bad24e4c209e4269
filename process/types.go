package process

import "time"

// ProcessID represents a unique identifier for a running process.
// Identifiers are reused once a process exits.
type ProcessID uint32

// Times holds cpu and creation times in seconds.
type Times struct {
	User   float64 `json:"user"`   // seconds spent in user mode
	System float64 `json:"system"` // seconds spent in kernel mode
	Create float64 `json:"create"` // unix timestamp of process creation
}

// CreateTime returns the creation timestamp as a time.Time
func (t Times) CreateTime() time.Time {
	sec := int64(t.Create)
	nsec := int64((t.Create - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// MemoryInfo mirrors the native process memory counters. Fields a platform
// does not report are left zero.
type MemoryInfo struct {
	PageFaults       uint64 `json:"page_faults"`
	PeakWorkingSet   uint64 `json:"peak_working_set"`
	WorkingSet       uint64 `json:"working_set"`
	PeakPagedPool    uint64 `json:"peak_paged_pool"`
	PagedPool        uint64 `json:"paged_pool"`
	PeakNonPagedPool uint64 `json:"peak_non_paged_pool"`
	NonPagedPool     uint64 `json:"non_paged_pool"`
	Pagefile         uint64 `json:"pagefile"`
	PeakPagefile     uint64 `json:"peak_pagefile"`
	Private          uint64 `json:"private"`
	Virtual          uint64 `json:"virtual"`
}

// IOCounters holds operation and byte counts for read, write and other I/O
type IOCounters struct {
	ReadCount  uint64 `json:"read_count"`
	WriteCount uint64 `json:"write_count"`
	OtherCount uint64 `json:"other_count"`
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
	OtherBytes uint64 `json:"other_bytes"`
}

// Thread is one thread of a process with its cpu times in seconds
type Thread struct {
	ID     uint32  `json:"id"`
	User   float64 `json:"user"`
	System float64 `json:"system"`
}

// OpenFile is a file the process holds open
type OpenFile struct {
	Path string `json:"path"`
	FD   int64  `json:"fd"` // handle value on Windows, -1 when unknown
}

// Username is the owner of a process. Domain is empty on unix.
type Username struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// String returns domain\name, or just name when there is no domain
func (u Username) String() string {
	if u.Domain == "" {
		return u.Name
	}
	return u.Domain + `\` + u.Name
}

// ThreadState is the scheduling state of one thread as far as suspension goes
type ThreadState struct {
	ID        uint32
	Suspended bool
}

// ProcessTreeNode represents a node in a process tree
type ProcessTreeNode struct {
	PID      ProcessID          `json:"pid"`
	Children []*ProcessTreeNode `json:"children,omitempty"`
}
