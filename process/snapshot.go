package process

// NoParent is the parent recorded for processes whose parent is unknown or
// that sit at the root of the tree.
const NoParent ProcessID = 0

// Snapshot is a single point-in-time enumeration of the process table. The
// parent map comes from the same native call as the PID list, so the two
// agree with each other even when the live tree has already moved on.
type Snapshot struct {
	PIDs    []ProcessID
	Parents map[ProcessID]ProcessID
	Names   map[ProcessID]string // image names, when the enumeration provides them
}

// NewSnapshot builds a snapshot from enumeration records. Every pid gets a
// parent entry, NoParent when the enumeration did not report one.
func NewSnapshot(pids []ProcessID, parents map[ProcessID]ProcessID) *Snapshot {
	s := &Snapshot{
		PIDs:    pids,
		Parents: make(map[ProcessID]ProcessID, len(pids)),
	}
	for _, pid := range pids {
		s.Parents[pid] = parents[pid]
	}
	return s
}

// Contains reports whether pid was present when the snapshot was taken
func (s *Snapshot) Contains(pid ProcessID) bool {
	_, ok := s.Parents[pid]
	return ok
}

// Name returns the recorded image name of pid, or "" if none was captured
func (s *Snapshot) Name(pid ProcessID) string {
	if s.Names == nil {
		return ""
	}
	return s.Names[pid]
}

// childrenMap builds the parent-to-children relationships in enumeration order
func (s *Snapshot) childrenMap() map[ProcessID][]ProcessID {
	childrenMap := make(map[ProcessID][]ProcessID)
	for _, pid := range s.PIDs {
		ppid := s.Parents[pid]
		if ppid == pid {
			// pid 0 on windows is its own parent
			continue
		}
		childrenMap[ppid] = append(childrenMap[ppid], pid)
	}
	return childrenMap
}

// Children returns the direct children of parentPID
func (s *Snapshot) Children(parentPID ProcessID) []ProcessID {
	return append([]ProcessID(nil), s.childrenMap()[parentPID]...)
}

// Descendants returns all descendants (children, grandchildren, etc.) of
// rootPID in breadth-first order.
func (s *Snapshot) Descendants(rootPID ProcessID) []ProcessID {
	childrenMap := s.childrenMap()

	var descendants []ProcessID
	queue := append([]ProcessID(nil), childrenMap[rootPID]...)
	visited := map[ProcessID]bool{rootPID: true}

	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]

		// parent ids get reused, so cycles are possible in a stale snapshot
		if visited[pid] {
			continue
		}
		visited[pid] = true

		descendants = append(descendants, pid)
		queue = append(queue, childrenMap[pid]...)
	}

	return descendants
}

// Tree returns the subtree rooted at rootPID, or nil if rootPID is not in
// the snapshot.
func (s *Snapshot) Tree(rootPID ProcessID) *ProcessTreeNode {
	if !s.Contains(rootPID) {
		return nil
	}
	return buildProcessTree(rootPID, s.childrenMap(), map[ProcessID]bool{})
}

func buildProcessTree(pid ProcessID, childrenMap map[ProcessID][]ProcessID, visited map[ProcessID]bool) *ProcessTreeNode {
	visited[pid] = true
	node := &ProcessTreeNode{PID: pid}

	for _, childPID := range childrenMap[pid] {
		if visited[childPID] {
			continue
		}
		node.Children = append(node.Children, buildProcessTree(childPID, childrenMap, visited))
	}

	return node
}
