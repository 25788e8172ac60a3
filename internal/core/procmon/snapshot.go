package procmon

// MaxSnapshot is the most pids a snapshot holds.
const MaxSnapshot = 4096

// Snapshot is the set of pids seen in one scan. Order is discovery order.
type Snapshot struct {
	pids []uint32
	set  map[uint32]struct{}
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{set: make(map[uint32]struct{})}
}

// Add inserts pid. It reports false when the snapshot is full; a pid that is
// already present is accepted without being stored twice.
func (s *Snapshot) Add(pid uint32) bool {
	if _, ok := s.set[pid]; ok {
		return true
	}
	if len(s.pids) >= MaxSnapshot {
		return false
	}
	s.pids = append(s.pids, pid)
	s.set[pid] = struct{}{}
	return true
}

// Contains reports whether pid is in the snapshot.
func (s *Snapshot) Contains(pid uint32) bool {
	_, ok := s.set[pid]
	return ok
}

// PIDs returns the pids in discovery order. The slice must not be modified.
func (s *Snapshot) PIDs() []uint32 {
	return s.pids
}

func (s *Snapshot) Len() int {
	return len(s.pids)
}
