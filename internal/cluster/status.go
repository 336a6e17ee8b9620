package cluster

import (
	"sync"

	"github.com/blackish/rust-gateway/internal/config"
)

// StatusMap is the per-cluster shared status map named in spec §5 Shared
// resources (b): multi-reader for LB dispatch, single-writer for the
// health checker, backed by a reader-writer lock so dispatch never blocks
// on a concurrent status transition longer than a single read.
type StatusMap struct {
	mu sync.RWMutex
	m  map[string]*memberState
}

type memberState struct {
	status config.ClusterMemberStatus
	active int64
}

func newStatusMap() *StatusMap {
	return &StatusMap{m: map[string]*memberState{}}
}

func (s *StatusMap) set(addr string, status config.ClusterMemberStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[addr]
	if !ok {
		st = &memberState{}
		s.m[addr] = st
	}
	st.status = status
	if status != config.MemberActive {
		st.active = 0
	}
}

func (s *StatusMap) get(addr string) (config.ClusterMemberStatus, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[addr]
	if !ok {
		return config.MemberUnavailable, 0
	}
	return st.status, st.active
}

// incActive and decActive implement invariant I4: the Active(n) payload is
// the authoritative least-conn count. The member worker increments it when
// it takes a connection; the cluster actor decrements it once, when the
// member worker's ClusterConnectionClosed for that connection arrives.
func (s *StatusMap) incActive(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.m[addr]; ok && st.status == config.MemberActive {
		st.active++
	}
}

func (s *StatusMap) decActive(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.m[addr]; ok {
		st.active--
		if st.active < 0 {
			st.active = 0
		}
	}
}

// flipUp transitions addr from Unavailable to Active(0); a member in any
// other status is left unchanged. The health checker calls it once its own
// up-counter reaches the threshold (§4.9 step 3's up-hysteresis).
func (s *StatusMap) flipUp(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.m[addr]; ok && st.status == config.MemberUnavailable {
		st.status = config.MemberActive
		st.active = 0
	}
}

func (s *StatusMap) flipDown(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.m[addr]; ok && st.status == config.MemberActive {
		st.status = config.MemberUnavailable
	}
}

func (s *StatusMap) remove(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, addr)
}
