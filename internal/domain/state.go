package domain

import "iter"

// MemStat mirrors preload_memory_t: a snapshot of system memory
// statistics in KiB. Fields documented as optional on pre-2.6.28 kernels
// are zero when unknown.
type MemStat struct {
	Total, Free, Buffers, Cached int64
	Active, Inactive             int64
	ActiveAnon, InactiveAnon     int64
	ActiveFile, InactiveFile     int64
	Available                    int64
	Pagein, Pageout              int64
}

// BadExe records a path deemed uninteresting (below the configured
// minimum size) along with the size observed at rejection time. Per the
// load policy, this table is populated every save but never re-read on
// load: every run gives previously-rejected binaries another chance.
type BadExe struct {
	Path       string
	Size       int64
	UpdateTime int64
}

// State is the singleton entity graph: the keyed exe table, the bad-exe
// table, the map store, the markov edge table, the running-exe list, and
// the virtual clock. It owns every Exe; each Exe exclusively owns its
// Exemaps, which hold shared references on Maps; Markov edges are
// logically owned here but back-referenced from both endpoints.
type State struct {
	// Time is the virtual clock: monotone non-decreasing seconds within a
	// run, persisted across restarts.
	Time float64

	LastRunningTimestamp    float64
	LastAccountingTimestamp float64

	Dirty      bool
	ModelDirty bool

	MemStat MemStat

	// RunningExes is the list of exes observed running as of the last
	// completed scan.
	RunningExes []*Exe

	exes    map[string]*Exe
	badExes map[string]BadExe

	maps    map[MapKey]*Map
	allMaps []*Map

	markovs map[MarkovHandle]*MarkovEdge

	mapSeq    int64
	exeSeq    int64
	markovSeq uint64
}

// NewState constructs an empty State with its virtual clock at zero.
func NewState() *State {
	return &State{
		exes:    make(map[string]*Exe),
		badExes: make(map[string]BadExe),
		maps:    make(map[MapKey]*Map),
		markovs: make(map[MarkovHandle]*MarkovEdge),
	}
}

// ExeByPath looks up an exe by its absolute path.
func (s *State) ExeByPath(path string) (*Exe, bool) {
	e, ok := s.exes[path]
	return e, ok
}

// NumExes returns the number of registered exes.
func (s *State) NumExes() int { return len(s.exes) }

// NumMaps returns the number of registered maps.
func (s *State) NumMaps() int { return len(s.allMaps) }

// NumMarkovs returns the number of markov edges.
func (s *State) NumMarkovs() int { return len(s.markovs) }

// Exes returns an iterator over every registered exe. Iteration order is
// unspecified.
func (s *State) Exes() iter.Seq[*Exe] {
	return func(yield func(*Exe) bool) {
		for _, e := range s.exes {
			if !yield(e) {
				return
			}
		}
	}
}

// Maps returns the parallel indexable array of registered maps, used by
// the prophet's O(n) ranking scan.
func (s *State) Maps() []*Map { return s.allMaps }

// BadExes returns an iterator over the bad-exe table.
func (s *State) BadExes() iter.Seq[BadExe] {
	return func(yield func(BadExe) bool) {
		for _, b := range s.badExes {
			if !yield(b) {
				return
			}
		}
	}
}

// MarkBad records path in the bad-exe table (e.g. because its aggregate
// map size fell below the configured minimum).
func (s *State) MarkBad(path string, size int64) {
	s.badExes[path] = BadExe{Path: path, Size: size, UpdateTime: int64(s.Time)}
}

// IsBad reports whether path is currently recorded as uninteresting.
func (s *State) IsBad(path string) bool {
	_, ok := s.badExes[path]
	return ok
}

// DrainBadExes empties the bad-exe table, giving every previously
// rejected binary another chance. Called after a successful save.
func (s *State) DrainBadExes() {
	s.badExes = make(map[string]BadExe)
}

// MarkovByHandle resolves a handle to its edge.
func (s *State) MarkovByHandle(h MarkovHandle) (*MarkovEdge, bool) {
	e, ok := s.markovs[h]
	return e, ok
}

// Markovs iterates every markov edge exactly once using the
// canonical-endpoint trick: scan every exe's back-reference list and
// emit an edge only when the scanning exe is the edge's A endpoint.
func (s *State) Markovs() iter.Seq[*MarkovEdge] {
	return func(yield func(*MarkovEdge) bool) {
		for _, e := range s.exes {
			for _, h := range e.MarkovHandles {
				edge, ok := s.markovs[h]
				if !ok || edge.A != e {
					continue
				}
				if !yield(edge) {
					return
				}
			}
		}
	}
}

// RegisterExe assigns exe a sequence number and adds it to the exe
// table. It fails with ErrExeExists if the path is already registered.
// If createMarkovs is true, a markov edge is created between exe and
// every already-registered exe.
func (s *State) RegisterExe(exe *Exe, createMarkovs bool) error {
	if _, exists := s.exes[exe.Path]; exists {
		return ErrExeExists
	}
	s.exeSeq++
	exe.Seq = s.exeSeq
	s.exes[exe.Path] = exe

	if createMarkovs {
		for _, other := range s.exes {
			if other == exe {
				continue
			}
			s.createMarkovEdge(exe, other)
		}
	}
	s.Dirty = true
	s.ModelDirty = true
	return nil
}

// UnregisterExe removes exe from the exe table. This cascades into
// exemap release (each owned map is unreffed; maps whose refcount
// reaches zero are unregistered from the store) and markov edge release
// from the other endpoint.
func (s *State) UnregisterExe(exe *Exe) {
	if _, exists := s.exes[exe.Path]; !exists {
		return
	}

	for _, drained := range exe.releaseExemaps() {
		s.unregisterMap(drained)
	}

	for _, h := range append([]MarkovHandle(nil), exe.MarkovHandles...) {
		edge, ok := s.markovs[h]
		if !ok {
			continue
		}
		other := edge.Other(exe)
		other.removeMarkovHandle(h)
		delete(s.markovs, h)
	}
	exe.MarkovHandles = nil

	delete(s.exes, exe.Path)
	s.Dirty = true
	s.ModelDirty = true
}

// createMarkovEdge allocates a new handle and edge for the unordered pair
// (a, b), registering the back-reference in both endpoints.
func (s *State) createMarkovEdge(a, b *Exe) (*MarkovEdge, error) {
	if a == b {
		return nil, ErrSelfMarkov
	}
	s.markovSeq++
	handle := MarkovHandle(s.markovSeq)
	edge := NewMarkovEdge(handle, a, b, s.Time, s.LastRunningTimestamp)
	s.markovs[handle] = edge
	a.addMarkovHandle(handle)
	b.addMarkovHandle(handle)
	return edge, nil
}

// AddExemap links exe to the map identified by key with probability
// prob, interning the map into the store on first reference. Outside of
// state-file loading (where LoadMap interns maps), it is the entry point
// driving map register/unregister (spec 4.1): the map
// enters the store here on first ref and leaves via unregisterMap when
// the owning exe's exemaps are released.
func (s *State) AddExemap(exe *Exe, key MapKey, prob float64) *Exemap {
	m, ok := s.maps[key]
	if !ok {
		s.mapSeq++
		m = NewMap(key)
		m.Seq = s.mapSeq
	}

	em := exe.AddExemap(m, prob)

	if !ok {
		m.index = len(s.allMaps)
		s.allMaps = append(s.allMaps, m)
		s.maps[key] = m
	}
	s.Dirty = true
	return em
}

// unregisterMap removes m from both the keyed store and the parallel
// scan array, swap-removing for O(1) deletion.
func (s *State) unregisterMap(m *Map) {
	delete(s.maps, m.Key)
	last := len(s.allMaps) - 1
	idx := m.index
	if idx < 0 || idx > last {
		return
	}
	s.allMaps[idx] = s.allMaps[last]
	s.allMaps[idx].index = idx
	s.allMaps = s.allMaps[:last]
}

// LoadMap interns a map into the store with an explicit seq and update
// time, as read from a MAP record. The caller must immediately establish
// a refcount via LoadExemap (or the refcount>0-iff-in-store invariant is
// violated until it does).
func (s *State) LoadMap(seq int64, key MapKey, updateTime int64) (*Map, error) {
	if _, exists := s.maps[key]; exists {
		return nil, ErrMapExists
	}
	m := NewMap(key)
	m.Seq = seq
	m.UpdateTime = updateTime
	m.index = len(s.allMaps)
	s.allMaps = append(s.allMaps, m)
	s.maps[key] = m
	if seq > s.mapSeq {
		s.mapSeq = seq
	}
	return m, nil
}

// LoadExe installs exe (already carrying its persisted Seq and fields)
// into the exe table, bypassing markov-edge creation: MARKOV records are
// loaded and wired up explicitly by LoadMarkovEdge.
func (s *State) LoadExe(exe *Exe) error {
	if _, exists := s.exes[exe.Path]; exists {
		return ErrExeExists
	}
	s.exes[exe.Path] = exe
	if exe.Seq > s.exeSeq {
		s.exeSeq = exe.Seq
	}
	return nil
}

// LoadExemap links exe to m with prob, as read from an EXEMAP record.
func (s *State) LoadExemap(exe *Exe, m *Map, prob float64) {
	exe.AddExemap(m, prob)
}

// LoadMarkovEdge installs a fully-populated edge (Time, TimeToLeave,
// Weight already set by the caller from a MARKOV record) between its two
// endpoints, assigning it a fresh handle. Handles are not persisted: they
// are re-minted on every load from the monotonic counter, same as a
// freshly created edge.
func (s *State) LoadMarkovEdge(edge *MarkovEdge) {
	s.markovSeq++
	handle := MarkovHandle(s.markovSeq)
	edge.Handle = handle
	s.markovs[handle] = edge
	edge.A.addMarkovHandle(handle)
	edge.B.addMarkovHandle(handle)
}

// RecomputeMarkovStates sets every markov edge's State from its
// endpoints' current running bits. Required after loading a state file,
// since the persisted format does not carry the state field and the
// endpoints' running bits as of load time may disagree with whatever was
// true at save time.
func (s *State) RecomputeMarkovStates() {
	for _, edge := range s.markovs {
		edge.State = computeState(edge.A, edge.B, s.LastRunningTimestamp)
	}
}

// ResetTransient clears every exe's and map's transient Lnprob field (and
// the map ranking scratch field), as the first step of a prediction
// tick.
func (s *State) ResetTransient() {
	for _, e := range s.exes {
		e.Lnprob = 0
	}
	for _, m := range s.allMaps {
		m.Lnprob = 0
		m.Priv = nil
	}
}
