package domain

// Exe is an executable tracked by its absolute path. An Exe exclusively
// owns its exemaps and holds non-owning back-references to the markov
// edges incident on it.
type Exe struct {
	Seq  int64
	Path string

	// Time is the cumulative number of virtual seconds this exe has been
	// observed running.
	Time float64

	UpdateTime int64

	// Size is the sum of this exe's exemap map lengths.
	Size int64

	// RunningTimestamp is the virtual time this exe was last seen
	// running; ChangeTimestamp is the virtual time its running bit last
	// flipped.
	RunningTimestamp float64
	ChangeTimestamp  float64

	// Lnprob is transient, recomputed every prediction tick.
	Lnprob float64

	// Exemaps is ordered and exclusively owned: destroying the Exe
	// releases every entry's reference on its Map.
	Exemaps []*Exemap

	// MarkovHandles is an unordered set of handles into the owning
	// State's markov edge table. Never an owning reference.
	MarkovHandles []MarkovHandle
}

// NewExe constructs an unregistered exe for the given path. It starts
// not running: RunningTimestamp is -1, below any scan timestamp.
func NewExe(path string) *Exe {
	return &Exe{Path: path, RunningTimestamp: -1}
}

// IsRunning reports whether e is considered running relative to the
// state's last completed scan, per the derived predicate in the data
// model: e.RunningTimestamp >= lastRunningTimestamp.
func (e *Exe) IsRunning(lastRunningTimestamp float64) bool {
	return e.RunningTimestamp >= lastRunningTimestamp
}

// AddExemap appends an owning edge to m with the given probability and
// takes a reference on m. The caller is responsible for having already
// registered m in the owning State's map store.
func (e *Exe) AddExemap(m *Map, prob float64) *Exemap {
	m.ref()
	em := &Exemap{Map: m, Prob: prob}
	e.Exemaps = append(e.Exemaps, em)
	e.Size += m.Key.Length
	return em
}

// releaseExemaps drops every owning reference this exe holds and returns
// the maps whose refcount reached zero, so the caller's store can
// unregister them.
func (e *Exe) releaseExemaps() []*Map {
	var drained []*Map
	for _, em := range e.Exemaps {
		if em.Map.unref() {
			drained = append(drained, em.Map)
		}
	}
	e.Exemaps = nil
	return drained
}

// addMarkovHandle records a non-owning back-reference to a markov edge
// incident on e.
func (e *Exe) addMarkovHandle(h MarkovHandle) {
	e.MarkovHandles = append(e.MarkovHandles, h)
}

// removeMarkovHandle drops the back-reference to h, if present.
func (e *Exe) removeMarkovHandle(h MarkovHandle) {
	for i, hh := range e.MarkovHandles {
		if hh == h {
			e.MarkovHandles = append(e.MarkovHandles[:i], e.MarkovHandles[i+1:]...)
			return
		}
	}
}
