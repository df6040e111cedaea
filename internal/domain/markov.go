package domain

import "math"

// MarkovHandle addresses a MarkovEdge in a State's edge table. Handles are
// assigned from a monotonically increasing counter and are never reused,
// which sidesteps the pointer-sized-integer hash key trick the original
// source relied on.
type MarkovHandle uint64

// Four-state lattice bit layout: bit 0 is A's running bit, bit 1 is B's.
const (
	StateNeitherRunning = 0 // ¬a ∧ ¬b
	StateARunning       = 1 // a ∧ ¬b
	StateBRunning       = 2 // ¬a ∧ b
	StateBothRunning    = 3 // a ∧ b
)

// MarkovEdge is an unordered pairwise continuous-time Markov chain over
// the four-state lattice for exes A and B (A and B are direct pointers to
// the endpoint exes; the edge itself is addressed by its Handle in the
// owning State's edge table).
type MarkovEdge struct {
	Handle MarkovHandle
	A, B   *Exe

	// Time is the cumulative virtual seconds both exes were
	// simultaneously running (state == StateBothRunning).
	Time float64

	State int

	ChangeTimestamp float64

	// TimeToLeave[s] is the running mean dwell time in state s.
	TimeToLeave [4]float64

	// Weight[i][j] counts transitions from i to j; Weight[i][i] doubles
	// as "number of times state i was left".
	Weight [4][4]float64
}

// computeState derives the four-state lattice value from both endpoints'
// running bits as of lastRunningTimestamp.
func computeState(a, b *Exe, lastRunningTimestamp float64) int {
	s := 0
	if a.IsRunning(lastRunningTimestamp) {
		s |= StateARunning
	}
	if b.IsRunning(lastRunningTimestamp) {
		s |= StateBRunning
	}
	return s
}

// NewMarkovEdge constructs the edge between a and b and initializes it
// per spec: the birth state is the current running-bit combination: seed
// ChangeTimestamp with now, but if both endpoints carry a prior
// ChangeTimestamp > 0, use the later of the two endpoint timestamps that
// precede now, then XOR out the bit for any endpoint whose own
// ChangeTimestamp strictly exceeds the chosen edge timestamp (it entered
// its current running bit after the edge was born, so that transition
// must not be replayed as a spurious state change).
func NewMarkovEdge(handle MarkovHandle, a, b *Exe, now, lastRunningTimestamp float64) *MarkovEdge {
	state := computeState(a, b, lastRunningTimestamp)

	edgeTime := now
	if a.ChangeTimestamp > 0 && b.ChangeTimestamp > 0 {
		haveCandidate := false
		for _, ts := range [2]float64{a.ChangeTimestamp, b.ChangeTimestamp} {
			if ts >= now {
				continue
			}
			if !haveCandidate || ts > edgeTime {
				edgeTime = ts
				haveCandidate = true
			}
		}
		if !haveCandidate {
			edgeTime = now
		}
	}

	if a.ChangeTimestamp > edgeTime {
		state ^= StateARunning
	}
	if b.ChangeTimestamp > edgeTime {
		state ^= StateBRunning
	}

	return &MarkovEdge{
		Handle:          handle,
		A:               a,
		B:               b,
		State:           state,
		ChangeTimestamp: edgeTime,
	}
}

// Other returns the endpoint of e that is not self.
func (e *MarkovEdge) Other(self *Exe) *Exe {
	if e.A == self {
		return e.B
	}
	return e.A
}

// StateChanged is invoked when either endpoint's running bit flips during
// the current tick. It is idempotent: a second call in the same tick
// (new_state == e.State) is a double-notification and is ignored, per the
// at-most-once-per-tick-per-edge contract.
func (e *MarkovEdge) StateChanged(now, lastRunningTimestamp float64) {
	newState := computeState(e.A, e.B, lastRunningTimestamp)
	if newState == e.State {
		return
	}

	old := e.State
	e.Weight[old][old]++
	dwell := now - e.ChangeTimestamp
	e.TimeToLeave[old] += (dwell - e.TimeToLeave[old]) / e.Weight[old][old]
	e.Weight[old][newState]++

	e.State = newState
	e.ChangeTimestamp = now
}

// Correlation returns the Pearson correlation of A and B's running
// indicator variables, derived from the fraction of global time t each
// has spent running and the fraction they spent running together. The
// zero-variance guard (any of a, b is 0 or equals t) returns 0, never a
// divide-by-zero NaN or spurious 1.
func (e *MarkovEdge) Correlation(t float64) float64 {
	a, b, ab := e.A.Time, e.B.Time, e.Time
	if a == 0 || b == 0 || a == t || b == t {
		return 0
	}
	num := t*ab - a*b
	den := math.Sqrt((a * b) * (t - a) * (t - b))
	if den == 0 {
		return 0
	}
	rho := num / den
	// Clamp against floating error; a value outside [-1-1e-5, 1+1e-5] is
	// a programming error by the spec's own invariant, not a rounding
	// artifact, so we only absorb sub-epsilon drift here.
	if rho > 1 && rho <= 1+1e-5 {
		rho = 1
	}
	if rho < -1 && rho >= -1-1e-5 {
		rho = -1
	}
	return rho
}
