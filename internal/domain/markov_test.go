package domain

import "testing"

// S1 — Markov birth state.
func TestNewMarkovEdge_BirthState(t *testing.T) {
	a := NewExe("/bin/a")
	a.RunningTimestamp = 100
	a.ChangeTimestamp = 40

	b := NewExe("/bin/b")
	b.RunningTimestamp = 100
	b.ChangeTimestamp = 80

	edge := NewMarkovEdge(1, a, b, 100, 100)

	if edge.State != StateBothRunning {
		t.Fatalf("state = %d, want %d", edge.State, StateBothRunning)
	}
	if edge.ChangeTimestamp != 80 {
		t.Fatalf("change_timestamp = %v, want 80", edge.ChangeTimestamp)
	}
	for i, ttl := range edge.TimeToLeave {
		if ttl != 0 {
			t.Fatalf("time_to_leave[%d] = %v, want 0", i, ttl)
		}
	}
}

// Birth state XORs out an endpoint whose own change timestamp does not
// precede "now" (it is excluded from the later-of-the-two selection),
// and strictly exceeds the chosen edge timestamp: that endpoint entered
// its current running bit after the edge was notionally born.
func TestNewMarkovEdge_BirthStateXorsLateEntrant(t *testing.T) {
	a := NewExe("/bin/a")
	a.RunningTimestamp = 100
	a.ChangeTimestamp = 40 // precedes now=100; becomes the chosen edge timestamp

	b := NewExe("/bin/b")
	b.RunningTimestamp = 100
	b.ChangeTimestamp = 150 // does not precede now; excluded, then found > edgeTime

	edge := NewMarkovEdge(1, a, b, 100, 100)

	if edge.ChangeTimestamp != 40 {
		t.Fatalf("change_timestamp = %v, want 40", edge.ChangeTimestamp)
	}
	// b's running bit (StateBRunning) must be XORed out of the otherwise
	// both-running birth state.
	if edge.State != StateARunning {
		t.Fatalf("state = %d, want %d (a running, b's late entry XORed out)", edge.State, StateARunning)
	}
}

// S2 — Correlation of perfect co-running returns 0 via the zero-variance
// guard, not 1.
func TestMarkovEdge_Correlation_PerfectCoRunningIsZeroVariance(t *testing.T) {
	a := NewExe("/bin/a")
	a.Time = 1000
	b := NewExe("/bin/b")
	b.Time = 1000

	edge := &MarkovEdge{A: a, B: b, Time: 1000}

	got := edge.Correlation(1000)
	if got != 0 {
		t.Fatalf("correlation = %v, want 0", got)
	}
}

func TestMarkovEdge_Correlation_Bounded(t *testing.T) {
	a := NewExe("/bin/a")
	a.Time = 500
	b := NewExe("/bin/b")
	b.Time = 300

	edge := &MarkovEdge{A: a, B: b, Time: 250}

	got := edge.Correlation(1000)
	if got < -1-1e-5 || got > 1+1e-5 {
		t.Fatalf("correlation out of range: %v", got)
	}
}

// Invariant 3 — weight[i][i] equals the sum of weight[i][j] for j != i
// after any finite transition sequence.
func TestMarkovEdge_StateChanged_WeightBalance(t *testing.T) {
	a := NewExe("/bin/a")
	a.RunningTimestamp = 0
	b := NewExe("/bin/b")
	b.RunningTimestamp = 0

	edge := NewMarkovEdge(1, a, b, 0, 0)

	// Birth state is both-running (both timestamps 0 >= 0). At t=10 only
	// a is seen: a alone.
	a.RunningTimestamp = 10
	edge.StateChanged(10, 10)

	// At t=20 only b is seen (a's timestamp 10 is stale): b alone.
	b.RunningTimestamp = 20
	edge.StateChanged(20, 20)

	// At t=30 (scan timestamp 31) neither is seen: neither running.
	a.RunningTimestamp = 20 // stale relative to new lastRunningTimestamp below
	edge.StateChanged(30, 31)

	for i := 0; i < 4; i++ {
		var sumOthers float64
		for j := 0; j < 4; j++ {
			if j == i {
				continue
			}
			sumOthers += edge.Weight[i][j]
		}
		if edge.Weight[i][i] != sumOthers {
			t.Fatalf("state %d: weight[i][i]=%v, sum of others=%v", i, edge.Weight[i][i], sumOthers)
		}
	}
}

// Invariant 7 — idempotence: calling StateChanged twice in the same tick
// with no intervening running-bit change is equivalent to calling it
// once.
func TestMarkovEdge_StateChanged_Idempotent(t *testing.T) {
	a := NewExe("/bin/a")
	b := NewExe("/bin/b")
	edge := NewMarkovEdge(1, a, b, 0, 0)

	a.RunningTimestamp = 10
	edge.StateChanged(10, 10)
	snapshot := *edge

	edge.StateChanged(10, 10) // double notification, same tick

	if *edge != snapshot {
		t.Fatalf("second StateChanged call in the same tick mutated the edge: got %+v, want %+v", *edge, snapshot)
	}
}
