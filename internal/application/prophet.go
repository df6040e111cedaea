package application

import (
	"context"
	"math"
	"sort"

	"github.com/ahrav/gavel-preload/internal/domain"
	"github.com/ahrav/gavel-preload/internal/ports"
)

// rankingScratch is the only type that may be stored in a domain.Map's
// Priv field, and only during the map-ranking pass of a prediction tick
// (spec Open Question 3). It records whether the map was selected for
// prefetch on the immediately preceding tick, so the next tick can skip
// re-requesting it.
type rankingScratch struct {
	alreadyLoadedLastCycle bool
}

// Prophet is the prediction engine: per tick it resets transient state,
// aggregates Markov and VOMM signals onto every exe, broadcasts those
// signals onto the maps each exe references, ranks candidate maps by
// predicted need within a memory budget, and hands the selection to a
// readahead scheduler.
type Prophet struct {
	MemStat   ports.MemStatReader
	Scheduler ports.ReadaheadScheduler

	// SafetyMarginPct is subtracted from the available+inactive-file
	// budget before greedy selection.
	SafetyMarginPct int
}

// TickResult summarizes one prediction tick for logging and metrics.
type TickResult struct {
	Candidates int
	Selected   []*domain.Map
	Issued     int
	BudgetUsed int64
}

// Run executes one full prediction tick against state and vomm.
func (p *Prophet) Run(ctx context.Context, state *domain.State, vomm *domain.VOMMTree) (*TickResult, error) {
	alreadyLoaded := collectAlreadyLoaded(state)

	state.ResetTransient()

	applyMarkovSignals(state)

	isRunning := func(e *domain.Exe) bool { return e.IsRunning(state.LastRunningTimestamp) }
	vomm.Predict(isRunning)

	broadcastToMaps(state)

	memstat, err := p.MemStat.Read(ctx)
	if err != nil {
		return nil, err
	}
	state.MemStat = memstat

	budget := computeBudget(memstat, p.SafetyMarginPct)

	runningOwned := collectRunningOwnedMaps(state, isRunning)

	candidates := rankCandidates(state.Maps(), runningOwned, alreadyLoaded)

	selected, used := selectWithinBudget(candidates, budget)

	for _, m := range selected {
		m.Priv = &rankingScratch{alreadyLoadedLastCycle: true}
	}

	issued, err := p.Scheduler.Schedule(ctx, selected)
	if err != nil {
		return nil, err
	}

	return &TickResult{
		Candidates: len(candidates),
		Selected:   selected,
		Issued:     issued,
		BudgetUsed: used,
	}, nil
}

// collectAlreadyLoaded snapshots which maps carry the "loaded last cycle"
// scratch flag before ResetTransient wipes Priv for this tick.
func collectAlreadyLoaded(state *domain.State) map[*domain.Map]bool {
	loaded := make(map[*domain.Map]bool)
	for _, m := range state.Maps() {
		if s, ok := m.Priv.(*rankingScratch); ok && s.alreadyLoadedLastCycle {
			loaded[m] = true
		}
	}
	return loaded
}

// applyMarkovSignals derives, for every markov edge whose two endpoints
// disagree on their running bit, a bid on the non-running endpoint's
// Lnprob. The bid is symmetric in the endpoints' roles (it depends only
// on the edge's correlation and co-occurrence fraction, not on which
// endpoint happens to be running) and grows monotonically with both.
func applyMarkovSignals(state *domain.State) {
	t := state.Time
	if t <= 0 {
		return
	}
	for edge := range state.Markovs() {
		rho := edge.Correlation(t)
		if rho <= 0 {
			continue
		}
		aRunning := edge.A.IsRunning(state.LastRunningTimestamp)
		bRunning := edge.B.IsRunning(state.LastRunningTimestamp)
		if aRunning == bRunning {
			continue
		}
		other := edge.A
		if aRunning {
			other = edge.B
		}

		coOccurrence := edge.Time / t
		strength := clampf(rho*coOccurrence, 0, 1-1e-9)
		other.Lnprob += math.Log(1 - strength)
	}
}

// broadcastToMaps implements prophet step 4: each exe's predicted need
// is spread onto its exemaps, weighted by the exemap's probability, so
// maps touched by multiple predicted exes accumulate a stronger signal.
func broadcastToMaps(state *domain.State) {
	for e := range state.Exes() {
		pNeed := 1 - math.Exp(e.Lnprob)
		if pNeed <= 0 {
			continue
		}
		for _, em := range e.Exemaps {
			contrib := clampf(pNeed*em.Prob, 0, 1-1e-9)
			em.Map.Lnprob += math.Log(1 - contrib)
		}
	}
}

// collectRunningOwnedMaps marks every map owned by at least one
// currently-running exe: such a map is already resident and must be
// skipped during ranking.
func collectRunningOwnedMaps(state *domain.State, isRunning func(*domain.Exe) bool) map[*domain.Map]bool {
	owned := make(map[*domain.Map]bool)
	for e := range state.Exes() {
		if !isRunning(e) {
			continue
		}
		for _, em := range e.Exemaps {
			owned[em.Map] = true
		}
	}
	return owned
}

// candidate pairs a map with its derived p_need for ranking.
type candidate struct {
	m     *domain.Map
	pNeed float64
}

func rankCandidates(maps []*domain.Map, runningOwned, alreadyLoaded map[*domain.Map]bool) []candidate {
	candidates := make([]candidate, 0, len(maps))
	for _, m := range maps {
		if runningOwned[m] || alreadyLoaded[m] {
			continue
		}
		candidates = append(candidates, candidate{m: m, pNeed: 1 - math.Exp(m.Lnprob)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].pNeed != candidates[j].pNeed {
			return candidates[i].pNeed > candidates[j].pNeed
		}
		return candidates[i].m.Seq < candidates[j].m.Seq
	})
	return candidates
}

// selectWithinBudget greedily takes candidates, highest p_need first,
// skipping any map that would push the total past budget bytes and
// continuing with the rest.
func selectWithinBudget(candidates []candidate, budget int64) ([]*domain.Map, int64) {
	var selected []*domain.Map
	var used int64
	for _, c := range candidates {
		length := c.m.Key.Length
		if used+length > budget {
			continue
		}
		selected = append(selected, c.m)
		used += length
	}
	return selected, used
}

// computeBudget derives the prefetch byte budget from available and
// inactive-file memory (in KiB per preload_memory_t), minus a safety
// margin percentage.
func computeBudget(ms domain.MemStat, safetyMarginPct int) int64 {
	kib := ms.Available + ms.InactiveFile
	if kib < 0 {
		kib = 0
	}
	bytes := kib * 1024
	if safetyMarginPct > 0 && safetyMarginPct < 100 {
		bytes = bytes * int64(100-safetyMarginPct) / 100
	}
	return bytes
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
