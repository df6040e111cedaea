package application

import (
	"context"

	"github.com/ahrav/gavel-preload/internal/domain"
	"github.com/ahrav/gavel-preload/internal/ports"
)

// QueuedProcess is a running process whose path is not yet a known exe
// and is not recorded as bad; it is queued for map inspection at the
// next UpdateModel half-cycle.
type QueuedProcess struct {
	Path string
	Pid  int
}

// ScanResult summarizes one Scan call.
type ScanResult struct {
	NewRunningExes   []*domain.Exe
	StateChangedExes []*domain.Exe
	Queued           []QueuedProcess
}

// Spy is the observation pipeline: it enumerates running processes
// (Scan) and, half a cycle later, accrues runtime accounting and
// ingests newly discovered exes (UpdateModel).
type Spy struct {
	Enumerator  ports.ProcessEnumerator
	MapReader   ports.MapReader
	MinSize     int64
	VommEnabled bool

	// ShimMatcher, if set, lets Scan short-circuit the bad-exe check for
	// paths that are close variants of an already-rejected binary (e.g. a
	// bumped interpreter patch version), skipping a redundant GetMaps
	// call next half-cycle. Optional: nil disables the heuristic.
	ShimMatcher ports.BadExeMatcher

	// PowerState, if set, lets Scan skip the tick entirely while the
	// host is confirmed on-battery. Optional: nil always scans.
	PowerState ports.PowerState
}

// Scan enumerates running processes, updates the running set, and
// determines which exes changed running-bit state this tick. Markov
// state transitions must be applied only after Scan has finalized
// LastRunningTimestamp (enforced by the half-cycle split with
// UpdateModel): Scan never touches markov edges directly.
func (s *Spy) Scan(ctx context.Context, state *domain.State, vomm *domain.VOMMTree) (*ScanResult, error) {
	if s.PowerState != nil && !s.PowerState.OnACOrUnknown() {
		return &ScanResult{}, nil
	}

	lastRunningTimestamp := state.LastRunningTimestamp

	seen := make(map[string]bool)
	var newRunning, stateChanged []*domain.Exe
	var queued []QueuedProcess

	err := s.Enumerator.ForEach(ctx, func(path string, pid int) error {
		seen[path] = true

		exe, ok := state.ExeByPath(path)
		if !ok {
			if !state.IsBad(path) && !s.isKnownBadVariant(path, state) {
				queued = append(queued, QueuedProcess{Path: path, Pid: pid})
			}
			return nil
		}

		if !exe.IsRunning(lastRunningTimestamp) {
			newRunning = append(newRunning, exe)
			stateChanged = append(stateChanged, exe)
			if s.VommEnabled {
				vomm.Update(exe)
			}
		}
		exe.RunningTimestamp = state.Time
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, exe := range state.RunningExes {
		if seen[exe.Path] {
			newRunning = append(newRunning, exe)
		} else {
			stateChanged = append(stateChanged, exe)
		}
	}

	state.RunningExes = newRunning
	state.LastRunningTimestamp = state.Time

	return &ScanResult{NewRunningExes: newRunning, StateChangedExes: stateChanged, Queued: queued}, nil
}

// isKnownBadVariant reports whether path is a close variant of a path
// already recorded in the bad-exe table, per s.ShimMatcher. Returns
// false when no matcher is configured.
func (s *Spy) isKnownBadVariant(path string, state *domain.State) bool {
	if s.ShimMatcher == nil {
		return false
	}
	for b := range state.BadExes() {
		if s.ShimMatcher.IsShimVariant(path, b.Path) {
			return true
		}
	}
	return false
}

// UpdateModel runs the half-cycle-later pass described in spec 4.6:
// newly-queued processes are inspected and, if large enough, registered
// (joining the model immediately with markov edges to every existing
// exe); state-changed exes notify their incident markov edges; and
// runtime accounting is accrued onto every running exe and every edge
// currently in the both-running state.
func (s *Spy) UpdateModel(ctx context.Context, state *domain.State, scan *ScanResult) {
	for _, q := range scan.Queued {
		size, exemaps, err := s.MapReader.GetMaps(ctx, q.Pid, true)
		if err != nil {
			continue // ObservationTransient: e.g. permission denied; skip.
		}
		if size <= 0 {
			continue // ObservationTransient: process vanished before the map could be read.
		}
		if size < s.MinSize {
			state.MarkBad(q.Path, size)
			continue
		}

		exe := domain.NewExe(q.Path)
		exe.RunningTimestamp = state.Time
		exe.ChangeTimestamp = state.Time
		if err := state.RegisterExe(exe, true); err != nil {
			continue
		}
		for _, em := range exemaps {
			state.AddExemap(exe, em.Key, em.Prob)
		}
		state.RunningExes = append(state.RunningExes, exe)
	}

	for _, exe := range scan.StateChangedExes {
		exe.ChangeTimestamp = state.Time
		for _, h := range exe.MarkovHandles {
			if edge, ok := state.MarkovByHandle(h); ok {
				edge.StateChanged(state.Time, state.LastRunningTimestamp)
			}
		}
	}

	period := state.Time - state.LastAccountingTimestamp
	if period < 0 {
		period = 0
	}
	for _, exe := range state.RunningExes {
		exe.Time += period
	}
	for edge := range state.Markovs() {
		if edge.State == domain.StateBothRunning {
			edge.Time += period
		}
	}
	state.LastAccountingTimestamp = state.Time
}
