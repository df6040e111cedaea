package application

import "github.com/ahrav/gavel-preload/internal/domain"

// StateStats is a point-in-time summary of the model, used by both the
// SIGUSR1 statistics dump and the Prometheus gauges.
type StateStats struct {
	NumExes      int
	NumMaps      int
	NumMarkovs   int
	RunningCount int
	VirtualTime  float64
	Dirty        bool
	ModelDirty   bool
}

// Stats snapshots state for reporting.
func Stats(state *domain.State) StateStats {
	return StateStats{
		NumExes:      state.NumExes(),
		NumMaps:      state.NumMaps(),
		NumMarkovs:   state.NumMarkovs(),
		RunningCount: len(state.RunningExes),
		VirtualTime:  state.Time,
		Dirty:        state.Dirty,
		ModelDirty:   state.ModelDirty,
	}
}
