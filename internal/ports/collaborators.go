// Package ports defines the contracts between the prediction/prefetch
// core and its external collaborators: process-table enumeration,
// per-process memory-map parsing, system memory statistics, and the
// readahead dispatcher. These interfaces enable dependency inversion —
// the core depends on them, never on a concrete /proc implementation —
// mirroring the teacher's ports/infrastructure split.
package ports

import (
	"context"

	"github.com/ahrav/gavel-preload/internal/domain"
)

// ProcessEnumerator enumerates currently running processes, invoking fn
// with each process's executable path and pid. Implementations should
// treat a process that exits mid-enumeration as a non-fatal, skippable
// condition (ObservationTransient), not a hard error.
type ProcessEnumerator interface {
	ForEach(ctx context.Context, fn func(path string, pid int) error) error
}

// ExemapInput describes one file-backed region discovered while parsing
// a process's memory map, ready to be interned into a domain.State via
// State.AddExemap.
type ExemapInput struct {
	Key  domain.MapKey
	Prob float64
}

// MapReader reads a single process's memory map, returning its aggregate
// mapped size in bytes (0 if the process vanished before it could be
// read) and, when wantExemaps is true, the set of file-backed regions
// found.
type MapReader interface {
	GetMaps(ctx context.Context, pid int, wantExemaps bool) (sizeBytes int64, exemaps []ExemapInput, err error)
}

// MemStatReader fills a MemStat snapshot from system memory statistics.
type MemStatReader interface {
	Read(ctx context.Context) (domain.MemStat, error)
}

// SortStrategy selects how the readahead scheduler orders requests
// before coalescing and dispatch.
type SortStrategy int

const (
	// SortNone leaves requests in the order the prophet produced them.
	SortNone SortStrategy = iota
	// SortPath orders by path, then offset, then descending length.
	SortPath
	// SortBlock fills missing block numbers through the scheduler's
	// BlockResolver (StatBlockResolver supplies the file's inode number)
	// and stable-sorts by that key.
	SortBlock
	// SortInode is handled exactly like SortBlock.
	SortInode
)

// ReadaheadScheduler sorts, coalesces, and dispatches advisory prefetch
// requests for the given candidate maps, which the caller has already
// ranked. It returns the number of coalesced prefetch requests.
type ReadaheadScheduler interface {
	Schedule(ctx context.Context, maps []*domain.Map) (issued int, err error)
}

// BadExeMatcher decides whether two executable paths are close enough
// variants (e.g. a minor interpreter version bump, python3.11 vs
// python3.12) to treat a freshly observed path as the same rejected
// binary without re-querying its maps. Best-effort: a matcher that
// always returns false merely costs one extra GetMaps call, never a
// correctness problem.
type BadExeMatcher interface {
	IsShimVariant(a, b string) bool
}

// PowerState reports whether the host is presently on AC power (or the
// collaborator cannot tell, in which case it should report true so scan
// ticks are never silently skipped by default). Grounded on
// original_source's power.c, which the covered spec.md omits — see
// SPEC_FULL.md's supplemented-features section.
type PowerState interface {
	OnACOrUnknown() bool
}
