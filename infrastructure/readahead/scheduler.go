// Package readahead implements the prefetch scheduler: it sorts and
// coalesces candidate file regions for locality, then dispatches
// advisory kernel readahead hints through a bounded worker pool.
package readahead

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ahrav/gavel-preload/internal/domain"
	"github.com/ahrav/gavel-preload/internal/ports"
)

// BlockResolver fills in the disk-block (or inode) sort key for a path
// when the BLOCK/INODE strategies are configured. It returns -1 when the
// block/inode cannot be determined, never an error that should abort
// scheduling.
type BlockResolver interface {
	Resolve(path string) int64
}

// Prefetcher issues the actual advisory syscall for one coalesced
// request. Concrete implementations live in syscalls_linux.go.
type Prefetcher interface {
	Prefetch(path string, offset, length int64) error
}

// Request is one file-region prefetch candidate, derived from a
// domain.Map.
type Request struct {
	Path   string
	Offset int64
	Length int64
	Block  int64
}

// Scheduler sorts, coalesces, and dispatches prefetch requests.
type Scheduler struct {
	Strategy      ports.SortStrategy
	BlockResolver BlockResolver
	Prefetcher    Prefetcher

	// MaxProcs bounds the number of concurrently outstanding prefetch
	// workers. Zero disables the worker pool: requests are issued inline,
	// one at a time, in the calling goroutine.
	MaxProcs int

	// OnAdvisoryError, if set, is invoked for every failed prefetch
	// (PrefetchAdvisoryFailed: logged at debug and otherwise ignored).
	// Left nil by default so this package never logs on its own.
	OnAdvisoryError func(req Request, err error)
}

// Schedule implements prophet step 6 / spec 4.5: sort, coalesce,
// dispatch, reap. It returns the number of coalesced prefetch requests
// handed to dispatch; with no Prefetcher configured nothing is issued
// and that count is still returned.
func (s *Scheduler) Schedule(ctx context.Context, maps []*domain.Map) (int, error) {
	requests := make([]Request, 0, len(maps))
	for _, m := range maps {
		requests = append(requests, Request{
			Path:   m.Key.Path,
			Offset: m.Key.Offset,
			Length: m.Key.Length,
			Block:  m.Block,
		})
	}

	requests = s.sort(requests)
	requests = Coalesce(requests)

	if err := s.dispatch(ctx, requests); err != nil {
		return 0, err
	}
	return len(requests), nil
}

// sort orders requests per the configured strategy. NONE leaves the
// input order untouched; PATH orders by path, then offset, then
// descending length; BLOCK/INODE fill in missing block keys via
// BlockResolver and stable-sort by block.
func (s *Scheduler) sort(requests []Request) []Request {
	switch s.Strategy {
	case ports.SortPath:
		sort.Slice(requests, func(i, j int) bool {
			a, b := requests[i], requests[j]
			if a.Path != b.Path {
				return a.Path < b.Path
			}
			if a.Offset != b.Offset {
				return a.Offset < b.Offset
			}
			return a.Length > b.Length
		})
	case ports.SortBlock, ports.SortInode:
		if s.BlockResolver != nil {
			for i := range requests {
				if requests[i].Block < 0 {
					requests[i].Block = s.BlockResolver.Resolve(requests[i].Path)
				}
			}
		}
		sort.SliceStable(requests, func(i, j int) bool {
			return requests[i].Block < requests[j].Block
		})
	case ports.SortNone:
		// leave order as-is
	}
	return requests
}

// Coalesce merges runs of requests that share a path where the next
// request's offset lies within [prev.offset, prev.offset+prev.length],
// extending the pending request to [min offset, max end]. It assumes
// same-path requests that should be merged are already adjacent in the
// input (true for PATH-sorted input, and for any input where the caller
// wants sequential-run merging rather than global grouping).
func Coalesce(requests []Request) []Request {
	if len(requests) == 0 {
		return nil
	}

	out := make([]Request, 0, len(requests))
	pending := requests[0]

	for _, r := range requests[1:] {
		if r.Path == pending.Path && r.Offset >= pending.Offset && r.Offset <= pending.Offset+pending.Length {
			end := pending.Offset + pending.Length
			if rEnd := r.Offset + r.Length; rEnd > end {
				end = rEnd
			}
			if r.Offset < pending.Offset {
				pending.Offset = r.Offset
			}
			pending.Length = end - pending.Offset
			continue
		}
		out = append(out, pending)
		pending = r
	}
	out = append(out, pending)
	return out
}

// dispatch issues a prefetch for every request, bounded by MaxProcs
// concurrent workers (or inline, one at a time, when MaxProcs is zero).
// It always waits for every worker before returning, so cancellation
// cannot orphan an in-flight prefetch.
func (s *Scheduler) dispatch(ctx context.Context, requests []Request) error {
	if s.Prefetcher == nil || len(requests) == 0 {
		return nil
	}

	if s.MaxProcs <= 0 {
		for _, r := range requests {
			s.issue(r)
		}
		return nil
	}

	sem := semaphore.NewWeighted(int64(s.MaxProcs))
	g, gctx := errgroup.WithContext(ctx)

	for _, r := range requests {
		r := r
		if err := sem.Acquire(gctx, 1); err != nil {
			break // context cancelled; stop spawning new workers
		}
		g.Go(func() error {
			defer sem.Release(1)
			s.issue(r)
			return nil
		})
	}

	return g.Wait()
}

// issue calls the Prefetcher and reports any failure through
// OnAdvisoryError, never treating it as fatal.
func (s *Scheduler) issue(r Request) {
	if err := s.Prefetcher.Prefetch(r.Path, r.Offset, r.Length); err != nil {
		if s.OnAdvisoryError != nil {
			s.OnAdvisoryError(r, err)
		}
	}
}
