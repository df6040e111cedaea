package readahead

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gavel-preload/internal/domain"
	"github.com/ahrav/gavel-preload/internal/ports"
)

type fakePrefetcher struct {
	calls []Request
	err   error
}

func (f *fakePrefetcher) Prefetch(path string, offset, length int64) error {
	f.calls = append(f.calls, Request{Path: path, Offset: offset, Length: length})
	return f.err
}

func mapAt(path string, offset, length int64) *domain.Map {
	m := domain.NewMap(domain.MapKey{Path: path, Offset: offset, Length: length})
	return m
}

func TestCoalesce_MergesOverlappingAndAdjacentRuns(t *testing.T) {
	requests := []Request{
		{Path: "/bin/p", Offset: 0, Length: 100},
		{Path: "/bin/p", Offset: 50, Length: 100},
		{Path: "/bin/p", Offset: 200, Length: 50},
	}

	got := Coalesce(requests)

	require.Len(t, got, 2)
	assert.Equal(t, Request{Path: "/bin/p", Offset: 0, Length: 150}, got[0])
	assert.Equal(t, Request{Path: "/bin/p", Offset: 200, Length: 50}, got[1])
}

func TestScheduler_Schedule_SortsCoalescesAndDispatches(t *testing.T) {
	pf := &fakePrefetcher{}
	s := &Scheduler{
		Strategy:   ports.SortPath,
		Prefetcher: pf,
		MaxProcs:   4,
	}

	maps := []*domain.Map{
		mapAt("/bin/p", 200, 50),
		mapAt("/bin/p", 0, 100),
		mapAt("/bin/p", 50, 100),
	}

	issued, err := s.Schedule(context.Background(), maps)
	require.NoError(t, err)
	assert.Equal(t, 2, issued)
	assert.Len(t, pf.calls, 2)
}

func TestScheduler_Schedule_InlineWhenMaxProcsZero(t *testing.T) {
	pf := &fakePrefetcher{}
	s := &Scheduler{Strategy: ports.SortNone, Prefetcher: pf, MaxProcs: 0}

	maps := []*domain.Map{mapAt("/bin/a", 0, 10), mapAt("/bin/b", 0, 10)}
	issued, err := s.Schedule(context.Background(), maps)
	require.NoError(t, err)
	assert.Equal(t, 2, issued)
	assert.Len(t, pf.calls, 2)
}

func TestScheduler_Schedule_AdvisoryFailureDoesNotAbortOthers(t *testing.T) {
	pf := &fakePrefetcher{err: assert.AnError}
	var failed []Request
	s := &Scheduler{
		Strategy:   ports.SortNone,
		Prefetcher: pf,
		MaxProcs:   2,
		OnAdvisoryError: func(req Request, err error) {
			failed = append(failed, req)
		},
	}

	maps := []*domain.Map{mapAt("/bin/a", 0, 10), mapAt("/bin/b", 0, 10)}
	issued, err := s.Schedule(context.Background(), maps)
	require.NoError(t, err)
	assert.Equal(t, 2, issued)
	assert.Len(t, failed, 2)
}

type fakeBlockResolver struct{ blocks map[string]int64 }

func (f *fakeBlockResolver) Resolve(path string) int64 {
	if b, ok := f.blocks[path]; ok {
		return b
	}
	return -1
}

func TestScheduler_sort_BlockStrategyFillsAndOrders(t *testing.T) {
	s := &Scheduler{
		Strategy:      ports.SortBlock,
		BlockResolver: &fakeBlockResolver{blocks: map[string]int64{"/bin/b": 1, "/bin/a": 2}},
	}

	requests := []Request{
		{Path: "/bin/a", Block: -1},
		{Path: "/bin/b", Block: -1},
	}

	got := s.sort(requests)
	require.Len(t, got, 2)
	assert.Equal(t, "/bin/b", got[0].Path)
	assert.Equal(t, "/bin/a", got[1].Path)
}

func TestScheduler_sort_PathStrategyOrdersByOffsetThenDescLength(t *testing.T) {
	s := &Scheduler{Strategy: ports.SortPath}

	requests := []Request{
		{Path: "/bin/p", Offset: 0, Length: 10},
		{Path: "/bin/p", Offset: 0, Length: 50},
		{Path: "/bin/a", Offset: 5, Length: 1},
	}

	got := s.sort(requests)
	require.Len(t, got, 3)
	assert.Equal(t, "/bin/a", got[0].Path)
	assert.Equal(t, "/bin/p", got[1].Path)
	assert.Equal(t, int64(50), got[1].Length)
	assert.Equal(t, int64(10), got[2].Length)
}

func TestScheduler_Schedule_NoPrefetcherIsNoop(t *testing.T) {
	s := &Scheduler{Strategy: ports.SortNone}
	issued, err := s.Schedule(context.Background(), []*domain.Map{mapAt("/bin/a", 0, 10)})
	require.NoError(t, err)
	assert.Equal(t, 1, issued)
}
