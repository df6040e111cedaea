package stateio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gavel-preload/internal/domain"
)

type fakeFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return f.mode }
func (f fakeFileInfo) ModTime() time.Time { return f.modTime }
func (f fakeFileInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeFileInfo) Sys() any           { return nil }

type fakeStater struct {
	infos map[string]fakeFileInfo
	errs  map[string]error
}

func (f *fakeStater) Stat(path string) (os.FileInfo, error) {
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if fi, ok := f.infos[path]; ok {
		return fi, nil
	}
	return nil, os.ErrNotExist
}

func TestSaveLoad_RoundTrip_S5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preload.state")

	state := domain.NewState()
	state.Time = 42

	exe := domain.NewExe("/bin/vim")
	require.NoError(t, state.RegisterExe(exe, false))
	exe.Time = 7.5
	exe.UpdateTime = 123

	state.AddExemap(exe, domain.MapKey{Path: "/lib/libc.so", Offset: 0, Length: 4096}, 0.5)
	state.MarkBad("/opt/ignored", 10) // must not survive the round trip

	// The sweep Save runs after writing finds /bin/vim unchanged on disk
	// and keeps it in the in-memory state.
	stater := &fakeStater{infos: map[string]fakeFileInfo{
		"/bin/vim": {name: "vim", modTime: time.Unix(123, 0)},
	}}
	_, err := Save(path, state, stater)
	require.NoError(t, err)

	reloaded := domain.NewState()
	require.NoError(t, Load(path, reloaded))

	assert.Equal(t, state.Time, reloaded.Time)
	assert.Equal(t, state.NumExes(), reloaded.NumExes())
	assert.Equal(t, state.NumMaps(), reloaded.NumMaps())

	gotExe, ok := reloaded.ExeByPath("/bin/vim")
	require.True(t, ok)
	assert.Equal(t, 7.5, gotExe.Time)
	require.Len(t, gotExe.Exemaps, 1)
	assert.Equal(t, 0.5, gotExe.Exemaps[0].Prob)

	var count int
	for range reloaded.BadExes() {
		count++
	}
	assert.Zero(t, count, "bad_exes must not survive a save/load round trip")
}

func TestSaveLoad_RoundTrip_PreservesMarkovWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preload.state")

	state := domain.NewState()
	state.Time = 100

	a := domain.NewExe("/bin/a")
	require.NoError(t, state.RegisterExe(a, false))
	b := domain.NewExe("/bin/b")
	require.NoError(t, state.RegisterExe(b, true))

	var edge *domain.MarkovEdge
	for e := range state.Markovs() {
		edge = e
	}
	require.NotNil(t, edge)
	edge.Time = 55
	edge.Weight[domain.StateARunning][domain.StateBothRunning] = 3
	edge.TimeToLeave[domain.StateARunning] = 12.5

	_, err := Save(path, state, &fakeStater{})
	require.NoError(t, err)

	reloaded := domain.NewState()
	require.NoError(t, Load(path, reloaded))

	var got *domain.MarkovEdge
	for e := range reloaded.Markovs() {
		got = e
	}
	require.NotNil(t, got)
	assert.Equal(t, 55.0, got.Time)
	assert.Equal(t, 3.0, got.Weight[domain.StateARunning][domain.StateBothRunning])
	assert.Equal(t, 12.5, got.TimeToLeave[domain.StateARunning])
}

func TestLoad_RejectsVersionSkew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preload.state")
	require.NoError(t, os.WriteFile(path, []byte("PRELOAD\t99\t0\n"), 0644))

	err := Load(path, domain.NewState())
	require.Error(t, err)
	var skew *domain.VersionSkewError
	require.ErrorAs(t, err, &skew)
	assert.Equal(t, 99, skew.Found)
}

func TestLoad_RejectsRecordBeforePreload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preload.state")
	require.NoError(t, os.WriteFile(path, []byte("MAP\t1\t0\t0\t10\t-1\tfile:///bin/a\n"), 0644))

	err := Load(path, domain.NewState())
	require.Error(t, err)
	var fileErr *domain.StateFileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, 1, fileErr.Line)
}

func TestLoad_RejectsDuplicateMapSeq(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preload.state")
	content := "PRELOAD\t1\t0\n" +
		"MAP\t1\t0\t0\t10\t-1\tfile:///a\n" +
		"MAP\t1\t0\t10\t10\t-1\tfile:///b\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	err := Load(path, domain.NewState())
	require.Error(t, err)
	var fileErr *domain.StateFileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, 3, fileErr.Line)
}

func TestInvalidationSweep_RemovesVanishedExe(t *testing.T) {
	state := domain.NewState()
	exe := domain.NewExe("/bin/gone")
	require.NoError(t, state.RegisterExe(exe, false))

	stater := &fakeStater{errs: map[string]error{"/bin/gone": os.ErrNotExist}}
	InvalidationSweep(state, stater)

	_, ok := state.ExeByPath("/bin/gone")
	assert.False(t, ok)
}

func TestInvalidationSweep_KeepsRunningExeRegardlessOfStat(t *testing.T) {
	state := domain.NewState()
	exe := domain.NewExe("/bin/running")
	require.NoError(t, state.RegisterExe(exe, false))
	state.RunningExes = []*domain.Exe{exe}

	stater := &fakeStater{errs: map[string]error{"/bin/running": os.ErrNotExist}}
	InvalidationSweep(state, stater)

	_, ok := state.ExeByPath("/bin/running")
	assert.True(t, ok)
}

func TestInvalidationSweep_FlagsMtimeDriftButKeepsExe(t *testing.T) {
	state := domain.NewState()
	exe := domain.NewExe("/bin/replaced")
	exe.UpdateTime = 100
	require.NoError(t, state.RegisterExe(exe, false))

	newMtime := time.Unix(200, 0)
	stater := &fakeStater{infos: map[string]fakeFileInfo{
		"/bin/replaced": {name: "replaced", mode: 0, modTime: newMtime},
	}}

	replaced := InvalidationSweep(state, stater)
	require.Len(t, replaced, 1)
	assert.Equal(t, int64(100), replaced[0].OldUpdateTime)
	assert.Equal(t, int64(200), replaced[0].NewUpdateTime)

	got, ok := state.ExeByPath("/bin/replaced")
	require.True(t, ok)
	assert.Equal(t, int64(200), got.UpdateTime)
}

func TestInvalidationSweep_NonRegularFileIsRemoved(t *testing.T) {
	state := domain.NewState()
	exe := domain.NewExe("/proc/123/exe")
	require.NoError(t, state.RegisterExe(exe, false))

	stater := &fakeStater{infos: map[string]fakeFileInfo{
		"/proc/123/exe": {name: "exe", mode: os.ModeSymlink},
	}}

	InvalidationSweep(state, stater)
	_, ok := state.ExeByPath("/proc/123/exe")
	assert.False(t, ok)
}

func TestSave_RetriesAfterStaleTmpFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preload.state")
	require.NoError(t, os.WriteFile(path+".tmp", []byte("stale"), 0644))

	state := domain.NewState()
	_, err := Save(path, state, &fakeStater{})
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
