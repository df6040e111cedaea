package procfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProcEntry(t *testing.T, root, pid, exeTarget string) {
	t.Helper()
	dir := filepath.Join(root, pid)
	require.NoError(t, os.MkdirAll(dir, 0755))
	if exeTarget != "" {
		require.NoError(t, os.Symlink(exeTarget, filepath.Join(dir, "exe")))
	}
}

func TestEnumerator_ForEach_SkipsNonPidAndMissingExe(t *testing.T) {
	root := t.TempDir()
	writeProcEntry(t, root, "123", "/bin/vim")
	writeProcEntry(t, root, "456", "") // no exe symlink: exited/denied
	require.NoError(t, os.MkdirAll(filepath.Join(root, "net"), 0755))

	e := Enumerator{Root: root}
	var got []struct {
		path string
		pid  int
	}
	err := e.ForEach(context.Background(), func(path string, pid int) error {
		got = append(got, struct {
			path string
			pid  int
		}{path, pid})
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "/bin/vim", got[0].path)
	assert.Equal(t, 123, got[0].pid)
}

func TestEnumerator_ForEach_ReportsSkipsViaOnSkip(t *testing.T) {
	root := t.TempDir()
	writeProcEntry(t, root, "123", "/bin/vim")
	writeProcEntry(t, root, "456", "") // no exe symlink: exited/denied

	var skippedPid int
	var skippedErr error
	e := Enumerator{Root: root, OnSkip: func(pid int, err error) {
		skippedPid = pid
		skippedErr = err
	}}
	require.NoError(t, e.ForEach(context.Background(), func(path string, pid int) error { return nil }))

	assert.Equal(t, 456, skippedPid)
	assert.ErrorIs(t, skippedErr, ErrNoExe)
}

func TestEnumerator_ForEach_PropagatesCallbackError(t *testing.T) {
	root := t.TempDir()
	writeProcEntry(t, root, "1", "/bin/a")

	e := Enumerator{Root: root}
	sentinel := errors.New("boom")
	err := e.ForEach(context.Background(), func(path string, pid int) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func writeMapsFile(t *testing.T, root string, pid int, content string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maps"), []byte(content), 0644))
}

func TestMapReader_GetMaps_SumsFileBackedRegionsOnly(t *testing.T) {
	root := t.TempDir()
	content := "" +
		"08048000-08049000 r-xp 00000000 03:00 8312 /usr/sbin/sshd\n" +
		"0804a000-0804b000 rw-p 00001000 03:00 8312 /usr/sbin/sshd\n" +
		"b7e00000-b7f00000 rw-p 00000000 00:00 0 [heap]\n" +
		"bffeb000-c0000000 rw-p 00000000 00:00 0 [stack]\n"
	writeMapsFile(t, root, 42, content)

	r := MapReader{Root: root}
	size, exemaps, err := r.GetMaps(context.Background(), 42, true)
	require.NoError(t, err)

	assert.Equal(t, int64(0x1000+0x1000), size)
	require.Len(t, exemaps, 2)
	assert.Equal(t, "/usr/sbin/sshd", exemaps[0].Key.Path)
	assert.Equal(t, int64(0), exemaps[0].Key.Offset)
	assert.Equal(t, 1.0, exemaps[0].Prob)
}

func TestMapReader_GetMaps_WithoutExemapsStillSumsSize(t *testing.T) {
	root := t.TempDir()
	writeMapsFile(t, root, 7, "08048000-08049000 r-xp 00000000 03:00 1 /bin/x\n")

	r := MapReader{Root: root}
	size, exemaps, err := r.GetMaps(context.Background(), 7, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0x1000), size)
	assert.Nil(t, exemaps)
}

func TestMapReader_GetMaps_ReportsMalformedLinesViaOnSkip(t *testing.T) {
	root := t.TempDir()
	content := "" +
		"08048000-08049000 r-xp 00000000 03:00 8312 /usr/sbin/sshd\n" +
		"not-a-valid-maps-line\n"
	writeMapsFile(t, root, 13, content)

	var skippedPid int
	var skippedErr error
	r := MapReader{Root: root, OnSkip: func(pid int, err error) {
		skippedPid = pid
		skippedErr = err
	}}
	size, _, err := r.GetMaps(context.Background(), 13, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0x1000), size)
	assert.Equal(t, 13, skippedPid)
	assert.ErrorIs(t, skippedErr, ErrBadMapLine)
}

func TestMapReader_GetMaps_VanishedProcessIsNotAnError(t *testing.T) {
	root := t.TempDir()
	r := MapReader{Root: root}
	size, exemaps, err := r.GetMaps(context.Background(), 999, true)
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Nil(t, exemaps)
}
