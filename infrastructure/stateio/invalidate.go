package stateio

import (
	"errors"
	"io/fs"
	"os"
	"syscall"

	"github.com/ahrav/gavel-preload/internal/domain"
)

// Stater abstracts the single filesystem call the invalidation sweep
// needs, so tests can simulate vanished or replaced binaries without
// touching a real filesystem.
type Stater interface {
	Stat(path string) (os.FileInfo, error)
}

// OSStater stats the real filesystem.
type OSStater struct{}

func (OSStater) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

// ReplacedExe reports an exe whose on-disk modification time no longer
// matches the recorded one (the binary was rotated or reinstalled under
// the same path), returned so the caller can log it — this package never
// logs directly.
type ReplacedExe struct {
	Path                         string
	OldUpdateTime, NewUpdateTime int64
}

// InvalidationSweep implements cleanup_invalid_entries (spec 4.7): for
// every non-running exe, stat its path. A vanished file or one that is
// no longer a regular file is unregistered outright. A changed mtime is
// recorded as a replacement but the exe is kept (its UpdateTime is
// refreshed so the next sweep doesn't re-flag it). Stat errors other
// than nonexistence are treated as "still valid" — leave the exe alone.
//
// The data model carries no persisted inode, only UpdateTime (mtime), so
// unlike the source this only detects replacement via mtime drift.
func InvalidationSweep(state *domain.State, stater Stater) []ReplacedExe {
	running := make(map[*domain.Exe]bool, len(state.RunningExes))
	for _, e := range state.RunningExes {
		running[e] = true
	}

	var toRemove []*domain.Exe
	var replaced []ReplacedExe

	for e := range state.Exes() {
		if running[e] {
			continue
		}

		fi, err := stater.Stat(e.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
				toRemove = append(toRemove, e)
			}
			continue
		}
		if !fi.Mode().IsRegular() {
			toRemove = append(toRemove, e)
			continue
		}

		mtime := fi.ModTime().Unix()
		if mtime != e.UpdateTime {
			replaced = append(replaced, ReplacedExe{Path: e.Path, OldUpdateTime: e.UpdateTime, NewUpdateTime: mtime})
			e.UpdateTime = mtime
		}
	}

	for _, e := range toRemove {
		state.UnregisterExe(e)
	}
	return replaced
}
