package stateio

import (
	"bufio"
	"errors"
	"os"

	"github.com/ahrav/gavel-preload/internal/domain"
)

// Save writes state to path following the save policy (spec 4.7): a
// temp file opened exclusive-create (retrying once after unlinking a
// stale leftover), every record written, then an atomic rename over the
// final path. On success it runs the invalidation sweep and drains the
// bad-exe table, so rejected binaries are re-evaluated next run.
//
// On any write error the temp file is unlinked and the error is an
// *IoError; state is left dirty so the caller retries on the next tick.
func Save(path string, state *domain.State, stater Stater) ([]ReplacedExe, error) {
	if err := writeAtomic(path, state); err != nil {
		return nil, err
	}

	replaced := InvalidationSweep(state, stater)
	state.DrainBadExes()
	state.Dirty = false
	state.ModelDirty = false
	return replaced, nil
}

func writeAtomic(path string, state *domain.State) error {
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		if rmErr := os.Remove(tmpPath); rmErr != nil {
			return &IoError{Op: "remove stale tmp", Path: tmpPath, Err: rmErr}
		}
		f, err = os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	}
	if err != nil {
		return &IoError{Op: "create", Path: tmpPath, Err: err}
	}

	w := bufio.NewWriter(f)
	if err := writeAll(w, state); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &IoError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return &IoError{Op: "flush", Path: tmpPath, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return &IoError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &IoError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
