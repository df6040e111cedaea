package procfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Enumerator implements ports.ProcessEnumerator against /proc: every
// numeric entry under Root is a candidate pid, and its exe symlink
// target is the path fed to the callback. A pid that vanishes between
// the directory listing and the readlink is skipped — ObservationTransient,
// not an error worth aborting the scan over — and reported through
// OnSkip (wrapping ErrNoExe) when one is configured.
type Enumerator struct {
	// Root overrides /proc for tests; empty means the real /proc.
	Root string

	// OnSkip, if set, is invoked for every pid whose exe symlink could
	// not be read. Optional: nil means skips pass silently, same as the
	// readahead.Scheduler's OnAdvisoryError hook.
	OnSkip func(pid int, err error)
}

func (e Enumerator) root() string {
	if e.Root == "" {
		return "/proc"
	}
	return e.Root
}

// ForEach walks every running process's pid and exe path, in directory
// order. It returns early if fn returns an error or ctx is cancelled.
func (e Enumerator) ForEach(ctx context.Context, fn func(path string, pid int) error) error {
	entries, err := os.ReadDir(e.root())
	if err != nil {
		return err
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue // not a pid directory (self, net, etc.)
		}

		path, err := os.Readlink(filepath.Join(e.root(), entry.Name(), "exe"))
		if err != nil {
			if e.OnSkip != nil {
				e.OnSkip(pid, fmt.Errorf("%w: %v", ErrNoExe, err))
			}
			continue // exited, kernel thread, or permission denied
		}

		if err := fn(path, pid); err != nil {
			return err
		}
	}
	return nil
}
