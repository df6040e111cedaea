// Package procfs implements the core's two process-observation
// collaborators (ports.ProcessEnumerator, ports.MapReader) against Linux
// /proc, grounded on ja7ad-consumption's pkg/system/proc: buffered
// scanners, sentinel errors, and an env-overridable constants style for
// testability.
package procfs

import (
	"errors"
	"os"
	"strconv"
)

// Sentinel errors for malformed /proc entries. All are
// ObservationTransient conditions (spec 7): callers log at debug and
// skip the item, never abort the scan.
var (
	ErrNoExe      = errors.New("procfs: no exe symlink")
	ErrBadMapLine = errors.New("procfs: malformed maps line")
)

// PageSize returns the system page size, honoring a PAGE_SIZE env
// override for deterministic tests, same pattern as the reference
// implementation's PageSize/ClockTicks helpers.
func PageSize() int {
	if v := os.Getenv("PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return os.Getpagesize()
}
