package procfs

import (
	"path/filepath"

	"github.com/agnivade/levenshtein"
)

// MaxShimDistance is the maximum edit distance between two basenames
// still considered the same rejected interpreter shim.
const MaxShimDistance = 2

// ShimMatcher implements ports.BadExeMatcher by comparing basenames with
// Levenshtein distance: "python3.11" and "python3.12" are close enough
// that re-discovering one right after the other rejected the other is
// almost certainly the same interpreter being bumped a patch version,
// not a genuinely new binary worth spending a GetMaps call on.
type ShimMatcher struct{}

func (ShimMatcher) IsShimVariant(a, b string) bool {
	if a == b {
		return true
	}
	return levenshtein.ComputeDistance(filepath.Base(a), filepath.Base(b)) <= MaxShimDistance
}
