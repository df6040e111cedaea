package domain

// MapKey identifies a file-backed region by its (path, offset, length)
// triple. Two maps with equal keys must not coexist in a State's store.
type MapKey struct {
	Path   string
	Offset int64
	Length int64
}

// Map is a file-backed memory region observed in some exe's address
// space. It enters a State's store on first Ref and leaves on the Unref
// that drops refcount to zero.
type Map struct {
	// Seq is assigned on first registration and is stable across the
	// lifetime of the map; it is the on-disk identity used by state files.
	Seq int64

	Key MapKey

	// UpdateTime is reserved: written on every touch but not consumed by
	// any covered algorithm (spec Open Question 2).
	UpdateTime int64

	// refcount is the number of exemaps currently owning a reference on
	// this map. The map is present in its owning State's store iff
	// refcount > 0.
	refcount int

	// index is this map's position in the owning State's parallel scan
	// array, maintained for O(1) swap-removal.
	index int

	// Block is the sort key used by the BLOCK/INODE readahead strategies:
	// the disk block of the region's first byte, or (failing that) the
	// inode number, or -1 meaning "unknown".
	Block int64

	// Lnprob is transient: reset and recomputed every prediction tick by
	// the prophet.
	Lnprob float64

	// Priv is prophet scratch space. Contract: only the map-ranking pass
	// (application.Prophet.Run) may read or write it, and it must treat the type
	// as *rankingScratch; every other pass ignores it. Cleared at the
	// start of ResetTransient.
	Priv any
}

// NewMap constructs an unregistered map with Block defaulting to -1
// ("unknown") per the data model.
func NewMap(key MapKey) *Map {
	return &Map{Key: key, Block: -1}
}

// Refcount returns the number of exemaps owning a reference on m.
func (m *Map) Refcount() int { return m.refcount }

// ref increments the refcount. Used only by Exemap construction.
func (m *Map) ref() { m.refcount++ }

// unref decrements the refcount and reports whether it reached zero,
// meaning the caller must unregister the map from its store.
func (m *Map) unref() bool {
	if m.refcount > 0 {
		m.refcount--
	}
	return m.refcount == 0
}

// Exemap is a directed, probability-weighted edge from an Exe to a Map.
// It exclusively owns one reference on its Map.
type Exemap struct {
	Map  *Map
	Prob float64
}
