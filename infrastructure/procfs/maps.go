package procfs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ahrav/gavel-preload/internal/domain"
	"github.com/ahrav/gavel-preload/internal/ports"
)

// MapReader implements ports.MapReader by parsing /proc/<pid>/maps.
// Every directly-observed exemap is recorded with prob=1.0, matching the
// reference implementation's exemap_new (a freshly observed mapping is
// certain, as opposed to a prophet-predicted one).
type MapReader struct {
	// Root overrides /proc for tests; empty means the real /proc.
	Root string

	// OnSkip, if set, is invoked for every maps line that failed to
	// parse (wrapping ErrBadMapLine). Optional: nil means malformed
	// lines are skipped silently. Lines that parse fine but aren't
	// file-backed (anonymous mappings, [heap], [stack], ...) are a
	// routine, expected skip and never reported here.
	OnSkip func(pid int, err error)
}

func (r MapReader) root() string {
	if r.Root == "" {
		return "/proc"
	}
	return r.Root
}

// GetMaps reads pid's file-backed mapped regions, returning the total
// byte size of every region and, when wantExemaps is set, one
// ExemapInput per region. A vanished process (the maps file is gone)
// returns a zero size and a nil error: the caller treats this as
// ObservationTransient, not a hard failure.
func (r MapReader) GetMaps(ctx context.Context, pid int, wantExemaps bool) (int64, []ports.ExemapInput, error) {
	path := filepath.Join(r.root(), strconv.Itoa(pid), "maps")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	defer f.Close()

	var total int64
	var exemaps []ports.ExemapInput

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return total, exemaps, ctx.Err()
		default:
		}

		region, fileBacked, err := parseMapsLine(scanner.Text())
		if err != nil {
			if r.OnSkip != nil {
				r.OnSkip(pid, err)
			}
			continue
		}
		if !fileBacked {
			continue
		}
		total += region.length
		if wantExemaps {
			exemaps = append(exemaps, ports.ExemapInput{
				Key:  domain.MapKey{Path: region.path, Offset: region.offset, Length: region.length},
				Prob: 1.0,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return total, exemaps, err
	}
	return total, exemaps, nil
}

type mapsRegion struct {
	path   string
	offset int64
	length int64
}

// parseMapsLine parses one /proc/<pid>/maps line, e.g.:
//
//	08048000-08049000 r-xp 00000000 03:00 8312 /usr/sbin/sshd
//
// fileBacked reports whether the line names a real, file-backed region
// worth keeping; a line with too few fields or unparsable hex is a
// genuine parse failure and returns ErrBadMapLine, distinct from the
// routine, expected case of a well-formed anonymous mapping or
// pseudo-path like [heap]/[stack]/[vdso].
func parseMapsLine(line string) (region mapsRegion, fileBacked bool, err error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return mapsRegion{}, false, fmt.Errorf("%w: %q", ErrBadMapLine, line)
	}
	var pathname string // anonymous mappings have no pathname field
	if len(fields) >= 6 {
		pathname = fields[5]
	}

	addrs := strings.SplitN(fields[0], "-", 2)
	if len(addrs) != 2 {
		return mapsRegion{}, false, fmt.Errorf("%w: %q", ErrBadMapLine, line)
	}
	start, err := strconv.ParseInt(addrs[0], 16, 64)
	if err != nil {
		return mapsRegion{}, false, fmt.Errorf("%w: %q", ErrBadMapLine, line)
	}
	end, err := strconv.ParseInt(addrs[1], 16, 64)
	if err != nil {
		return mapsRegion{}, false, fmt.Errorf("%w: %q", ErrBadMapLine, line)
	}
	offset, err := strconv.ParseInt(fields[2], 16, 64)
	if err != nil {
		return mapsRegion{}, false, fmt.Errorf("%w: %q", ErrBadMapLine, line)
	}

	if !strings.HasPrefix(pathname, "/") {
		return mapsRegion{}, false, nil
	}

	return mapsRegion{path: pathname, offset: offset, length: end - start}, true, nil
}
