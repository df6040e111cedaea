// Package memstat implements ports.MemStatReader by parsing
// /proc/meminfo and /proc/vmstat, producing the preload_memory_t
// equivalent domain.MemStat snapshot the prophet budgets against.
package memstat

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ahrav/gavel-preload/internal/domain"
)

// Reader implements ports.MemStatReader.
type Reader struct {
	// Root overrides /proc for tests; empty means the real /proc.
	Root string
}

func (r Reader) root() string {
	if r.Root == "" {
		return "/proc"
	}
	return r.Root
}

// Read snapshots current memory conditions. /proc/vmstat's pagein/pageout
// counters are read best-effort: per spec, fields optional on older
// kernels are left at zero rather than surfaced as an error.
func (r Reader) Read(ctx context.Context) (domain.MemStat, error) {
	fields, err := readKeyValueFile(filepath.Join(r.root(), "meminfo"))
	if err != nil {
		return domain.MemStat{}, err
	}

	stat := domain.MemStat{
		Total:        fields["MemTotal"],
		Free:         fields["MemFree"],
		Buffers:      fields["Buffers"],
		Cached:       fields["Cached"],
		Active:       fields["Active"],
		Inactive:     fields["Inactive"],
		ActiveAnon:   fields["Active(anon)"],
		InactiveAnon: fields["Inactive(anon)"],
		ActiveFile:   fields["Active(file)"],
		InactiveFile: fields["Inactive(file)"],
		Available:    fields["MemAvailable"],
	}

	if vmstat, err := readKeyValueFile(filepath.Join(r.root(), "vmstat")); err == nil {
		stat.Pagein = vmstat["pgpgin"]
		stat.Pageout = vmstat["pgpgout"]
	}

	return stat, nil
}

// readKeyValueFile parses lines of the form "Key:  value kB" (meminfo)
// or "key value" (vmstat) into a key->value map. Units are not
// normalized: both files already report in KiB for the fields this
// package reads.
func readKeyValueFile(path string) (map[string]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]int64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		out[key] = v
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}
