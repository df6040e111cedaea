//go:build !linux

package readahead

import "errors"

// UnixPrefetcher is a no-op stub outside Linux; the daemon is
// Linux-only but this keeps the package buildable for local tooling on
// other platforms.
type UnixPrefetcher struct{}

func (UnixPrefetcher) Prefetch(path string, offset, length int64) error {
	return errors.New("readahead: unsupported platform")
}

// StatBlockResolver is a no-op stub outside Linux.
type StatBlockResolver struct{}

func (StatBlockResolver) Resolve(path string) int64 { return -1 }
