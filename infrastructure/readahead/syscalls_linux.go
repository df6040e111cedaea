//go:build linux

package readahead

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/ahrav/gavel-preload/infrastructure/procfs"
)

// UnixPrefetcher issues readahead(2), falling back to an mmap +
// madvise(MADV_WILLNEED) + munmap sequence when the kernel or
// filesystem doesn't support readahead on the target fd (pseudo
// filesystems like /proc and /sys routinely land here and are not
// treated as failures).
type UnixPrefetcher struct{}

// Prefetch opens path O_RDONLY|O_NOATIME (retrying without O_NOATIME
// when the caller doesn't own the file) and issues the advisory hint.
func (UnixPrefetcher) Prefetch(path string, offset, length int64) error {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOATIME, 0)
	if err != nil {
		fd, err = unix.Open(path, unix.O_RDONLY, 0)
	}
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	return prefetchFd(fd, offset, length)
}

func prefetchFd(fd int, offset, length int64) error {
	_, err := unix.Readahead(fd, offset, int(length))
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENOSYS) && !errors.Is(err, unix.EOPNOTSUPP) {
		return err
	}
	return mmapWillNeed(fd, offset, length)
}

// mmapWillNeed is the fallback path for filesystems that don't
// implement readahead(2): map the page-aligned region, hint
// MADV_WILLNEED, then unmap. The kernel does the actual readahead work
// as a side effect of the page fault the madvise triggers.
func mmapWillNeed(fd int, offset, length int64) error {
	alignedOffset, alignedLength := alignForMmap(offset, length, int64(procfs.PageSize()))

	data, err := unix.Mmap(fd, alignedOffset, int(alignedLength), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return err
	}
	defer unix.Munmap(data)

	return unix.Madvise(data, unix.MADV_WILLNEED)
}

// alignForMmap rounds offset down and length up to pageSize boundaries,
// per the original try_readahead_with_fallback's aligned_length
// computation (original_source/preload-src/src/core/readahead.c): the
// offset adjustment that page-aligning offset introduces must itself be
// rounded up to a whole page, not just added to length.
func alignForMmap(offset, length, pageSize int64) (alignedOffset, alignedLength int64) {
	alignedOffset = (offset / pageSize) * pageSize
	alignedLength = length + (offset - alignedOffset)
	if alignedLength <= 0 {
		alignedLength = pageSize
	}
	alignedLength = ((alignedLength + pageSize - 1) / pageSize) * pageSize
	return alignedOffset, alignedLength
}

// StatBlockResolver resolves a path to its device-relative inode
// number, used as the BLOCK/INODE sort key when the kernel doesn't
// expose a cheaper block-map lookup.
type StatBlockResolver struct{}

func (StatBlockResolver) Resolve(path string) int64 {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return -1
	}
	return int64(st.Ino)
}
