//go:build linux

package readahead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignForMmap_RoundsOffsetDownAndLengthUpToPageSize(t *testing.T) {
	const pageSize = 4096

	// offset and length both already page-aligned: no change.
	off, length := alignForMmap(4096, 8192, pageSize)
	assert.Equal(t, int64(4096), off)
	assert.Equal(t, int64(8192), length)

	// offset mid-page, length short of a page: the adjusted length must
	// round up to a whole page, not just absorb the offset remainder.
	off, length = alignForMmap(100, 50, pageSize)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(pageSize), length)

	// offset mid-page, length spanning just past one page boundary once
	// adjusted: still rounds up to the next whole page.
	off, length = alignForMmap(4000, 200, pageSize)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(8192), length) // 4000+200=4200 bytes needed -> 2 pages
}

func TestAlignForMmap_ZeroLengthStillMapsOnePage(t *testing.T) {
	off, length := alignForMmap(0, 0, 4096)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(4096), length)
}
