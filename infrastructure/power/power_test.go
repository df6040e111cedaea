package power

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBattery(t *testing.T, root string, idx int, status string) {
	t.Helper()
	dir := filepath.Join(root, "BAT"+string(rune('0'+idx)))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status"), []byte(status+"\n"), 0o644))
}

func TestReader_OnACOrUnknown_NoBatteriesIsTrue(t *testing.T) {
	r := &Reader{Root: t.TempDir()}
	assert.True(t, r.OnACOrUnknown())
}

func TestReader_OnACOrUnknown_DischargingIsFalse(t *testing.T) {
	root := t.TempDir()
	writeBattery(t, root, 0, "Discharging")

	r := &Reader{Root: root}
	assert.False(t, r.OnACOrUnknown())
}

func TestReader_OnACOrUnknown_ChargingIsTrue(t *testing.T) {
	root := t.TempDir()
	writeBattery(t, root, 0, "Charging")

	r := &Reader{Root: root}
	assert.True(t, r.OnACOrUnknown())
}
