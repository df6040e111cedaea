// Package power implements the optional ports.PowerState collaborator,
// grounded on original_source's power.c: it looks for
// /sys/class/power_supply/BAT*/status and reports discharging batteries
// as "not on AC".
package power

import (
	"fmt"
	"os"
	"strings"
)

// defaultSysClass is the sysfs power-supply root used when Reader.Root
// is empty.
const defaultSysClass = "/sys/class/power_supply"

// Reader implements ports.PowerState by polling sysfs battery status
// files. A Reader with a zero Root uses the real /sys/class/power_supply.
type Reader struct {
	Root      string
	MaxBattery int
}

// NewReader returns a Reader scanning BAT0 through BAT9.
func NewReader() *Reader { return &Reader{MaxBattery: 10} }

// OnACOrUnknown reports false only when it can positively confirm at
// least one battery is discharging; any other outcome (no batteries,
// charging, unreadable sysfs) reports true so scan ticks are never
// silently skipped by default.
func (r *Reader) OnACOrUnknown() bool {
	max := r.MaxBattery
	if max <= 0 {
		max = 10
	}
	root := r.Root
	if root == "" {
		root = defaultSysClass
	}

	for i := 0; i < max; i++ {
		path := fmt.Sprintf("%s/BAT%d/status", root, i)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == "Discharging" {
			return false
		}
	}
	return true
}
