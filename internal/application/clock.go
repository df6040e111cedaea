package application

// VirtualClock advances domain.State's virtual time across the
// scan/update half-cycle split described in spec 5: a full cycle
// advances by cycleSec seconds in total, split as (cycle+1)/2 on one
// tick boundary and cycle/2 on the next, so scan and model-update never
// land on the same instant.
type VirtualClock struct {
	CycleSec int
	onFirst  bool
}

// NewVirtualClock starts a clock that begins with the larger half-step.
func NewVirtualClock(cycleSec int) *VirtualClock {
	return &VirtualClock{CycleSec: cycleSec, onFirst: true}
}

// Advance returns the number of seconds to add to state.Time for the
// next tick boundary, alternating between the two half-cycle steps.
func (c *VirtualClock) Advance() float64 {
	var step float64
	if c.onFirst {
		step = float64((c.CycleSec + 1) / 2)
	} else {
		step = float64(c.CycleSec / 2)
	}
	c.onFirst = !c.onFirst
	return step
}
