package daw

import (
	"context"
	"sync/atomic"
)

// Rerouter turns device directory changes into Driver.Reroute calls posted
// to the OSC handling goroutine. Changes arriving before a posted reroute
// has started share it.
type Rerouter struct {
	ctx     context.Context
	driver  Driver
	post    func(func()) bool
	logger  Logger
	pending atomic.Bool
}

// NewRerouter creates a Rerouter. post is usually (*osc.Server).Do.
func NewRerouter(ctx context.Context, d Driver, post func(func()) bool, logger Logger) *Rerouter {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Rerouter{ctx: ctx, driver: d, post: post, logger: logger}
}

// DeviceChanged matches midi.ChangeFunc.
func (r *Rerouter) DeviceChanged(attached bool, device string, _ int) {
	if !r.pending.CompareAndSwap(false, true) {
		return
	}
	if !r.post(r.run) {
		r.pending.Store(false)
		r.logger.Warn("reroute not queued, osc queue full", "device", device, "attached", attached)
	}
}

func (r *Rerouter) run() {
	r.pending.Store(false)
	if r.ctx.Err() != nil {
		return
	}
	r.driver.Reroute(r.ctx)
}
