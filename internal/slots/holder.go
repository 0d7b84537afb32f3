package slots

import (
	"sync/atomic"
	"time"

	"dispensary/internal/model"
)

// Holder exposes the current policy and lets config reloads swap it.
type Holder struct {
	p atomic.Pointer[Policy]
}

// NewHolder starts with p, or DefaultPolicy when p is nil.
func NewHolder(p *Policy) *Holder {
	if p == nil {
		p = DefaultPolicy()
	}
	h := &Holder{}
	h.p.Store(p)
	return h
}

func (h *Holder) Load() *Policy { return h.p.Load() }

func (h *Holder) Store(p *Policy) {
	if p != nil {
		h.p.Store(p)
	}
}

func (h *Holder) Check(date time.Time, clock model.Clock, now time.Time) error {
	return h.Load().Check(date, clock, now)
}

func (h *Holder) FilterPast(available []string, date, now time.Time) []string {
	return h.Load().FilterPast(available, date, now)
}

func (h *Holder) Location() *time.Location {
	return h.Load().location()
}
