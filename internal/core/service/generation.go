package service

import "sync/atomic"

// Ticket identifies one issued fetch.
type Ticket uint64

// Generation orders fetches of the same view. Only the result of the latest
// issued ticket may be applied; earlier ones are stale.
type Generation struct {
	n atomic.Uint64
}

// Begin issues a ticket that supersedes every earlier one.
func (g *Generation) Begin() Ticket {
	return Ticket(g.n.Add(1))
}

// Current reports whether t is still the latest ticket.
func (g *Generation) Current(t Ticket) bool {
	return g.n.Load() == uint64(t)
}
