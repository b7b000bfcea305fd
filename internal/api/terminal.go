package api

import (
	"sync/atomic"

	"github.com/JakeFAU/title-relay/internal/relay"
)

// terminal is a single-assignment slot for a request's final outcome. Any
// number of producers may offer; exactly one succeeds.
type terminal struct {
	claimed atomic.Bool
	out     chan relay.Outcome
}

func newTerminal() *terminal {
	return &terminal{out: make(chan relay.Outcome, 1)}
}

// offer claims the slot for o. It never blocks and reports whether o won.
func (t *terminal) offer(o relay.Outcome) bool {
	if !t.claimed.CompareAndSwap(false, true) {
		return false
	}
	t.out <- o
	return true
}

func (t *terminal) wait() relay.Outcome {
	return <-t.out
}
