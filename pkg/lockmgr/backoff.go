package lockmgr

import (
	"time"

	"github.com/zhangyunhao116/fastrand"
)

// Saturate is the maximum exponent used by the randomized exponential
// backoff below; it is a contract the rest of the system relies on, not an
// implementation detail.
const Saturate = 12

// BaseUnit is the unit scale of one backoff step.
const BaseUnit = 50 * time.Microsecond

// Backoff is randomized exponential backoff with a saturating cap. It
// never sleeps indefinitely, and its counter resets between distinct
// acquisitions.
type Backoff struct {
	n uint32
}

// NewBackoff returns a backoff counter at iteration zero.
func NewBackoff() *Backoff {
	return &Backoff{}
}

// Reset returns the counter to iteration zero, for reuse across a new
// acquisition attempt.
func (b *Backoff) Reset() {
	b.n = 0
}

// Wait sleeps a pseudo-random duration up to 2^min(n, Saturate) base
// units, then advances the iteration counter.
func (b *Backoff) Wait() {
	exp := b.n
	if exp > Saturate {
		exp = Saturate
	}
	bound := uint32(1) << exp
	jitter := fastrand.Uint32() % bound
	time.Sleep(time.Duration(jitter+1) * BaseUnit)
	b.n++
}
