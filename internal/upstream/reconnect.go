package upstream

import (
	"math/rand"
	"time"
)

// backoff computes exponential backoff with a bounded cap and ±20%
// jitter: initial 100ms, multiplier 2, capped at 30s.
type backoff struct {
	initial time.Duration
	cap     time.Duration
	mult    float64
	attempt int
}

func newBackoff() *backoff {
	return &backoff{initial: 100 * time.Millisecond, cap: 30 * time.Second, mult: 2}
}

// next returns the delay to wait before the next reconnect attempt and
// advances the attempt counter.
func (b *backoff) next() time.Duration {
	d := float64(b.initial)
	for i := 0; i < b.attempt; i++ {
		d *= b.mult
		if d > float64(b.cap) {
			d = float64(b.cap)
			break
		}
	}
	b.attempt++

	jitterFrac := 1 + (rand.Float64()*0.4 - 0.2) // +/-20%
	jittered := time.Duration(d * jitterFrac)
	if jittered < 0 {
		jittered = 0
	}
	return jittered
}

// reset restarts the backoff sequence, called once a connection has
// been healthy.
func (b *backoff) reset() { b.attempt = 0 }
