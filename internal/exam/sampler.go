package exam

import "math/rand"

// DrawSample picks size distinct questions uniformly at random, without
// replacement. The process-wide source is goroutine-safe and every call
// draws independently; no shuffle state is shared between attempts.
//
// A pool smaller than size means an unpublished exam leaked through the
// listing/start gates, so it is reported as an internal invariant
// violation rather than a user error.
func DrawSample(pool []Question, size int) ([]Question, error) {
	if len(pool) < size {
		return nil, Errf(KindInternal, "sample of %d requested from pool of %d", size, len(pool))
	}
	idx := rand.Perm(len(pool))[:size]
	out := make([]Question, 0, size)
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out, nil
}
