package pool

import (
	"math"
	"sync"
	"time"
)

// Default-pool configuration, matching the reference implementation's
// documented defaults: a generous worker ceiling, an effectively unbounded
// queue, and a 15-second idle reap.
const (
	DefaultMaxThreads = 2000
	DefaultIdleMillis = 15000
)

// DefaultMaxQueueLen is 2^32-1: "effectively unbounded" in the reference
// implementation's terms, spelled out rather than left as a true maxint so
// the intent (no meaningful backpressure at default settings) is explicit.
const DefaultMaxQueueLen = math.MaxUint32

var (
	defaultOnce sync.Once
	defaultPool *Pool
)

// Default returns the process-wide lazily-constructed pool, built on first
// use with the documented defaults. Safe for concurrent first-use.
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = New(DefaultMaxThreads, DefaultMaxQueueLen, DefaultIdleMillis*time.Millisecond, 0)
	})
	return defaultPool
}
