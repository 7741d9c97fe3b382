// Package globaltime is the process clock. Tests pin it with SetMockTime.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
	mocked  bool
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// StoreUTC is UTC truncated to the millisecond precision article stores keep.
func StoreUTC() time.Time {
	return UTC().Truncate(time.Millisecond)
}

func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
	mocked = true
}

// Advance moves a mocked clock forward by d. It is a no-op on the real clock.
func Advance(d time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if !mocked {
		return
	}
	next := nowFunc().Add(d)
	nowFunc = func() time.Time { return next }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
	mocked = false
}
