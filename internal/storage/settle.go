package storage

import "time"

// settlePollInterval is how often ExistsAfterSettle re-checks the path.
const settlePollInterval = 10 * time.Millisecond

// ExistsAfterSettle reports whether path appears within the wait window.
// It polls instead of sleeping a fixed interval, so a file that is
// already visible returns immediately and a slow flush gets the full
// window to land.
func ExistsAfterSettle(path string, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if Exists(path) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(settlePollInterval)
	}
}
