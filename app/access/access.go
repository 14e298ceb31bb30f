// Package access decides whether a user may fetch documents.
package access

import "time"

// IsSubscribed reports whether a subscription expiring at expiresAt is active
// at now. The window is half-open: at the instant of expiry access is gone.
func IsSubscribed(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.After(now)
}

// Remaining returns how long the subscription still runs, or 0.
func Remaining(expiresAt *time.Time, now time.Time) time.Duration {
	if !IsSubscribed(expiresAt, now) {
		return 0
	}
	return expiresAt.Sub(now)
}

// DaysLeft rounds Remaining up to whole days.
func DaysLeft(expiresAt *time.Time, now time.Time) int {
	r := Remaining(expiresAt, now)
	if r <= 0 {
		return 0
	}
	const day = 24 * time.Hour
	return int((r + day - 1) / day)
}
