// Package lifecycle computes expiry urgency and drives items through their
// status transitions.
package lifecycle

import (
	"math"
	"time"

	"github.com/erazemk/eatmefirst/internal/model"
)

// DefaultExpiringSoonDays is the expiring-soon threshold used when none is
// configured.
const DefaultExpiringSoonDays = 3

// Urgency is the display tier of an item's remaining shelf life.
type Urgency string

// Urgency tiers.
const (
	Critical Urgency = "critical"
	Warning  Urgency = "warning"
	Safe     Urgency = "safe"
)

// Bucket groups expiring items for reminders.
type Bucket string

// Reminder buckets.
const (
	BucketToday    Bucket = "today"
	BucketTomorrow Bucket = "tomorrow"
	BucketSoon     Bucket = "soon"
)

// Today returns the calendar date of now in now's location.
func Today(now time.Time) model.Date {
	return model.DateOf(now)
}

// DaysRemaining returns the number of days until expiry, rounded up. It is 0
// on the expiry day itself and negative once the date has passed. The
// calculation uses now's wall clock so DST changes do not shift the result.
func DaysRemaining(expiry model.Date, now time.Time) int {
	y, m, d := now.Date()
	wall := time.Date(y, m, d, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
	days := math.Ceil(expiry.Midnight().Sub(wall).Hours() / 24)
	return int(days)
}

// Classify maps days remaining to an urgency tier.
func Classify(days int) Urgency {
	switch {
	case days <= 3:
		return Critical
	case days <= 7:
		return Warning
	default:
		return Safe
	}
}

// BucketOf maps days remaining to a reminder bucket.
func BucketOf(days int) Bucket {
	switch {
	case days <= 0:
		return BucketToday
	case days == 1:
		return BucketTomorrow
	default:
		return BucketSoon
	}
}

// IsExpiringSoon reports whether an item with the given days remaining is
// within the threshold. Already expired items count.
func IsExpiringSoon(days, threshold int) bool {
	return days <= threshold
}

// Threshold returns the last date that still counts as expiring soon.
func Threshold(now time.Time, days int) model.Date {
	return Today(now).AddDays(days)
}
