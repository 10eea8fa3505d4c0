// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current wall-clock time in UTC. All persisted and
// compared timestamps in the service go through this helper.
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowRFC3339 returns the current UTC time formatted as RFC3339
func UTCNowRFC3339() string {
	return UTCNow().Format(time.RFC3339)
}

// TimeToUTC normalizes a caller-supplied time to UTC
func TimeToUTC(t time.Time) time.Time {
	return t.UTC()
}
