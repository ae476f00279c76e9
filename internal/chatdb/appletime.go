package chatdb

import "time"

// AppleTime is a store-native timestamp: integer nanoseconds since the
// Apple epoch (2001-01-01 UTC). The store and the checkpoint both use this
// unit; wall-clock values only appear at the conversion boundary below.
// Never compare an AppleTime against a Unix timestamp.
type AppleTime int64

var appleEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// FromWallClock converts a wall-clock time to store-native nanoseconds.
func FromWallClock(t time.Time) AppleTime {
	return AppleTime(t.Sub(appleEpoch).Nanoseconds())
}

// WallClock converts a store-native timestamp to wall-clock time.
func (t AppleTime) WallClock() time.Time {
	return appleEpoch.Add(time.Duration(t))
}

// FromRaw normalizes a raw store value. Older store versions wrote seconds
// rather than nanoseconds; anything below the threshold is treated as
// seconds and scaled up.
func FromRaw(v int64) AppleTime {
	if v > 0 && v < 1_000_000_000_000 {
		return AppleTime(v * int64(time.Second))
	}
	return AppleTime(v)
}
