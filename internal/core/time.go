package core

import "time"

// Epoch is the GRB time reference, 2000-01-01T12:00:00Z. Leap seconds are ignored.
var Epoch = time.Date(2000, time.January, 1, 12, 0, 0, 0, time.UTC)

// Time converts the payload header timestamp to wall time.
func (p *PayloadHeader) Time() time.Time {
	return Epoch.Add(time.Duration(p.SecondsSinceEpoch)*time.Second +
		time.Duration(p.MicrosecondsOfSecond)*time.Microsecond)
}

// HasTime reports whether the timestamp fields are set at all.
func (p *PayloadHeader) HasTime() bool {
	return p.SecondsSinceEpoch != 0 || p.MicrosecondsOfSecond != 0
}

// Time converts the secondary header day/millisecond fields to wall time.
func (h *SecondaryHeader) Time() time.Time {
	return Epoch.AddDate(0, 0, int(h.DaysSinceEpoch)).
		Add(time.Duration(h.MillisecondsOfDay) * time.Millisecond)
}
