package ncread

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimeUnits is a parsed CF "<unit> since <reference>" string.
type TimeUnits struct {
	Step      time.Duration
	Reference time.Time
}

var referenceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-1-2 15:4:5",
	"2006-1-2 15:4",
	"2006-01-02",
	"2006-1-2",
}

// ParseTimeUnits reads a CF time units attribute. Calendar months and years
// are rejected because they have no fixed length.
func ParseTimeUnits(s string) (TimeUnits, error) {
	var u TimeUnits
	unit, ref, ok := strings.Cut(strings.TrimSpace(s), " since ")
	if !ok {
		return u, fmt.Errorf("time units %q: want \"<unit> since <reference>\"", s)
	}
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "days", "day", "d":
		u.Step = 24 * time.Hour
	case "hours", "hour", "hrs", "hr", "h":
		u.Step = time.Hour
	case "minutes", "minute", "mins", "min":
		u.Step = time.Minute
	case "seconds", "second", "secs", "sec", "s":
		u.Step = time.Second
	case "milliseconds", "millisecond", "msec", "ms":
		u.Step = time.Millisecond
	default:
		return u, fmt.Errorf("time units %q: unsupported unit %q", s, unit)
	}

	ref = strings.TrimSpace(ref)
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, " GMT")
	for _, layout := range referenceLayouts {
		t, err := time.Parse(layout, ref)
		if err == nil {
			u.Reference = t.UTC()
			return u, nil
		}
	}
	return u, fmt.Errorf("time units %q: cannot parse reference %q", s, ref)
}

// Decode converts an offset in u's unit to UTC, rounded to the millisecond.
// Whole days go through AddDate so offsets centuries from the reference do
// not overflow a Duration.
func (u TimeUnits) Decode(v float64) time.Time {
	const day = float64(24 * time.Hour)
	total := v * float64(u.Step) / day
	days := math.Floor(total)
	rest := time.Duration((total - days) * day)
	return u.Reference.AddDate(0, 0, int(days)).Add(rest).Round(time.Millisecond).UTC()
}
