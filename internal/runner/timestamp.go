package runner

import (
	"fmt"
	"time"
)

// Timestamp renders t in the locale-independent bracketed format used to
// bracket every subprocess invocation in a run log:
//
//	[Day Mon DD HH:MM:SS.FFFF TZ YYYY]
//
// Fractional seconds are always four digits. The weekday and month names
// are the fixed English abbreviations rather than whatever the process
// locale happens to supply, so run logs are diffable across machines.
func Timestamp(t time.Time) string {
	frac := t.Nanosecond() / 1e5 // four decimal digits
	return fmt.Sprintf("[%s %s %02d %02d:%02d:%02d.%04d %s %d]",
		weekdayAbbrev[t.Weekday()],
		monthAbbrev[t.Month()],
		t.Day(), t.Hour(), t.Minute(), t.Second(), frac,
		t.Format("MST"), t.Year())
}

var weekdayAbbrev = map[time.Weekday]string{
	time.Sunday:    "Sun",
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
}

var monthAbbrev = map[time.Month]string{
	time.January:   "Jan",
	time.February:  "Feb",
	time.March:     "Mar",
	time.April:     "Apr",
	time.May:       "May",
	time.June:      "Jun",
	time.July:      "Jul",
	time.August:    "Aug",
	time.September: "Sep",
	time.October:   "Oct",
	time.November:  "Nov",
	time.December:  "Dec",
}
