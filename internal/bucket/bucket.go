// Package bucket maps timestamps onto the one-hour wall-clock buckets used by
// the timing charts. All functions work in the location of the supplied time.
package bucket

import "time"

// HourLabel returns the label of the hour bucket containing t, e.g. "2PM-3PM".
// The last bucket of the day is "11PM-12AM".
func HourLabel(t time.Time) string {
	return labelForHour(t.Hour())
}

// HourRange returns the interval [start, end) of the wall-clock hour
// containing t. Normally an hour long; on a fall-back day the repeated hour
// spans both occurrences, so one label never maps to two buckets.
func HourRange(t time.Time) (start, end time.Time) {
	start = t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
	if prev := start.Add(-time.Hour); prev.Hour() == start.Hour() {
		start = prev
	}

	end = start.Add(time.Hour)
	for end.Hour() == start.Hour() {
		end = end.Add(time.Hour)
	}
	return start, end
}

// Contains reports whether ts falls in the hour bucket starting at start
func Contains(start, ts time.Time) bool {
	_, end := HourRange(start)
	return !ts.Before(start) && ts.Before(end)
}

// StartOfDay returns midnight of the day containing t
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// HourStarts returns the start of every hour bucket from the start of the day
// up to now, walking elapsed time rather than wall-clock hours. The bucket
// containing now is included once now is past its start, giving
// ceil((now - startOfDay) / 1h) entries. A skipped spring-forward hour yields
// no entry; a repeated fall-back hour yields a single two-hour entry, so on
// that day there is one entry fewer.
//
// Seeding the current hour differs from an exclusive seed that stops before
// it: the chart shows the running hour at zero instead of appending it on the
// first update.
func HourStarts(now time.Time) []time.Time {
	var starts []time.Time
	for s := StartOfDay(now); s.Before(now); {
		start, end := HourRange(s)
		starts = append(starts, start)
		s = end
	}
	return starts
}

// SinceStartOfDay returns the labels of HourStarts(now), in order
func SinceStartOfDay(now time.Time) []string {
	starts := HourStarts(now)
	labels := make([]string, len(starts))
	for i, start := range starts {
		labels[i] = HourLabel(start)
	}
	return labels
}

func labelForHour(hour int) string {
	return formatHour(hour) + "-" + formatHour((hour+1)%24)
}

func formatHour(hour int) string {
	return time.Date(2000, time.January, 1, hour, 0, 0, 0, time.UTC).Format("3PM")
}
