package practice

import (
	"strconv"
	"time"
)

// WeeksShown is the number of trailing weeks in the progress chart.
const WeeksShown = 4

// WeekBucket sums sessions whose day falls in [Start, End).
type WeekBucket struct {
	Label    string    `json:"label"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Minutes  int       `json:"minutes"`
	Sessions int       `json:"sessions"`
}

// WeekStart returns the Monday of the week containing t.
func WeekStart(t time.Time) time.Time {
	day := midnight(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Weekly buckets sessions into the week containing ref and the three weeks
// before it, oldest first. Weeks start on Monday. Sessions outside the
// 28 covered days are ignored.
func Weekly(sessions []Session, ref time.Time) []WeekBucket {
	current := WeekStart(ref)
	first := current.AddDate(0, 0, -7*(WeeksShown-1))

	buckets := make([]WeekBucket, WeeksShown)
	for i := range buckets {
		start := first.AddDate(0, 0, 7*i)
		buckets[i] = WeekBucket{
			Label: weekLabel(WeeksShown - 1 - i),
			Start: start,
			End:   start.AddDate(0, 0, 7),
		}
	}

	for _, s := range sessions {
		day := midnight(s.Day)
		if day.Before(first) || !day.Before(buckets[WeeksShown-1].End) {
			continue
		}
		i := int(day.Sub(first).Hours()/24) / 7
		buckets[i].Minutes += s.Minutes
		buckets[i].Sessions++
	}
	return buckets
}

func weekLabel(weeksAgo int) string {
	switch weeksAgo {
	case 0:
		return "This week"
	case 1:
		return "Last week"
	default:
		return strconv.Itoa(weeksAgo) + " weeks ago"
	}
}
