// Package practice computes progress figures from a student's practice log.
// Everything here is pure: callers pass the sessions and the current day.
package practice

import "time"

// DefaultStreakLimit bounds the backward walk when counting a streak.
const DefaultStreakLimit = 100

// Session is the part of a practice log row the analytics need. Day is
// interpreted as a calendar day; its clock part is ignored.
type Session struct {
	Day     time.Time
	Minutes int
}

type Options struct {
	// StreakLimit caps the number of days a streak can reach. Zero means
	// DefaultStreakLimit.
	StreakLimit int
}

type Stats struct {
	TotalMinutes       int `json:"total_minutes"`
	TotalSessions      int `json:"total_sessions"`
	DistinctDays       int `json:"distinct_days"`
	AverageMinutes     int `json:"average_minutes"`
	Streak             int `json:"streak"`
	ConsistencyPercent int `json:"consistency_percent"`
}

type dayKey struct {
	y int
	m time.Month
	d int
}

func keyOf(t time.Time) dayKey {
	y, m, d := t.Date()
	return dayKey{y, m, d}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func practiceDays(sessions []Session) map[dayKey]struct{} {
	days := make(map[dayKey]struct{}, len(sessions))
	for _, s := range sessions {
		days[keyOf(s.Day)] = struct{}{}
	}
	return days
}

// Summarize computes the dashboard figures for one student. today is the
// student's current calendar day.
func Summarize(sessions []Session, today time.Time, opts Options) Stats {
	var st Stats
	if len(sessions) == 0 {
		return st
	}
	for _, s := range sessions {
		st.TotalMinutes += s.Minutes
	}
	st.TotalSessions = len(sessions)
	st.AverageMinutes = st.TotalMinutes / st.TotalSessions

	days := practiceDays(sessions)
	st.DistinctDays = len(days)
	st.Streak = streak(days, today, opts.limit())
	st.ConsistencyPercent = monthConsistency(days, today)
	return st
}

// Streak returns the number of consecutive practice days ending today, or
// ending yesterday when nothing is logged yet today.
func Streak(sessions []Session, today time.Time, opts Options) int {
	if len(sessions) == 0 {
		return 0
	}
	return streak(practiceDays(sessions), today, opts.limit())
}

func streak(days map[dayKey]struct{}, today time.Time, limit int) int {
	day := midnight(today)
	if _, ok := days[keyOf(day)]; !ok {
		day = day.AddDate(0, 0, -1)
		if _, ok := days[keyOf(day)]; !ok {
			return 0
		}
	}
	n := 0
	for n < limit {
		if _, ok := days[keyOf(day)]; !ok {
			break
		}
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

// monthConsistency is the share of days from the first of today's month
// through today that have at least one session, as a whole percentage.
func monthConsistency(days map[dayKey]struct{}, today time.Time) int {
	start := midnight(today).AddDate(0, 0, 1-today.Day())
	elapsed := today.Day()
	hit := 0
	for i := 0; i < elapsed; i++ {
		if _, ok := days[keyOf(start.AddDate(0, 0, i))]; ok {
			hit++
		}
	}
	return hit * 100 / elapsed
}

func (o Options) limit() int {
	if o.StreakLimit <= 0 {
		return DefaultStreakLimit
	}
	return o.StreakLimit
}
