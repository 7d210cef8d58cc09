package practice

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSummarizeGappedMonth(t *testing.T) {
	sessions := []Session{
		{Day: day(2025, 6, 1), Minutes: 30},
		{Day: day(2025, 6, 2), Minutes: 45},
		{Day: day(2025, 6, 4), Minutes: 20},
	}

	st := Summarize(sessions, day(2025, 6, 4), Options{})

	assert.Equal(t, 95, st.TotalMinutes)
	assert.Equal(t, 3, st.TotalSessions)
	assert.Equal(t, 3, st.DistinctDays)
	assert.Equal(t, 1, st.Streak)
	assert.Equal(t, 31, st.AverageMinutes)
	assert.Equal(t, 75, st.ConsistencyPercent)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Stats{}, Summarize(nil, day(2025, 6, 4), Options{}))
	assert.Equal(t, 0, Streak(nil, day(2025, 6, 4), Options{}))
}

func TestTotalMinutesOrderIndependent(t *testing.T) {
	sessions := []Session{
		{Day: day(2025, 5, 30), Minutes: 10},
		{Day: day(2025, 6, 1), Minutes: 25},
		{Day: day(2025, 6, 1), Minutes: 5},
		{Day: day(2025, 6, 3), Minutes: 60},
		{Day: day(2025, 6, 4), Minutes: 15},
	}
	today := day(2025, 6, 4)
	want := Summarize(sessions, today, Options{})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]Session(nil), sessions...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Summarize(shuffled, today, Options{}))
	}
	assert.Equal(t, 115, want.TotalMinutes)
	assert.Equal(t, 4, want.DistinctDays)
}

func TestStreak(t *testing.T) {
	today := day(2025, 6, 10)

	tests := []struct {
		name     string
		sessions []Session
		opts     Options
		want     int
	}{
		{
			name:     "single session today",
			sessions: []Session{{Day: today, Minutes: 20}},
			want:     1,
		},
		{
			name:     "single session yesterday",
			sessions: []Session{{Day: day(2025, 6, 9), Minutes: 20}},
			want:     1,
		},
		{
			name:     "latest session older than yesterday",
			sessions: []Session{{Day: day(2025, 6, 8), Minutes: 20}, {Day: day(2025, 6, 7), Minutes: 20}},
			want:     0,
		},
		{
			name: "consecutive days ending today",
			sessions: []Session{
				{Day: day(2025, 6, 10)}, {Day: day(2025, 6, 9)}, {Day: day(2025, 6, 8)},
			},
			want: 3,
		},
		{
			name: "gap resets the walk",
			sessions: []Session{
				{Day: day(2025, 6, 10)}, {Day: day(2025, 6, 9)}, {Day: day(2025, 6, 7)}, {Day: day(2025, 6, 6)},
			},
			want: 2,
		},
		{
			name: "consecutive days ending yesterday",
			sessions: []Session{
				{Day: day(2025, 6, 9)}, {Day: day(2025, 6, 8)}, {Day: day(2025, 6, 7)},
			},
			want: 3,
		},
		{
			name: "several sessions on one day count once",
			sessions: []Session{
				{Day: day(2025, 6, 10).Add(9 * time.Hour)}, {Day: day(2025, 6, 10).Add(18 * time.Hour)}, {Day: day(2025, 6, 9)},
			},
			want: 2,
		},
		{
			name:     "limit caps the walk",
			sessions: consecutive(today, 10),
			opts:     Options{StreakLimit: 4},
			want:     4,
		},
		{
			name:     "default limit",
			sessions: consecutive(today, 150),
			want:     DefaultStreakLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(tt.sessions, today, tt.opts))
		})
	}
}

func TestConsistencyUsesCurrentMonthOnly(t *testing.T) {
	sessions := []Session{
		{Day: day(2025, 5, 31), Minutes: 30},
		{Day: day(2025, 6, 1), Minutes: 30},
		{Day: day(2025, 6, 2), Minutes: 30},
	}

	st := Summarize(sessions, day(2025, 6, 10), Options{})
	assert.Equal(t, 20, st.ConsistencyPercent)

	st = Summarize(sessions, day(2025, 6, 2), Options{})
	assert.Equal(t, 100, st.ConsistencyPercent)
}

func consecutive(end time.Time, n int) []Session {
	out := make([]Session, n)
	for i := range out {
		out[i] = Session{Day: end.AddDate(0, 0, -i), Minutes: 10}
	}
	return out
}
