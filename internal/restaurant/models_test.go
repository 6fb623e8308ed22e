package restaurant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleMatches(t *testing.T) {
	sched := ReportSchedule{Days: []int{1, 5}, Time: "18:00"}
	tolerance := 15 * time.Minute

	// 2025-06-06 is a Friday.
	friday := func(hh, mm int) time.Time {
		return time.Date(2025, 6, 6, hh, mm, 0, 0, time.UTC)
	}

	assert.True(t, sched.Matches(friday(18, 0), tolerance))
	assert.True(t, sched.Matches(friday(18, 14), tolerance))
	assert.False(t, sched.Matches(friday(18, 15), tolerance), "tolerance is half-open")
	assert.False(t, sched.Matches(friday(17, 59), tolerance), "before the slot")

	saturday := time.Date(2025, 6, 7, 18, 0, 0, 0, time.UTC)
	assert.False(t, sched.Matches(saturday, tolerance))

	monday := time.Date(2025, 6, 2, 18, 5, 0, 0, time.UTC)
	assert.True(t, sched.Matches(monday, tolerance))
}

func TestScheduleSundayIsSeven(t *testing.T) {
	sched := ReportSchedule{Days: []int{7}, Time: "10:00"}
	sunday := time.Date(2025, 6, 8, 10, 5, 0, 0, time.UTC)
	assert.True(t, sched.Matches(sunday, 15*time.Minute))
}

func TestScheduleEmptyNeverMatches(t *testing.T) {
	now := time.Date(2025, 6, 6, 18, 0, 0, 0, time.UTC)
	assert.False(t, ReportSchedule{}.Matches(now, 15*time.Minute))
	assert.False(t, ReportSchedule{Days: []int{5}}.Matches(now, 15*time.Minute))
	assert.False(t, ReportSchedule{Days: []int{5}, Time: "not-a-time"}.Matches(now, 15*time.Minute))
}

func TestBound(t *testing.T) {
	var r *Restaurant
	assert.False(t, r.Bound())
	assert.False(t, (&Restaurant{}).Bound())

	chat := int64(-1001234567890)
	assert.True(t, (&Restaurant{ChatID: &chat}).Bound())

	zero := int64(0)
	assert.False(t, (&Restaurant{ChatID: &zero}).Bound())
}
