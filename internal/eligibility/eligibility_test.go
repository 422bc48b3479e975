package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/donor-registry/internal/model"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCheckNoDonation(t *testing.T) {
	r := Check(nil, time.Now())
	assert.True(t, r.Eligible)
	assert.Zero(t, r.DaysLeft)
	assert.Nil(t, r.NextEligibleDate)
}

func TestCheckDonatedToday(t *testing.T) {
	now := time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)
	r := Check(day(2024, 6, 15), now)
	assert.False(t, r.Eligible)
	assert.Equal(t, 92, r.DaysLeft) // Jun 15 -> Sep 15
	require.NotNil(t, r.NextEligibleDate)
	assert.Equal(t, "2024-09-15", r.NextEligibleDate.Format("2006-01-02"))
	assert.Contains(t, r.Message, "92 days left")
}

func TestCheckFourMonthsAgo(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	r := Check(day(2024, 2, 15), now)
	assert.True(t, r.Eligible)
	assert.Equal(t, "Eligible to donate", r.Message)
}

func TestCheckExactlyThreeMonths(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, Check(day(2024, 3, 15), now).Eligible)
	r := Check(day(2024, 3, 16), now)
	assert.False(t, r.Eligible)
	assert.Equal(t, 1, r.DaysLeft)
}

// Every day in a two-year span, against every possible last donation in the
// preceding 200 days: eligibility flips exactly at today - 3 months and the
// remaining-days count is always positive while ineligible.
func TestCheckProperties(t *testing.T) {
	start := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 730; i++ {
		now := start.AddDate(0, 0, i)
		today := model.DateOf(now).Time
		cutoff := today.AddDate(0, -CooldownMonths, 0)
		for back := 0; back <= 200; back++ {
			last := today.AddDate(0, 0, -back)
			r := Check(&last, now)
			if !last.After(cutoff) {
				if !r.Eligible {
					t.Fatalf("now=%s last=%s: want eligible", today.Format("2006-01-02"), last.Format("2006-01-02"))
				}
				continue
			}
			if r.Eligible || r.DaysLeft <= 0 {
				t.Fatalf("now=%s last=%s: want ineligible with days left, got %+v", today.Format("2006-01-02"), last.Format("2006-01-02"), r)
			}
			if r.DaysLeft > 93 {
				t.Fatalf("now=%s last=%s: days left %d exceeds three months", today.Format("2006-01-02"), last.Format("2006-01-02"), r.DaysLeft)
			}
		}
	}
}

func TestCheckIgnoresTimeOfDay(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 1, 0, time.UTC)
	last := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)
	assert.True(t, Check(&last, now).Eligible)
}

func TestFromString(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	r, err := FromString("", now)
	require.NoError(t, err)
	assert.True(t, r.Eligible)

	r, err = FromString("2024-06-01", now)
	require.NoError(t, err)
	assert.False(t, r.Eligible)

	_, err = FromString("01/06/2024", now)
	assert.Error(t, err)
}

func TestCheckDonor(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	recent := model.NewDate(2024, 5, 1)
	assert.False(t, CheckDonor(model.Donor{LastDonationDate: &recent}, now).Eligible)
	assert.True(t, CheckDonor(model.Donor{}, now).Eligible)
}
