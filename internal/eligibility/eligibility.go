// Package eligibility decides whether a donor may give blood again.  It is
// the single home of the cooldown rule; every caller (public directory,
// profile, admin dashboard) goes through Check.
package eligibility

import (
	"fmt"
	"time"

	"github.com/iliyamo/donor-registry/internal/model"
)

// CooldownMonths is the minimum gap between two donations.  It is counted
// in calendar months, which is roughly 90 days.
const CooldownMonths = 3

// Result is the outcome of an eligibility check.
type Result struct {
	Eligible         bool       `json:"eligible"`
	Message          string     `json:"message"`
	DaysLeft         int        `json:"days_left"`
	NextEligibleDate *time.Time `json:"next_eligible_date,omitempty"`
}

// Check applies the cooldown rule.  A donor with no recorded donation is
// eligible.  Otherwise the donor is eligible once the last donation day is
// on or before today minus CooldownMonths.  Both dates are compared as UTC
// calendar days.
func Check(last *time.Time, now time.Time) Result {
	if last == nil {
		return Result{Eligible: true, Message: "Eligible to donate (no previous donation recorded)"}
	}
	today := model.DateOf(now).Time
	lastDay := model.DateOf(*last).Time
	cutoff := today.AddDate(0, -CooldownMonths, 0)
	if !lastDay.After(cutoff) {
		return Result{Eligible: true, Message: "Eligible to donate"}
	}

	next := lastDay.AddDate(0, CooldownMonths, 0)
	days := int(next.Sub(today).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return Result{
		Eligible:         false,
		Message:          fmt.Sprintf("Not eligible yet: %d days left until next donation", days),
		DaysLeft:         days,
		NextEligibleDate: &next,
	}
}

// CheckDonor is Check applied to a donor record.
func CheckDonor(d model.Donor, now time.Time) Result {
	return Check(d.LastDonation(), now)
}

// FromString parses a last-donation date and checks it.  An empty string
// means no prior donation; anything else must be a valid date.
func FromString(s string, now time.Time) (Result, error) {
	if s == "" {
		return Check(nil, now), nil
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return Result{}, err
	}
	t := d.Time
	return Check(&t, now), nil
}
