// Package donorlist filters, sorts and pages a donor snapshot that was
// already fetched from the backend.  Nothing here performs I/O.
package donorlist

import (
	"cmp"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/iliyamo/donor-registry/internal/eligibility"
	"github.com/iliyamo/donor-registry/internal/model"
)

// Bucket selects donors by eligibility.
type Bucket string

const (
	BucketAll         Bucket = "all"
	BucketEligible    Bucket = "eligible"
	BucketNotEligible Bucket = "not_eligible"
)

// SortKey names the field donors are ordered by.
type SortKey string

const (
	SortNone SortKey = ""
	SortName SortKey = "name"
	SortAge  SortKey = "age"
	SortDate SortKey = "date"
)

// Filter is the full search configuration of the donor directory.
type Filter struct {
	Search      string // name (case-insensitive) or phone substring
	BloodType   string // exact match
	District    string // exact match
	City        string // case-insensitive substring
	Eligibility Bucket
	SortBy      SortKey
	Descending  bool
}

// ParseFilter reads a Filter from query parameters.  Unknown bucket or sort
// values fall back to the defaults instead of failing the request.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Search:   strings.TrimSpace(q.Get("search")),
		District: strings.TrimSpace(q.Get("district")),
		City:     strings.TrimSpace(q.Get("city")),
	}
	if raw := q.Get("blood_type"); strings.TrimSpace(raw) != "" {
		if bt, err := model.ParseBloodType(raw); err == nil {
			f.BloodType = string(bt)
		} else {
			// keep the raw value so the filter matches nothing rather than everything
			f.BloodType = strings.TrimSpace(raw)
		}
	}
	switch b := Bucket(strings.ToLower(q.Get("eligibility"))); b {
	case BucketEligible, BucketNotEligible:
		f.Eligibility = b
	default:
		f.Eligibility = BucketAll
	}
	switch s := SortKey(strings.ToLower(q.Get("sort"))); s {
	case SortName, SortAge, SortDate:
		f.SortBy = s
	}
	f.Descending = strings.EqualFold(q.Get("order"), "desc")
	return f
}

// Apply returns the donors matching f in the requested order.  The input
// slice is never modified.  Sorting is stable; donors comparing equal keep
// their fetched order.
func Apply(donors []model.Donor, f Filter, now time.Time) []model.Donor {
	search := strings.ToLower(f.Search)
	city := strings.ToLower(f.City)

	out := make([]model.Donor, 0, len(donors))
	for _, d := range donors {
		if search != "" && !strings.Contains(strings.ToLower(d.Name), search) && !strings.Contains(d.Phone, f.Search) {
			continue
		}
		if f.BloodType != "" && string(d.BloodType) != f.BloodType {
			continue
		}
		if f.District != "" && d.District != f.District {
			continue
		}
		if city != "" && !strings.Contains(strings.ToLower(d.City), city) {
			continue
		}
		switch f.Eligibility {
		case BucketEligible:
			if !eligibility.CheckDonor(d, now).Eligible {
				continue
			}
		case BucketNotEligible:
			if eligibility.CheckDonor(d, now).Eligible {
				continue
			}
		}
		out = append(out, d)
	}

	if less := comparator(f.SortBy); less != nil {
		if f.Descending {
			asc := less
			less = func(a, b model.Donor) int { return asc(b, a) }
		}
		slices.SortStableFunc(out, less)
	}
	return out
}

func comparator(key SortKey) func(a, b model.Donor) int {
	switch key {
	case SortName:
		// A Collator keeps scratch buffers, so each Apply gets its own.
		col := collate.New(language.Und)
		return func(a, b model.Donor) int { return col.CompareString(a.Name, b.Name) }
	case SortAge:
		return func(a, b model.Donor) int { return cmp.Compare(a.Age, b.Age) }
	case SortDate:
		return func(a, b model.Donor) int { return compareDates(a.LastDonation(), b.LastDonation()) }
	}
	return nil
}

// compareDates orders a missing date before any real one.
func compareDates(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}
