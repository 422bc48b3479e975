package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/donorlist"
	"github.com/iliyamo/donor-registry/internal/eligibility"
	"github.com/iliyamo/donor-registry/internal/model"
)

const donorsTable = "donors"

// DonorRepo reads and writes the donors table.
type DonorRepo struct {
	db *backend.Client
}

func NewDonorRepo(db *backend.Client) *DonorRepo {
	return &DonorRepo{db: db}
}

// donorRow is the insert shape: server-managed timestamps are left out.
type donorRow struct {
	ID               string      `json:"id"`
	UserID           *string     `json:"user_id"`
	Name             string      `json:"name"`
	Phone            string      `json:"phone"`
	Email            *string     `json:"email"`
	BloodType        string      `json:"blood_type"`
	District         string      `json:"district"`
	City             string      `json:"city"`
	Age              int         `json:"age"`
	LastDonationDate *model.Date `json:"last_donation_date"`
}

// DonorQuery is a server-side search with the directory's matching rules:
// Search hits the name (case-insensitive) or the phone, District and
// BloodType match exactly and City matches a case-insensitive substring.
type DonorQuery struct {
	Search     string
	BloodType  string
	District   string
	City       string
	SortBy     donorlist.SortKey
	Descending bool
	Page       int
	PageSize   int
}

// ListAll returns every donor, newest first.  The public directory runs
// the in-memory pipeline over this list.
func (r *DonorRepo) ListAll(ctx context.Context) ([]model.Donor, error) {
	donors := []model.Donor{}
	if _, err := r.db.From(donorsTable).Select("*").Order("created_at", false).Order("id", true).Execute(ctx, &donors); err != nil {
		return nil, err
	}
	return donors, nil
}

// Search filters, sorts and pages on the backend and returns one page with
// the exact total.  Sorting follows the backend's collation.
func (r *DonorRepo) Search(ctx context.Context, q DonorQuery) (donorlist.Page[model.Donor], error) {
	page, size := donorlist.NormalizePage(q.Page, q.PageSize)
	sel := r.db.From(donorsTable).Select("*")
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		sel.Or(
			backend.Filter{Column: "name", Op: backend.OpILike, Value: pattern},
			backend.Filter{Column: "phone", Op: backend.OpILike, Value: pattern},
		)
	}
	if s := strings.TrimSpace(q.BloodType); s != "" {
		// an unknown type stays as typed and matches nothing
		if bt, err := model.ParseBloodType(s); err == nil {
			s = string(bt)
		}
		sel.Eq("blood_type", s)
	}
	if s := strings.TrimSpace(q.District); s != "" {
		sel.Eq("district", s)
	}
	if s := strings.TrimSpace(q.City); s != "" {
		sel.ILike("city", "%"+escapeLike(s)+"%")
	}
	switch q.SortBy {
	case donorlist.SortName:
		sel.Order("name", !q.Descending)
	case donorlist.SortAge:
		sel.Order("age", !q.Descending)
	case donorlist.SortDate:
		sel.Order("last_donation_date", !q.Descending)
	default:
		sel.Order("created_at", false)
	}
	sel.Order("id", true)

	from, ok := donorlist.Offset(page, size)
	if !ok {
		// past any possible row; only the total is needed
		var head []model.Donor
		total, err := sel.Range(0, 0).Count().Execute(ctx, &head)
		if err != nil {
			return donorlist.Page[model.Donor]{}, err
		}
		return donorlist.NewPage([]model.Donor{}, page, size, max(total, 0)), nil
	}
	donors := []model.Donor{}
	total, err := sel.Range(from, from+size-1).Count().Execute(ctx, &donors)
	if err != nil {
		return donorlist.Page[model.Donor]{}, err
	}
	if total < 0 {
		total = len(donors)
	}
	return donorlist.NewPage(donors, page, size, total), nil
}

func (r *DonorRepo) GetByID(ctx context.Context, id string) (*model.Donor, error) {
	var d model.Donor
	if err := r.db.From(donorsTable).Select("*").Eq("id", id).Single(ctx, &d); err != nil {
		return nil, notFound(err, ErrDonorNotFound)
	}
	return &d, nil
}

// GetByUserID returns the donor record owned by an auth account.
func (r *DonorRepo) GetByUserID(ctx context.Context, userID string) (*model.Donor, error) {
	var d model.Donor
	if err := r.db.From(donorsTable).Select("*").Eq("user_id", userID).Single(ctx, &d); err != nil {
		return nil, notFound(err, ErrDonorNotFound)
	}
	return &d, nil
}

// Create inserts a donor from validated input.  userID is nil for donors
// entered by an admin.
func (r *DonorRepo) Create(ctx context.Context, in model.DonorInput, userID *string) (*model.Donor, error) {
	row := donorRow{
		ID:               uuid.NewString(),
		UserID:           userID,
		Name:             in.Name,
		Phone:            in.Phone,
		BloodType:        in.BloodType,
		District:         in.District,
		City:             in.City,
		Age:              in.Age,
		LastDonationDate: in.LastDonationDate,
	}
	if in.Email != "" {
		e := in.Email
		row.Email = &e
	}
	if row.LastDonationDate != nil && row.LastDonationDate.IsZero() {
		row.LastDonationDate = nil
	}
	var out []model.Donor
	if err := r.db.From(donorsTable).Insert(row).Execute(ctx, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		// the row API may hide the new row from the caller; read it back
		return r.GetByID(ctx, row.ID)
	}
	return &out[0], nil
}

// Update applies the fields present in patch.
func (r *DonorRepo) Update(ctx context.Context, id string, patch model.DonorPatch) (*model.Donor, error) {
	cols := patchColumns(patch)
	if len(cols) == 0 {
		return r.GetByID(ctx, id)
	}
	return r.update(ctx, id, cols)
}

// RecordDonation sets the last donation day.
func (r *DonorRepo) RecordDonation(ctx context.Context, id string, day model.Date) (*model.Donor, error) {
	return r.update(ctx, id, map[string]any{"last_donation_date": day})
}

// SetProfilePicture stores the public URL of the donor's picture.  An
// empty url clears it.
func (r *DonorRepo) SetProfilePicture(ctx context.Context, id, url string) (*model.Donor, error) {
	var v any
	if url != "" {
		v = url
	}
	return r.update(ctx, id, map[string]any{"profile_picture_url": v})
}

func (r *DonorRepo) update(ctx context.Context, id string, cols map[string]any) (*model.Donor, error) {
	var out []model.Donor
	if err := r.db.From(donorsTable).Update(cols).Eq("id", id).Execute(ctx, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrDonorNotFound
	}
	return &out[0], nil
}

func (r *DonorRepo) Delete(ctx context.Context, id string) error {
	return r.db.From(donorsTable).Delete().Eq("id", id).Execute(ctx, nil)
}

// DonorStats summarizes the registry for the admin dashboard.
type DonorStats struct {
	Total        int                     `json:"total"`
	Eligible     int                     `json:"eligible"`
	NotEligible  int                     `json:"not_eligible"`
	ByBloodType  map[model.BloodType]int `json:"by_blood_type"`
	WithPictures int                     `json:"with_pictures"`
}

// Stats computes totals as of now.
func (r *DonorRepo) Stats(ctx context.Context, now time.Time) (DonorStats, error) {
	var rows []model.Donor
	if _, err := r.db.From(donorsTable).Select("id,blood_type,last_donation_date,profile_picture_url").Execute(ctx, &rows); err != nil {
		return DonorStats{}, err
	}
	st := DonorStats{ByBloodType: make(map[model.BloodType]int, len(model.BloodTypes))}
	for _, bt := range model.BloodTypes {
		st.ByBloodType[bt] = 0
	}
	for _, d := range rows {
		st.Total++
		st.ByBloodType[d.BloodType]++
		if eligibility.CheckDonor(d, now).Eligible {
			st.Eligible++
		} else {
			st.NotEligible++
		}
		if d.ProfilePictureURL != nil && *d.ProfilePictureURL != "" {
			st.WithPictures++
		}
	}
	return st, nil
}

// patchColumns lists only the fields a patch sets.  An empty email clears
// the column.
func patchColumns(p model.DonorPatch) map[string]any {
	cols := map[string]any{}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Phone != nil {
		cols["phone"] = *p.Phone
	}
	if p.Email != nil {
		if *p.Email == "" {
			cols["email"] = nil
		} else {
			cols["email"] = *p.Email
		}
	}
	if p.BloodType != nil {
		cols["blood_type"] = *p.BloodType
	}
	if p.District != nil {
		cols["district"] = *p.District
	}
	if p.City != nil {
		cols["city"] = *p.City
	}
	if p.Age != nil {
		cols["age"] = *p.Age
	}
	if p.LastDonationDate != nil {
		if p.LastDonationDate.IsZero() {
			cols["last_donation_date"] = nil
		} else {
			cols["last_donation_date"] = *p.LastDonationDate
		}
	}
	return cols
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
