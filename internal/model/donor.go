package model

import (
    "strings"
    "time"
)

const (
    MinDonorAge = 18
    MaxDonorAge = 65
)

// Donor represents a registered blood donor as stored in the `donors`
// table.  The JSON tags double as column names because rows travel
// through the backend facade as JSON in both storage drivers.
//
// Fields:
//  ID                – opaque identifier (UUID).
//  UserID            – auth account that owns the record; nil for donors
//                      entered by an admin.
//  Name, Phone       – contact details shown in the public directory.
//  Email             – optional contact address.
//  BloodType         – one of the eight ABO/Rh groups.
//  District, City    – location used for search.
//  Age               – between 18 and 65 when present.
//  LastDonationDate  – nil when the donor has never given blood.
//  ProfilePictureURL – public storage URL, nil when no picture uploaded.
type Donor struct {
    ID                string    `json:"id"`
    UserID            *string   `json:"user_id"`
    Name              string    `json:"name"`
    Phone             string    `json:"phone"`
    Email             *string   `json:"email"`
    BloodType         BloodType `json:"blood_type"`
    District          string    `json:"district"`
    City              string    `json:"city"`
    Age               int       `json:"age"`
    LastDonationDate  *Date     `json:"last_donation_date"`
    ProfilePictureURL *string   `json:"profile_picture_url"`
    CreatedAt         time.Time `json:"created_at"`
    UpdatedAt         time.Time `json:"updated_at"`
}

// LastDonation returns the last donation day as a time pointer, the shape
// the eligibility calculator expects.
func (d Donor) LastDonation() *time.Time {
    if d.LastDonationDate == nil || d.LastDonationDate.IsZero() {
        return nil
    }
    t := d.LastDonationDate.Time
    return &t
}

// DonorInput is the full field list accepted when a donor is created,
// either at registration or by an admin.
type DonorInput struct {
    Name             string `json:"name"`
    Phone            string `json:"phone"`
    Email            string `json:"email"`
    BloodType        string `json:"blood_type"`
    District         string `json:"district"`
    City             string `json:"city"`
    Age              int    `json:"age"`
    LastDonationDate *Date  `json:"last_donation_date"`
}

// Normalize trims every free-text field and canonicalizes the blood type.
func (in *DonorInput) Normalize() {
    in.Name = strings.TrimSpace(in.Name)
    in.Phone = strings.TrimSpace(in.Phone)
    in.Email = strings.ToLower(strings.TrimSpace(in.Email))
    in.District = strings.TrimSpace(in.District)
    in.City = strings.TrimSpace(in.City)
    if bt, err := ParseBloodType(in.BloodType); err == nil {
        in.BloodType = string(bt)
    }
}

// Validate checks the invariants of a new donor record.  now decides what
// "today" means for the last donation date.
func (in DonorInput) Validate(now time.Time) error {
    v := &ValidationError{}
    if in.Name == "" {
        v.add("name", "is required")
    }
    if in.Phone == "" {
        v.add("phone", "is required")
    } else if !validPhone(in.Phone) {
        v.add("phone", "must contain 7 to 15 digits")
    }
    if in.Email != "" && !validEmail(in.Email) {
        v.add("email", "is not a valid address")
    }
    if !BloodType(in.BloodType).Valid() {
        v.add("blood_type", "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-")
    }
    if in.District == "" {
        v.add("district", "is required")
    }
    if in.City == "" {
        v.add("city", "is required")
    }
    if in.Age < MinDonorAge || in.Age > MaxDonorAge {
        v.add("age", "must be between 18 and 65")
    }
    checkDonationDate(v, in.LastDonationDate, now)
    return v.orNil()
}

// DonorPatch carries a partial update; nil fields are left untouched.
type DonorPatch struct {
    Name             *string `json:"name"`
    Phone            *string `json:"phone"`
    Email            *string `json:"email"`
    BloodType        *string `json:"blood_type"`
    District         *string `json:"district"`
    City             *string `json:"city"`
    Age              *int    `json:"age"`
    LastDonationDate *Date   `json:"last_donation_date"`
}

// Normalize mirrors DonorInput.Normalize for the fields that are set.
func (p *DonorPatch) Normalize() {
    trim := func(s *string) {
        if s != nil {
            *s = strings.TrimSpace(*s)
        }
    }
    trim(p.Name)
    trim(p.Phone)
    trim(p.District)
    trim(p.City)
    if p.Email != nil {
        e := strings.ToLower(strings.TrimSpace(*p.Email))
        p.Email = &e
    }
    if p.BloodType != nil {
        if bt, err := ParseBloodType(*p.BloodType); err == nil {
            s := string(bt)
            p.BloodType = &s
        }
    }
}

// Empty reports whether the patch changes nothing.
func (p DonorPatch) Empty() bool {
    return p.Name == nil && p.Phone == nil && p.Email == nil && p.BloodType == nil &&
        p.District == nil && p.City == nil && p.Age == nil && p.LastDonationDate == nil
}

// Validate applies the same rules as DonorInput to the fields present.
func (p DonorPatch) Validate(now time.Time) error {
    v := &ValidationError{}
    if p.Name != nil && *p.Name == "" {
        v.add("name", "cannot be empty")
    }
    if p.Phone != nil && !validPhone(*p.Phone) {
        v.add("phone", "must contain 7 to 15 digits")
    }
    if p.Email != nil && *p.Email != "" && !validEmail(*p.Email) {
        v.add("email", "is not a valid address")
    }
    if p.BloodType != nil && !BloodType(*p.BloodType).Valid() {
        v.add("blood_type", "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-")
    }
    if p.District != nil && *p.District == "" {
        v.add("district", "cannot be empty")
    }
    if p.City != nil && *p.City == "" {
        v.add("city", "cannot be empty")
    }
    if p.Age != nil && (*p.Age < MinDonorAge || *p.Age > MaxDonorAge) {
        v.add("age", "must be between 18 and 65")
    }
    checkDonationDate(v, p.LastDonationDate, now)
    return v.orNil()
}

func checkDonationDate(v *ValidationError, d *Date, now time.Time) {
    if d == nil || d.IsZero() {
        return
    }
    if d.After(DateOf(now).Time) {
        v.add("last_donation_date", "cannot be in the future")
    }
}
