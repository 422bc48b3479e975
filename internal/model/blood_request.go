package model

import (
    "strings"
    "time"
)

// Blood request statuses.
const (
    RequestOpen      = "open"
    RequestFulfilled = "fulfilled"
)

// BloodRequest is a public plea for a specific blood group.
type BloodRequest struct {
    ID           string    `json:"id"`
    PatientName  string    `json:"patient_name"`
    BloodType    BloodType `json:"blood_type"`
    Units        int       `json:"units"`
    Hospital     string    `json:"hospital"`
    District     string    `json:"district"`
    City         string    `json:"city"`
    ContactPhone string    `json:"contact_phone"`
    NeededBy     *Date     `json:"needed_by"`
    Status       string    `json:"status"`
    CreatedAt    time.Time `json:"created_at"`
}

// BloodRequestInput is the accepted field list for a new request.
type BloodRequestInput struct {
    PatientName  string `json:"patient_name"`
    BloodType    string `json:"blood_type"`
    Units        int    `json:"units"`
    Hospital     string `json:"hospital"`
    District     string `json:"district"`
    City         string `json:"city"`
    ContactPhone string `json:"contact_phone"`
    NeededBy     *Date  `json:"needed_by"`
}

func (in *BloodRequestInput) Normalize() {
    in.PatientName = strings.TrimSpace(in.PatientName)
    in.Hospital = strings.TrimSpace(in.Hospital)
    in.District = strings.TrimSpace(in.District)
    in.City = strings.TrimSpace(in.City)
    in.ContactPhone = strings.TrimSpace(in.ContactPhone)
    if bt, err := ParseBloodType(in.BloodType); err == nil {
        in.BloodType = string(bt)
    }
}

func (in BloodRequestInput) Validate(now time.Time) error {
    v := &ValidationError{}
    if in.PatientName == "" {
        v.add("patient_name", "is required")
    }
    if !BloodType(in.BloodType).Valid() {
        v.add("blood_type", "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-")
    }
    if in.Units < 1 || in.Units > 20 {
        v.add("units", "must be between 1 and 20")
    }
    if in.Hospital == "" {
        v.add("hospital", "is required")
    }
    if in.District == "" {
        v.add("district", "is required")
    }
    if !validPhone(in.ContactPhone) {
        v.add("contact_phone", "must contain 7 to 15 digits")
    }
    if in.NeededBy != nil && !in.NeededBy.IsZero() && in.NeededBy.Before(DateOf(now).Time) {
        v.add("needed_by", "cannot be in the past")
    }
    return v.orNil()
}
