package model

import (
    "fmt"
    "strings"
)

// BloodType is one of the eight ABO/Rh groups.
type BloodType string

const (
    BloodAPos  BloodType = "A+"
    BloodANeg  BloodType = "A-"
    BloodBPos  BloodType = "B+"
    BloodBNeg  BloodType = "B-"
    BloodABPos BloodType = "AB+"
    BloodABNeg BloodType = "AB-"
    BloodOPos  BloodType = "O+"
    BloodONeg  BloodType = "O-"
)

// BloodTypes lists every accepted group in display order.
var BloodTypes = []BloodType{
    BloodAPos, BloodANeg, BloodBPos, BloodBNeg,
    BloodABPos, BloodABNeg, BloodOPos, BloodONeg,
}

// Valid reports whether b is one of the eight groups.
func (b BloodType) Valid() bool {
    for _, t := range BloodTypes {
        if b == t {
            return true
        }
    }
    return false
}

// ParseBloodType normalizes user input.  A trailing space is read as "+"
// because an unescaped plus sign in a query string decodes to a space.
func ParseBloodType(s string) (BloodType, error) {
    up := strings.ToUpper(strings.TrimLeft(s, " "))
    t := strings.TrimSpace(up)
    if t != "" && !strings.HasSuffix(t, "+") && !strings.HasSuffix(t, "-") && strings.HasSuffix(up, " ") {
        t += "+"
    }
    bt := BloodType(t)
    if !bt.Valid() {
        return "", fmt.Errorf("unknown blood type %q", s)
    }
    return bt, nil
}
