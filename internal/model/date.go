package model

import (
    "bytes"
    "fmt"
    "strings"
    "time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day stored without a time of day.  The hosted backend
// returns DATE columns as "2006-01-02" while the MySQL driver hands back a
// full timestamp, so UnmarshalJSON accepts both and keeps only the day.
type Date struct {
    time.Time
}

// NewDate returns the given calendar day at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
    return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
    y, m, d := t.UTC().Date()
    return NewDate(y, m, d)
}

// ParseDate accepts "2006-01-02" or any RFC 3339 timestamp and keeps the
// leading calendar day.
func ParseDate(s string) (Date, error) {
    s = strings.TrimSpace(s)
    if len(s) < len(dateLayout) {
        return Date{}, fmt.Errorf("invalid date %q", s)
    }
    if len(s) > len(dateLayout) {
        sep := s[len(dateLayout)]
        if sep != 'T' && sep != ' ' {
            return Date{}, fmt.Errorf("invalid date %q", s)
        }
    }
    t, err := time.Parse(dateLayout, s[:len(dateLayout)])
    if err != nil {
        return Date{}, fmt.Errorf("invalid date %q", s)
    }
    return Date{t}, nil
}

func (d Date) String() string {
    if d.IsZero() {
        return ""
    }
    return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
    if d.IsZero() {
        return []byte("null"), nil
    }
    return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
    b = bytes.TrimSpace(b)
    if bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
        *d = Date{}
        return nil
    }
    if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
        return fmt.Errorf("invalid date %s", b)
    }
    parsed, err := ParseDate(string(b[1 : len(b)-1]))
    if err != nil {
        return err
    }
    *d = parsed
    return nil
}
