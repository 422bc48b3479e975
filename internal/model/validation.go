package model

import (
    "net/mail"
    "sort"
    "strings"
)

// ValidationError collects per-field problems found before a record is
// written.  Handlers render it as a 400 response.
type ValidationError struct {
    Fields map[string]string
}

func (e *ValidationError) Error() string {
    keys := make([]string, 0, len(e.Fields))
    for k := range e.Fields {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    parts := make([]string, 0, len(keys))
    for _, k := range keys {
        parts = append(parts, k+": "+e.Fields[k])
    }
    return strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
    if e.Fields == nil {
        e.Fields = map[string]string{}
    }
    if _, ok := e.Fields[field]; !ok {
        e.Fields[field] = msg
    }
}

// orNil returns nil when nothing was recorded so callers can `return v.orNil()`.
func (e *ValidationError) orNil() error {
    if len(e.Fields) == 0 {
        return nil
    }
    return e
}

func validEmail(s string) bool {
    addr, err := mail.ParseAddress(s)
    return err == nil && addr.Address == s
}

// validPhone accepts digits with common separators and 7 to 15 digits overall.
func validPhone(s string) bool {
    digits := 0
    for _, r := range s {
        switch {
        case r >= '0' && r <= '9':
            digits++
        case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
        default:
            return false
        }
    }
    return digits >= 7 && digits <= 15
}
