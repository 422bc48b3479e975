// Package repository holds data access for the registry.  Every query goes
// through the backend facade, so the same code runs against the hosted row
// API and the MySQL driver.  The sentinel values below let handlers tell
// failure scenarios apart; anything else is a backend error that is passed
// through unchanged.
package repository

import (
	"errors"

	"github.com/iliyamo/donor-registry/internal/backend"
)

// ErrDonorNotFound is returned when no donor matches the id or owner.
var ErrDonorNotFound = errors.New("donor not found")

// ErrContentNotFound is returned when a singleton content row was never
// created.
var ErrContentNotFound = errors.New("content not found")

// ErrNotificationNotFound is returned when marking an unknown notification.
var ErrNotificationNotFound = errors.New("notification not found")

// ErrInvalidCredentials is returned by AdminRepo.Verify for an unknown
// email or a wrong password; the two cases are indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrForbidden is returned when the caller attempts an operation on a
// record they do not own.  Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// notFound maps the facade's empty-result error onto a domain sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, backend.ErrNoRows) {
		return sentinel
	}
	return err
}
