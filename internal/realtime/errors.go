package realtime

import (
	"errors"
	"fmt"

	"route-recon/internal/models"
)

// ErrSaveInProgress is returned when a save starts while another is running.
var ErrSaveInProgress = errors.New("save already in progress")

// ValidationError reports a missing precondition such as an unselected route.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func requireRoute(s Session) error {
	if s.Route == "" {
		return &ValidationError{Field: "route", Message: "Please select a route first!"}
	}
	if s.Date == "" {
		return &ValidationError{Field: "date", Message: "Please select a date!"}
	}
	return nil
}

// LockConflictError is returned for edits to an item another user holds.
type LockConflictError struct {
	ItemCode string
	HeldBy   models.LockHolder
}

func (e *LockConflictError) Error() string {
	name := e.HeldBy.UserName
	if name == "" {
		name = "another user"
	}
	return fmt.Sprintf("item %s is being edited by %s", e.ItemCode, name)
}
