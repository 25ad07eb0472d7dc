package api

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned after a 401 response. Stored credentials
// are already cleared when it is returned.
var ErrSessionExpired = errors.New("session expired, please log in again")

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error %d", e.Status)
	}
	return e.Message
}

// ApplicationError is a 2xx response whose envelope is not successful.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string { return e.Message }

// IsStatus reports whether err is a StatusError carrying status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
