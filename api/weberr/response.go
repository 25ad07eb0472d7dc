package weberr

import (
	"errors"
	"net/http"
)

// ErrorResponse is the envelope written for failed requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WithMessage responds with the failure envelope carrying msg.
func WithMessage(msg string, status int) Opt {
	return WithResponse(&ErrorResponse{Success: false, Message: msg}, status)
}

type responder interface {
	Response() (body interface{}, status int)
}

// Response returns the response attached to err, if any.
func Response(err error) (body interface{}, status int, ok bool) {
	var re responder
	if errors.As(err, &re) {
		body, code := re.Response()
		return body, code, true
	}
	return nil, 0, false
}

// ResponseFor is Response with defaults: an oversized body is a 413 and
// anything else without a response is a 500 that hides its cause.
func ResponseFor(err error) (body interface{}, status int) {
	if body, status, ok := Response(err); ok {
		return body, status
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return &ErrorResponse{Message: "request body too large"}, http.StatusRequestEntityTooLarge
	}

	return &ErrorResponse{Message: http.StatusText(http.StatusInternalServerError)}, http.StatusInternalServerError
}

type responseError struct {
	error
	body   interface{}
	status int
}

func (e *responseError) Response() (interface{}, int) {
	return e.body, e.status
}

func (e *responseError) Unwrap() error {
	return e.error
}
