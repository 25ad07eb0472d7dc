package weberr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, WithFields(map[string]interface{}{"a": 1})); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestResponseFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   *ErrorResponse
	}{
		{"attached", NotFound(errors.New("course c-1")), http.StatusNotFound, &ErrorResponse{Message: "the resource could not be found"}},
		{"outer wins", Wrap(BadRequest(errors.New("inner")), WithMessage("outer", http.StatusConflict)), http.StatusConflict, &ErrorResponse{Message: "outer"}},
		{"too large", fmt.Errorf("decoding: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge, &ErrorResponse{Message: "request body too large"}},
		{"hidden", errors.New("db is on fire"), http.StatusInternalServerError, &ErrorResponse{Message: "Internal Server Error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, status := ResponseFor(tt.err)
			if status != tt.status {
				t.Fatalf("status = %d, want %d", status, tt.status)
			}
			if diff := cmp.Diff(tt.body, body); diff != "" {
				t.Fatalf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFieldsMerge(t *testing.T) {
	err := Wrap(
		Wrap(errors.New("boom"), WithFields(map[string]interface{}{"status": 500, "endpoint": "/a"})),
		WithFields(map[string]interface{}{"status": 502}),
	)

	got, ok := Fields(err)
	if !ok {
		t.Fatal("expected fields")
	}
	want := map[string]interface{}{"status": 502, "endpoint": "/a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}
