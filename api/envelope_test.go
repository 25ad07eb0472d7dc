package api

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnvelopeNormalization(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"data keyed", `{"success":true,"data":{"courses":[{"id":"a"}]}}`, []string{"a"}},
		{"data list", `{"success":true,"data":[{"id":"b"}]}`, []string{"b"}},
		{"top level", `{"success":true,"courses":[{"id":"c"}]}`, []string{"c"}},
		{"nested envelope", `{"success":true,"data":{"success":true,"data":{"courses":[{"id":"d"}]}}}`, []string{"d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			if err := json.Unmarshal([]byte(tt.body), &env); err != nil {
				t.Fatal(err)
			}
			if !env.Success {
				t.Fatal("expected success")
			}

			var courses []struct {
				ID string `json:"id"`
			}
			if err := Pick(env.Data, "courses", &courses); err != nil {
				t.Fatal(err)
			}

			got := make([]string, 0, len(courses))
			for _, c := range courses {
				got = append(got, c.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnvelopeMissingSuccess(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"data":{"id":"x"}}`), &env); err != nil {
		t.Fatal(err)
	}
	if env.Success {
		t.Fatal("missing success must decode as failure")
	}
}

func TestNestedEnvelopeFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"inner failure with data", `{"success":true,"data":{"success":false,"data":{"id":"x"}}}`, ""},
		{"inner failure with message", `{"success":true,"message":"ok","data":{"success":false,"message":"course is archived"}}`, "course is archived"},
		{"deep failure", `{"success":true,"data":{"success":true,"data":{"success":false,"message":"no access"}}}`, "no access"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			if err := json.Unmarshal([]byte(tt.body), &env); err != nil {
				t.Fatal(err)
			}
			if env.Success {
				t.Fatal("inner success:false must fail the response")
			}
			if tt.msg != "" && env.Message != tt.msg {
				t.Fatalf("message = %q, want %q", env.Message, tt.msg)
			}
			if !env.Empty() {
				t.Fatalf("expected no payload, got %s", env.Data)
			}
		})
	}
}
