package claims

import (
	"testing"
	"time"

	"github.com/irsalhamdi/lms-client/api"
)

type staticSource string

func (s staticSource) Resolve() string { return string(s) }

var secret = []byte("test-secret")

func TestSignParse(t *testing.T) {
	raw, err := Sign(secret, Claims{UserID: "u1", Email: "a@b.c", Role: RoleInstructor}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	c, err := Parse(secret, raw)
	if err != nil {
		t.Fatal(err)
	}
	if c.UserID != "u1" || c.Role != RoleInstructor || c.Email != "a@b.c" {
		t.Fatalf("unexpected claims %+v", c)
	}

	if _, err := Parse([]byte("other"), raw); err == nil {
		t.Fatal("expected signature failure with a different secret")
	}
}

func TestGuard(t *testing.T) {
	student, err := Sign(secret, Claims{UserID: "s", Role: RoleStudent}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	admin, err := Sign(secret, Claims{UserID: "a", Role: RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := Sign(secret, Claims{UserID: "s", Role: RoleStudent}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		token    string
		required Role
		want     string
	}{
		{"logged out", "", RoleStudent, api.RouteLogin},
		{"garbage", "not-a-jwt", "", api.RouteLogin},
		{"expired", expired, RoleStudent, api.RouteLogin},
		{"any role", student, "", ""},
		{"matching role", student, RoleStudent, ""},
		{"wrong role", student, RoleInstructor, api.RouteUnauthorized},
		{"admin passes", admin, RoleInstructor, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := Guard{Tokens: staticSource(tt.token)}.Check(tt.required)
			if got != tt.want {
				t.Fatalf("expected route %q, got %q", tt.want, got)
			}
		})
	}
}
