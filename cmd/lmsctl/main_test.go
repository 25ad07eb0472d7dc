package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/irsalhamdi/lms-client/config"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/core/course"
	"github.com/irsalhamdi/lms-client/mockapi"
	"github.com/sirupsen/logrus"
)

const checkoutForm = `{
	"firstName": "Sam", "lastName": "Student", "email": "stu@example.com",
	"cardName": "Sam Student", "cardNumber": "4242 4242 4242 4242",
	"expiry": "12/30", "cvv": "123",
	"billingAddress": {"street": "1 Main St", "city": "Springfield", "zipCode": "12345", "country": "US"}
}`

type cli struct {
	t   *testing.T
	cfg config.Client
	log logrus.FieldLogger
}

func newCLI(t *testing.T) (*cli, *mockapi.Store) {
	t.Helper()

	st := mockapi.NewStore()
	err := mockapi.Seed(st, []mockapi.SeedUser{
		{Name: "Ines Instructor", Email: "ins@example.com", Password: "instructor-pass", Role: claims.RoleInstructor},
		{Name: "Sam Student", Email: "stu@example.com", Password: "student-pass", Role: claims.RoleStudent},
	})
	if err != nil {
		t.Fatal(err)
	}

	l := logrus.New()
	l.SetOutput(io.Discard)

	hs := httptest.NewServer(mockapi.APIMux(mockapi.APIConfig{
		Log:      l,
		Store:    st,
		Secret:   []byte("cli-secret"),
		MediaURL: "https://media.test",
	}))
	t.Cleanup(hs.Close)

	var cfg config.Client
	cfg.API.BaseURL = hs.URL
	cfg.API.Timeout = 5 * time.Second
	cfg.Storage.Dir = t.TempDir()
	cfg.Checkout.Currency = "USD"
	cfg.Checkout.Delay = -1
	cfg.Progress.Threshold = 0.9

	return &cli{t: t, cfg: cfg, log: l}, st
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	cfg := c.cfg
	cfg.Args = args
	err := Run(context.Background(), c.log, cfg, &out)
	return out.String(), err
}

func (c *cli) must(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("lmsctl %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestLoginPersistsToken(t *testing.T) {
	c, _ := newCLI(t)

	out := c.must("login", "stu@example.com", "student-pass")
	if !strings.Contains(out, "Logged in as Sam Student (student)") {
		t.Fatalf("unexpected login output %q", out)
	}

	// A second invocation reads the token back from disk.
	out = c.must("whoami")
	if !strings.Contains(out, "stu@example.com") || !strings.Contains(out, "student") {
		t.Fatalf("unexpected whoami output %q", out)
	}
	if _, err := os.Stat(filepath.Join(c.cfg.Storage.Dir, "local.json")); err != nil {
		t.Fatalf("token file: %v", err)
	}

	c.must("logout")
	out = c.must("whoami")
	if !strings.Contains(out, "lmsctl login") {
		t.Fatalf("expected a login hint after logout, got %q", out)
	}
}

func TestCoursesListing(t *testing.T) {
	c, _ := newCLI(t)

	out := c.must("courses")
	for _, want := range []string{"Getting Started with Go", "Concurrency in Practice", "free"} {
		if !strings.Contains(out, want) {
			t.Errorf("courses output lacks %q:\n%s", want, out)
		}
	}

	out = c.must("my-courses")
	if !strings.Contains(out, "lmsctl login") {
		t.Errorf("expected a login hint for my-courses, got %q", out)
	}
}

func TestCheckoutAndProgress(t *testing.T) {
	c, st := newCLI(t)
	paid := st.Courses(func(cr course.Course) bool { return !cr.Free() })[0]
	lessons := paid.Lessons()

	form := filepath.Join(t.TempDir(), "form.json")
	if err := os.WriteFile(form, []byte(checkoutForm), 0o600); err != nil {
		t.Fatal(err)
	}

	c.must("login", "stu@example.com", "student-pass")

	out := c.must("checkout", paid.ID, form)
	if !strings.Contains(out, "Payment succeeded") {
		t.Fatalf("unexpected checkout output %q", out)
	}

	out = c.must("complete", paid.ID, lessons[0].ID)
	if !strings.Contains(out, "Completed 33%") {
		t.Fatalf("unexpected complete output %q", out)
	}

	out = c.must("complete", paid.ID, lessons[1].ID, "10")
	if !strings.Contains(out, "Not watched enough") {
		t.Fatalf("expected the watch threshold to hold, got %q", out)
	}

	out = c.must("progress", paid.ID)
	if !strings.Contains(out, "Completed 33% (1 lessons)") {
		t.Fatalf("unexpected progress output %q", out)
	}

	out = c.must("dashboard")
	if !strings.Contains(out, "Enrolled 1") || !strings.Contains(out, paid.Title) {
		t.Fatalf("unexpected dashboard output %q", out)
	}
}

func TestInvalidCheckoutForm(t *testing.T) {
	c, st := newCLI(t)
	paid := st.Courses(func(cr course.Course) bool { return !cr.Free() })[0]

	form := filepath.Join(t.TempDir(), "form.json")
	bad := strings.Replace(checkoutForm, "4242 4242 4242 4242", "4242", 1)
	if err := os.WriteFile(form, []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}

	c.must("login", "stu@example.com", "student-pass")

	out, err := c.run("checkout", paid.ID, form)
	if err == nil || !strings.Contains(out, "cardNumber") {
		t.Fatalf("expected a cardNumber field error, got %v\n%s", err, out)
	}
}

func TestUnknownCommand(t *testing.T) {
	c, _ := newCLI(t)

	if _, err := c.run("frobnicate"); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if out, err := c.run(); err != nil || !strings.Contains(out, "usage:") {
		t.Fatalf("expected usage without error, got %v\n%s", err, out)
	}
	if _, err := c.run("course"); err == nil {
		t.Fatal("expected an error for a missing argument")
	}
}
