package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/core/token"
)

func newService(t *testing.T, logoutStatus int) (*Service, *token.Resolver, *token.MemoryStorage) {
	t.Helper()

	router := mux.NewRouter()
	router.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var cred Credentials
		if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if cred.Password != "correct-horse" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"success":false,"message":"invalid email or password"}`)
			return
		}
		io.WriteString(w, `{"success":true,"token":"tok-1","user":{"id":"u-1","name":"Ada","email":"ada@lms.local","role":"student"}}`)
	}).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(logoutStatus)
	}).Methods(http.MethodPost)

	hs := httptest.NewServer(router)
	t.Cleanup(hs.Close)

	local := token.NewMemoryStorage()
	tokens := token.NewResolver(local, token.NewMemoryStorage(), nil)

	c, err := api.New(api.Config{BaseURL: hs.URL, Tokens: tokens})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(c, tokens), tokens, local
}

func TestLogin(t *testing.T) {
	s, tokens, local := newService(t, http.StatusOK)

	u, err := s.Login(context.Background(), Credentials{Email: "ada@lms.local", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	want := User{ID: "u-1", Name: "Ada", Email: "ada@lms.local", Role: claims.RoleStudent}
	if diff := cmp.Diff(want, u); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}

	if got, _ := local.Get(token.KeyToken); got != "tok-1" {
		t.Errorf("canonical key = %q, want tok-1", got)
	}
	if got := tokens.Resolve(); got != "tok-1" {
		t.Errorf("resolved token = %q, want tok-1", got)
	}
}

func TestLoginRejected(t *testing.T) {
	s, tokens, _ := newService(t, http.StatusOK)

	_, err := s.Login(context.Background(), Credentials{Email: "ada@lms.local", Password: "wrong-password"})
	var se *api.StatusError
	if !errors.As(err, &se) || se.Message != "invalid email or password" {
		t.Fatalf("err = %v, want status error with backend message", err)
	}
	if got := tokens.Resolve(); got != "" {
		t.Errorf("token stored after rejected login: %q", got)
	}
}

func TestLogoutClearsEveryKey(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusUnauthorized} {
		s, tokens, local := newService(t, status)
		local.Set(token.KeyToken, "tok-1")
		local.Set(token.KeyAccessToken, "legacy")

		if err := s.Logout(context.Background()); err != nil {
			t.Fatalf("status %d: logout: %v", status, err)
		}
		if got := tokens.Resolve(); got != "" {
			t.Errorf("status %d: token left after logout: %q", status, got)
		}
	}
}

func TestLogoutBackendDown(t *testing.T) {
	s, tokens, local := newService(t, http.StatusInternalServerError)
	local.Set(token.KeyToken, "tok-1")

	err := s.Logout(context.Background())
	var se *api.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusInternalServerError {
		t.Fatalf("err = %v, want 500 status error", err)
	}
	if got := tokens.Resolve(); got != "" {
		t.Errorf("token left after failed logout: %q", got)
	}
}
