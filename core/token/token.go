// Package token finds the auth token the client sends with every request.
//
// The token has historically been written under several keys. Lookups
// probe them in a fixed order; a hit on a legacy key is moved to the
// canonical key so later writes only ever touch one place.
package token

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	KeyToken       = "token"
	KeyAuthToken   = "authToken"
	KeyAccessToken = "accessToken"
)

// ErrNoToken is returned by Token when no location holds a token.
var ErrNoToken = errors.New("no auth token stored")

// Location is one key of one storage.
type Location struct {
	Name    string
	Storage Storage
	Key     string

	// Legacy locations are moved to the canonical key when read.
	Legacy bool
}

// Resolver probes its locations in order. The first one is canonical.
type Resolver struct {
	locations []Location
	log       logrus.FieldLogger
}

// NewResolver builds the standard probe order: local token, local
// authToken, local accessToken, session token.
func NewResolver(local, session Storage, log logrus.FieldLogger) *Resolver {
	return NewResolverWith(log,
		Location{Name: "local", Storage: local, Key: KeyToken},
		Location{Name: "local", Storage: local, Key: KeyAuthToken, Legacy: true},
		Location{Name: "local", Storage: local, Key: KeyAccessToken, Legacy: true},
		Location{Name: "session", Storage: session, Key: KeyToken},
	)
}

func NewResolverWith(log logrus.FieldLogger, locations ...Location) *Resolver {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Resolver{locations: locations, log: log}
}

// Resolve returns the first non-empty token, or "" when none is stored.
// Unreadable locations are skipped.
func (r *Resolver) Resolve() string {
	for i, loc := range r.locations {
		v, err := loc.Storage.Get(loc.Key)
		if err != nil {
			r.log.WithError(err).WithField("location", loc.Name+":"+loc.Key).Warn("reading token location")
			continue
		}
		if v == "" {
			continue
		}
		if i > 0 && loc.Legacy {
			r.migrate(loc, v)
		}
		return v
	}
	return ""
}

func (r *Resolver) migrate(from Location, value string) {
	canon := r.locations[0]
	if err := canon.Storage.Set(canon.Key, value); err != nil {
		r.log.WithError(err).Warn("migrating token to canonical key")
		return
	}
	if err := from.Storage.Delete(from.Key); err != nil {
		r.log.WithError(err).WithField("location", from.Name+":"+from.Key).Warn("dropping migrated token")
		return
	}
	r.log.WithField("location", from.Name+":"+from.Key).Info("token migrated to canonical key")
}

// Token implements oauth2.TokenSource. No expiry is tracked: a revoked
// token is only noticed when the backend answers 401.
func (r *Resolver) Token() (*oauth2.Token, error) {
	v := r.Resolve()
	if v == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: v, TokenType: "Bearer"}, nil
}

// Save writes the canonical key only.
func (r *Resolver) Save(token string) error {
	canon := r.locations[0]
	if err := canon.Storage.Set(canon.Key, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// Clear deletes every known key. All locations are attempted even when
// one fails.
func (r *Resolver) Clear() error {
	var errs []error
	for _, loc := range r.locations {
		if err := loc.Storage.Delete(loc.Key); err != nil {
			errs = append(errs, fmt.Errorf("clearing %s:%s: %w", loc.Name, loc.Key, err))
		}
	}
	return errors.Join(errs...)
}
