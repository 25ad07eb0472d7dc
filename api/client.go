// Package api is the authenticated REST client every LMS component talks
// through. It resolves the bearer token, keeps the cookie jar, decodes the
// response envelope and maps failures to errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the development backend. Deployments override it
// through configuration.
const DefaultBaseURL = "http://localhost:5000/api"

// RequestIDHeader carries the client generated id so both sides log the
// same value.
const RequestIDHeader = "X-Request-Id"

const maxErrorBody = 1 << 20

// Tokens is the part of the token resolver the client depends on.
type Tokens interface {
	oauth2.TokenSource
	Clear() error
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Tokens     Tokens
	Navigator  Navigator
	Log        logrus.FieldLogger
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  Tokens
	nav     Navigator
	log     logrus.FieldLogger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Log = l
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		tokens:  cfg.Tokens,
		nav:     cfg.Navigator,
		log:     cfg.Log,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Get(ctx context.Context, endpoint string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, endpoint, body, out)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out interface{}) error {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, out)
}

// Do sends one request. body is nil, a *Form for multipart uploads or any
// value encodable as JSON. The envelope's data is decoded into out when out
// is not nil.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	reqID := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{
		"req_id":   reqID,
		"method":   method,
		"endpoint": endpoint,
	})

	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set(RequestIDHeader, reqID)

	log.Debug("request started")
	startTime := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		err = weberr.Wrap(
			fmt.Errorf("%s %s: %w", method, endpoint, err),
			weberr.WithFields(map[string]interface{}{"req_id": reqID, "endpoint": endpoint}),
		)
		log.WithError(err).Warn("request failed")
		return err
	}
	defer resp.Body.Close()

	err = c.handle(resp, out)

	log = log.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"since":  time.Since(startTime).Nanoseconds(),
	})
	if err != nil {
		err = weberr.Wrap(err, weberr.WithFields(map[string]interface{}{
			"req_id":   reqID,
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}))
		log.WithError(err).Warn("request completed with error")
		return err
	}

	log.Debug("request completed")
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Request, error) {
	var (
		rd          io.Reader
		contentType string
	)

	var pipe *io.PipeReader

	switch b := body.(type) {
	case nil:
	case *Form:
		pipe, contentType = b.reader()
		rd = pipe
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, endpoint, err)
		}
		rd = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rd)
	if err != nil {
		if pipe != nil {
			pipe.CloseWithError(err)
		}
		return nil, fmt.Errorf("building %s %s: %w", method, endpoint, err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		if tok, err := c.tokens.Token(); err == nil && tok != nil && tok.AccessToken != "" {
			tok.SetAuthHeader(req)
		}
	}

	return req, nil
}

func (c *Client) handle(resp *http.Response, out interface{}) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.expire()
		return ErrSessionExpired

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp),
		}
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding response envelope: %w", err)
	}

	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request was not successful"
		}
		return &ApplicationError{Message: msg}
	}

	if out == nil || env.Empty() {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

// expire drops every stored credential and sends the user to the login
// route. The original request is not retried.
func (c *Client) expire() {
	if c.tokens != nil {
		if err := c.tokens.Clear(); err != nil {
			c.log.WithError(err).Error("clearing stored credentials")
		}
	}
	if c.nav != nil {
		c.nav.Navigate(RouteLogin, nil)
	}
}

func errorMessage(resp *http.Response) string {
	fallback := fmt.Sprintf("HTTP error %d", resp.StatusCode)

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(b) == 0 {
		return fallback
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return fallback
	}

	switch {
	case body.Message != "":
		return body.Message
	case body.Error != "":
		return body.Error
	}
	return fallback
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
