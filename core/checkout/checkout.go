// Package checkout runs the two-call purchase of a paid course: a payment
// intent is created, then confirmed after a processing delay.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/core/course"
	"github.com/sirupsen/logrus"
)

// DefaultDelay stands in for card authorization time.
const DefaultDelay = 2 * time.Second

var (
	ErrInProgress       = errors.New("a payment is already being processed")
	ErrIncompleteIntent = errors.New("payment intent response is missing its identifiers")
	ErrFreeCourse       = errors.New("free courses are enrolled without checkout")
)

// declined matches the backend messages that end the purchase instead of
// leaving it open for another attempt.
var declined = regexp.MustCompile(`(?i)declin|insufficient`)

type State string

const (
	Idle       State = "idle"
	Processing State = "processing"
	Success    State = "success"
	Failure    State = "failure"
)

type Config struct {
	Client    *api.Client
	Navigator api.Navigator
	Log       logrus.FieldLogger

	// Currency defaults to USD.
	Currency string

	// Delay defaults to DefaultDelay. A negative value disables it.
	Delay time.Duration
}

type Sequencer struct {
	client   *api.Client
	nav      api.Navigator
	log      logrus.FieldLogger
	currency string
	delay    time.Duration

	mu    sync.Mutex
	state State
}

func New(cfg Config) *Sequencer {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Log = l
	}

	return &Sequencer{
		client:   cfg.Client,
		nav:      cfg.Navigator,
		log:      cfg.Log,
		currency: cfg.Currency,
		delay:    cfg.Delay,
		state:    Idle,
	}
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

type Intent struct {
	TransactionID   string `json:"transactionId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret,omitempty"`
}

// Result is handed to the success route.
type Result struct {
	TransactionID   string          `json:"transactionId"`
	PaymentIntentID string          `json:"paymentIntentId"`
	CourseID        string          `json:"courseId"`
	Amount          float64         `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	Enrollment      *EnrollmentInfo `json:"enrollment,omitempty"`
}

type EnrollmentInfo struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// Failed is handed to the failure route.
type Failed struct {
	CourseID string `json:"courseId"`
	Message  string `json:"message"`
}

type intentReq struct {
	CourseID      string  `json:"courseId"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Buyer         buyer   `json:"buyer"`
	Billing       Address `json:"billingAddress"`
	PaymentMethod Method  `json:"paymentMethod"`
}

type buyer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type confirmReq struct {
	TransactionID   string  `json:"transactionId"`
	PaymentIntentID string  `json:"paymentIntentId"`
	CourseID        string  `json:"courseId"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
}

// Submit validates the form and, when it is valid, pays for c. A
// ValidationError is returned without any request being made. Declined
// payments navigate to the failure route and return the decline error;
// other errors leave the buyer on the page to try again.
func (s *Sequencer) Submit(ctx context.Context, c course.Course, f Form) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}
	if c.Free() {
		return Result{}, ErrFreeCourse
	}

	s.mu.Lock()
	if s.state == Processing {
		s.mu.Unlock()
		return Result{}, ErrInProgress
	}
	s.state = Processing
	s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"course": c.ID, "amount": c.FinalPrice()})
	log.Info("checkout started")

	res, err := s.pay(ctx, c, f)
	if err != nil {
		if declined.MatchString(err.Error()) {
			log.WithError(err).Warn("payment declined")
			s.finish(Failure)
			s.navigate(api.RoutePaymentFailure, Failed{CourseID: c.ID, Message: err.Error()})
			return Result{}, err
		}

		log.WithError(err).Error("checkout failed")
		s.finish(Idle)
		return Result{}, err
	}

	log.WithField("transaction", res.TransactionID).Info("checkout completed")
	s.finish(Success)
	s.navigate(api.RoutePaymentSuccess, res)
	return res, nil
}

func (s *Sequencer) pay(ctx context.Context, c course.Course, f Form) (Result, error) {
	amount := c.FinalPrice()

	req := intentReq{
		CourseID: c.ID,
		Amount:   amount,
		Currency: s.currency,
		Buyer: buyer{
			FirstName: f.FirstName,
			LastName:  f.LastName,
			Email:     f.Email,
			Phone:     f.Phone,
		},
		Billing:       f.Billing,
		PaymentMethod: f.method(),
	}

	var in Intent
	if err := s.client.Post(ctx, "/payments/create-intent", req, &in); err != nil {
		return Result{}, fmt.Errorf("creating payment intent: %w", err)
	}
	if in.TransactionID == "" || in.PaymentIntentID == "" {
		return Result{}, ErrIncompleteIntent
	}

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}

	conf := confirmReq{
		TransactionID:   in.TransactionID,
		PaymentIntentID: in.PaymentIntentID,
		CourseID:        c.ID,
		Amount:          amount,
		Currency:        s.currency,
		Status:          "succeeded",
	}

	var out struct {
		TransactionID string          `json:"transactionId"`
		Status        string          `json:"status"`
		Enrollment    *EnrollmentInfo `json:"enrollment"`
	}
	if err := s.client.Post(ctx, "/payments/confirm", conf, &out); err != nil {
		return Result{}, fmt.Errorf("confirming payment: %w", err)
	}

	res := Result{
		TransactionID:   in.TransactionID,
		PaymentIntentID: in.PaymentIntentID,
		CourseID:        c.ID,
		Amount:          amount,
		Currency:        s.currency,
		Status:          out.Status,
		Enrollment:      out.Enrollment,
	}
	if out.TransactionID != "" {
		res.TransactionID = out.TransactionID
	}
	if res.Status == "" {
		res.Status = "succeeded"
	}
	return res, nil
}

func (s *Sequencer) finish(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Sequencer) navigate(route string, state interface{}) {
	if s.nav != nil {
		s.nav.Navigate(route, state)
	}
}
