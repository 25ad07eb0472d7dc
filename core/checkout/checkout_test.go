package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/lms-client/api"
	"github.com/irsalhamdi/lms-client/core/course"
	"github.com/sirupsen/logrus"
)

func validForm() Form {
	return Form{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		CardName:   "Ada Lovelace",
		CardNumber: "4242 4242 4242 4242",
		Expiry:     "12/29",
		CVV:        "123",
		Billing: Address{
			Street:  "1 Analytical St",
			City:    "London",
			ZipCode: "N1",
			Country: "UK",
		},
	}
}

var paid = course.Course{ID: "c1", Title: "Go", Price: 50, DiscountPrice: 30}

type navRecorder struct {
	mu     sync.Mutex
	routes []string
	states []interface{}
}

func (n *navRecorder) Navigate(route string, state interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
	n.states = append(n.states, state)
}

type payServer struct {
	intents  int32
	confirms int32
	decline  string
	hold     chan struct{}
	entered  chan struct{}

	mu      sync.Mutex
	intent  map[string]interface{}
	confirm map[string]interface{}
}

func (p *payServer) handler(t *testing.T) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/payments/create-intent", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.intents, 1)

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding intent: %v", err)
		}
		p.mu.Lock()
		p.intent = body
		p.mu.Unlock()

		if p.entered != nil {
			p.entered <- struct{}{}
		}
		if p.hold != nil {
			<-p.hold
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"data":{"transactionId":"txn_1","paymentIntentId":"pi_1"}}`)
	}).Methods(http.MethodPost)

	router.HandleFunc("/payments/confirm", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.confirms, 1)

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding confirm: %v", err)
		}
		p.mu.Lock()
		p.confirm = body
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if p.decline != "" {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": p.decline})
			return
		}
		io.WriteString(w, `{"success":true,"data":{"transactionId":"txn_1","status":"succeeded","enrollment":{"id":"e1","courseId":"c1","enrolledAt":"2024-01-02T03:04:05Z"}}}`)
	}).Methods(http.MethodPost)

	return router
}

func newSequencer(t *testing.T, p *payServer, nav api.Navigator) *Sequencer {
	t.Helper()

	hs := httptest.NewServer(p.handler(t))
	t.Cleanup(hs.Close)

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := api.New(api.Config{BaseURL: hs.URL, Log: log})
	if err != nil {
		t.Fatal(err)
	}

	return New(Config{Client: c, Navigator: nav, Log: log, Delay: time.Millisecond})
}

func TestSubmitShortCardNumber(t *testing.T) {
	p := &payServer{}
	nav := &navRecorder{}
	s := newSequencer(t, p, nav)

	f := validForm()
	f.CardNumber = "4242 4242 4242"
	f.Billing.City = ""

	_, err := s.Submit(context.Background(), paid, f)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if _, ok := verr.Fields["cardNumber"]; !ok {
		t.Fatalf("expected a cardNumber field error, got %v", verr.Fields)
	}
	if _, ok := verr.Fields["billingAddress.city"]; !ok {
		t.Fatalf("expected a billingAddress.city field error, got %v", verr.Fields)
	}

	if n := atomic.LoadInt32(&p.intents); n != 0 {
		t.Fatalf("no intent must be created, got %d requests", n)
	}
	if s.State() != Idle {
		t.Fatalf("expected idle state, got %s", s.State())
	}
	if len(nav.routes) != 0 {
		t.Fatalf("unexpected navigation %v", nav.routes)
	}
}

func TestSubmitSuccess(t *testing.T) {
	p := &payServer{}
	nav := &navRecorder{}
	s := newSequencer(t, p, nav)

	res, err := s.Submit(context.Background(), paid, validForm())
	if err != nil {
		t.Fatal(err)
	}

	if res.TransactionID != "txn_1" || res.PaymentIntentID != "pi_1" || res.Amount != 30 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Enrollment == nil || res.Enrollment.ID != "e1" {
		t.Fatalf("expected enrollment in result, got %+v", res.Enrollment)
	}
	if s.State() != Success {
		t.Fatalf("expected success state, got %s", s.State())
	}

	if diff := cmp.Diff([]string{api.RoutePaymentSuccess}, nav.routes); diff != "" {
		t.Fatalf("navigation mismatch (-want +got):\n%s", diff)
	}
	if got := nav.states[0].(Result).TransactionID; got != "txn_1" {
		t.Fatalf("success route must carry the transaction id, got %q", got)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	wantMethod := map[string]interface{}{"type": "card", "brand": "visa", "last4": "4242"}
	if diff := cmp.Diff(wantMethod, p.intent["paymentMethod"]); diff != "" {
		t.Fatalf("payment method mismatch (-want +got):\n%s", diff)
	}
	for _, secret := range []string{"cardNumber", "cvv", "expiry"} {
		if _, ok := p.intent[secret]; ok {
			t.Fatalf("intent must not carry %s", secret)
		}
	}
	if p.intent["amount"] != 30.0 || p.intent["currency"] != "USD" || p.intent["courseId"] != "c1" {
		t.Fatalf("unexpected intent body %v", p.intent)
	}
	if p.confirm["transactionId"] != "txn_1" || p.confirm["paymentIntentId"] != "pi_1" {
		t.Fatalf("confirm must carry both identifiers, got %v", p.confirm)
	}
}

func TestSubmitDeclined(t *testing.T) {
	p := &payServer{decline: "Your card was declined"}
	nav := &navRecorder{}
	s := newSequencer(t, p, nav)

	_, err := s.Submit(context.Background(), paid, validForm())
	if err == nil {
		t.Fatal("expected a decline error")
	}
	if !api.IsStatus(err, http.StatusPaymentRequired) {
		t.Fatalf("expected the 402 to be preserved, got %v", err)
	}
	if s.State() != Failure {
		t.Fatalf("expected failure state, got %s", s.State())
	}
	if diff := cmp.Diff([]string{api.RoutePaymentFailure}, nav.routes); diff != "" {
		t.Fatalf("navigation mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitOtherErrorStays(t *testing.T) {
	p := &payServer{decline: "gateway timeout"}
	nav := &navRecorder{}
	s := newSequencer(t, p, nav)

	if _, err := s.Submit(context.Background(), paid, validForm()); err == nil {
		t.Fatal("expected an error")
	}
	if len(nav.routes) != 0 {
		t.Fatalf("non-decline errors must not navigate, got %v", nav.routes)
	}
	if s.State() != Idle {
		t.Fatalf("expected the form to be open for retry, got %s", s.State())
	}
}

func TestSubmitTwice(t *testing.T) {
	p := &payServer{hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := newSequencer(t, p, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), paid, validForm())
		done <- err
	}()

	<-p.entered
	if _, err := s.Submit(context.Background(), paid, validForm()); !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}
	close(p.hold)

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&p.intents); n != 1 {
		t.Fatalf("expected a single intent, got %d", n)
	}
}

func TestSubmitFreeCourse(t *testing.T) {
	s := newSequencer(t, &payServer{}, nil)
	if _, err := s.Submit(context.Background(), course.Course{ID: "free"}, validForm()); !errors.Is(err, ErrFreeCourse) {
		t.Fatalf("expected ErrFreeCourse, got %v", err)
	}
}
