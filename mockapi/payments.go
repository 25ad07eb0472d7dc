package mockapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/irsalhamdi/lms-client/api/web"
	"github.com/irsalhamdi/lms-client/api/weberr"
	"github.com/irsalhamdi/lms-client/core/claims"
	"github.com/irsalhamdi/lms-client/random"
	"github.com/irsalhamdi/lms-client/validate"
)

// Test cards: any number ending in 0002 is declined, 9995 has
// insufficient funds, everything else is accepted.
const (
	declinedLast4     = "0002"
	insufficientLast4 = "9995"
)

type intentNew struct {
	CourseID string  `json:"courseId" validate:"required"`
	Amount   float64 `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency" validate:"required,len=3"`
	Buyer    struct {
		FirstName string `json:"firstName" validate:"required"`
		LastName  string `json:"lastName" validate:"required"`
		Email     string `json:"email" validate:"required,email"`
		Phone     string `json:"phone"`
	} `json:"buyer"`
	BillingAddress struct {
		Street  string `json:"street" validate:"required"`
		City    string `json:"city" validate:"required"`
		State   string `json:"state"`
		ZipCode string `json:"zipCode" validate:"required"`
		Country string `json:"country" validate:"required"`
	} `json:"billingAddress"`
	PaymentMethod struct {
		Type  string `json:"type" validate:"required"`
		Brand string `json:"brand"`
		Last4 string `json:"last4" validate:"required,len=4,numeric"`
	} `json:"paymentMethod"`
}

type confirmNew struct {
	TransactionID   string  `json:"transactionId" validate:"required"`
	PaymentIntentID string  `json:"paymentIntentId" validate:"required"`
	CourseID        string  `json:"courseId"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
}

type enrollmentRef struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

func refOf(id, courseID string, at time.Time) enrollmentRef {
	return enrollmentRef{ID: id, CourseID: courseID, EnrolledAt: at}
}

func handleCreateIntent(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in intentNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := st.Course(in.CourseID)
		if err != nil {
			return weberr.NotFound(fmt.Errorf("course[%s]: %w", in.CourseID, err))
		}
		if c.Free() {
			err := errors.New("free courses do not need a payment")
			return weberr.Unprocessable(err)
		}
		if st.Enrolled(clm.UserID, c.ID) {
			return weberr.NewError(ErrAlreadyEnrolled, ErrAlreadyEnrolled.Error(), http.StatusConflict)
		}
		if math.Abs(in.Amount-c.FinalPrice()) > 0.005 {
			return weberr.BadRequest(fmt.Errorf("amount %.2f does not match the course price %.2f", in.Amount, c.FinalPrice()))
		}

		pi := random.ID("pi", 24)
		intent := st.CreateIntent(Intent{
			TransactionID:   random.ID("txn", 24),
			PaymentIntentID: pi,
			ClientSecret:    pi + "_secret_" + random.String(16),
			UserID:          clm.UserID,
			CourseID:        c.ID,
			Amount:          in.Amount,
			Currency:        in.Currency,
			Brand:           in.PaymentMethod.Brand,
			Last4:           in.PaymentMethod.Last4,
		})

		resp := struct {
			TransactionID   string `json:"transactionId"`
			PaymentIntentID string `json:"paymentIntentId"`
			ClientSecret    string `json:"clientSecret"`
		}{intent.TransactionID, intent.PaymentIntentID, intent.ClientSecret}

		return web.Respond(ctx, w, resp, http.StatusCreated)
	}
}

func handleConfirm(st *Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn confirmNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(cn); err != nil {
			return weberr.BadRequest(err)
		}

		in, err := st.Intent(cn.PaymentIntentID)
		if err != nil {
			return weberr.NotFound(fmt.Errorf("payment intent[%s]: %w", cn.PaymentIntentID, err))
		}
		if in.UserID != clm.UserID {
			return weberr.Forbidden(fmt.Errorf("payment intent[%s] belongs to another user", in.PaymentIntentID))
		}
		if in.TransactionID != cn.TransactionID {
			return weberr.BadRequest(errors.New("transaction does not match the payment intent"))
		}

		fields := weberr.WithFields(map[string]interface{}{
			"payment_intent": in.PaymentIntentID,
			"course":         in.CourseID,
		})

		switch in.Last4 {
		case declinedLast4:
			if _, err := st.SettleIntent(in.PaymentIntentID, IntentFailed); err != nil {
				return fmt.Errorf("settling payment intent[%s]: %w", in.PaymentIntentID, err)
			}
			return weberr.PaymentRequired(errors.New("Your card was declined"), fields)

		case insufficientLast4:
			if _, err := st.SettleIntent(in.PaymentIntentID, IntentFailed); err != nil {
				return fmt.Errorf("settling payment intent[%s]: %w", in.PaymentIntentID, err)
			}
			return weberr.PaymentRequired(errors.New("Your card has insufficient funds"), fields)
		}

		settled, err := st.SettleIntent(in.PaymentIntentID, IntentSucceeded)
		if errors.Is(err, ErrIntentNotPending) {
			return weberr.NewError(err, "payment was already processed", http.StatusConflict, fields)
		}
		if err != nil {
			return fmt.Errorf("settling payment intent[%s]: %w", in.PaymentIntentID, err)
		}

		resp := struct {
			TransactionID string        `json:"transactionId"`
			Status        IntentStatus  `json:"status"`
			Enrollment    enrollmentRef `json:"enrollment"`
		}{
			TransactionID: settled.TransactionID,
			Status:        settled.Status,
			Enrollment:    refOf(settled.EnrollmentID, settled.CourseID, time.Now().UTC()),
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
