package checkout

import (
	"sort"
	"strings"

	"github.com/irsalhamdi/lms-client/validate"
)

// Form is what the buyer types on the checkout page. It only lives for the
// duration of one Submit and is never stored.
type Form struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty"`

	CardName   string `json:"cardName" validate:"required"`
	CardNumber string `json:"cardNumber" validate:"required,cardnumber"`
	Expiry     string `json:"expiry" validate:"required,expiry"`
	CVV        string `json:"cvv" validate:"required,cvv"`

	Billing Address `json:"billingAddress"`
}

type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// ValidationError maps form fields to the message shown next to them.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return "invalid checkout form: " + strings.Join(msgs, "; ")
}

// Validate checks every field and reports all failures at once.
func (f Form) Validate() error {
	fields, err := validate.Fields(f)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Method describes the card without any of its secrets.
type Method struct {
	Type  string `json:"type"`
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

func (f Form) method() Method {
	digits := validate.Digits(f.CardNumber)

	last4 := digits
	if len(digits) > 4 {
		last4 = digits[len(digits)-4:]
	}

	return Method{Type: "card", Brand: brand(digits), Last4: last4}
}

func brand(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	case strings.HasPrefix(digits, "6011"), strings.HasPrefix(digits, "65"):
		return "discover"
	case len(digits) > 1 && digits[0] == '5' && digits[1] >= '1' && digits[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(digits, "2"):
		return "mastercard"
	}
	return "unknown"
}
