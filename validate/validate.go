// Package validate runs struct tag validation and turns failures into
// readable English messages.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

var validate *validator.Validate

var translator ut.Translator

var (
	expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cvvRe    = regexp.MustCompile(`^[0-9]{3,4}$`)
)

type rule struct {
	tag string
	msg string
	fn  validator.Func
}

var rules = []rule{
	{"cardnumber", "{0} must have at least 16 digits", isCardNumber},
	{"expiry", "{0} must use the MM/YY format", isExpiry},
	{"cvv", "{0} must have 3 or 4 digits", isCVV},
}

func init() {

	validate = validator.New()
	validate.RegisterTagNameFunc(jsonName)

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)

	for _, r := range rules {
		r := r
		validate.RegisterValidation(r.tag, r.fn)
		validate.RegisterTranslation(r.tag, translator,
			func(t ut.Translator) error {
				return t.Add(r.tag, r.msg, true)
			},
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(r.tag, fe.Field())
				return msg
			},
		)
	}
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// Check returns the first validation failure of val.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {

		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		if len(verrors) < 1 {
			return nil
		}

		return errors.New(verrors[0].Translate(translator))
	}

	return nil
}

// Fields returns every failing field of val keyed by its JSON path
// (billingAddress.city), or nil when val is valid.
func Fields(val any) (map[string]string, error) {
	err := validate.Struct(val)
	if err == nil {
		return nil, nil
	}

	verrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}

	fields := make(map[string]string, len(verrors))
	for _, fe := range verrors {
		key := fe.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:]
		}
		if _, set := fields[key]; !set {
			fields[key] = fe.Translate(translator)
		}
	}
	return fields, nil
}

// Digits strips the spaces and dashes people type into card numbers.
func Digits(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

func isCardNumber(fl validator.FieldLevel) bool {
	n := Digits(fl.Field().String())
	if len(n) < 16 {
		return false
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isExpiry(fl validator.FieldLevel) bool {
	return expiryRe.MatchString(fl.Field().String())
}

func isCVV(fl validator.FieldLevel) bool {
	return cvvRe.MatchString(fl.Field().String())
}

func GenerateID() string {
	return uuid.NewString()
}

func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("ID is not in its proper form")
	}
	return nil
}
