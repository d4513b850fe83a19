package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/textnorm"
)

const ErrorName = "ValidationError"

// FieldError is one entry of the API's details.errors list.
type FieldError struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Name    string   `json:"name"`
}

// Details is the body attached to a validation error response.
type Details struct {
	Errors []FieldError `json:"errors"`
}

var PhonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()/-]{4,28}[0-9]$`)

const (
	msgPhoneFormat = "Bitte geben Sie eine gültige Telefonnummer ein. Erlaubt sind Ziffern, Leerzeichen und die Zeichen + ( ) / -, zum Beispiel +49 170 1234567 oder 0170/1234567."
	msgEmailFormat = "Bitte geben Sie eine gültige E-Mail-Adresse ein."
)

// contactFormat carries the filled contact fields through the validator.
// Blank and soft-hyphen-only values arrive empty, so omitempty skips them.
type contactFormat struct {
	PhoneNumber string `json:"phone_number" validate:"omitempty,phone"`
	Email       string `json:"email" validate:"omitempty,email"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return PhonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Schema checks the format of filled contact fields. Empty fields are the
// step validators' concern.
func Schema(c domain.ContactPerson) []FieldError {
	in := contactFormat{}
	if textnorm.IsFilled(c.PhoneNumber) {
		in.PhoneNumber = c.PhoneNumber
	}
	if textnorm.IsFilled(c.Email) {
		in.Email = c.Email
	}

	err := validate.Struct(in)
	var failed validator.ValidationErrors
	if !errors.As(err, &failed) {
		return nil
	}

	errs := make([]FieldError, 0, len(failed))
	for _, fe := range failed {
		errs = append(errs, FieldError{
			Path:    []string{"contact_person", fe.Field()},
			Message: formatMessage(fe),
			Name:    ErrorName,
		})
	}
	return errs
}

func formatMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "phone":
		return fe.Field() + " must match the following: \"" + PhonePattern.String() + "\""
	case "email":
		return fe.Field() + " must be a valid email"
	}
	return fe.Field() + " failed " + fe.Tag()
}

// FieldErrors converts step messages into API field errors, sorted by path.
func FieldErrors(m Messages) []FieldError {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	errs := make([]FieldError, 0, len(keys))
	for _, k := range keys {
		path := strings.TrimPrefix(strings.TrimPrefix(k, PathBooking), ".")
		errs = append(errs, FieldError{Path: strings.Split(path, "."), Message: m[k], Name: ErrorName})
	}
	return errs
}

// FromFieldErrors maps API field errors back onto step message paths,
// rewriting the format messages of phone and email into German.
func FromFieldErrors(errs []FieldError) Messages {
	m := Messages{}
	for _, e := range errs {
		if len(e.Path) == 0 {
			continue
		}
		m[PathBooking+"."+strings.Join(e.Path, ".")] = Translate(e.Path, e.Message)
	}
	return m
}

func Translate(path []string, message string) string {
	if len(path) == 0 {
		return message
	}
	switch field := path[len(path)-1]; {
	case field == "phone_number" && strings.Contains(message, "must match the following"):
		return msgPhoneFormat
	case field == "email" && strings.Contains(message, "valid email"):
		return msgEmailFormat
	}
	return message
}
