package ucp

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// SessionPatch carries the caller-mutable subset of a checkout session.
// Fields left nil are untouched.
type SessionPatch struct {
	Buyer *BuyerPatch `json:"buyer,omitempty"`
}

// BuyerPatch holds partial buyer contact details. Empty fields are ignored
// when the patch is applied, they never clear stored values.
type BuyerPatch struct {
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName   string `json:"first_name,omitempty" validate:"omitempty,max=255"`
	LastName    string `json:"last_name,omitempty" validate:"omitempty,max=255"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,max=64"`
}

// Validate runs go-playground/validator rules over the patch and reports the
// first violation as an invalid_argument error pointing at the offending
// field.
func (p SessionPatch) Validate() error {
	if err := validate.Struct(p); err != nil {
		return normalizeValidationError(err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func normalizeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	first := validationErrs[0]
	fieldPath := jsonPath(first)
	return NewInvalidArgumentError(
		fmt.Sprintf("%s %s", fieldPath, validationMessage(first)),
		WithOffendingParam(fieldPath),
	)
}

func jsonPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
