package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
)

// NewValidator returns a validator reporting fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// fieldErrors collects field-keyed messages into a details map.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

func (f fieldErrors) empty() bool {
	return len(f) == 0
}

func (f fieldErrors) details() map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// validationError converts validator output (or collected messages) into a VALIDATION_ERROR.
func validationError(err error, message string) *appErrors.Error {
	errs := fieldErrors{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			errs.add(fe.Field(), describeFieldError(fe))
		}
	}
	if errs.empty() {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	appErr := appErrors.WithDetails(appErrors.ErrValidation, message, errs.details())
	appErr.Err = err
	return appErr
}

func newValidationError(message string, errs fieldErrors) *appErrors.Error {
	return appErrors.WithDetails(appErrors.ErrValidation, message, errs.details())
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return "Date has wrong format. Use YYYY-MM-DD."
	default:
		return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
	}
}
