package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

// NewValidator returns a validator reporting fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts validator failures into a field-level error.
func validationError(err error, message string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describeRule(fe)
	}
	appErr := appErrors.WithFields(appErrors.ErrValidation, fields)
	appErr.Message = message
	appErr.Err = err
	return appErr
}

func fieldError(field, reason, message string) error {
	appErr := appErrors.WithFields(appErrors.ErrValidation, map[string]string{field: reason})
	appErr.Message = message
	return appErr
}

func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) <= 1 {
		return fe.Field()
	}
	// Embedded structs carry no json name and keep their Go type name.
	path := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		if part != "" && unicode.IsUpper(rune(part[0])) {
			continue
		}
		path = append(path, part)
	}
	if len(path) == 0 {
		return fe.Field()
	}
	return strings.Join(path, ".")
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must have at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}
