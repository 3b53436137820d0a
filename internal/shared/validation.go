package shared

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their `form` tag name.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// FieldErrors maps validation failures to messages keyed by field name. messages is
// looked up by "field.tag" first, then by "field"; the validator text is the fallback.
func FieldErrors(err error, messages map[string]string) map[string]string {
	out := make(map[string]string)
	if err == nil {
		return out
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out["general"] = err.Error()
		return out
	}
	for _, fe := range fieldErrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		if msg, ok := messages[field+"."+fe.Tag()]; ok {
			out[field] = msg
			continue
		}
		if msg, ok := messages[field]; ok {
			out[field] = msg
			continue
		}
		out[field] = fe.Error()
	}
	return out
}
