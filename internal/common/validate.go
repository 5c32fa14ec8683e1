package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validator exposes the shared validator instance.
func Validator() *validator.Validate {
	return validate
}

// ValidateStruct runs struct tag validation and converts failures into a 400 AppError
// whose details list every offending field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return BadRequest("", "invalid payload", err)
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	appErr := BadRequest("", "validation failed", err)
	appErr.Details = map[string]any{"fields": fields}
	return appErr
}

// DecodeJSON decodes the request body into dst and validates it.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return NewAppError("PAYLOAD_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge, err)
		}
		return BadRequest("", "invalid payload", err)
	}
	return ValidateStruct(dst)
}
