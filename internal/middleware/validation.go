package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"classifieds/internal/apperror"
)

// MaxJSONBodySize bounds JSON request bodies
const MaxJSONBodySize = 1 << 20

// ValidationError represents a field validation error
type ValidationError = apperror.FieldError

// DecodeJSON decodes the request body into v. Malformed or oversized bodies
// become validation errors on the "body" field.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", "request body is too large")
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is empty")
		default:
			return apperror.ValidationFailed("body", "request body is not valid JSON: "+err.Error())
		}
	}
	return nil
}

// DecodeAndValidate decodes JSON request body and validates it against its
// `validate` tags
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := DecodeJSON(w, r, v); err != nil {
		return err
	}
	return apperror.Validate(v)
}

// FormatValidationErrors extracts the field errors carried by err
func FormatValidationErrors(err error) []ValidationError {
	return apperror.FieldsOf(err)
}
