package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultBodyLimit caps request bodies when no explicit limit is configured.
const DefaultBodyLimit int64 = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// ReadBody reads at most limit bytes of the request body.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, NewAppError("PAYLOAD_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge, err)
		}
		return nil, NewAppError("BAD_REQUEST", "unable to read payload", http.StatusBadRequest, err)
	}
	return body, nil
}

// DecodeJSON decodes body into dest and validates it. Failures are returned
// as a 400 AppError with per-field details.
func DecodeJSON(body []byte, dest any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return NewAppError("BAD_REQUEST", "empty request body", http.StatusBadRequest, nil)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return NewAppError("BAD_REQUEST", "invalid request body", http.StatusBadRequest, err).
			WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) *AppError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return NewAppError("BAD_REQUEST", "validation failed", http.StatusBadRequest, err)
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Namespace()] = validationMessage(fe)
	}
	return NewAppError("BAD_REQUEST", "validation failed", http.StatusBadRequest, err).WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}
