package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"flowscope/internal/apperr"
	"flowscope/internal/metrics"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

type errorBody struct {
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail answers with the status apperr.HTTPStatus picks for err. Internal
// failures are logged and replaced by internalMsg.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	status := apperr.HTTPStatus(err)
	h.metrics.Inc(metrics.HTTPErrorsTotal)

	var (
		verr *apperr.ValidationError
		nerr *apperr.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, status, errorBody{Message: verr.Message, Errors: verr.Fields})
	case errors.As(err, &nerr):
		writeJSON(w, status, errorBody{Message: notFoundMessage(nerr)})
	default:
		h.logger.Error(internalMsg,
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, errorBody{Message: internalMsg})
	}
}

func notFoundMessage(err *apperr.NotFoundError) string {
	switch err.Resource {
	case "user":
		return "User not found"
	case "report":
		return "Report not found"
	case "health data for user":
		return "No health data found for user"
	}
	return err.Error()
}

/* ---------------- request decoding ---------------- */

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads exactly one JSON value into dst, rejecting unknown fields and
// oversized bodies, then runs struct validation. Every failure is a
// ValidationError carrying message.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, message string) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid(message, apperr.FieldError{Field: "body", Message: describeDecodeError(err)})
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Invalid(message, apperr.FieldError{Field: "body", Message: "must contain a single JSON value"})
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperr.Invalid(message, apperr.FieldError{Field: "body", Message: err.Error()})
		}
		fields := make([]apperr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperr.FieldError{Field: fieldPath(fe), Message: describeTag(fe)})
		}
		return apperr.Invalid(message, fields...)
	}
	return nil
}

func describeDecodeError(err error) string {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return "must not be empty"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %s must be %s", typeErr.Field, typeErr.Type)
	case errors.As(err, &maxErr):
		return fmt.Sprintf("must not exceed %d bytes", maxErr.Limit)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	}
	return err.Error()
}

// fieldPath drops the request struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}

/* ---------------- path and query parsing ---------------- */

// pathID parses a positive integer path value.
func pathID(r *http.Request, name, message string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(message, apperr.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return id, nil
}

// queryLimit parses ?limit=; absent means fallback, 0 means no limit.
func queryLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Invalid("Invalid limit", apperr.FieldError{Field: "limit", Message: "must be a non-negative integer"})
	}
	return n, nil
}
