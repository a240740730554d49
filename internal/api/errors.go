package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"kitbuild/internal/apperr"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, APIError{Code: code, Message: message})
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:    http.StatusBadRequest,
	apperr.KindReference:     http.StatusUnprocessableEntity,
	apperr.KindState:         http.StatusConflict,
	apperr.KindAuthorization: http.StatusForbidden,
	apperr.KindConflict:      http.StatusConflict,
	apperr.KindNotFound:      http.StatusNotFound,
}

// WriteAppError renders taxonomy errors as-is and hides anything else behind a
// 500, logging the cause with the request logger.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	body, status := ErrorBody(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeEnvelope(w, status, body)
}

// ErrorBody converts err to its wire form and HTTP status.
func ErrorBody(err error) (APIError, int) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return APIError{Code: "INTERNAL", Message: "internal error"}, http.StatusInternalServerError
	}
	status, ok := kindStatus[ae.Kind]
	if !ok {
		status = http.StatusBadRequest
	}
	return APIError{Code: ae.Code, Message: ae.Message, Field: ae.Field, Value: ae.Value}, status
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v, rejecting unknown fields and
// bodies over MaxBodyBytes.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation(apperr.CodeValidationFailed, "body", "", "request body is too large")
		}
		return apperr.Validation(apperr.CodeValidationFailed, "body", "", "invalid json: "+err.Error())
	}
	return nil
}

func writeEnvelope(w http.ResponseWriter, status int, e APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Error: e})
}
