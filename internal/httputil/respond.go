// Package httputil provides the JSON request/response helpers shared by the
// API handlers and middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nodevault/custody-service/internal/apperr"
)

// errorBody is the wire shape of every error response. The storage cause is
// never included.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// DecodeJSON decodes a request body, rejecting unknown fields.
func DecodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.InvalidArgument("invalid JSON body")
	}
	return nil
}

// DecodeJSONLenient decodes a request body without rejecting unknown
// fields, for payloads with deliberately loose typing.
func DecodeJSONLenient(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return apperr.InvalidArgument("invalid JSON body")
	}
	return nil
}

// WriteJSON writes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes the service error with its mapped status. Storage
// failures are reduced to a generic message.
func WriteError(w http.ResponseWriter, err *apperr.Error) {
	detail := errorDetail{Code: string(err.Code), Message: err.Message, Details: err.Details}
	if err.Code == apperr.CodeStorage {
		detail.Message = "internal server error"
		detail.Details = nil
	}
	WriteJSON(w, err.HTTPStatus, errorBody{Error: detail})
}

// RespondError classifies err and writes it.
func RespondError(w http.ResponseWriter, err error) {
	var serviceErr *apperr.Error
	if !errors.As(err, &serviceErr) {
		serviceErr = apperr.From(err)
	}
	WriteError(w, serviceErr)
}
