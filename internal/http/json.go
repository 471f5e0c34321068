package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/target/crawld/internal/errors"
)

// maxRequestBody caps request payloads. A crawl submission is a URL plus a
// small options object; anything bigger is rejected before decoding.
const maxRequestBody = 1 << 20

// DecodeJSON decodes a single JSON value from the request body into dst.
// Unknown fields, oversized bodies, and trailing data are all rejected so a
// malformed submission fails loudly instead of silently dropping options.
// Returns false after writing the error response.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", err)
			return false
		}
		WriteError(w, http.StatusBadRequest, "invalid_json", err)
		return false
	}
	if dec.More() {
		WriteError(w, http.StatusBadRequest, "invalid_json",
			errors.New("request body must contain a single JSON value"))
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// errorBody is the wire shape of every failure on this surface.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response with the given status and error code.
func WriteError(w http.ResponseWriter, code int, errCode string, err error) {
	WriteJSON(w, code, errorBody{Error: errCode, Message: err.Error()})
}

// WriteAppError maps a structured application error onto the wire: validation
// 400, not found 404, conflict 409, timeout 504, everything else 500. The
// application error code doubles as the wire error code, so clients see the
// same taxonomy the service logs.
func WriteAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		WriteError(w, http.StatusInternalServerError, string(apperrors.ErrCodeInternal), err)
		return
	}

	code := http.StatusInternalServerError
	switch appErr.Code {
	case apperrors.ErrCodeValidation:
		code = http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		code = http.StatusNotFound
	case apperrors.ErrCodeConflict:
		code = http.StatusConflict
	case apperrors.ErrCodeTimeout:
		code = http.StatusGatewayTimeout
	case apperrors.ErrCodeInternal, apperrors.ErrCodeCanceled:
	}
	WriteError(w, code, string(appErr.Code), err)
}
