package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the id assigned by the request-id middleware.
const RequestIDHeader = "X-Request-ID"

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// WriteError writes the error envelope. The request id is taken from the
// response header when the middleware already assigned one.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	requestID := w.Header().Get(RequestIDHeader)
	if requestID == "" {
		requestID = NewRequestID()
	}
	resp := map[string]any{
		"request_id": requestID,
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}
