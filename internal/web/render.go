package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hpungsan/will/internal/errors"
)

// maxBodyBytes bounds request bodies. Messages are a few hundred bytes.
const maxBodyBytes = 64 << 10

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// renderError writes err as a JSON error envelope. Errors that are not a
// WillError are reported as INTERNAL.
func renderError(w http.ResponseWriter, err error) {
	var wErr *errors.WillError
	if !stderrors.As(err, &wErr) {
		wErr = errors.NewInternal(err)
	}
	renderJSON(w, wErr.Status, ErrorBody{Error: ErrorDetail{
		Code:    string(wErr.Code),
		Message: wErr.Message,
		Status:  wErr.Status,
	}})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeBody reads a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errors.NewInvalidRequest("request body is required")
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
