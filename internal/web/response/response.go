// Package response renders schema browser responses.
package response

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Content types served by the browser.
const (
	ContentTypeJSON = "application/json; charset=utf-8"
	ContentTypeYAML = "application/yaml; charset=utf-8"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	Code        string   `json:"code,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Body writes a pre-encoded body with an ETag, answering 304 when the
// client already has it.
func Body(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	etag := GenerateETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if NotModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

// JSON encodes v and writes it through Body.
func JSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		Error(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	Body(w, r, ContentTypeJSON, body)
}

// Error writes an error response. An empty code is derived from status.
func Error(w http.ResponseWriter, status int, code, message string, suggestions ...string) {
	if code == "" {
		code = errorCodeFromStatus(status)
	}

	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&ErrorResponse{
		Error:       errorName(status),
		Message:     message,
		Code:        code,
		Suggestions: suggestions,
	})
}

func errorName(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal_error"
	}
}
