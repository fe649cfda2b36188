package azure

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-success answer from the provider.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("azure openai: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
}

func newAPIError(statusCode int, body []byte) *APIError {
	msg := string(body)
	var wrapped struct {
		Error *apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		msg = wrapped.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &APIError{
		StatusCode: statusCode,
		Kind:       classifyStatus(statusCode),
		Message:    msg,
	}
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(statusCode int) string {
	switch statusCode {
	case 401, 403:
		return "authentication_failed"
	case 400, 404, 422:
		return "invalid_request"
	case 429:
		return "rate_limit"
	case 500, 502, 503, 504:
		return "server_error"
	default:
		return "unknown"
	}
}
