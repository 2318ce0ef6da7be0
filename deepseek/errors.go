package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	gptLib "github.com/sashabaranov/go-openai"
)

var (
	// ErrEmptyPrompt is returned before any network call when the
	// prompt is empty or all whitespace.
	ErrEmptyPrompt = errors.New("deepseek: empty prompt")

	// ErrMissingAPIKey is returned by NewClient when no API key is
	// configured.
	ErrMissingAPIKey = errors.New("deepseek: missing API key")
)

// NetworkError reports a transport failure or an HTTP error status
// other than 401/403.  StatusCode is zero when no response was
// received.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("deepseek: http status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("deepseek: network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthenticationError reports that the endpoint rejected the
// credential (HTTP 401 or 403).
type AuthenticationError struct {
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("deepseek: authentication failed (http status %d): %v", e.StatusCode, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// MalformedResponseError reports a 2xx response that could not be
// decoded or that carried no choices.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deepseek: malformed response: %s: %v", e.Reason, e.Err)
	}
	return "deepseek: malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// statusError picks the error type for a failed HTTP status.
func statusError(code int, err error) error {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return &AuthenticationError{StatusCode: code, Err: err}
	}
	return &NetworkError{StatusCode: code, Err: err}
}

// classify maps an error returned by go-openai onto our taxonomy.
// Order matters: a *url.Error can wrap io.EOF, which would otherwise
// look like a truncated body.
func classify(err error) error {
	var apiErr *gptLib.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, err)
	}
	var reqErr *gptLib.RequestError
	if errors.As(err, &reqErr) {
		return statusError(reqErr.HTTPStatusCode, err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &NetworkError{Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &MalformedResponseError{Reason: "undecodable body", Err: err}
	}
	if errors.Is(err, gptLib.ErrChatCompletionInvalidModel) {
		return err
	}
	return &NetworkError{Err: err}
}
