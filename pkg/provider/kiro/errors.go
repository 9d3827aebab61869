package kiro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kirogate/kirogate/pkg/api"
)

// UpstreamError is a fault reported by the Kiro backend itself, either
// as an in-stream exception frame or as a non-2xx HTTP response. It is
// terminal for the request it occurred on.
type UpstreamError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kiro upstream: %s: %s", e.Code, e.Message)
	}
	return "kiro upstream: " + e.Message
}

// APIError maps the upstream fault onto the gateway's error taxonomy.
func (e *UpstreamError) APIError() *api.APIError {
	switch e.HTTPStatus {
	case http.StatusBadRequest:
		return api.NewInvalidRequestError(e.Message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return api.NewAuthenticationError(e.Message)
	case http.StatusNotFound:
		return api.NewNotFoundError(e.Message)
	case http.StatusTooManyRequests:
		return api.NewRateLimitError(e.Message)
	case http.StatusServiceUnavailable:
		return api.NewOverloadedError(e.Message)
	}
	if e.Code != "" {
		return api.NewAPIErrorf("%s: %s", e.Code, e.Message)
	}
	return api.NewAPIErrorf("%s", e.Message)
}

// newUpstreamError builds an UpstreamError from an exception frame. The
// payload is expected to be JSON with a message, but raw text is
// tolerated.
func newUpstreamError(code string, payload []byte) *UpstreamError {
	var body exceptionPayload
	if err := json.Unmarshal(payload, &body); err != nil || body.Message == "" {
		body.Message = string(payload)
	}
	if code == "" {
		code = body.Type
	}
	return &UpstreamError{Code: code, Message: body.Message}
}

// mapHTTPError reads a non-2xx response body and classifies it. The
// body is consumed but the caller still owns closing it.
func mapHTTPError(resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var payload exceptionPayload
	message := string(body)
	code := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			message = payload.Message
		}
		code = payload.Type
	}
	if message == "" {
		message = resp.Status
	}
	return &UpstreamError{Code: code, Message: message, HTTPStatus: resp.StatusCode}
}

// translateError converts any pipeline error into the APIError that is
// reported to the caller. Context cancellation surfaces as an
// api_error; callers that cancelled on purpose discard the stream
// anyway.
func translateError(err error) *api.APIError {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.APIError()
	}
	var framing *FramingError
	if errors.As(err, &framing) {
		return api.NewAPIErrorf("invalid upstream framing: %s", framing.Reason)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewOverloadedError("upstream request timed out")
	}
	return api.AsAPIError(err)
}
