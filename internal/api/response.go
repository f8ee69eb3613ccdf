// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/middleware"
)

// APIResponse is the envelope of every /v1 and fallback response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError is the error half of the envelope. Code is one of the ErrCode
// constants; Details carries per-field validation messages.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta is attached to every response.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Error codes
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
)

var statusCodes = map[int]string{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusForbidden:           ErrCodeForbidden,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusMethodNotAllowed:    ErrCodeMethodNotAllowed,
	http.StatusConflict:            ErrCodeConflict,
	http.StatusTooManyRequests:     ErrCodeTooManyRequests,
	http.StatusInternalServerError: ErrCodeInternalError,
	http.StatusServiceUnavailable:  ErrCodeServiceUnavailable,
}

// errorCode maps an HTTP status to its error code. Unlisted 4xx map to
// BAD_REQUEST and everything else to INTERNAL_ERROR.
func errorCode(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return ErrCodeBadRequest
	}
	return ErrCodeInternalError
}

// ResponseWriter writes enveloped JSON for one request.
type ResponseWriter struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time
}

// NewResponseWriter starts timing the request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, start: time.Now()}
}

// Success writes 200 with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.write(http.StatusOK, APIResponse{Success: true, Data: data})
}

// Created writes 201 with data.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.write(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// Fail writes an error envelope whose code is derived from status.
func (rw *ResponseWriter) Fail(status int, message string) {
	rw.fail(status, errorCode(status), message, nil)
}

// ValidationError writes 400 VALIDATION_FAILED with per-field details.
func (rw *ResponseWriter) ValidationError(message string, fields interface{}) {
	rw.fail(http.StatusBadRequest, ErrCodeValidationFailed, message, fields)
}

func (rw *ResponseWriter) fail(status int, code, message string, details interface{}) {
	rw.write(status, APIResponse{Error: &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: middleware.GetRequestID(rw.r.Context()),
	}})
}

// write stamps Meta and encodes resp. Responses may carry the kiosk exit
// code, so nothing is cacheable.
func (rw *ResponseWriter) write(status int, resp APIResponse) {
	resp.Meta = &APIMeta{
		RequestID:  middleware.GetRequestID(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.start).Milliseconds(),
	}

	h := rw.w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	rw.w.WriteHeader(status)

	if err := json.NewEncoder(rw.w).Encode(resp); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to encode JSON response")
	}
}
