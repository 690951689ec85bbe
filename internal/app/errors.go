package app

import (
	"errors"
	"time"
)

// Machine-readable rejection codes, stable across message wording changes.
const (
	CodeUnauthorized  = "AUTH_REQUIRED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeValidation    = "VALIDATION_FAILED"
	CodePlanRequired  = "PLAN_REQUIRED"
	CodeQuotaExceeded = "QUOTA_EXCEEDED"
	CodeRateLimited   = "RATE_LIMITED"
	CodeInternal      = "INTERNAL"
)

// CodedError is a rejection the client can branch on. RetryAfter is set
// only for RATE_LIMITED.
type CodedError struct {
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *CodedError) Error() string { return e.Message }

// AsCoded extracts a CodedError from an error chain.
func AsCoded(err error) (*CodedError, bool) {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}

func errValidation(msg string) error {
	return &CodedError{Code: CodeValidation, Message: msg}
}

func errPlanRequired(msg string) error {
	return &CodedError{Code: CodePlanRequired, Message: msg}
}

func errQuota(msg string) error {
	return &CodedError{Code: CodeQuotaExceeded, Message: msg}
}

func errRateLimited(retryAfter time.Duration) error {
	return &CodedError{Code: CodeRateLimited, Message: "rate limit exceeded", RetryAfter: retryAfter}
}

func errForbidden(msg string) error {
	return &CodedError{Code: CodeForbidden, Message: msg}
}

func errNotFound(msg string) error {
	return &CodedError{Code: CodeNotFound, Message: msg}
}

func errUnauthorized(msg string) error {
	return &CodedError{Code: CodeUnauthorized, Message: msg}
}
