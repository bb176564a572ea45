package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidPrompt       = errors.New("invalid prompt")
	ErrPolicyViolation     = errors.New("prompt violates content policy")
	ErrProviderFailure     = errors.New("provider failure")
	ErrRealtimeUnavailable = errors.New("real-time service is unavailable")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrVideoNotReady       = errors.New("video is not completed yet")
)
