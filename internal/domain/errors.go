package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnauthenticated   = errors.New("broker session expired or missing")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstream          = errors.New("upstream broker error")
	ErrValidation        = errors.New("invalid request")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrForbidden         = errors.New("forbidden")
)
