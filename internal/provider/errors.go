package provider

import "errors"

var (
	ErrNotFound    = errors.New("symbol or expiration not found")
	ErrRateLimited = errors.New("rate limited by provider")
	ErrAuthFailed  = errors.New("authentication failed")
)
