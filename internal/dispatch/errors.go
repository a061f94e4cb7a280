package dispatch

import "errors"

// Failures surfaced to callers. Classification failures never appear here.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyMember = errors.New("already a member")
	ErrMediaUpload   = errors.New("media upload failed")
)
