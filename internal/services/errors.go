package services

import "errors"

var (
	// ErrCaseNotFound covers both a missing case and one owned by someone
	// else.
	ErrCaseNotFound     = errors.New("case not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrCaseClaimed      = errors.New("case already claimed")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrInvalidInput     = errors.New("invalid input")
)
