package models

import "errors"

var (
	ErrNotBound          = errors.New("no enabled project bound to repository")
	ErrBindingConflict   = errors.New("conflicting project bindings")
	ErrNoModerator       = errors.New("no moderator configured")
	ErrCannotActAs       = errors.New("cannot act as identity")
	ErrChangesetNotFound = errors.New("changeset not found")
	ErrUnknownIdentity   = errors.New("unknown identity")
	ErrInvalidCreateMode = errors.New("invalid create mode")
	ErrReviewNotFound    = errors.New("review not found")
)
