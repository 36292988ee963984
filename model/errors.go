package model

import "errors"

var (
	// ErrNotFound is returned when no (active) record matches.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyActive is returned when inserting a second active record for a member.
	ErrAlreadyActive = errors.New("member already has an active record")
)
