package models

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrUserBanned          = errors.New("user is banned")
	ErrSelfReferral        = errors.New("user cannot refer itself")
	ErrAlreadyLinked       = errors.New("referrer already set")
	ErrUnknownReferrer     = errors.New("referrer does not exist")
)
