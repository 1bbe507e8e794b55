package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrJobFinished         = errors.New("job already reached a terminal status")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnknownProvider     = errors.New("unknown video provider")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrRetriesExhausted    = errors.New("maximum retries exceeded")
	ErrJobExpired          = errors.New("job expired before completion")
	ErrEmptyResult         = errors.New("provider returned no usable result")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrInvalidExecContext  = errors.New("invalid executor context")
)
