package scheduler

import "errors"

var (
	ErrInvalidWithdrawal    = errors.New("invalid withdrawal request")
	ErrOutsideBusinessHours = errors.New("withdrawal processing is only available during business hours")
	ErrRequestNotFound      = errors.New("withdrawal request not found")
	ErrAlreadyProcessed     = errors.New("withdrawal request has already been processed")
	ErrNotCancellable       = errors.New("withdrawal request can no longer be cancelled")
)
