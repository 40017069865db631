package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrAlreadyVoted      = errors.New("already voted on this prediction")
	ErrInsufficientFunds = errors.New("insufficient point balance")
	ErrNotOwner          = errors.New("caller does not own this prediction")
	ErrAlreadyResolved   = errors.New("prediction already resolved")
	ErrDeadlineNotPassed = errors.New("resolution deadline has not passed")
	ErrPredictionClosed  = errors.New("prediction is resolved and closed to stakes")
	ErrInvalidStake      = errors.New("stake must be a positive point amount")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrLockHeld          = errors.New("lock already held")
)
