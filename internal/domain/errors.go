package domain

import "errors"

var (
	// ErrQuotaExceeded signals that a spend request exceeds the combined
	// daily and bonus allowance.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrFeedbackAlreadySubmitted signals a repeated feedback-form submission.
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted")
)
