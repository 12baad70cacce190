package effect

import "errors"

// Validation errors. All are raised synchronously at construction time;
// a malformed effect is never deferred to attach time.
var (
	// ErrNegativeDuration indicates a negative delay or interval duration
	ErrNegativeDuration = errors.New("duration must be non-negative")

	// ErrProbRange indicates a probability outside [0, 1]
	ErrProbRange = errors.New("probability must be within [0, 1]")

	// ErrNegativeLimit indicates a negative size limit
	ErrNegativeLimit = errors.New("size limit must be non-negative")

	// ErrAlignNotPositive indicates a non-positive histogram alignment
	ErrAlignNotPositive = errors.New("alignment must be positive")
)
