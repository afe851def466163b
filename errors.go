package hpo

import "errors"

//////
// Errors.
//////

var (
	// ErrSamplingExhausted is returned when valid configurations cannot be
	// found within the retry cap (count × 100 failed draws). It is fatal to the
	// strategy being constructed and is surfaced to the caller unchanged.
	ErrSamplingExhausted = errors.New("sampling exhausted")

	// ErrInvalidConfiguration is returned by Space.Validate when an active
	// parameter is missing, an inactive one is present, a name is unknown, or a
	// value falls outside its parameter's domain. Sampling and grid generation
	// consume it internally; it never escapes them.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownParameterKind indicates a parameter whose type is not one of
	// Categorical, Ordinal, Constant, Continuous or Integer.
	ErrUnknownParameterKind = errors.New("unknown parameter kind")

	// ErrInvalidSpace is returned by NewSpace for malformed parameter or
	// condition declarations.
	ErrInvalidSpace = errors.New("invalid configuration space")

	// ErrInvalidBudget is returned by strategy constructors when the budget
	// or strategy settings are inconsistent.
	ErrInvalidBudget = errors.New("invalid budget")

	// ErrNoRandomState is returned by Sample and Grid when no random source is
	// given.
	ErrNoRandomState = errors.New("random source is required")

	// ErrInvalidResult is returned by Tell for NaN or infinite results.
	ErrInvalidResult = errors.New("invalid result")

	// ErrProtocolViolation is returned when Ask and Tell are not strictly
	// alternated.
	ErrProtocolViolation = errors.New("ask/tell protocol violation")
)
