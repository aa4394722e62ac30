package money

import "errors"

// Common money package errors
var (
	// ErrInvalidAmount is returned when an amount string cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrTooPrecise is returned when an amount carries more than two decimal places.
	ErrTooPrecise = errors.New("amount has more than 2 decimal places")

	// ErrAmountOverflow is returned when an amount does not fit the fixed-point range.
	ErrAmountOverflow = errors.New("amount exceeds maximum supported value")

	// ErrInvalidCurrency is returned for unknown currency codes.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrInvalidPercent is returned for negative percentages.
	ErrInvalidPercent = errors.New("percentage cannot be negative")
)
