package domain

import "errors"

var (
	// ErrInsufficientHistory means not enough past consumption days
	// were available to build a baseline.
	ErrInsufficientHistory = errors.New("insufficient consumption history")
	// ErrForecastUnavailable means a generation forecast could not be
	// obtained for the planning horizon.
	ErrForecastUnavailable = errors.New("generation forecast unavailable")
	// ErrInvalidRuleConfiguration means the sequencer rule set failed
	// validation.
	ErrInvalidRuleConfiguration = errors.New("invalid rule configuration")
	// ErrCollaboratorWrite means a write to an external collaborator
	// failed after retries.
	ErrCollaboratorWrite = errors.New("collaborator write failed")
)
