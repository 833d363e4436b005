package models

import (
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation error")
	ErrUniqueViolation = errors.New("unique violation")

	// ErrUpstream marks a transcription, translation or summarization
	// collaborator that answered with a non-success status or a payload we
	// could not decode.
	ErrUpstream = errors.New("upstream failure")
	// ErrTimeout marks a collaborator call that did not complete in time.
	ErrTimeout = errors.New("upstream timeout")
	// ErrConfiguration marks a missing endpoint or credential.
	ErrConfiguration = errors.New("configuration error")
	// ErrLedgerInvariant means an allocation did not add up to the billed
	// minutes. It is a programming error and is never shown to users.
	ErrLedgerInvariant = errors.New("ledger invariant violated")
	// ErrEntitlement is returned when an org may not start a new job.
	ErrEntitlement = errors.New("entitlement denied")
)
