package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Ledger errors
	ErrTxConflict       = errors.New("transaction conflict: retries exhausted, safe to retry")
	ErrDuplicateXPEvent = errors.New("xp event key already applied")

	// Badge errors
	ErrUnknownCriteria = errors.New("no progress strategy registered for criteria type")
	ErrUnknownBadge    = errors.New("badge not in catalog")

	// Activity errors
	ErrMomentNotFound     = errors.New("moment not found")
	ErrReflectionNotFound = errors.New("reflection entry not found")
	ErrUnknownSlot        = errors.New("unknown reflection answer slot")
	ErrBadDateKey         = errors.New("date key must be YYYY-MM-DD")
)
