package document

import "errors"

var (
	// ErrNotFound is returned when no document row exists for the provided identifier.
	ErrNotFound = errors.New("document: not found")
	// ErrForbidden signals the caller's role or ownership does not permit the action.
	ErrForbidden = errors.New("document: forbidden")
	// ErrInvalidAction signals an action name the review stage does not recognise.
	ErrInvalidAction = errors.New("document: invalid action")
	// ErrValidation signals missing or malformed submission fields.
	ErrValidation = errors.New("document: validation failed")
	// ErrConflict signals a store-level uniqueness violation.
	ErrConflict = errors.New("document: conflict")
	// ErrInvalidTransition is returned in strict mode when the document's
	// current status does not admit the requested stage action.
	ErrInvalidTransition = errors.New("document: invalid transition")
	// ErrDuplicateIdempotencyKey signals the idempotency key was already used;
	// the store returns the current document alongside it.
	ErrDuplicateIdempotencyKey = errors.New("document: duplicate idempotency key")
)
