package credential

import "errors"

var (
	// ErrRejected is returned for every failed verification. Malformed input
	// and unknown secrets are deliberately indistinguishable.
	ErrRejected = errors.New("credential rejected")
	// ErrNotFound is returned when revoking a credential the caller does not own.
	ErrNotFound = errors.New("credential not found")
	// ErrStoreWrite wraps persistence failures on issuance.
	ErrStoreWrite = errors.New("credential store write failed")
	// ErrStoreRead wraps lookup failures other than a miss.
	ErrStoreRead = errors.New("credential store read failed")

	ErrInvalidOwner = errors.New("credential owner is required")
	ErrInvalidLabel = errors.New("credential label is too long")
)
