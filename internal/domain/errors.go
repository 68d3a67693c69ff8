package domain

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")

	ErrUnauthenticated          = errors.New("unauthenticated")
	ErrInvalidCredential        = errors.New("invalid credential")
	ErrBundleNotFound           = errors.New("bundle not found")
	ErrCreatorNotFound          = errors.New("creator not found")
	ErrPaymentReferenceNotFound = errors.New("payment reference not found")
	ErrPaymentNotConfirmed      = errors.New("payment not confirmed")
	ErrForbidden                = errors.New("access denied")
	ErrMetadataMismatch         = errors.New("payment metadata does not match the requested purchase")
	ErrAlreadyPurchased         = errors.New("bundle has already been purchased")
	ErrUpstreamUnavailable      = errors.New("upstream service unavailable")

	// ErrConflict reports a lost conditional write. It is resolved inside the
	// entitlement service and must not be surfaced to API callers.
	ErrConflict = errors.New("conflicting write")
)
