package domain

import "errors"

// Sentinel errors returned by repositories and services. Handlers map these
// to HTTP status codes; callers branch with errors.Is.
var (
	// ErrValidation wraps request-shape failures (bad quantity, duplicate
	// attendee names, malformed discount input). Nothing is persisted.
	ErrValidation = errors.New("validation failed")

	ErrNotFound = errors.New("not found")

	// ErrSoldOut means the event does not have enough remaining capacity
	// for the requested quantity.
	ErrSoldOut       = errors.New("not enough tickets available")
	ErrEventInactive = errors.New("event is not active")
	ErrEventPast     = errors.New("event has already taken place")

	// ErrAlreadyTerminal means the reservation is cancelled or expired and
	// the requested transition is not allowed.
	ErrAlreadyTerminal = errors.New("reservation is already finalized")
	// ErrAlreadyPaid means the reservation is paid; cancellation must go
	// through a refund process instead.
	ErrAlreadyPaid = errors.New("reservation is already paid")
	// ErrExpired means the reservation's hold deadline passed before the
	// operation; the buyer should start a new reservation.
	ErrExpired = errors.New("reservation has expired")

	ErrForbidden = errors.New("access denied")

	// ErrGatewayUnavailable wraps transient payment-gateway failures; the
	// caller may retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrInvalidSignature means a gateway callback failed authenticity
	// verification. No state is mutated.
	ErrInvalidSignature = errors.New("callback signature verification failed")
	// ErrCheckoutInProgress means another checkout session is being opened
	// for the same reservation right now.
	ErrCheckoutInProgress = errors.New("checkout already in progress")

	ErrDiscountDisabled  = errors.New("discount code is disabled")
	ErrDiscountNotActive = errors.New("discount code is outside its validity window")
	ErrDiscountUsed      = errors.New("discount code already used by this buyer")
)
