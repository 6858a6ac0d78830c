package models

import "errors"

var (
	ErrSeatAlreadySold      = errors.New("seat already sold")
	ErrSeatOutOfRange       = errors.New("seat number out of range")
	ErrDuplicateSeat        = errors.New("seat requested more than once")
	ErrNoSeats              = errors.New("at least one seat is required")
	ErrInvalidAmount        = errors.New("amount must not be negative")
	ErrTripNotFound         = errors.New("trip not found")
	ErrTripNotScheduled     = errors.New("trip is not open for sale")
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrTicketNotCancellable = errors.New("ticket cannot be cancelled")
	ErrNoShowNotAllowed     = errors.New("ticket cannot be marked as no-show")
	ErrTicketNotBoardable   = errors.New("ticket is not valid for boarding")
	ErrCancelReason         = errors.New("cancellation reason is required")
	ErrInvalidDNI           = errors.New("dni must have 8 digits")
	ErrPassengerNotFound    = errors.New("passenger not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionNotFound      = errors.New("session not found")
	ErrForbidden            = errors.New("role not allowed for this operation")
	ErrInvalidBoardingPass  = errors.New("invalid boarding pass")
	ErrInvalidDate          = errors.New("date must be YYYY-MM-DD")
)

// Error codes carried in API error bodies and per-seat sale results.
const (
	CodeSeatAlreadySold     = "SEAT_ALREADY_SOLD"
	CodeTripNotScheduled    = "TRIP_NOT_SCHEDULED"
	CodeInvalidState        = "INVALID_STATE"
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidBoardingPass = "INVALID_BOARDING_PASS"
	CodeStorage             = "STORAGE_ERROR"
)

// ErrorCode classifies err into one of the codes above. Unknown errors are storage failures.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSeatAlreadySold):
		return CodeSeatAlreadySold
	case errors.Is(err, ErrTripNotScheduled):
		return CodeTripNotScheduled
	case errors.Is(err, ErrTicketNotCancellable),
		errors.Is(err, ErrNoShowNotAllowed),
		errors.Is(err, ErrTicketNotBoardable):
		return CodeInvalidState
	case errors.Is(err, ErrSeatOutOfRange),
		errors.Is(err, ErrDuplicateSeat),
		errors.Is(err, ErrNoSeats),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrCancelReason),
		errors.Is(err, ErrInvalidDNI),
		errors.Is(err, ErrInvalidDate):
		return CodeValidation
	case errors.Is(err, ErrTripNotFound),
		errors.Is(err, ErrTicketNotFound),
		errors.Is(err, ErrPassengerNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrSessionNotFound):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrInvalidBoardingPass):
		return CodeInvalidBoardingPass
	default:
		return CodeStorage
	}
}

// InternalErrorMessage replaces storage failure details in client responses.
const InternalErrorMessage = "internal error"

// PublicMessage is the text of err that may be shown to clients. Storage
// failures are reduced to a generic message.
func PublicMessage(err error) string {
	if ErrorCode(err) == CodeStorage {
		return InternalErrorMessage
	}
	return err.Error()
}
