package domain

import "errors"

// ErrorCode is a business-rule outcome returned to the buyer, not an error.
// An empty code means the request passed.
type ErrorCode string

const (
	CodeNone                 ErrorCode = ""
	CodeTicketNotAvailable   ErrorCode = "ticket_not_available"
	CodeTooManyTickets       ErrorCode = "too_many_tickets"
	CodeNoTicketsSelected    ErrorCode = "no_tickets_selected"
	CodeDuplicateTicket      ErrorCode = "duplicate_ticket"
	CodeMixedSales           ErrorCode = "mixed_seat_sales"
	CodeNotOnSale            ErrorCode = "not_on_sale"
	CodeIncompleteUnit       ErrorCode = "incomplete_unit"
	CodeInvalidOption        ErrorCode = "invalid_option"
	CodeCouponNotAvailable   ErrorCode = "coupon_not_available"
	CodeCampaignNotAvailable ErrorCode = "campaign_not_available"
)

// Domain errors
var (
	// Cart errors
	ErrEmptyCart    = errors.New("cart has no tickets")
	ErrCartNotFound = errors.New("cart not found")

	// Payment errors
	ErrDuplicateCapture = errors.New("charge is already being captured")
	ErrChargeMismatch   = errors.New("charge does not belong to this cart")
	ErrChargeNotStarted = errors.New("payment has not been started for this cart")
	ErrHoldLost         = errors.New("seat hold expired before payment")

	// Ticket errors
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrTransferTokenNotFound  = errors.New("transfer token not found")
	ErrTicketNotSold          = errors.New("ticket is not sold")
	ErrTicketExpired          = errors.New("ticket has expired")
	ErrSelfTransfer           = errors.New("cannot transfer a ticket to its owner")
	ErrAdmissionStarted       = errors.New("admission has already started")
	ErrTransferAlreadyOffered = errors.New("transfer already offered")
	ErrNoTransferOffered      = errors.New("no transfer offered")
	ErrNotTicketOwner         = errors.New("ticket belongs to another user")
	ErrTicketHasOwner         = errors.New("ticket already has an owner")
	ErrTicketReserved         = errors.New("ticket is temporarily held")
	ErrTicketNotStopped       = errors.New("ticket is not stopped for sale")
	ErrInvalidTransition      = errors.New("invalid ticket status transition")
	ErrTransferConflict       = errors.New("ticket changed concurrently")

	// Sale errors
	ErrSeatSaleNotFound = errors.New("seat sale not found")
	ErrSalesClosed      = errors.New("sales window has closed")
	ErrNotOnSale        = errors.New("seat sale is not on sale")

	// Catalog errors
	ErrSeatTypeNotFound = errors.New("seat type not found")
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrCouponUsed       = errors.New("coupon has already been used")
	ErrOrderNotFound    = errors.New("order not found")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrTransferTokenNotFound) ||
		errors.Is(err, ErrCartNotFound) ||
		errors.Is(err, ErrSeatSaleNotFound) ||
		errors.Is(err, ErrSeatTypeNotFound) ||
		errors.Is(err, ErrCouponNotFound) ||
		errors.Is(err, ErrCampaignNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsForbiddenError checks if the caller may not act on the resource
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrNotTicketOwner) ||
		errors.Is(err, ErrChargeMismatch)
}

// IsExpiredError checks if the error is caused by a closed window
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrTicketExpired) ||
		errors.Is(err, ErrSalesClosed) ||
		errors.Is(err, ErrHoldLost)
}

// IsConflictError checks if the error is a state conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateCapture) ||
		errors.Is(err, ErrTicketNotSold) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrAdmissionStarted) ||
		errors.Is(err, ErrTransferAlreadyOffered) ||
		errors.Is(err, ErrNoTransferOffered) ||
		errors.Is(err, ErrTicketHasOwner) ||
		errors.Is(err, ErrTicketReserved) ||
		errors.Is(err, ErrTicketNotStopped) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTransferConflict) ||
		errors.Is(err, ErrNotOnSale) ||
		errors.Is(err, ErrCouponUsed) ||
		errors.Is(err, ErrChargeNotStarted)
}

// IsValidationError checks if the request itself is malformed
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyCart)
}
