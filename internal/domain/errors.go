package domain

import "errors"

// Error kinds shared by every platform component.
// Specific errors wrap exactly one kind so callers can match either.
var (
	ErrAuthorization   = errors.New("authorization error")
	ErrState           = errors.New("state error")
	ErrRegistration    = errors.New("registration error")
	ErrSupply          = errors.New("supply error")
	ErrPayment         = errors.New("payment error")
	ErrOwnership       = errors.New("ownership error")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

var kinds = []error{
	ErrAuthorization,
	ErrState,
	ErrRegistration,
	ErrSupply,
	ErrPayment,
	ErrOwnership,
	ErrNotFound,
	ErrInvalidArgument,
}

// Error is a platform failure with a readable reason.
// Kind may itself be an *Error, forming a chain that ends at one of the kinds above.
type Error struct {
	Kind   error
	Reason string
}

// NewError creates an error of the given kind.
func NewError(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// KindOf returns the kind err belongs to, or nil for errors outside the taxonomy.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

var kindNames = map[error]string{
	ErrAuthorization:   "authorization",
	ErrState:           "state",
	ErrRegistration:    "registration",
	ErrSupply:          "supply",
	ErrPayment:         "payment",
	ErrOwnership:       "ownership",
	ErrNotFound:        "not_found",
	ErrInvalidArgument: "invalid_argument",
}

// KindName returns a short label for err's kind, "internal" outside the taxonomy.
func KindName(err error) string {
	if k := KindOf(err); k != nil {
		return kindNames[k]
	}
	return "internal"
}
