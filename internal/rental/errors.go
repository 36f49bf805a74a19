package rental

import "errors"

// Guard violations of the rental lifecycle.  Each transition fails with
// exactly one of these; none of them is ever swallowed.
var (
	ErrInvalidClient                 = errors.New("client is not allowed to rent")
	ErrItemUnavailable               = errors.New("item already has an open rental")
	ErrInvalidDates                  = errors.New("expected return date is before the rental date")
	ErrReturnWindowExceeded          = errors.New("expected return date exceeds the class return period")
	ErrAlreadyReturned               = errors.New("rental has already been returned")
	ErrNotYetReturned                = errors.New("rental has not been returned yet")
	ErrAlreadyPaid                   = errors.New("rental has already been paid")
	ErrCannotDeleteSettledOrReturned = errors.New("rental cannot be deleted after it was returned or paid")
	ErrOutstanding                   = errors.New("rental is outstanding; lateness is not computable")
)
