package plaid

import (
	"errors"
	"fmt"
)

var (
	ErrCredentialsMissing = errors.New("missing Plaid credentials")
	ErrMissingToken       = errors.New("missing token")
	ErrAggregator         = errors.New("plaid api error")
	ErrExchangeFailed     = errors.New("token exchange failed")
	ErrFetchFailed        = errors.New("fetch failed")
)

// APIError reports a non-2xx response. Kind is one of ErrAggregator,
// ErrExchangeFailed or ErrFetchFailed and is matched by errors.Is.
type APIError struct {
	Kind     error
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v: %s returned status %d", e.Kind, e.Endpoint, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}
