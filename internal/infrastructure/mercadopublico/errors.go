package mercadopublico

import (
	"errors"
	"fmt"

	"TenderMonitor/internal/domain"
)

// ErrNotFound is returned by FetchDetail when the upstream answers with an empty Listado.
var ErrNotFound = domain.ErrTenderNotFound

// TransientFetchError covers network failures, timeouts, 429 and 5xx answers.
// It is returned only after the client exhausted its attempts.
type TransientFetchError struct {
	Op         string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient status %d after %d attempt(s)", e.Op, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("%s: transient failure after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// PermanentFetchError covers 4xx answers other than 429 and undecodable payloads.
type PermanentFetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *PermanentFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: permanent status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PermanentFetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth another attempt later.
func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}

// IsPermanent reports whether retrying err can never succeed.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var pe *PermanentFetchError
	return errors.As(err, &pe)
}
