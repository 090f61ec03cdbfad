package datafile

import (
	"errors"
	"fmt"
)

// ErrFetch matches every datafile fetch failure with errors.Is.
var ErrFetch = errors.New("datafile fetch failed")

// FetchError describes a failed datafile fetch. StatusCode is zero when no response arrived.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("datafile fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("datafile fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrFetch for every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }
