package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally wrapped) and the
// asset service translates them into coded domain errors:
//   - ErrNotFound: no record exists under the key
//   - ErrAlreadyUsed: the key is taken (duplicate registration)
//   - ErrInvalidState: the record exists but cannot accept the write
//   - ErrUnavailable: the backing store cannot be reached
//   - ErrExhausted: no key is left to allocate
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrExhausted    = errors.New("exhausted")
)
