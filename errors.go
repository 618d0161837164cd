package opdb

import (
	"errors"
	"fmt"
)

// Common read path errors
var (
	// ErrOpen indicates the source database could not be opened
	ErrOpen = errors.New("failed to open database")

	// ErrNotFound indicates a well-formed key is absent from the store
	ErrNotFound = errors.New("not found")

	// ErrDecode indicates fetched bytes are not valid RLP for the expected shape
	ErrDecode = errors.New("rlp decode failed")

	// ErrIntegrity indicates bytes parse as RLP but violate a structural invariant
	ErrIntegrity = errors.New("integrity violation")

	// ErrInvalidSchema indicates a key schema whose families would overlap
	ErrInvalidSchema = errors.New("invalid key schema")

	// ErrUnsupportedEngine indicates the storage engine is not supported
	ErrUnsupportedEngine = errors.New("unsupported storage engine")

	// ErrInvalidBlockRange indicates an invalid block range
	ErrInvalidBlockRange = errors.New("invalid block range: start > end")
)

// ReadError records which table and block number a read failed on.
// Err wraps one of ErrNotFound, ErrDecode or ErrIntegrity, or the
// underlying storage error when the store itself failed.
type ReadError struct {
	Table  string
	Number uint64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s #%d: %v", e.Table, e.Number, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err signals an absent key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
