package statuslist

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBits is returned for a bit size other than 1, 2, 4 or 8.
	ErrInvalidBits = errors.New("invalid bit size")
	// ErrValueOutOfRange is matched by *ValueOutOfRangeError.
	ErrValueOutOfRange = errors.New("value out of range")
	// ErrTrailingBits is returned by strict decoding when the bits past the
	// last status are not clean zero padding.
	ErrTrailingBits = errors.New("invalid trailing bits")
	// ErrShortBuffer is returned when a buffer holds fewer statuses than requested.
	ErrShortBuffer = errors.New("buffer too short")
	// ErrCompression is returned when the packed list cannot be compressed.
	ErrCompression = errors.New("compression failed")
	// ErrDecode is returned when the encoded list is not valid base64.
	ErrDecode = errors.New("invalid encoded list")
	// ErrDecompression is returned when the gzip stream is corrupt or truncated.
	ErrDecompression = errors.New("decompression failed")
	// ErrIndexOutOfRange is returned when an index does not address a status in the list.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrSize is returned when a list size is outside the supported bounds.
	ErrSize = errors.New("invalid size")
)

// ValueOutOfRangeError reports a status that does not fit the bit size of the list.
type ValueOutOfRangeError struct {
	Index int // position in the packed values, -1 if there is none
	Value Status
	Bits  Bits
}

func (e *ValueOutOfRangeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("value %d is too large for bit size %d", e.Value, e.Bits)
	}
	return fmt.Sprintf("value %d at index %d is too large for bit size %d", e.Value, e.Index, e.Bits)
}

// Unwrap makes errors.Is(err, ErrValueOutOfRange) hold.
func (e *ValueOutOfRangeError) Unwrap() error {
	return ErrValueOutOfRange
}
