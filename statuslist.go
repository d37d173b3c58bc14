// Package statuslist implements the status list of
// draft-looker-oauth-jwt-cwt-status-list: a compressed array of fixed width
// statuses, one per issued token, addressed by index.
//
// The list is packed least significant bit first, gzipped with a fixed
// modification time and base64url encoded, so that every conforming
// implementation produces the same "lst" string for the same statuses.
// Signing, the JWT/CWT envelope and retrieval of the list are left to the
// caller.
package statuslist

import (
	"encoding/json"
	"fmt"
)

const (
	// MaxSize is the largest number of statuses a list may hold.
	MaxSize = 1 << 24
	minSize = 1
)

// StatusReference is the "status_list" member of a referenced token's
// "status" claim. See
// https://datatracker.ietf.org/doc/html/draft-looker-oauth-jwt-cwt-status-list-01#name-status-claim-format
type StatusReference struct {
	Index int    `json:"idx"`
	URI   string `json:"uri"`
}

// NewStatusReference creates a reference to the status at idx in the list published at uri.
func NewStatusReference(uri string, idx int) StatusReference {
	return StatusReference{
		Index: idx,
		URI:   uri,
	}
}

// StatusList is the "status_list" claim of a status list token. EncodedList
// is kept in sync with the statuses on every update.
//
// A StatusList is not safe for concurrent updates.
type StatusList struct {
	BitSize     Bits   `json:"bits"`
	EncodedList string `json:"lst"`
	statuses    []Status
}

// NewStatusList creates a list of size statuses, all StatusValid.
func NewStatusList(bits Bits, size int) (sl *StatusList, err error) {
	if err = bits.check(); err != nil {
		return
	}
	if size > MaxSize || size < minSize {
		err = fmt.Errorf("%w: must be between %d and %d, got %d", ErrSize, minSize, MaxSize, size)
		return
	}
	return NewStatusListFromValues(bits, make([]Status, size))
}

// NewStatusListFromValues creates a list holding a copy of values.
func NewStatusListFromValues(bits Bits, values []Status) (sl *StatusList, err error) {
	if len(values) > MaxSize || len(values) < minSize {
		err = fmt.Errorf("%w: must be between %d and %d, got %d", ErrSize, minSize, MaxSize, len(values))
		return
	}
	statuses := make([]Status, len(values))
	copy(statuses, values)

	lst, err := Encode(statuses, bits)
	if err != nil {
		return
	}
	sl = &StatusList{
		BitSize:     bits,
		EncodedList: lst,
		statuses:    statuses,
	}
	return
}

// NewStatusListFromJSON parses a "status_list" claim. The list length is
// the number of fields in the decoded buffer, padding included.
func NewStatusListFromJSON(data []byte) (sl *StatusList, err error) {
	sl = &StatusList{}
	if err = json.Unmarshal(data, sl); err != nil {
		sl = nil
		return
	}
	if err = sl.BitSize.check(); err != nil {
		sl = nil
		return
	}
	// decode the list to statuses, refusing anything larger than MaxSize
	c := NewCodec(WithMaxLen(PackedLen(MaxSize, sl.BitSize)))
	if sl.statuses, err = c.Decode(sl.EncodedList, sl.BitSize); err != nil {
		sl = nil
		return
	}
	if sl.Len() > MaxSize || sl.Len() < minSize {
		err = fmt.Errorf("%w: must be between %d and %d, got %d", ErrSize, minSize, MaxSize, sl.Len())
		sl = nil
		return
	}
	return
}

// Len returns the number of statuses in the list.
func (sl StatusList) Len() int {
	return len(sl.statuses)
}

// Values returns a copy of the statuses.
func (sl StatusList) Values() []Status {
	values := make([]Status, len(sl.statuses))
	copy(values, sl.statuses)
	return values
}

// Get returns the status at idx.
func (sl StatusList) Get(idx int) (Status, error) {
	if idx < 0 || idx >= sl.Len() {
		return 0, fmt.Errorf("%w: 0-%d: %d", ErrIndexOutOfRange, sl.Len()-1, idx)
	}
	return sl.statuses[idx], nil
}

// Status returns the status the reference points to. The URI is not
// checked: the list does not know where it is published.
func (sl StatusList) Status(ref StatusReference) (Status, error) {
	return sl.Get(ref.Index)
}

// IsRevoked reports whether the referenced token has status StatusInvalid.
func (sl StatusList) IsRevoked(ref StatusReference) (isIt bool, err error) {
	s, err := sl.Status(ref)
	if err != nil {
		return
	}
	isIt = s == StatusInvalid
	return
}

// Update sets status at every index and re-encodes the list. Nothing is
// changed if an index or the status is out of range.
func (sl *StatusList) Update(status Status, indexes ...int) (err error) {
	if status > sl.BitSize.MaxValue() {
		err = &ValueOutOfRangeError{Index: -1, Value: status, Bits: sl.BitSize}
		return
	}
	for _, i := range indexes {
		if i < 0 || i >= sl.Len() {
			err = fmt.Errorf("%w: 0-%d: %d", ErrIndexOutOfRange, sl.Len()-1, i)
			return
		}
	}
	for _, i := range indexes {
		sl.statuses[i] = status
	}
	sl.EncodedList, err = Encode(sl.statuses, sl.BitSize)
	return
}

// Set sets the status at idx.
func (sl *StatusList) Set(idx int, status Status) error {
	return sl.Update(status, idx)
}

// Revoke marks the tokens at indexes as StatusInvalid.
func (sl *StatusList) Revoke(indexes ...int) error {
	return sl.Update(StatusInvalid, indexes...)
}

// Suspend marks the tokens at indexes as StatusSuspended. It fails for
// lists of bit size 1.
func (sl *StatusList) Suspend(indexes ...int) error {
	return sl.Update(StatusSuspended, indexes...)
}

// Reset marks the tokens at indexes as StatusValid.
func (sl *StatusList) Reset(indexes ...int) error {
	return sl.Update(StatusValid, indexes...)
}

// EncodeWith encodes the statuses with c instead of DefaultCodec. The
// EncodedList field is left untouched.
func (sl StatusList) EncodeWith(c Codec) (string, error) {
	return c.Encode(sl.statuses, sl.BitSize)
}
