package statuslist

import "fmt"

// Bits is the number of bits used to store each status in a list.
type Bits uint8

// Supported bit sizes.
const (
	Bits1 Bits = 1
	Bits2 Bits = 2
	Bits4 Bits = 4
	Bits8 Bits = 8
)

// Valid reports whether b is one of the supported bit sizes.
func (b Bits) Valid() bool {
	switch b {
	case Bits1, Bits2, Bits4, Bits8:
		return true
	}
	return false
}

// MaxValue returns the largest status that fits in b bits.
func (b Bits) MaxValue() Status {
	return Status(uint16(1)<<b - 1)
}

func (b Bits) check() error {
	if !b.Valid() {
		return fmt.Errorf("%w: %d, expected 1, 2, 4 or 8", ErrInvalidBits, b)
	}
	return nil
}

// Status is the value stored for a token. The named statuses are the ones
// registered by the draft; any value that fits the bit size of the list is
// accepted.
type Status uint8

const (
	StatusValid               Status = 0x00
	StatusInvalid             Status = 0x01
	StatusSuspended           Status = 0x02
	StatusApplicationSpecific Status = 0x03
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "VALID"
	case StatusInvalid:
		return "INVALID"
	case StatusSuspended:
		return "SUSPENDED"
	case StatusApplicationSpecific:
		return "APPLICATION_SPECIFIC"
	}
	return fmt.Sprintf("0x%02X", uint8(s))
}

// PackedLen returns the number of bytes needed to pack n statuses.
func PackedLen(n int, bits Bits) int {
	return (n*int(bits) + 7) / 8
}

// Pack packs values into a byte buffer, bits per value. Bits are laid out
// least significant first, both within a byte and within a value; unused
// high bits of the last byte are zero.
func Pack(values []Status, bits Bits) ([]byte, error) {
	if err := bits.check(); err != nil {
		return nil, err
	}
	maxValue := bits.MaxValue()
	for i, v := range values {
		if v > maxValue {
			return nil, &ValueOutOfRangeError{Index: i, Value: v, Bits: bits}
		}
	}

	buf := make([]byte, PackedLen(len(values), bits))
	width := int(bits)
	// bit sizes divide 8, so a value never spans two bytes
	for i, v := range values {
		pos := i * width
		buf[pos/8] |= byte(v) << (pos % 8)
	}
	return buf, nil
}

// TrailingPolicy selects how Unpack treats the bits after the last status.
type TrailingPolicy int

const (
	// TrailingLenient decodes every bit of the buffer. Without WithLength,
	// padding bits come back as extra statuses, matching the reference
	// decoders.
	TrailingLenient TrailingPolicy = iota
	// TrailingStrict rejects leftover bits that do not form a whole status,
	// and with WithLength requires the buffer to be exactly as long as the
	// packed statuses with zero padding.
	TrailingStrict
)

type unpackOptions struct {
	trailing  TrailingPolicy
	length    int
	hasLength bool
}

// UnpackOption configures Unpack and Decode.
type UnpackOption func(*unpackOptions)

// WithStrictTrailing selects TrailingStrict.
func WithStrictTrailing() UnpackOption {
	return func(o *unpackOptions) {
		o.trailing = TrailingStrict
	}
}

// WithTrailingPolicy selects the given policy.
func WithTrailingPolicy(p TrailingPolicy) UnpackOption {
	return func(o *unpackOptions) {
		o.trailing = p
	}
}

// WithLength decodes exactly n statuses instead of every field of the buffer.
// A negative n fails with ErrShortBuffer.
func WithLength(n int) UnpackOption {
	return func(o *unpackOptions) {
		o.length = n
		o.hasLength = true
	}
}

// Unpack is the inverse of Pack. The buffer carries no length, so by default
// it returns len(buf)*8/bits statuses.
func Unpack(buf []byte, bits Bits, opts ...UnpackOption) ([]Status, error) {
	if err := bits.check(); err != nil {
		return nil, err
	}
	o := unpackOptions{trailing: TrailingLenient}
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasLength && o.length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrShortBuffer, o.length)
	}

	width := int(bits)
	total := len(buf) * 8
	n := total / width
	if rem := total % width; rem != 0 {
		if o.trailing == TrailingStrict {
			return nil, fmt.Errorf("%w: %d bits do not form a status", ErrTrailingBits, rem)
		}
		n++
	}

	if o.hasLength {
		if o.length > total/width {
			return nil, fmt.Errorf("%w: holds %d statuses, want %d", ErrShortBuffer, total/width, o.length)
		}
		if o.trailing == TrailingStrict {
			if want := PackedLen(o.length, bits); len(buf) != want {
				return nil, fmt.Errorf("%w: %d bytes, want %d", ErrTrailingBits, len(buf), want)
			}
			for pos := o.length * width; pos < total; pos++ {
				if buf[pos/8]>>(pos%8)&1 != 0 {
					return nil, fmt.Errorf("%w: padding bit %d is set", ErrTrailingBits, pos)
				}
			}
		}
		n = o.length
	}

	values := make([]Status, n)
	for i := range values {
		var v Status
		for b := 0; b < width; b++ {
			pos := i*width + b
			if pos >= total {
				// short last field, zero extended
				break
			}
			v |= Status(buf[pos/8]>>(pos%8)&1) << b
		}
		values[i] = v
	}
	return values, nil
}
