package statuslist

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/noandrea/statuslist/internal/deflate"
)

// ReferenceModTimeUnix is the gzip modification time, in seconds since the
// Unix epoch, stamped by the reference encoders of
// draft-looker-oauth-jwt-cwt-status-list (2023-06-16T10:56:10Z). The encoded
// list is compared as a string across implementations, so it has to be the
// same everywhere.
const ReferenceModTimeUnix = 1686912970

// ReferenceModTime is ReferenceModTimeUnix as a time.
var ReferenceModTime = time.Unix(ReferenceModTimeUnix, 0).UTC()

const (
	// BestCompression is the level used by the reference encoders.
	BestCompression = deflate.BestCompression

	gzipID1       = 0x1f
	gzipID2       = 0x8b
	gzipDeflate   = 8
	gzipOSUnknown = 0xff
)

// Codec turns packed status lists into the text form of the "lst" claim and
// back. The zero value is not usable; start from DefaultCodec or NewCodec.
type Codec struct {
	// ModTime is written in the MTIME field of the gzip header.
	ModTime time.Time
	// Level is the zlib compression level, 4 to 9.
	Level int
	// MaxLen caps the decompressed size in bytes. Zero means DefaultMaxLen.
	MaxLen int
}

// DefaultMaxLen is the packed size of the largest list at the widest bit size.
var DefaultMaxLen = PackedLen(MaxSize, Bits8)

// DefaultCodec produces the same bytes as the reference encoders.
var DefaultCodec = Codec{
	ModTime: ReferenceModTime,
	Level:   BestCompression,
	MaxLen:  DefaultMaxLen,
}

// CodecOption configures a Codec built by NewCodec.
type CodecOption func(*Codec)

// WithModTime overrides the gzip modification time.
func WithModTime(t time.Time) CodecOption {
	return func(c *Codec) {
		c.ModTime = t
	}
}

// WithLevel overrides the compression level.
func WithLevel(level int) CodecOption {
	return func(c *Codec) {
		c.Level = level
	}
}

// WithMaxLen overrides the decompressed size limit.
func WithMaxLen(n int) CodecOption {
	return func(c *Codec) {
		c.MaxLen = n
	}
}

// NewCodec returns DefaultCodec with the options applied.
func NewCodec(opts ...CodecOption) Codec {
	c := DefaultCodec
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Codec) mtime() uint32 {
	if c.ModTime.IsZero() || c.ModTime.Unix() <= 0 || c.ModTime.Unix() > 1<<32-1 {
		return 0
	}
	return uint32(c.ModTime.Unix())
}

func (c Codec) maxLen() int {
	if c.MaxLen <= 0 {
		return DefaultMaxLen
	}
	return c.MaxLen
}

// xfl is the gzip extra flags byte: 2 marks maximum compression.
func (c Codec) xfl() byte {
	if c.Level == deflate.BestCompression {
		return 2
	}
	return 0
}

// Compress gzips buf and returns it base64url encoded without padding.
func (c Codec) Compress(buf []byte) (s string, err error) {
	body, err := deflate.Compress(buf, c.Level)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrCompression, err)
		return
	}

	member := make([]byte, 0, 10+len(body)+8)
	member = append(member, gzipID1, gzipID2, gzipDeflate, 0)
	member = binary.LittleEndian.AppendUint32(member, c.mtime())
	member = append(member, c.xfl(), gzipOSUnknown)
	member = append(member, body...)
	member = binary.LittleEndian.AppendUint32(member, crc32.ChecksumIEEE(buf))
	member = binary.LittleEndian.AppendUint32(member, uint32(len(buf)))

	s = base64.RawURLEncoding.EncodeToString(member)
	return
}

var toURLAlphabet = strings.NewReplacer("+", "-", "/", "_")

// Decompress reverses Compress. Standard base64 and padded input are
// accepted as well. Output longer than MaxLen fails with ErrDecompression.
func (c Codec) Decompress(s string) (buf []byte, err error) {
	s = toURLAlphabet.Replace(strings.TrimRight(s, "="))
	zData, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrDecode, err)
		return
	}

	r, err := gzip.NewReader(bytes.NewReader(zData))
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrDecompression, err)
		return
	}
	defer r.Close()
	limit := c.maxLen()
	if buf, err = io.ReadAll(io.LimitReader(r, int64(limit)+1)); err != nil {
		buf = nil
		err = fmt.Errorf("%w: %v", ErrDecompression, err)
		return
	}
	if len(buf) > limit {
		buf = nil
		err = fmt.Errorf("%w: output exceeds %d bytes", ErrDecompression, limit)
		return
	}
	return
}

// Encode packs values with the given bit size and compresses them.
func (c Codec) Encode(values []Status, bits Bits) (string, error) {
	buf, err := Pack(values, bits)
	if err != nil {
		return "", err
	}
	return c.Compress(buf)
}

// Decode decompresses s and unpacks it with the given bit size.
func (c Codec) Decode(s string, bits Bits, opts ...UnpackOption) ([]Status, error) {
	if err := bits.check(); err != nil {
		return nil, err
	}
	buf, err := c.Decompress(s)
	if err != nil {
		return nil, err
	}
	return Unpack(buf, bits, opts...)
}

// Encode encodes values with DefaultCodec.
func Encode(values []Status, bits Bits) (string, error) {
	return DefaultCodec.Encode(values, bits)
}

// Decode decodes s with DefaultCodec.
func Decode(s string, bits Bits, opts ...UnpackOption) ([]Status, error) {
	return DefaultCodec.Decode(s, bits, opts...)
}
