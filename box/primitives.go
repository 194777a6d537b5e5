package box

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// --- big-endian primitive codec (C1) ---
//
// Mirrors the teacher's buf+pos style (see box_types.go's WriteUint32 family)
// but adds the symmetric decode half the teacher's encode-only package never
// needed.

// WriteUint8 appends one byte.
func WriteUint8(buf []byte, pos *int, v uint8) {
	buf[*pos] = v
	*pos++
}

// WriteUint16 appends a big-endian uint16.
func WriteUint16(buf []byte, pos *int, v uint16) {
	binary.BigEndian.PutUint16(buf[*pos:], v)
	*pos += 2
}

// WriteUint24 appends a big-endian 24-bit value (used by FullBox flags).
func WriteUint24(buf []byte, pos *int, v uint32) {
	buf[*pos] = byte(v >> 16)
	buf[*pos+1] = byte(v >> 8)
	buf[*pos+2] = byte(v)
	*pos += 3
}

// WriteUint32 appends a big-endian uint32.
func WriteUint32(buf []byte, pos *int, v uint32) {
	binary.BigEndian.PutUint32(buf[*pos:], v)
	*pos += 4
}

// WriteUint48 appends a big-endian 48-bit value.
func WriteUint48(buf []byte, pos *int, v uint64) {
	b := buf[*pos:]
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
	*pos += 6
}

// WriteUint64 appends a big-endian uint64.
func WriteUint64(buf []byte, pos *int, v uint64) {
	binary.BigEndian.PutUint64(buf[*pos:], v)
	*pos += 8
}

// WriteBytes copies p verbatim.
func WriteBytes(buf []byte, pos *int, p []byte) {
	*pos += copy(buf[*pos:], p)
}

// ReadUint8 reads one byte at *pos, advancing it.
func ReadUint8(buf []byte, pos *int) (uint8, error) {
	if *pos+1 > len(buf) {
		return 0, errUnderrun()
	}
	v := buf[*pos]
	*pos++
	return v, nil
}

// ReadUint16 reads a big-endian uint16 at *pos, advancing it.
func ReadUint16(buf []byte, pos *int) (uint16, error) {
	if *pos+2 > len(buf) {
		return 0, errUnderrun()
	}
	v := binary.BigEndian.Uint16(buf[*pos:])
	*pos += 2
	return v, nil
}

// ReadUint24 reads a big-endian 24-bit value at *pos, advancing it.
func ReadUint24(buf []byte, pos *int) (uint32, error) {
	if *pos+3 > len(buf) {
		return 0, errUnderrun()
	}
	b := buf[*pos:]
	v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	*pos += 3
	return v, nil
}

// ReadUint32 reads a big-endian uint32 at *pos, advancing it.
func ReadUint32(buf []byte, pos *int) (uint32, error) {
	if *pos+4 > len(buf) {
		return 0, errUnderrun()
	}
	v := binary.BigEndian.Uint32(buf[*pos:])
	*pos += 4
	return v, nil
}

// ReadUint48 reads a big-endian 48-bit value at *pos, advancing it.
func ReadUint48(buf []byte, pos *int) (uint64, error) {
	if *pos+6 > len(buf) {
		return 0, errUnderrun()
	}
	b := buf[*pos:]
	v := uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
	*pos += 6
	return v, nil
}

// ReadUint64 reads a big-endian uint64 at *pos, advancing it.
func ReadUint64(buf []byte, pos *int) (uint64, error) {
	if *pos+8 > len(buf) {
		return 0, errUnderrun()
	}
	v := binary.BigEndian.Uint64(buf[*pos:])
	*pos += 8
	return v, nil
}

// ReadBytes reads n bytes at *pos, advancing it. The returned slice aliases buf.
func ReadBytes(buf []byte, pos *int, n int) ([]byte, error) {
	if n < 0 || *pos+n > len(buf) {
		return nil, errUnderrun()
	}
	v := buf[*pos : *pos+n]
	*pos += n
	return v, nil
}

// --- NonZero helpers ---

// ReadNonZeroUint16 reads a uint16 and fails if it is zero.
func ReadNonZeroUint16(buf []byte, pos *int) (uint16, error) {
	v, err := ReadUint16(buf, pos)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, errInvalidData("zero where non-zero required")
	}
	return v, nil
}

// ReadNonZeroUint32 reads a uint32 and fails if it is zero.
func ReadNonZeroUint32(buf []byte, pos *int) (uint32, error) {
	v, err := ReadUint32(buf, pos)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, errInvalidData("zero where non-zero required")
	}
	return v, nil
}

// --- Utf8String ---

// WriteUtf8String appends the UTF-8 bytes of s followed by a single NUL.
func WriteUtf8String(buf []byte, pos *int, s string) {
	WriteBytes(buf, pos, []byte(s))
	WriteUint8(buf, pos, 0)
}

// Utf8StringSize returns the on-wire size of s (bytes plus NUL terminator).
func Utf8StringSize(s string) int { return len(s) + 1 }

// ReadUtf8String reads a NUL-terminated UTF-8 string starting at *pos. If no
// NUL is found before end, the remainder up to end is consumed (tolerant of
// producers that omit the terminator at the very end of a box, mirroring
// real-world hdlr/url producers).
func ReadUtf8String(buf []byte, pos *int, end int) (string, error) {
	if *pos > end || end > len(buf) {
		return "", errUnderrun()
	}
	i := *pos
	for i < end && buf[i] != 0 {
		i++
	}
	s := buf[*pos:i]
	if !utf8.Valid(s) {
		return "", errInvalidData("string is not valid UTF-8")
	}
	if i < end {
		i++ // consume the NUL
	}
	*pos = i
	return string(s), nil
}

// --- FixedPointNumber[I, F] ---

// FixedPointNumber is two concatenated big-endian integers: a signed or
// unsigned integer part I and an unsigned fraction part F. Used for volume,
// rate, sample rate and matrix coefficients (spec §3.1).
type FixedPointNumber[I int8 | int16 | int32 | uint8 | uint16 | uint32, F uint8 | uint16 | uint32] struct {
	Integer  I
	Fraction F
}

// Float64 returns the floating-point value Integer + Fraction/2^bits(F).
func (f FixedPointNumber[I, F]) Float64(fractionBits uint) float64 {
	return float64(f.Integer) + float64(f.Fraction)/math.Pow(2, float64(fractionBits))
}

// --- Mp4FileTime ---

// mp4Epoch is the number of seconds between the MP4 epoch (1904-01-01) and
// the Unix epoch (1970-01-01).
const mp4Epoch = 2082844800

// Mp4FileTime is seconds since 1904-01-01 00:00:00 UTC.
type Mp4FileTime uint64

// FromUnixSeconds converts Unix seconds to Mp4FileTime.
func FromUnixSeconds(unixSeconds int64) Mp4FileTime {
	return Mp4FileTime(unixSeconds + mp4Epoch)
}

// UnixSeconds converts Mp4FileTime back to Unix seconds.
func (t Mp4FileTime) UnixSeconds() int64 {
	return int64(t) - mp4Epoch
}

// --- Uint[T, WIDTH, OFFSET] ---

type uintBacking interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Uint is a zero-cost wrapper over a backing integer T that holds exactly
// WIDTH bits placed at bit offset OFFSET within T. Multiple Uints with
// disjoint (WIDTH, OFFSET) OR together into one byte/word for encode;
// decoders splat the same byte/word into each Uint's FromBits.
//
// WIDTH and OFFSET are carried as struct fields rather than type parameters
// (Go generics cannot parametrize over integer literals); construct via
// NewUint, which truncates an overflowing value to WIDTH bits, or
// CheckedNewUint, which reports the overflow as an error.
type Uint[T uintBacking] struct {
	width, offset uint8
	value         T
}

// NewUint constructs a Uint, truncating v to width bits (matching the
// teacher's encode-time masking idiom, e.g. box_types.go's
// `b.NumOfSequenceParameterSets&0x1f`).
func NewUint[T uintBacking](v T, width, offset uint8) Uint[T] {
	mask := T((uint64(1) << width) - 1)
	return Uint[T]{width: width, offset: offset, value: v & mask}
}

// CheckedNewUint returns an error instead of truncating when v overflows width bits.
func CheckedNewUint[T uintBacking](v T, width, offset uint8) (Uint[T], error) {
	mask := T((uint64(1) << width) - 1)
	if v&mask != v {
		return Uint[T]{}, errInvalidInput("value %v overflows %d-bit field", v, width)
	}
	return Uint[T]{width: width, offset: offset, value: v}, nil
}

// Get returns the logical value.
func (u Uint[T]) Get() T { return u.value }

// ToBits returns (value << offset), combinable with other Uints over
// disjoint bit ranges via bitwise OR.
func (u Uint[T]) ToBits() T { return u.value << u.offset }

// FromBits extracts this Uint's field out of a raw word that may also carry
// other Uints' bits.
func (u Uint[T]) FromBits(raw T) Uint[T] {
	mask := T((uint64(1) << u.width) - 1)
	return Uint[T]{width: u.width, offset: u.offset, value: (raw >> u.offset) & mask}
}
