package box

// --- Box header (C2) ---
//
// Mirrors the teacher's writeBoxInfo helper in box.go, generalized to also
// decode, and to support the 64-bit largesize and "uuid" extended-type
// escape hatches spec.md requires but the teacher never emits.

const (
	headerSize32     = 8  // size(4) + type(4)
	headerSize64     = 16 // size(4)==1 + type(4) + largesize(8)
	headerSizeUUID32 = 24 // headerSize32 + extended_type(16)
	headerSizeUUID64 = 32 // headerSize64 + extended_type(16)
)

// boxSizeLargeSentinel is the size field value signalling a 64-bit largesize
// field follows the type.
const boxSizeLargeSentinel = 1

// boxSizeToEOF is the size field value signalling "box extends to the end
// of its enclosing range" (end of file for a top-level box) (spec §3.1).
const boxSizeToEOF = 0

// Header is the decoded form of a box's leading size+type (+largesize)
// (+extended_type) fields.
type Header struct {
	// Size is the total encoded size of the box, including this header. A
	// header read with the on-wire size 0 carries the resolved size up to the
	// end of the enclosing range, never 0.
	Size uint64
	Type BoxType
	// Ext16 carries the 16-byte extended type when Type is "uuid".
	Ext16 BoxType16
}

// HeaderSize returns the number of bytes this header occupies on the wire.
func (h Header) HeaderSize() int {
	switch {
	case h.Type == TypeUUID && h.Size > 0xFFFFFFFF:
		return headerSizeUUID64
	case h.Type == TypeUUID:
		return headerSizeUUID32
	case h.Size > 0xFFFFFFFF:
		return headerSize64
	default:
		return headerSize32
	}
}

// WriteHeader encodes h at *pos. Callers that don't know Size up front
// should use ReserveHeader / PatchSize instead.
func WriteHeader(buf []byte, pos *int, h Header) error {
	large := h.Size > 0xFFFFFFFF
	switch {
	case large:
		WriteUint32(buf, pos, boxSizeLargeSentinel)
		WriteBytes(buf, pos, h.Type[:])
		WriteUint64(buf, pos, h.Size)
	default:
		WriteUint32(buf, pos, uint32(h.Size))
		WriteBytes(buf, pos, h.Type[:])
	}
	if h.Type == TypeUUID {
		WriteBytes(buf, pos, h.Ext16[:])
	}
	return nil
}

// ReadHeader decodes a box header starting at *pos. end is the end of the
// enclosing buffer (used to resolve a boxSizeToEOF size field).
func ReadHeader(buf []byte, pos *int, end int) (Header, error) {
	start := *pos
	if *pos+headerSize32 > len(buf) {
		return Header{}, errUnderrun()
	}
	size32, err := ReadUint32(buf, pos)
	if err != nil {
		return Header{}, err
	}
	typeBytes, err := ReadBytes(buf, pos, 4)
	if err != nil {
		return Header{}, err
	}
	var h Header
	copy(h.Type[:], typeBytes)

	switch size32 {
	case boxSizeLargeSentinel:
		size64, err := ReadUint64(buf, pos)
		if err != nil {
			return Header{}, err
		}
		if size64 < headerSize64 {
			return Header{}, errInvalidData("largesize %d smaller than header", size64)
		}
		h.Size = size64
	case boxSizeToEOF:
		h.Size = uint64(end - start)
	default:
		if size32 < headerSize32 {
			return Header{}, errInvalidData("box size %d smaller than header", size32)
		}
		h.Size = uint64(size32)
	}

	if h.Type == TypeUUID {
		ext, err := ReadBytes(buf, pos, 16)
		if err != nil {
			return Header{}, err
		}
		copy(h.Ext16[:], ext)
	}

	if int(h.Size) < 0 || start+int(h.Size) > end {
		return Header{}, errInvalidData("box %q size %d exceeds enclosing range", h.Type, h.Size)
	}
	return h, nil
}

// ReserveHeader writes a placeholder 32-bit header (size field zeroed) and
// returns the position at which PatchSize must later back-patch the real
// size, implementing the two-pass encode spec.md §4.2 requires for
// variable-length children. Callers that already know the final size
// should call WriteHeader directly instead.
func ReserveHeader(buf []byte, pos *int, t BoxType) (sizeFieldPos int) {
	sizeFieldPos = *pos
	WriteUint32(buf, pos, 0)
	WriteBytes(buf, pos, t[:])
	return sizeFieldPos
}

// PatchSize back-patches the 32-bit size field reserved by ReserveHeader
// once the box's total encoded length is known.
func PatchSize(buf []byte, sizeFieldPos int, size uint32) {
	p := sizeFieldPos
	WriteUint32(buf, &p, size)
}

// --- FullBox header (version + 24-bit flags) ---

// FullBoxHeader is the 4-byte version+flags prefix carried by "full boxes"
// (spec §3.1). Flags are a 24-bit bitfield; IsSet/individual box types
// interpret their own bits.
type FullBoxHeader struct {
	Version uint8
	Flags   uint32 // low 24 bits significant
}

// IsSet reports whether bit is set in Flags.
func (h FullBoxHeader) IsSet(bit uint32) bool { return h.Flags&bit != 0 }

// WriteFullBoxHeader appends the version+flags prefix.
func WriteFullBoxHeader(buf []byte, pos *int, h FullBoxHeader) {
	WriteUint8(buf, pos, h.Version)
	WriteUint24(buf, pos, h.Flags&0xFFFFFF)
}

// ReadFullBoxHeader decodes the version+flags prefix.
func ReadFullBoxHeader(buf []byte, pos *int) (FullBoxHeader, error) {
	version, err := ReadUint8(buf, pos)
	if err != nil {
		return FullBoxHeader{}, err
	}
	flags, err := ReadUint24(buf, pos)
	if err != nil {
		return FullBoxHeader{}, err
	}
	return FullBoxHeader{Version: version, Flags: flags}, nil
}
