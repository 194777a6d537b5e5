package box

func init() {
	registerDecoder(TypeFtyp, decodeFtyp)
	registerDecoder(TypeMvhd, decodeMvhd)
	registerDecoder(TypeTkhd, decodeTkhd)
	registerDecoder(TypeElst, decodeElst)
	registerDecoder(TypeMdhd, decodeMdhd)
	registerDecoder(TypeHdlr, decodeHdlr)
	registerDecoder(TypeVmhd, decodeVmhd)
	registerDecoder(TypeSmhd, decodeSmhd)
	registerDecoder(TypeDref, decodeDref)
	registerDecoder(TypeURL, decodeURL)
	registerDecoder(TypeFree, decodeFree)
}

// --- ftyp ---

// Ftyp is the File Type Box (spec §3.2).
type Ftyp struct {
	MajorBrand       BoxType
	MinorVersion     uint32
	CompatibleBrands []BoxType
}

func (b *Ftyp) Type() BoxType { return TypeFtyp }
func (b *Ftyp) PayloadSize() int {
	return 4 + 4 + 4*len(b.CompatibleBrands)
}
func (b *Ftyp) MarshalPayload(buf []byte, pos *int) error {
	WriteBytes(buf, pos, b.MajorBrand[:])
	WriteUint32(buf, pos, b.MinorVersion)
	for _, brand := range b.CompatibleBrands {
		WriteBytes(buf, pos, brand[:])
	}
	return nil
}

func decodeFtyp(buf []byte, pos *int, end int) (Box, error) {
	var b Ftyp
	majorBytes, err := ReadBytes(buf, pos, 4)
	if err != nil {
		return nil, err
	}
	copy(b.MajorBrand[:], majorBytes)
	if b.MinorVersion, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	for *pos+4 <= end {
		brandBytes, err := ReadBytes(buf, pos, 4)
		if err != nil {
			return nil, err
		}
		var brand BoxType
		copy(brand[:], brandBytes)
		b.CompatibleBrands = append(b.CompatibleBrands, brand)
	}
	return &b, nil
}

// --- mvhd ---

// Mvhd is the Movie Header Box (spec §3.2).
type Mvhd struct {
	FullBoxHeader
	CreationTime     Mp4FileTime
	ModificationTime Mp4FileTime
	Timescale        uint32
	Duration         uint64
	Rate             FixedPointNumber[int16, uint16]
	Volume           FixedPointNumber[int8, uint8]
	Matrix           [9]int32
	NextTrackID      uint32
}

func (b *Mvhd) Type() BoxType { return TypeMvhd }
func (b *Mvhd) PayloadSize() int {
	n := 4 // version+flags
	if b.Version == 1 {
		n += 8 + 8 + 4 + 8
	} else {
		n += 4 + 4 + 4 + 4
	}
	n += 4 + 2 + 2 + 8 + 9*4 + 6*4 + 4
	return n
}

func (b *Mvhd) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	if b.Version == 1 {
		WriteUint64(buf, pos, uint64(b.CreationTime))
		WriteUint64(buf, pos, uint64(b.ModificationTime))
		WriteUint32(buf, pos, b.Timescale)
		WriteUint64(buf, pos, b.Duration)
	} else {
		WriteUint32(buf, pos, uint32(b.CreationTime))
		WriteUint32(buf, pos, uint32(b.ModificationTime))
		WriteUint32(buf, pos, b.Timescale)
		WriteUint32(buf, pos, uint32(b.Duration))
	}
	WriteUint16(buf, pos, uint16(int16(b.Rate.Integer)))
	WriteUint16(buf, pos, b.Rate.Fraction)
	WriteUint8(buf, pos, uint8(int8(b.Volume.Integer)))
	WriteUint8(buf, pos, b.Volume.Fraction)
	WriteUint16(buf, pos, 0) // reserved
	WriteUint32(buf, pos, 0) // reserved[0]
	WriteUint32(buf, pos, 0) // reserved[1]
	for _, m := range b.Matrix {
		WriteUint32(buf, pos, uint32(m))
	}
	for i := 0; i < 6; i++ {
		WriteUint32(buf, pos, 0) // pre_defined
	}
	WriteUint32(buf, pos, b.NextTrackID)
	return nil
}

func decodeMvhd(buf []byte, pos *int, end int) (Box, error) {
	var b Mvhd
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.Version == 1 {
		ct, err := ReadUint64(buf, pos)
		if err != nil {
			return nil, err
		}
		mt, err := ReadUint64(buf, pos)
		if err != nil {
			return nil, err
		}
		if b.Timescale, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
		if b.Duration, err = ReadUint64(buf, pos); err != nil {
			return nil, err
		}
		b.CreationTime, b.ModificationTime = Mp4FileTime(ct), Mp4FileTime(mt)
	} else {
		ct, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		mt, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		if b.Timescale, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
		dur, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.CreationTime, b.ModificationTime = Mp4FileTime(ct), Mp4FileTime(mt)
		b.Duration = uint64(dur)
	}
	rateInt, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	rateFrac, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	b.Rate = FixedPointNumber[int16, uint16]{Integer: int16(rateInt), Fraction: rateFrac}
	volInt, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	volFrac, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.Volume = FixedPointNumber[int8, uint8]{Integer: int8(volInt), Fraction: volFrac}
	if _, err = ReadUint16(buf, pos); err != nil { // reserved
		return nil, err
	}
	if _, err = ReadUint32(buf, pos); err != nil { // reserved
		return nil, err
	}
	if _, err = ReadUint32(buf, pos); err != nil { // reserved
		return nil, err
	}
	for i := range b.Matrix {
		v, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.Matrix[i] = int32(v)
	}
	for i := 0; i < 6; i++ {
		if _, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
	}
	if b.NextTrackID, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- tkhd ---

const (
	TkhdFlagTrackEnabled   = 0x000001
	TkhdFlagTrackInMovie   = 0x000002
	TkhdFlagTrackInPreview = 0x000004
)

// Tkhd is the Track Header Box (spec §3.2).
type Tkhd struct {
	FullBoxHeader
	CreationTime     Mp4FileTime
	ModificationTime Mp4FileTime
	TrackID          uint32
	Duration         uint64
	Layer            int16
	AlternateGroup   int16
	Volume           FixedPointNumber[int8, uint8]
	Matrix           [9]int32
	Width            FixedPointNumber[uint16, uint16]
	Height           FixedPointNumber[uint16, uint16]
}

func (b *Tkhd) Type() BoxType { return TypeTkhd }
func (b *Tkhd) PayloadSize() int {
	n := 4
	if b.Version == 1 {
		n += 8 + 8 + 4 + 4 + 8
	} else {
		n += 4 + 4 + 4 + 4 + 4
	}
	n += 8 + 2 + 2 + 2 + 2 + 9*4 + 4 + 4
	return n
}

func (b *Tkhd) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	if b.Version == 1 {
		WriteUint64(buf, pos, uint64(b.CreationTime))
		WriteUint64(buf, pos, uint64(b.ModificationTime))
		WriteUint32(buf, pos, b.TrackID)
		WriteUint32(buf, pos, 0) // reserved
		WriteUint64(buf, pos, b.Duration)
	} else {
		WriteUint32(buf, pos, uint32(b.CreationTime))
		WriteUint32(buf, pos, uint32(b.ModificationTime))
		WriteUint32(buf, pos, b.TrackID)
		WriteUint32(buf, pos, 0)
		WriteUint32(buf, pos, uint32(b.Duration))
	}
	WriteUint32(buf, pos, 0) // reserved[2]
	WriteUint32(buf, pos, 0)
	WriteUint16(buf, pos, uint16(b.Layer))
	WriteUint16(buf, pos, uint16(b.AlternateGroup))
	WriteUint8(buf, pos, uint8(int8(b.Volume.Integer)))
	WriteUint8(buf, pos, b.Volume.Fraction)
	WriteUint16(buf, pos, 0) // reserved
	for _, m := range b.Matrix {
		WriteUint32(buf, pos, uint32(m))
	}
	WriteUint16(buf, pos, b.Width.Integer)
	WriteUint16(buf, pos, b.Width.Fraction)
	WriteUint16(buf, pos, b.Height.Integer)
	WriteUint16(buf, pos, b.Height.Fraction)
	return nil
}

func decodeTkhd(buf []byte, pos *int, end int) (Box, error) {
	var b Tkhd
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.Version == 1 {
		ct, _ := ReadUint64(buf, pos)
		mt, _ := ReadUint64(buf, pos)
		if b.TrackID, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
		if _, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
		if b.Duration, err = ReadUint64(buf, pos); err != nil {
			return nil, err
		}
		b.CreationTime, b.ModificationTime = Mp4FileTime(ct), Mp4FileTime(mt)
	} else {
		ct, _ := ReadUint32(buf, pos)
		mt, _ := ReadUint32(buf, pos)
		if b.TrackID, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
		if _, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
		dur, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.CreationTime, b.ModificationTime = Mp4FileTime(ct), Mp4FileTime(mt)
		b.Duration = uint64(dur)
	}
	if _, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if _, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	layer, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	ag, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	b.Layer, b.AlternateGroup = int16(layer), int16(ag)
	volInt, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	volFrac, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.Volume = FixedPointNumber[int8, uint8]{Integer: int8(volInt), Fraction: volFrac}
	if _, err = ReadUint16(buf, pos); err != nil {
		return nil, err
	}
	for i := range b.Matrix {
		v, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.Matrix[i] = int32(v)
	}
	wInt, _ := ReadUint16(buf, pos)
	wFrac, _ := ReadUint16(buf, pos)
	hInt, _ := ReadUint16(buf, pos)
	hFrac, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	b.Width = FixedPointNumber[uint16, uint16]{Integer: wInt, Fraction: wFrac}
	b.Height = FixedPointNumber[uint16, uint16]{Integer: hInt, Fraction: hFrac}
	return &b, nil
}

// --- elst ---

// ElstEntry is one edit list entry (spec §3.2).
type ElstEntry struct {
	SegmentDuration uint64
	MediaTime       int64
	MediaRateInt    int16
	MediaRateFrac   int16
}

// Elst is the Edit List Box (spec §3.2).
type Elst struct {
	FullBoxHeader
	Entries []ElstEntry
}

func (b *Elst) Type() BoxType { return TypeElst }
func (b *Elst) entrySize() int {
	if b.Version == 1 {
		return 8 + 8 + 2 + 2
	}
	return 4 + 4 + 2 + 2
}
func (b *Elst) PayloadSize() int { return 4 + 4 + len(b.Entries)*b.entrySize() }

func (b *Elst) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.Entries)))
	for _, e := range b.Entries {
		if b.Version == 1 {
			WriteUint64(buf, pos, e.SegmentDuration)
			WriteUint64(buf, pos, uint64(e.MediaTime))
		} else {
			WriteUint32(buf, pos, uint32(e.SegmentDuration))
			WriteUint32(buf, pos, uint32(e.MediaTime))
		}
		WriteUint16(buf, pos, uint16(e.MediaRateInt))
		WriteUint16(buf, pos, uint16(e.MediaRateFrac))
	}
	return nil
}

func decodeElst(buf []byte, pos *int, end int) (Box, error) {
	var b Elst
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var e ElstEntry
		if b.Version == 1 {
			dur, err := ReadUint64(buf, pos)
			if err != nil {
				return nil, err
			}
			mt, err := ReadUint64(buf, pos)
			if err != nil {
				return nil, err
			}
			e.SegmentDuration, e.MediaTime = dur, int64(mt)
		} else {
			dur, err := ReadUint32(buf, pos)
			if err != nil {
				return nil, err
			}
			mt, err := ReadUint32(buf, pos)
			if err != nil {
				return nil, err
			}
			e.SegmentDuration, e.MediaTime = uint64(dur), int64(int32(mt))
		}
		ri, err := ReadUint16(buf, pos)
		if err != nil {
			return nil, err
		}
		rf, err := ReadUint16(buf, pos)
		if err != nil {
			return nil, err
		}
		e.MediaRateInt, e.MediaRateFrac = int16(ri), int16(rf)
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.Entries = append(b.Entries, e)
	}
	return &b, nil
}

// --- mdhd ---

// Mdhd is the Media Header Box (spec §3.2). Language is ISO-639-2/T packed
// as three 5-bit values offset by 0x60, per spec.
type Mdhd struct {
	FullBoxHeader
	CreationTime     Mp4FileTime
	ModificationTime Mp4FileTime
	Timescale        uint32
	Duration         uint64
	Language         [3]uint8 // each 0-31 (packed letter minus 0x60)
}

func (b *Mdhd) Type() BoxType { return TypeMdhd }
func (b *Mdhd) PayloadSize() int {
	n := 4
	if b.Version == 1 {
		n += 8 + 8 + 4 + 8
	} else {
		n += 4 + 4 + 4 + 4
	}
	return n + 2 + 2
}

// LanguageUnd returns the packed ISO-639-2/T "und" (undetermined) language
// code used when a track carries no meaningful language tag.
func LanguageUnd() [3]uint8 {
	return [3]uint8{'u' - 0x60, 'n' - 0x60, 'd' - 0x60}
}

func (b *Mdhd) languageWord() uint16 {
	pad := NewUint[uint16](0, 1, 15)
	l0 := NewUint(uint16(b.Language[0]), 5, 10)
	l1 := NewUint(uint16(b.Language[1]), 5, 5)
	l2 := NewUint(uint16(b.Language[2]), 5, 0)
	return pad.ToBits() | l0.ToBits() | l1.ToBits() | l2.ToBits()
}

func (b *Mdhd) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	if b.Version == 1 {
		WriteUint64(buf, pos, uint64(b.CreationTime))
		WriteUint64(buf, pos, uint64(b.ModificationTime))
		WriteUint32(buf, pos, b.Timescale)
		WriteUint64(buf, pos, b.Duration)
	} else {
		WriteUint32(buf, pos, uint32(b.CreationTime))
		WriteUint32(buf, pos, uint32(b.ModificationTime))
		WriteUint32(buf, pos, b.Timescale)
		WriteUint32(buf, pos, uint32(b.Duration))
	}
	WriteUint16(buf, pos, b.languageWord())
	WriteUint16(buf, pos, 0) // pre_defined
	return nil
}

func decodeMdhd(buf []byte, pos *int, end int) (Box, error) {
	var b Mdhd
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.Version == 1 {
		ct, _ := ReadUint64(buf, pos)
		mt, _ := ReadUint64(buf, pos)
		if b.Timescale, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
		if b.Duration, err = ReadUint64(buf, pos); err != nil {
			return nil, err
		}
		b.CreationTime, b.ModificationTime = Mp4FileTime(ct), Mp4FileTime(mt)
	} else {
		ct, _ := ReadUint32(buf, pos)
		mt, _ := ReadUint32(buf, pos)
		if b.Timescale, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
		dur, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.CreationTime, b.ModificationTime = Mp4FileTime(ct), Mp4FileTime(mt)
		b.Duration = uint64(dur)
	}
	lang, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	b.Language[0] = uint8(NewUint[uint16](0, 5, 10).FromBits(lang).Get())
	b.Language[1] = uint8(NewUint[uint16](0, 5, 5).FromBits(lang).Get())
	b.Language[2] = uint8(NewUint[uint16](0, 5, 0).FromBits(lang).Get())
	if _, err = ReadUint16(buf, pos); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- hdlr ---

// Hdlr is the Handler Reference Box (spec §3.2). Name is kept as opaque
// bytes rather than decoded text, since producers disagree on whether it is
// NUL-terminated or Pascal-style (an explicit Open Question decision, see
// DESIGN.md).
type Hdlr struct {
	FullBoxHeader
	HandlerType BoxType
	Name        []byte
}

func (b *Hdlr) Type() BoxType { return TypeHdlr }
func (b *Hdlr) PayloadSize() int {
	return 4 + 4 + 4 + 4*3 + len(b.Name)
}

func (b *Hdlr) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, 0) // pre_defined
	WriteBytes(buf, pos, b.HandlerType[:])
	WriteUint32(buf, pos, 0) // reserved[0]
	WriteUint32(buf, pos, 0) // reserved[1]
	WriteUint32(buf, pos, 0) // reserved[2]
	WriteBytes(buf, pos, b.Name)
	return nil
}

func decodeHdlr(buf []byte, pos *int, end int) (Box, error) {
	var b Hdlr
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if _, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	htBytes, err := ReadBytes(buf, pos, 4)
	if err != nil {
		return nil, err
	}
	copy(b.HandlerType[:], htBytes)
	for i := 0; i < 3; i++ {
		if _, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
	}
	name, err := ReadBytes(buf, pos, end-*pos)
	if err != nil {
		return nil, err
	}
	b.Name = append([]byte(nil), name...)
	*pos = end
	return &b, nil
}

// --- vmhd / smhd ---

// Vmhd is the Video Media Header Box (spec §3.2). Flags is conventionally 1
// but decoders must tolerate 0 (Open Question, see DESIGN.md).
type Vmhd struct {
	FullBoxHeader
	GraphicsMode uint16
	OpColor      [3]uint16
}

func (b *Vmhd) Type() BoxType    { return TypeVmhd }
func (b *Vmhd) PayloadSize() int { return 4 + 2 + 2*3 }
func (b *Vmhd) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint16(buf, pos, b.GraphicsMode)
	for _, c := range b.OpColor {
		WriteUint16(buf, pos, c)
	}
	return nil
}

func decodeVmhd(buf []byte, pos *int, end int) (Box, error) {
	var b Vmhd
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.GraphicsMode, err = ReadUint16(buf, pos); err != nil {
		return nil, err
	}
	for i := range b.OpColor {
		if b.OpColor[i], err = ReadUint16(buf, pos); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// Smhd is the Sound Media Header Box (spec §3.2).
type Smhd struct {
	FullBoxHeader
	Balance FixedPointNumber[int8, uint8]
}

func (b *Smhd) Type() BoxType    { return TypeSmhd }
func (b *Smhd) PayloadSize() int { return 4 + 2 + 2 }
func (b *Smhd) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint8(buf, pos, uint8(int8(b.Balance.Integer)))
	WriteUint8(buf, pos, b.Balance.Fraction)
	WriteUint16(buf, pos, 0) // reserved
	return nil
}

func decodeSmhd(buf []byte, pos *int, end int) (Box, error) {
	var b Smhd
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	bi, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	bf, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.Balance = FixedPointNumber[int8, uint8]{Integer: int8(bi), Fraction: bf}
	if _, err = ReadUint16(buf, pos); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- dref / url ---

const urlFlagSelfContained = 0x000001

// Url is a "url " data entry box (spec §3.2). When SelfContained (the
// common case for muxed files with no external media data), Location is
// empty and omitted.
type Url struct {
	FullBoxHeader
	Location string
}

func (b *Url) Type() BoxType { return TypeURL }
func (b *Url) PayloadSize() int {
	if b.IsSet(urlFlagSelfContained) {
		return 4
	}
	return 4 + Utf8StringSize(b.Location)
}
func (b *Url) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	if !b.IsSet(urlFlagSelfContained) {
		WriteUtf8String(buf, pos, b.Location)
	}
	return nil
}

func decodeURL(buf []byte, pos *int, end int) (Box, error) {
	var b Url
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if !b.IsSet(urlFlagSelfContained) {
		if b.Location, err = ReadUtf8String(buf, pos, end); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// Dref is the Data Reference Box (spec §3.2); this codec supports only
// self-contained "url " entries, the sole form a muxer that embeds all
// media data produces.
type Dref struct {
	FullBoxHeader
	Entries []*Node // each wraps a *Url
}

func (b *Dref) Type() BoxType    { return TypeDref }
func (b *Dref) PayloadSize() int { return 4 + 4 }
func (b *Dref) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.Entries)))
	return nil
}

func decodeDref(buf []byte, pos *int, end int) (Box, error) {
	var b Dref
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		child, err := DecodeNode(buf, pos, end)
		if err != nil {
			return nil, err
		}
		b.Entries = append(b.Entries, child)
	}
	return &b, nil
}

// NewSelfContainedDref returns the standard single self-contained "url "
// dref, which is all a muxer embedding its own media data ever needs.
//
// The url child must live in Node.Children, not just Dref.Entries: Entries
// is populated by decodeDref for callers that want to inspect a decoded
// dref without walking the tree, but Node.Marshal only ever emits
// Node.Children, never a Box's own bookkeeping fields.
func NewSelfContainedDref() *Node {
	url := Leaf(&Url{FullBoxHeader: FullBoxHeader{Flags: urlFlagSelfContained}})
	return &Node{Box: &Dref{Entries: []*Node{url}}, Children: []*Node{url}}
}

// --- free ---

// Free is a "free" (or "skip") padding box whose payload bytes are kept
// verbatim on read and ignored on structural inspection; it exists purely
// to reserve space for faststart rewriting (spec §4.6.1, §9.1).
type Free struct {
	Payload []byte
}

func (b *Free) Type() BoxType    { return TypeFree }
func (b *Free) PayloadSize() int { return len(b.Payload) }
func (b *Free) MarshalPayload(buf []byte, pos *int) error {
	WriteBytes(buf, pos, b.Payload)
	return nil
}

func decodeFree(buf []byte, pos *int, end int) (Box, error) {
	payload, err := ReadBytes(buf, pos, end-*pos)
	if err != nil {
		return nil, err
	}
	return &Free{Payload: append([]byte(nil), payload...)}, nil
}

// NewFree returns a reserved free box of the given total encoded size
// (header included), used to pad room for the classic muxer's deferred
// moov (spec §4.6.1).
func NewFree(totalSize int) *Node {
	payloadSize := totalSize - headerSize32
	if payloadSize < 0 {
		payloadSize = 0
	}
	return Leaf(&Free{Payload: make([]byte, payloadSize)})
}
