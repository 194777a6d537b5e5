package box

func init() {
	registerDecoder(TypeMfhd, decodeMfhd)
	registerDecoder(TypeTfhd, decodeTfhd)
	registerDecoder(TypeTfdt, decodeTfdt)
	registerDecoder(TypeTrun, decodeTrun)
	registerDecoder(TypeSidx, decodeSidx)
	registerDecoder(TypeTfra, decodeTfra)
	registerDecoder(TypeMfro, decodeMfro)
	registerDecoder(TypeMehd, decodeMehd)
	registerDecoder(TypeTrex, decodeTrex)
}

// --- mvex / mehd / trex ---

// Mehd is the Movie Extends Header Box, giving the overall fragmented
// duration (spec §4.7).
type Mehd struct {
	FullBoxHeader
	FragmentDuration uint64
}

func (b *Mehd) Type() BoxType { return TypeMehd }
func (b *Mehd) PayloadSize() int {
	if b.Version == 1 {
		return 4 + 8
	}
	return 4 + 4
}
func (b *Mehd) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	if b.Version == 1 {
		WriteUint64(buf, pos, b.FragmentDuration)
	} else {
		WriteUint32(buf, pos, uint32(b.FragmentDuration))
	}
	return nil
}

func decodeMehd(buf []byte, pos *int, end int) (Box, error) {
	var b Mehd
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.Version == 1 {
		if b.FragmentDuration, err = ReadUint64(buf, pos); err != nil {
			return nil, err
		}
	} else {
		d, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.FragmentDuration = uint64(d)
	}
	return &b, nil
}

// Trex is the Track Extends Box, the per-track fragment defaults that tfhd
// may override (spec §4.7).
type Trex struct {
	FullBoxHeader
	TrackID                       uint32
	DefaultSampleDescriptionIndex uint32
	DefaultSampleDuration         uint32
	DefaultSampleSize             uint32
	DefaultSampleFlags            uint32
}

func (b *Trex) Type() BoxType    { return TypeTrex }
func (b *Trex) PayloadSize() int { return 4 + 4*5 }
func (b *Trex) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, b.TrackID)
	WriteUint32(buf, pos, b.DefaultSampleDescriptionIndex)
	WriteUint32(buf, pos, b.DefaultSampleDuration)
	WriteUint32(buf, pos, b.DefaultSampleSize)
	WriteUint32(buf, pos, b.DefaultSampleFlags)
	return nil
}

func decodeTrex(buf []byte, pos *int, end int) (Box, error) {
	var b Trex
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.TrackID, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.DefaultSampleDescriptionIndex, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.DefaultSampleDuration, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.DefaultSampleSize, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.DefaultSampleFlags, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- moof / mfhd ---

// Mfhd is the Movie Fragment Header Box, a monotonically increasing
// fragment sequence number (spec §4.7).
type Mfhd struct {
	FullBoxHeader
	SequenceNumber uint32
}

func (b *Mfhd) Type() BoxType    { return TypeMfhd }
func (b *Mfhd) PayloadSize() int { return 4 + 4 }
func (b *Mfhd) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, b.SequenceNumber)
	return nil
}

func decodeMfhd(buf []byte, pos *int, end int) (Box, error) {
	var b Mfhd
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.SequenceNumber, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- tfhd ---

const (
	TfhdBaseDataOffsetPresent         = 0x000001
	TfhdSampleDescriptionIndexPresent = 0x000002
	TfhdDefaultSampleDurationPresent  = 0x000008
	TfhdDefaultSampleSizePresent      = 0x000010
	TfhdDefaultSampleFlagsPresent     = 0x000020
	TfhdDurationIsEmpty               = 0x010000
	TfhdDefaultBaseIsMoof              = 0x020000
)

// Tfhd is the Track Fragment Header Box. Every field beyond TrackID is
// flag-gated (spec §4.7).
type Tfhd struct {
	FullBoxHeader
	TrackID                 uint32
	BaseDataOffset          uint64
	SampleDescriptionIndex  uint32
	DefaultSampleDuration   uint32
	DefaultSampleSize       uint32
	DefaultSampleFlags      uint32
}

func (b *Tfhd) Type() BoxType { return TypeTfhd }
func (b *Tfhd) PayloadSize() int {
	n := 4 + 4
	if b.IsSet(TfhdBaseDataOffsetPresent) {
		n += 8
	}
	if b.IsSet(TfhdSampleDescriptionIndexPresent) {
		n += 4
	}
	if b.IsSet(TfhdDefaultSampleDurationPresent) {
		n += 4
	}
	if b.IsSet(TfhdDefaultSampleSizePresent) {
		n += 4
	}
	if b.IsSet(TfhdDefaultSampleFlagsPresent) {
		n += 4
	}
	return n
}
func (b *Tfhd) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, b.TrackID)
	if b.IsSet(TfhdBaseDataOffsetPresent) {
		WriteUint64(buf, pos, b.BaseDataOffset)
	}
	if b.IsSet(TfhdSampleDescriptionIndexPresent) {
		WriteUint32(buf, pos, b.SampleDescriptionIndex)
	}
	if b.IsSet(TfhdDefaultSampleDurationPresent) {
		WriteUint32(buf, pos, b.DefaultSampleDuration)
	}
	if b.IsSet(TfhdDefaultSampleSizePresent) {
		WriteUint32(buf, pos, b.DefaultSampleSize)
	}
	if b.IsSet(TfhdDefaultSampleFlagsPresent) {
		WriteUint32(buf, pos, b.DefaultSampleFlags)
	}
	return nil
}

func decodeTfhd(buf []byte, pos *int, end int) (Box, error) {
	var b Tfhd
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.TrackID, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.IsSet(TfhdBaseDataOffsetPresent) {
		if b.BaseDataOffset, err = ReadUint64(buf, pos); err != nil {
			return nil, err
		}
	}
	if b.IsSet(TfhdSampleDescriptionIndexPresent) {
		if b.SampleDescriptionIndex, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
	}
	if b.IsSet(TfhdDefaultSampleDurationPresent) {
		if b.DefaultSampleDuration, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
	}
	if b.IsSet(TfhdDefaultSampleSizePresent) {
		if b.DefaultSampleSize, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
	}
	if b.IsSet(TfhdDefaultSampleFlagsPresent) {
		if b.DefaultSampleFlags, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// --- tfdt ---

// Tfdt is the Track Fragment Base Media Decode Time Box (spec §4.7).
type Tfdt struct {
	FullBoxHeader
	BaseMediaDecodeTime uint64
}

func (b *Tfdt) Type() BoxType { return TypeTfdt }
func (b *Tfdt) PayloadSize() int {
	if b.Version == 1 {
		return 4 + 8
	}
	return 4 + 4
}
func (b *Tfdt) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	if b.Version == 1 {
		WriteUint64(buf, pos, b.BaseMediaDecodeTime)
	} else {
		WriteUint32(buf, pos, uint32(b.BaseMediaDecodeTime))
	}
	return nil
}

func decodeTfdt(buf []byte, pos *int, end int) (Box, error) {
	var b Tfdt
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.Version == 1 {
		if b.BaseMediaDecodeTime, err = ReadUint64(buf, pos); err != nil {
			return nil, err
		}
	} else {
		d, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.BaseMediaDecodeTime = uint64(d)
	}
	return &b, nil
}

// --- trun ---

const (
	TrunDataOffsetPresent                  = 0x000001
	TrunFirstSampleFlagsPresent             = 0x000004
	TrunSampleDurationPresent                = 0x000100
	TrunSampleSizePresent                    = 0x000200
	TrunSampleFlagsPresent                   = 0x000400
	TrunSampleCompositionTimeOffsetPresent   = 0x000800
)

// TrunEntry is one sample's per-run fields, each flag-gated independently
// of the others (spec §4.7).
type TrunEntry struct {
	SampleDuration              uint32
	SampleSize                  uint32
	SampleFlags                 uint32
	SampleCompositionTimeOffset int32
}

// Trun is the Track Fragment Run Box.
type Trun struct {
	FullBoxHeader
	DataOffset       int32
	FirstSampleFlags uint32
	Entries          []TrunEntry
}

func (b *Trun) Type() BoxType { return TypeTrun }
func (b *Trun) PayloadSize() int {
	n := 4 + 4
	if b.IsSet(TrunDataOffsetPresent) {
		n += 4
	}
	if b.IsSet(TrunFirstSampleFlagsPresent) {
		n += 4
	}
	per := 0
	if b.IsSet(TrunSampleDurationPresent) {
		per += 4
	}
	if b.IsSet(TrunSampleSizePresent) {
		per += 4
	}
	if b.IsSet(TrunSampleFlagsPresent) {
		per += 4
	}
	if b.IsSet(TrunSampleCompositionTimeOffsetPresent) {
		per += 4
	}
	return n + per*len(b.Entries)
}
func (b *Trun) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.Entries)))
	if b.IsSet(TrunDataOffsetPresent) {
		WriteUint32(buf, pos, uint32(b.DataOffset))
	}
	if b.IsSet(TrunFirstSampleFlagsPresent) {
		WriteUint32(buf, pos, b.FirstSampleFlags)
	}
	for _, e := range b.Entries {
		if b.IsSet(TrunSampleDurationPresent) {
			WriteUint32(buf, pos, e.SampleDuration)
		}
		if b.IsSet(TrunSampleSizePresent) {
			WriteUint32(buf, pos, e.SampleSize)
		}
		if b.IsSet(TrunSampleFlagsPresent) {
			WriteUint32(buf, pos, e.SampleFlags)
		}
		if b.IsSet(TrunSampleCompositionTimeOffsetPresent) {
			if b.Version == 1 {
				WriteUint32(buf, pos, uint32(e.SampleCompositionTimeOffset))
			} else {
				WriteUint32(buf, pos, uint32(int32(e.SampleCompositionTimeOffset)))
			}
		}
	}
	return nil
}

func decodeTrun(buf []byte, pos *int, end int) (Box, error) {
	var b Trun
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	if b.IsSet(TrunDataOffsetPresent) {
		v, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.DataOffset = int32(v)
	}
	if b.IsSet(TrunFirstSampleFlagsPresent) {
		if b.FirstSampleFlags, err = ReadUint32(buf, pos); err != nil {
			return nil, err
		}
	}
	for i := uint32(0); i < count; i++ {
		var e TrunEntry
		if b.IsSet(TrunSampleDurationPresent) {
			if e.SampleDuration, err = ReadUint32(buf, pos); err != nil {
				return nil, err
			}
		}
		if b.IsSet(TrunSampleSizePresent) {
			if e.SampleSize, err = ReadUint32(buf, pos); err != nil {
				return nil, err
			}
		}
		if b.IsSet(TrunSampleFlagsPresent) {
			if e.SampleFlags, err = ReadUint32(buf, pos); err != nil {
				return nil, err
			}
		}
		if b.IsSet(TrunSampleCompositionTimeOffsetPresent) {
			v, err := ReadUint32(buf, pos)
			if err != nil {
				return nil, err
			}
			e.SampleCompositionTimeOffset = int32(v)
		}
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.Entries = append(b.Entries, e)
	}
	return &b, nil
}

// --- sidx ---

// SidxReference is one segment/subsegment reference entry (spec §9.1
// supplemented feature: segment index for hybrid-muxer output).
type SidxReference struct {
	ReferenceType      bool // false = reference to media, true = reference to sidx
	ReferencedSize     uint32 // 31 bits
	SubsegmentDuration uint32
	StartsWithSAP      bool
	SAPType            uint8  // 3 bits
	SAPDeltaTime       uint32 // 28 bits
}

// Sidx is the Segment Index Box.
type Sidx struct {
	FullBoxHeader
	ReferenceID           uint32
	Timescale             uint32
	EarliestPresentationTime uint64
	FirstOffset           uint64
	References            []SidxReference
}

func (b *Sidx) Type() BoxType { return TypeSidx }
func (b *Sidx) PayloadSize() int {
	n := 4 + 4 + 4
	if b.Version == 1 {
		n += 8 + 8
	} else {
		n += 4 + 4
	}
	n += 2 + 2 // reserved + reference_count
	n += 12 * len(b.References)
	return n
}
func (b *Sidx) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, b.ReferenceID)
	WriteUint32(buf, pos, b.Timescale)
	if b.Version == 1 {
		WriteUint64(buf, pos, b.EarliestPresentationTime)
		WriteUint64(buf, pos, b.FirstOffset)
	} else {
		WriteUint32(buf, pos, uint32(b.EarliestPresentationTime))
		WriteUint32(buf, pos, uint32(b.FirstOffset))
	}
	WriteUint16(buf, pos, 0) // reserved
	WriteUint16(buf, pos, uint16(len(b.References)))
	for _, r := range b.References {
		refType := NewUint[uint32](boolToUint32(r.ReferenceType), 1, 31)
		refSize := NewUint(r.ReferencedSize, 31, 0)
		WriteUint32(buf, pos, refType.ToBits()|refSize.ToBits())
		WriteUint32(buf, pos, r.SubsegmentDuration)
		sap := NewUint[uint32](boolToUint32(r.StartsWithSAP), 1, 31)
		sapType := NewUint(uint32(r.SAPType), 3, 28)
		sapDelta := NewUint(r.SAPDeltaTime, 28, 0)
		WriteUint32(buf, pos, sap.ToBits()|sapType.ToBits()|sapDelta.ToBits())
	}
	return nil
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func decodeSidx(buf []byte, pos *int, end int) (Box, error) {
	var b Sidx
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.ReferenceID, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.Timescale, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.Version == 1 {
		if b.EarliestPresentationTime, err = ReadUint64(buf, pos); err != nil {
			return nil, err
		}
		if b.FirstOffset, err = ReadUint64(buf, pos); err != nil {
			return nil, err
		}
	} else {
		ept, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		fo, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		b.EarliestPresentationTime = uint64(ept)
		b.FirstOffset = uint64(fo)
	}
	if _, err = ReadUint16(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < count; i++ {
		w1, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		dur, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		w2, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		r := SidxReference{
			ReferenceType:      w1&0x80000000 != 0,
			ReferencedSize:     w1 & 0x7fffffff,
			SubsegmentDuration: dur,
			StartsWithSAP:      w2&0x80000000 != 0,
			SAPType:            uint8((w2 >> 28) & 0x7),
			SAPDeltaTime:       w2 & 0x0fffffff,
		}
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.References = append(b.References, r)
	}
	return &b, nil
}

// --- mfra / tfra / mfro ---

// TfraEntry is one random-access point record (spec §9.1 supplemented feature).
type TfraEntry struct {
	Time                uint64
	MoofOffset          uint64
	TrafNumber          uint32
	TrunNumber          uint32
	SampleNumber        uint32
}

// Tfra is the Track Fragment Random Access Box.
type Tfra struct {
	FullBoxHeader
	TrackID                uint32
	LengthSizeOfTrafNum    uint8 // 2 bits
	LengthSizeOfTrunNum    uint8 // 2 bits
	LengthSizeOfSampleNum  uint8 // 2 bits
	Entries                []TfraEntry
}

func (b *Tfra) Type() BoxType { return TypeTfra }
func (b *Tfra) entrySize() int {
	n := 0
	if b.Version == 1 {
		n += 8 + 8
	} else {
		n += 4 + 4
	}
	n += int(b.LengthSizeOfTrafNum) + 1
	n += int(b.LengthSizeOfTrunNum) + 1
	n += int(b.LengthSizeOfSampleNum) + 1
	return n
}
func (b *Tfra) PayloadSize() int {
	return 4 + 4 + 4 + 4 + len(b.Entries)*b.entrySize()
}
func (b *Tfra) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, b.TrackID)
	reserved := NewUint[uint32](0, 26, 6)
	lt := NewUint(uint32(b.LengthSizeOfTrafNum), 2, 4)
	lr := NewUint(uint32(b.LengthSizeOfTrunNum), 2, 2)
	ls := NewUint(uint32(b.LengthSizeOfSampleNum), 2, 0)
	WriteUint32(buf, pos, reserved.ToBits()|lt.ToBits()|lr.ToBits()|ls.ToBits())
	WriteUint32(buf, pos, uint32(len(b.Entries)))
	for _, e := range b.Entries {
		if b.Version == 1 {
			WriteUint64(buf, pos, e.Time)
			WriteUint64(buf, pos, e.MoofOffset)
		} else {
			WriteUint32(buf, pos, uint32(e.Time))
			WriteUint32(buf, pos, uint32(e.MoofOffset))
		}
		writeSizedUint(buf, pos, uint64(e.TrafNumber), b.LengthSizeOfTrafNum+1)
		writeSizedUint(buf, pos, uint64(e.TrunNumber), b.LengthSizeOfTrunNum+1)
		writeSizedUint(buf, pos, uint64(e.SampleNumber), b.LengthSizeOfSampleNum+1)
	}
	return nil
}

// writeSizedUint writes the low nBytes bytes of v, big-endian (tfra's
// variable-width traf/trun/sample number fields).
func writeSizedUint(buf []byte, pos *int, v uint64, nBytes uint8) {
	for i := int(nBytes) - 1; i >= 0; i-- {
		WriteUint8(buf, pos, byte(v>>(8*uint(i))))
	}
}

func readSizedUint(buf []byte, pos *int, nBytes uint8) (uint64, error) {
	var v uint64
	for i := 0; i < int(nBytes); i++ {
		b, err := ReadUint8(buf, pos)
		if err != nil {
			return 0, err
		}
		v = (v << 8) | uint64(b)
	}
	return v, nil
}

func decodeTfra(buf []byte, pos *int, end int) (Box, error) {
	var b Tfra
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.TrackID, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	sizes, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	b.LengthSizeOfTrafNum = uint8((sizes >> 4) & 0x3)
	b.LengthSizeOfTrunNum = uint8((sizes >> 2) & 0x3)
	b.LengthSizeOfSampleNum = uint8(sizes & 0x3)
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var e TfraEntry
		if b.Version == 1 {
			if e.Time, err = ReadUint64(buf, pos); err != nil {
				return nil, err
			}
			if e.MoofOffset, err = ReadUint64(buf, pos); err != nil {
				return nil, err
			}
		} else {
			t, err := ReadUint32(buf, pos)
			if err != nil {
				return nil, err
			}
			mo, err := ReadUint32(buf, pos)
			if err != nil {
				return nil, err
			}
			e.Time, e.MoofOffset = uint64(t), uint64(mo)
		}
		traf, err := readSizedUint(buf, pos, b.LengthSizeOfTrafNum+1)
		if err != nil {
			return nil, err
		}
		trun, err := readSizedUint(buf, pos, b.LengthSizeOfTrunNum+1)
		if err != nil {
			return nil, err
		}
		sample, err := readSizedUint(buf, pos, b.LengthSizeOfSampleNum+1)
		if err != nil {
			return nil, err
		}
		e.TrafNumber, e.TrunNumber, e.SampleNumber = uint32(traf), uint32(trun), uint32(sample)
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.Entries = append(b.Entries, e)
	}
	return &b, nil
}

// Mfro is the Movie Fragment Random Access Offset Box: the size of the
// enclosing mfra, duplicated so a backward reader can find mfra's start
// without a forward index.
type Mfro struct {
	FullBoxHeader
	Size uint32
}

func (b *Mfro) Type() BoxType    { return TypeMfro }
func (b *Mfro) PayloadSize() int { return 4 + 4 }
func (b *Mfro) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, b.Size)
	return nil
}

func decodeMfro(buf []byte, pos *int, end int) (Box, error) {
	var b Mfro
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.Size, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	return &b, nil
}
