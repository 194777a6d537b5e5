package box

func init() {
	registerDecoder(TypeAvc1, decodeAvc1)
	registerDecoder(TypeAvcC, decodeAvcC)
	registerDecoder(TypeHev1, decodeHevcSampleEntry(TypeHev1))
	registerDecoder(TypeHvc1, decodeHevcSampleEntry(TypeHvc1))
	registerDecoder(TypeHvcC, decodeHvcC)
	registerDecoder(TypeVp08, decodeVpxSampleEntry(TypeVp08))
	registerDecoder(TypeVp09, decodeVpxSampleEntry(TypeVp09))
	registerDecoder(TypeVpcC, decodeVpcC)
	registerDecoder(TypeAv01, decodeAv01)
	registerDecoder(TypeAv1C, decodeAv1C)
}

// visualSampleEntryFields is the 78-byte fixed prefix common to every
// visual sample entry (avc1, hev1/hvc1, vp08/vp09, av01), grounded on the
// teacher's Avc1 struct in box_types.go.
type visualSampleEntryFields struct {
	DataReferenceIndex uint16
	Width              uint16
	Height             uint16
	HorizResolution    FixedPointNumber[uint16, uint16]
	VertResolution     FixedPointNumber[uint16, uint16]
	FrameCount         uint16
	CompressorName     [32]byte
	Depth              uint16
}

const visualSampleEntryFixedSize = 78

func writeVisualSampleEntryFields(buf []byte, pos *int, f visualSampleEntryFields) {
	WriteUint16(buf, pos, 0) // reserved[0..1]
	WriteUint16(buf, pos, 0)
	WriteUint16(buf, pos, 0)
	WriteUint16(buf, pos, f.DataReferenceIndex)
	WriteUint16(buf, pos, 0) // pre_defined
	WriteUint16(buf, pos, 0) // reserved
	WriteUint32(buf, pos, 0) // pre_defined[0..2]
	WriteUint32(buf, pos, 0)
	WriteUint32(buf, pos, 0)
	WriteUint16(buf, pos, f.Width)
	WriteUint16(buf, pos, f.Height)
	WriteUint16(buf, pos, f.HorizResolution.Integer)
	WriteUint16(buf, pos, f.HorizResolution.Fraction)
	WriteUint16(buf, pos, f.VertResolution.Integer)
	WriteUint16(buf, pos, f.VertResolution.Fraction)
	WriteUint32(buf, pos, 0) // reserved
	WriteUint16(buf, pos, f.FrameCount)
	WriteBytes(buf, pos, f.CompressorName[:])
	WriteUint16(buf, pos, f.Depth)
	WriteUint16(buf, pos, 0xFFFF) // pre_defined
}

func readVisualSampleEntryFields(buf []byte, pos *int) (visualSampleEntryFields, error) {
	var f visualSampleEntryFields
	if _, err := ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if _, err := ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if _, err := ReadUint16(buf, pos); err != nil {
		return f, err
	}
	var err error
	if f.DataReferenceIndex, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if _, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if _, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	for i := 0; i < 3; i++ {
		if _, err = ReadUint32(buf, pos); err != nil {
			return f, err
		}
	}
	if f.Width, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if f.Height, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	hi, _ := ReadUint16(buf, pos)
	hf, _ := ReadUint16(buf, pos)
	vi, _ := ReadUint16(buf, pos)
	vf, err := ReadUint16(buf, pos)
	if err != nil {
		return f, err
	}
	f.HorizResolution = FixedPointNumber[uint16, uint16]{Integer: hi, Fraction: hf}
	f.VertResolution = FixedPointNumber[uint16, uint16]{Integer: vi, Fraction: vf}
	if _, err = ReadUint32(buf, pos); err != nil {
		return f, err
	}
	if f.FrameCount, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	name, err := ReadBytes(buf, pos, 32)
	if err != nil {
		return f, err
	}
	copy(f.CompressorName[:], name)
	if f.Depth, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if _, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	return f, nil
}

// --- avc1 + avcC ---

// AVCProfile values recognized by AvcC (spec §3.4 item "avc1+avcC").
const (
	AVCBaselineProfile = 66
	AVCMainProfile     = 77
	AVCExtendedProfile = 88
	AVCHighProfile     = 100
	AVCHigh10Profile   = 110
	AVCHigh422Profile  = 122
)

// Avc1 is the AVC Visual Sample Entry (spec §3.4).
type Avc1 struct {
	visualSampleEntryFields
}

func (b *Avc1) Type() BoxType    { return TypeAvc1 }
func (b *Avc1) PayloadSize() int { return visualSampleEntryFixedSize }
func (b *Avc1) MarshalPayload(buf []byte, pos *int) error {
	writeVisualSampleEntryFields(buf, pos, b.visualSampleEntryFields)
	return nil
}

func decodeAvc1(buf []byte, pos *int, end int) (Box, error) {
	f, err := readVisualSampleEntryFields(buf, pos)
	if err != nil {
		return nil, err
	}
	return &Avc1{visualSampleEntryFields: f}, nil
}

// AVCParameterSet is one SPS or PPS NAL unit (spec §3.4).
type AVCParameterSet struct {
	NALUnit []byte
}

// AvcC is the AVCDecoderConfigurationRecord (spec §3.4). HighProfileFields
// is only present, and only decoded, when Profile indicates a high-profile
// bitstream that carries chroma_format/bit_depth fields; the codec
// tolerates a record that ends immediately after NumOfPictureParameterSets
// even when Profile nominally requires the extension, since real-world
// encoders disagree here (Open Question, see DESIGN.md).
type AvcC struct {
	ConfigurationVersion uint8
	Profile              uint8
	ProfileCompatibility uint8
	Level                uint8
	LengthSizeMinusOne   Uint[uint8] // 2 bits
	SPS                  []AVCParameterSet
	PPS                  []AVCParameterSet
	HighProfileFields    *AvcCHighProfileFields
}

// AvcCHighProfileFields carries the chroma_format/bit_depth extension
// present for profiles 100, 110, 122, 144.
type AvcCHighProfileFields struct {
	ChromaFormat             Uint[uint8] // 2 bits
	BitDepthLumaMinus8       Uint[uint8] // 3 bits
	BitDepthChromaMinus8     Uint[uint8] // 3 bits
	SPSExt                   []AVCParameterSet
}

func isHighProfile(profile uint8) bool {
	switch profile {
	case AVCHighProfile, AVCHigh10Profile, AVCHigh422Profile, 144:
		return true
	}
	return false
}

func (b *AvcC) Type() BoxType { return TypeAvcC }
func (b *AvcC) PayloadSize() int {
	n := 1 + 1 + 1 + 1 + 1 + 1 // version, profile, compat, level, lengthSizeMinusOne byte, numOfSPS byte
	for _, s := range b.SPS {
		n += 2 + len(s.NALUnit)
	}
	n += 1 // numOfPPS
	for _, p := range b.PPS {
		n += 2 + len(p.NALUnit)
	}
	if b.HighProfileFields != nil {
		n += 1 + 1 + 1 + 1 // chroma byte, bitdepth luma byte, bitdepth chroma byte, numOfSPSExt
		for _, s := range b.HighProfileFields.SPSExt {
			n += 2 + len(s.NALUnit)
		}
	}
	return n
}

func (b *AvcC) MarshalPayload(buf []byte, pos *int) error {
	WriteUint8(buf, pos, 1) // configurationVersion
	WriteUint8(buf, pos, b.Profile)
	WriteUint8(buf, pos, b.ProfileCompatibility)
	WriteUint8(buf, pos, b.Level)
	reserved1 := NewUint[uint8](0x3f, 6, 2)
	WriteUint8(buf, pos, reserved1.ToBits()|b.LengthSizeMinusOne.ToBits())
	reserved2 := NewUint[uint8](0x7, 3, 5)
	WriteUint8(buf, pos, reserved2.ToBits()|uint8(len(b.SPS))&0x1f)
	for _, s := range b.SPS {
		WriteUint16(buf, pos, uint16(len(s.NALUnit)))
		WriteBytes(buf, pos, s.NALUnit)
	}
	WriteUint8(buf, pos, uint8(len(b.PPS)))
	for _, p := range b.PPS {
		WriteUint16(buf, pos, uint16(len(p.NALUnit)))
		WriteBytes(buf, pos, p.NALUnit)
	}
	if b.HighProfileFields != nil {
		h := b.HighProfileFields
		reserved3 := NewUint[uint8](0x3f, 6, 2)
		WriteUint8(buf, pos, reserved3.ToBits()|h.ChromaFormat.ToBits())
		reserved4 := NewUint[uint8](0x1f, 5, 3)
		WriteUint8(buf, pos, reserved4.ToBits()|h.BitDepthLumaMinus8.ToBits())
		reserved5 := NewUint[uint8](0x1f, 5, 3)
		WriteUint8(buf, pos, reserved5.ToBits()|h.BitDepthChromaMinus8.ToBits())
		WriteUint8(buf, pos, uint8(len(h.SPSExt)))
		for _, s := range h.SPSExt {
			WriteUint16(buf, pos, uint16(len(s.NALUnit)))
			WriteBytes(buf, pos, s.NALUnit)
		}
	}
	return nil
}

func decodeAvcC(buf []byte, pos *int, end int) (Box, error) {
	var b AvcC
	var err error
	if _, err = ReadUint8(buf, pos); err != nil { // configurationVersion
		return nil, err
	}
	if b.Profile, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	if b.ProfileCompatibility, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	if b.Level, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	lenByte, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.LengthSizeMinusOne = NewUint[uint8](0, 2, 0).FromBits(lenByte)
	numSPSByte, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	numSPS := numSPSByte & 0x1f
	for i := uint8(0); i < numSPS; i++ {
		l, err := ReadUint16(buf, pos)
		if err != nil {
			return nil, err
		}
		nal, err := ReadBytes(buf, pos, int(l))
		if err != nil {
			return nil, err
		}
		b.SPS = append(b.SPS, AVCParameterSet{NALUnit: append([]byte(nil), nal...)})
	}
	numPPS, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint8(0); i < numPPS; i++ {
		l, err := ReadUint16(buf, pos)
		if err != nil {
			return nil, err
		}
		nal, err := ReadBytes(buf, pos, int(l))
		if err != nil {
			return nil, err
		}
		b.PPS = append(b.PPS, AVCParameterSet{NALUnit: append([]byte(nil), nal...)})
	}
	// Tolerate producers that omit the high-profile extension fields even
	// when Profile nominally requires them (spec §9.2 Open Question): only
	// decode them when bytes actually remain.
	if isHighProfile(b.Profile) && *pos < end {
		chromaByte, err := ReadUint8(buf, pos)
		if err != nil {
			return nil, err
		}
		lumaByte, err := ReadUint8(buf, pos)
		if err != nil {
			return nil, err
		}
		chromaDepthByte, err := ReadUint8(buf, pos)
		if err != nil {
			return nil, err
		}
		numSPSExt, err := ReadUint8(buf, pos)
		if err != nil {
			return nil, err
		}
		h := &AvcCHighProfileFields{
			ChromaFormat:         NewUint[uint8](0, 2, 0).FromBits(chromaByte),
			BitDepthLumaMinus8:   NewUint[uint8](0, 3, 0).FromBits(lumaByte),
			BitDepthChromaMinus8: NewUint[uint8](0, 3, 0).FromBits(chromaDepthByte),
		}
		for i := uint8(0); i < numSPSExt; i++ {
			l, err := ReadUint16(buf, pos)
			if err != nil {
				return nil, err
			}
			nal, err := ReadBytes(buf, pos, int(l))
			if err != nil {
				return nil, err
			}
			h.SPSExt = append(h.SPSExt, AVCParameterSet{NALUnit: append([]byte(nil), nal...)})
		}
		b.HighProfileFields = h
	}
	return &b, nil
}

// --- hev1 / hvc1 + hvcC ---

// Hevc is the HEVC Visual Sample Entry, used for both the in-band ("hvc1")
// and out-of-band-parameter-set ("hev1") variants (spec §3.4).
type Hevc struct {
	visualSampleEntryFields
	boxType BoxType
}

func (b *Hevc) Type() BoxType    { return b.boxType }
func (b *Hevc) PayloadSize() int { return visualSampleEntryFixedSize }
func (b *Hevc) MarshalPayload(buf []byte, pos *int) error {
	writeVisualSampleEntryFields(buf, pos, b.visualSampleEntryFields)
	return nil
}

func decodeHevcSampleEntry(t BoxType) decodeFunc {
	return func(buf []byte, pos *int, end int) (Box, error) {
		f, err := readVisualSampleEntryFields(buf, pos)
		if err != nil {
			return nil, err
		}
		return &Hevc{visualSampleEntryFields: f, boxType: t}, nil
	}
}

// NewHevc builds an hev1 or hvc1 sample entry box (t must be TypeHev1 or TypeHvc1).
func NewHevc(t BoxType, f visualSampleEntryFields) *Hevc {
	return &Hevc{visualSampleEntryFields: f, boxType: t}
}

// HevcParameterSetArray groups NAL units of one NAL unit type under hvcC
// (spec §3.4).
type HevcParameterSetArray struct {
	ArrayCompleteness bool
	NALUnitType        Uint[uint8] // 6 bits
	NALUnits           [][]byte
}

// HvcC is the HEVCDecoderConfigurationRecord (spec §3.4). GeneralConstraintIndicatorFlags
// is the packed 48-bit constraint-flag field.
type HvcC struct {
	ConfigurationVersion         uint8
	GeneralProfileSpace          Uint[uint8] // 2 bits
	GeneralTierFlag              bool
	GeneralProfileIdc            Uint[uint8] // 5 bits
	GeneralProfileCompatibility  uint32
	GeneralConstraintIndicatorFlags uint64 // 48 bits
	GeneralLevelIdc              uint8
	MinSpatialSegmentationIdc    Uint[uint16] // 12 bits
	ParallelismType              Uint[uint8]  // 2 bits
	ChromaFormat                 Uint[uint8]  // 2 bits
	BitDepthLumaMinus8           Uint[uint8]  // 3 bits
	BitDepthChromaMinus8         Uint[uint8]  // 3 bits
	AvgFrameRate                 uint16
	ConstantFrameRate             Uint[uint8] // 2 bits
	NumTemporalLayers            Uint[uint8] // 3 bits
	TemporalIdNested             bool
	LengthSizeMinusOne            Uint[uint8] // 2 bits
	Arrays                       []HevcParameterSetArray
}

func (b *HvcC) Type() BoxType { return TypeHvcC }
func (b *HvcC) PayloadSize() int {
	n := 1 + 1 + 4 + 6 + 1 + 2 + 1 + 1 + 1 + 1 + 2 + 1 + 1 // see MarshalPayload for field breakdown
	for _, a := range b.Arrays {
		n += 1 + 2
		for _, nal := range a.NALUnits {
			n += 2 + len(nal)
		}
	}
	return n
}

func (b *HvcC) MarshalPayload(buf []byte, pos *int) error {
	WriteUint8(buf, pos, b.ConfigurationVersion)
	space := NewUint(b.GeneralProfileSpace.Get(), 2, 6)
	tier := NewUint[uint8](boolToUint8(b.GeneralTierFlag), 1, 5)
	idc := NewUint(b.GeneralProfileIdc.Get(), 5, 0)
	WriteUint8(buf, pos, space.ToBits()|tier.ToBits()|idc.ToBits())
	WriteUint32(buf, pos, b.GeneralProfileCompatibility)
	WriteUint48(buf, pos, b.GeneralConstraintIndicatorFlags)
	WriteUint8(buf, pos, b.GeneralLevelIdc)
	reserved1 := NewUint[uint16](0xf, 4, 12)
	WriteUint16(buf, pos, reserved1.ToBits()|b.MinSpatialSegmentationIdc.ToBits())
	reserved2 := NewUint[uint8](0x3f, 6, 2)
	WriteUint8(buf, pos, reserved2.ToBits()|b.ParallelismType.ToBits())
	reserved3 := NewUint[uint8](0x3f, 6, 2)
	WriteUint8(buf, pos, reserved3.ToBits()|b.ChromaFormat.ToBits())
	reserved4 := NewUint[uint8](0x1f, 5, 3)
	WriteUint8(buf, pos, reserved4.ToBits()|b.BitDepthLumaMinus8.ToBits())
	reserved5 := NewUint[uint8](0x1f, 5, 3)
	WriteUint8(buf, pos, reserved5.ToBits()|b.BitDepthChromaMinus8.ToBits())
	WriteUint16(buf, pos, b.AvgFrameRate)
	cfr := NewUint(b.ConstantFrameRate.Get(), 2, 6)
	numLayers := NewUint(b.NumTemporalLayers.Get(), 3, 3)
	nested := NewUint[uint8](boolToUint8(b.TemporalIdNested), 1, 2)
	lengthSize := NewUint(b.LengthSizeMinusOne.Get(), 2, 0)
	WriteUint8(buf, pos, cfr.ToBits()|numLayers.ToBits()|nested.ToBits()|lengthSize.ToBits())
	WriteUint8(buf, pos, uint8(len(b.Arrays)))
	for _, a := range b.Arrays {
		complete := NewUint[uint8](boolToUint8(a.ArrayCompleteness), 1, 7)
		reserved := NewUint[uint8](0, 1, 6)
		naluType := NewUint(a.NALUnitType.Get(), 6, 0)
		WriteUint8(buf, pos, complete.ToBits()|reserved.ToBits()|naluType.ToBits())
		WriteUint16(buf, pos, uint16(len(a.NALUnits)))
		for _, nal := range a.NALUnits {
			WriteUint16(buf, pos, uint16(len(nal)))
			WriteBytes(buf, pos, nal)
		}
	}
	return nil
}

func decodeHvcC(buf []byte, pos *int, end int) (Box, error) {
	var b HvcC
	var err error
	if b.ConfigurationVersion, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	b0, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.GeneralProfileSpace = NewUint[uint8](0, 2, 6).FromBits(b0)
	b.GeneralTierFlag = b0&0x20 != 0
	b.GeneralProfileIdc = NewUint[uint8](0, 5, 0).FromBits(b0)
	if b.GeneralProfileCompatibility, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.GeneralConstraintIndicatorFlags, err = ReadUint48(buf, pos); err != nil {
		return nil, err
	}
	if b.GeneralLevelIdc, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	minSeg, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	b.MinSpatialSegmentationIdc = NewUint[uint16](0, 12, 0).FromBits(minSeg)
	parType, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.ParallelismType = NewUint[uint8](0, 2, 0).FromBits(parType)
	chromaByte, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.ChromaFormat = NewUint[uint8](0, 2, 0).FromBits(chromaByte)
	lumaByte, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.BitDepthLumaMinus8 = NewUint[uint8](0, 3, 0).FromBits(lumaByte)
	chromaDepthByte, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.BitDepthChromaMinus8 = NewUint[uint8](0, 3, 0).FromBits(chromaDepthByte)
	if b.AvgFrameRate, err = ReadUint16(buf, pos); err != nil {
		return nil, err
	}
	lastByte, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.ConstantFrameRate = NewUint[uint8](0, 2, 6).FromBits(lastByte)
	b.NumTemporalLayers = NewUint[uint8](0, 3, 3).FromBits(lastByte)
	b.TemporalIdNested = lastByte&0x04 != 0
	b.LengthSizeMinusOne = NewUint[uint8](0, 2, 0).FromBits(lastByte)
	numArrays, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint8(0); i < numArrays; i++ {
		arrByte, err := ReadUint8(buf, pos)
		if err != nil {
			return nil, err
		}
		a := HevcParameterSetArray{
			ArrayCompleteness: arrByte&0x80 != 0,
			NALUnitType:       NewUint[uint8](0, 6, 0).FromBits(arrByte),
		}
		numNalus, err := ReadUint16(buf, pos)
		if err != nil {
			return nil, err
		}
		for j := uint16(0); j < numNalus; j++ {
			l, err := ReadUint16(buf, pos)
			if err != nil {
				return nil, err
			}
			nal, err := ReadBytes(buf, pos, int(l))
			if err != nil {
				return nil, err
			}
			a.NALUnits = append(a.NALUnits, append([]byte(nil), nal...))
		}
		b.Arrays = append(b.Arrays, a)
	}
	return &b, nil
}

// --- vp08 / vp09 + vpcC ---

// Vpx is the VP8/VP9 Visual Sample Entry (spec §3.4).
type Vpx struct {
	visualSampleEntryFields
	boxType BoxType
}

func (b *Vpx) Type() BoxType    { return b.boxType }
func (b *Vpx) PayloadSize() int { return visualSampleEntryFixedSize }
func (b *Vpx) MarshalPayload(buf []byte, pos *int) error {
	writeVisualSampleEntryFields(buf, pos, b.visualSampleEntryFields)
	return nil
}

func decodeVpxSampleEntry(t BoxType) decodeFunc {
	return func(buf []byte, pos *int, end int) (Box, error) {
		f, err := readVisualSampleEntryFields(buf, pos)
		if err != nil {
			return nil, err
		}
		return &Vpx{visualSampleEntryFields: f, boxType: t}, nil
	}
}

// NewVpx builds a vp08 or vp09 sample entry box.
func NewVpx(t BoxType, f visualSampleEntryFields) *Vpx { return &Vpx{visualSampleEntryFields: f, boxType: t} }

// VpcC is the VPCodecConfigurationBox. FullBoxHeader.Version MUST be 1
// (spec §3.4 item "vp08/vp09+vpcC" edge case).
type VpcC struct {
	FullBoxHeader
	Profile           uint8
	Level             uint8
	BitDepth          Uint[uint8] // 4 bits
	ChromaSubsampling Uint[uint8] // 3 bits
	VideoFullRangeFlag bool
	ColourPrimaries    uint8
	TransferCharacteristics uint8
	MatrixCoefficients uint8
	CodecInitData      []byte
}

func (b *VpcC) Type() BoxType { return TypeVpcC }
func (b *VpcC) PayloadSize() int {
	return 4 + 1 + 1 + 1 + 1 + 1 + 1 + 2 + len(b.CodecInitData)
}
func (b *VpcC) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint8(buf, pos, b.Profile)
	WriteUint8(buf, pos, b.Level)
	depth := NewUint(b.BitDepth.Get(), 4, 4)
	chroma := NewUint(b.ChromaSubsampling.Get(), 3, 1)
	full := NewUint[uint8](boolToUint8(b.VideoFullRangeFlag), 1, 0)
	WriteUint8(buf, pos, depth.ToBits()|chroma.ToBits()|full.ToBits())
	WriteUint8(buf, pos, b.ColourPrimaries)
	WriteUint8(buf, pos, b.TransferCharacteristics)
	WriteUint8(buf, pos, b.MatrixCoefficients)
	WriteUint16(buf, pos, uint16(len(b.CodecInitData)))
	WriteBytes(buf, pos, b.CodecInitData)
	return nil
}

func decodeVpcC(buf []byte, pos *int, end int) (Box, error) {
	var b VpcC
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.Version != 1 {
		return nil, errInvalidData("vpcC version must be 1, got %d", b.Version)
	}
	if b.Profile, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	if b.Level, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	byte3, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.BitDepth = NewUint[uint8](0, 4, 4).FromBits(byte3)
	b.ChromaSubsampling = NewUint[uint8](0, 3, 1).FromBits(byte3)
	b.VideoFullRangeFlag = byte3&0x01 != 0
	if b.ColourPrimaries, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	if b.TransferCharacteristics, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	if b.MatrixCoefficients, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	l, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	data, err := ReadBytes(buf, pos, int(l))
	if err != nil {
		return nil, err
	}
	b.CodecInitData = append([]byte(nil), data...)
	return &b, nil
}

// --- av01 + av1C ---

// Av01 is the AV1 Visual Sample Entry (spec §3.4).
type Av01 struct {
	visualSampleEntryFields
}

func (b *Av01) Type() BoxType    { return TypeAv01 }
func (b *Av01) PayloadSize() int { return visualSampleEntryFixedSize }
func (b *Av01) MarshalPayload(buf []byte, pos *int) error {
	writeVisualSampleEntryFields(buf, pos, b.visualSampleEntryFields)
	return nil
}

func decodeAv01(buf []byte, pos *int, end int) (Box, error) {
	f, err := readVisualSampleEntryFields(buf, pos)
	if err != nil {
		return nil, err
	}
	return &Av01{visualSampleEntryFields: f}, nil
}

// Av1C is the AV1CodecConfigurationBox. The marker bit MUST be 1 and
// Version MUST be 1 (spec §3.4 item "av01+av1C" edge case).
type Av1C struct {
	Marker              bool
	Version             Uint[uint8] // 7 bits
	SeqProfile          Uint[uint8] // 3 bits
	SeqLevelIdx0        Uint[uint8] // 5 bits
	SeqTier0            bool
	HighBitdepth        bool
	TwelveBit           bool
	Monochrome          bool
	ChromaSubsamplingX  bool
	ChromaSubsamplingY  bool
	ChromaSamplePosition Uint[uint8] // 2 bits
	InitialPresentationDelayPresent bool
	InitialPresentationDelayMinusOne Uint[uint8] // 4 bits
	ConfigOBUs          []byte
}

func (b *Av1C) Type() BoxType    { return TypeAv1C }
func (b *Av1C) PayloadSize() int { return 4 + len(b.ConfigOBUs) }
func (b *Av1C) MarshalPayload(buf []byte, pos *int) error {
	marker := NewUint[uint8](boolToUint8(true), 1, 7)
	version := NewUint(b.Version.Get(), 7, 0)
	WriteUint8(buf, pos, marker.ToBits()|version.ToBits())
	profile := NewUint(b.SeqProfile.Get(), 3, 5)
	level := NewUint(b.SeqLevelIdx0.Get(), 5, 0)
	WriteUint8(buf, pos, profile.ToBits()|level.ToBits())
	tier := NewUint[uint8](boolToUint8(b.SeqTier0), 1, 7)
	hbd := NewUint[uint8](boolToUint8(b.HighBitdepth), 1, 6)
	twelve := NewUint[uint8](boolToUint8(b.TwelveBit), 1, 5)
	mono := NewUint[uint8](boolToUint8(b.Monochrome), 1, 4)
	csx := NewUint[uint8](boolToUint8(b.ChromaSubsamplingX), 1, 3)
	csy := NewUint[uint8](boolToUint8(b.ChromaSubsamplingY), 1, 2)
	csp := NewUint(b.ChromaSamplePosition.Get(), 2, 0)
	WriteUint8(buf, pos, tier.ToBits()|hbd.ToBits()|twelve.ToBits()|mono.ToBits()|csx.ToBits()|csy.ToBits()|csp.ToBits())
	present := NewUint[uint8](boolToUint8(b.InitialPresentationDelayPresent), 1, 4)
	delay := NewUint(b.InitialPresentationDelayMinusOne.Get(), 4, 0)
	WriteUint8(buf, pos, present.ToBits()|delay.ToBits())
	WriteBytes(buf, pos, b.ConfigOBUs)
	return nil
}

func decodeAv1C(buf []byte, pos *int, end int) (Box, error) {
	var b Av1C
	b0, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.Marker = b0&0x80 != 0
	b.Version = NewUint[uint8](0, 7, 0).FromBits(b0)
	if !b.Marker {
		return nil, errInvalidData("av1C marker bit must be 1")
	}
	if b.Version.Get() != 1 {
		return nil, errInvalidData("av1C version must be 1, got %d", b.Version.Get())
	}
	b1, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.SeqProfile = NewUint[uint8](0, 3, 5).FromBits(b1)
	b.SeqLevelIdx0 = NewUint[uint8](0, 5, 0).FromBits(b1)
	b2, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.SeqTier0 = b2&0x80 != 0
	b.HighBitdepth = b2&0x40 != 0
	b.TwelveBit = b2&0x20 != 0
	b.Monochrome = b2&0x10 != 0
	b.ChromaSubsamplingX = b2&0x08 != 0
	b.ChromaSubsamplingY = b2&0x04 != 0
	b.ChromaSamplePosition = NewUint[uint8](0, 2, 0).FromBits(b2)
	b3, err := ReadUint8(buf, pos)
	if err != nil {
		return nil, err
	}
	b.InitialPresentationDelayPresent = b3&0x10 != 0
	b.InitialPresentationDelayMinusOne = NewUint[uint8](0, 4, 0).FromBits(b3)
	obus, err := ReadBytes(buf, pos, end-*pos)
	if err != nil {
		return nil, err
	}
	b.ConfigOBUs = append([]byte(nil), obus...)
	return &b, nil
}
