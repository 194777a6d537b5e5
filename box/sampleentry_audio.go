package box

func init() {
	registerDecoder(TypeMp4a, decodeMp4a)
	registerDecoder(TypeEsds, decodeEsds)
	registerDecoder(TypeOpus, decodeOpus)
	registerDecoder(TypeDOps, decodeDOps)
	registerDecoder(TypeFLaC, decodeFLaC)
	registerDecoder(TypeDfLa, decodeDfLa)
}

// audioSampleEntryFields is the 28-byte fixed prefix common to every audio
// sample entry (mp4a, Opus, fLaC), grounded on the teacher's Mp4a struct in
// box_types.go.
type audioSampleEntryFields struct {
	DataReferenceIndex uint16
	ChannelCount       uint16
	SampleSize         uint16
	SampleRate         FixedPointNumber[uint16, uint16]
}

const audioSampleEntryFixedSize = 6 + 2 + 4 + 4 + 2 + 2 + 2 + 2 + 4

func writeAudioSampleEntryFields(buf []byte, pos *int, f audioSampleEntryFields) {
	WriteUint16(buf, pos, 0) // reserved[0..1]
	WriteUint16(buf, pos, 0)
	WriteUint16(buf, pos, 0)
	WriteUint16(buf, pos, f.DataReferenceIndex)
	WriteUint32(buf, pos, 0) // reserved[0..1] (version/revision/vendor collapsed to zero)
	WriteUint32(buf, pos, 0)
	WriteUint16(buf, pos, f.ChannelCount)
	WriteUint16(buf, pos, f.SampleSize)
	WriteUint16(buf, pos, 0) // pre_defined
	WriteUint16(buf, pos, 0) // reserved
	WriteUint16(buf, pos, f.SampleRate.Integer)
	WriteUint16(buf, pos, f.SampleRate.Fraction)
}

func readAudioSampleEntryFields(buf []byte, pos *int) (audioSampleEntryFields, error) {
	var f audioSampleEntryFields
	for i := 0; i < 3; i++ {
		if _, err := ReadUint16(buf, pos); err != nil {
			return f, err
		}
	}
	var err error
	if f.DataReferenceIndex, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if _, err = ReadUint32(buf, pos); err != nil {
		return f, err
	}
	if _, err = ReadUint32(buf, pos); err != nil {
		return f, err
	}
	if f.ChannelCount, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if f.SampleSize, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if _, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	if _, err = ReadUint16(buf, pos); err != nil {
		return f, err
	}
	si, _ := ReadUint16(buf, pos)
	sf, err := ReadUint16(buf, pos)
	if err != nil {
		return f, err
	}
	f.SampleRate = FixedPointNumber[uint16, uint16]{Integer: si, Fraction: sf}
	return f, nil
}

// --- mp4a + esds ---

// Mp4a is the MPEG-4 Audio Sample Entry (spec §3.4).
type Mp4a struct {
	audioSampleEntryFields
}

func (b *Mp4a) Type() BoxType    { return TypeMp4a }
func (b *Mp4a) PayloadSize() int { return audioSampleEntryFixedSize }
func (b *Mp4a) MarshalPayload(buf []byte, pos *int) error {
	writeAudioSampleEntryFields(buf, pos, b.audioSampleEntryFields)
	return nil
}

func decodeMp4a(buf []byte, pos *int, end int) (Box, error) {
	f, err := readAudioSampleEntryFields(buf, pos)
	if err != nil {
		return nil, err
	}
	return &Mp4a{audioSampleEntryFields: f}, nil
}

// Esds wraps a single ES_Descriptor (spec §3.3, §3.4 item "mp4a+esds").
type Esds struct {
	FullBoxHeader
	Descriptor EsDescriptor
}

func (b *Esds) Type() BoxType    { return TypeEsds }
func (b *Esds) PayloadSize() int { return 4 + b.Descriptor.Size() }
func (b *Esds) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	b.Descriptor.Encode(buf, pos)
	return nil
}

func decodeEsds(buf []byte, pos *int, end int) (Box, error) {
	var b Esds
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.Descriptor, err = DecodeEsDescriptor(buf, pos, end); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- Opus + dOps ---

// Opus is the Opus Audio Sample Entry (spec §3.4).
type Opus struct {
	audioSampleEntryFields
}

func (b *Opus) Type() BoxType    { return TypeOpus }
func (b *Opus) PayloadSize() int { return audioSampleEntryFixedSize }
func (b *Opus) MarshalPayload(buf []byte, pos *int) error {
	writeAudioSampleEntryFields(buf, pos, b.audioSampleEntryFields)
	return nil
}

func decodeOpus(buf []byte, pos *int, end int) (Box, error) {
	f, err := readAudioSampleEntryFields(buf, pos)
	if err != nil {
		return nil, err
	}
	return &Opus{audioSampleEntryFields: f}, nil
}

// DOps is the OpusSpecificBox. Only ChannelMappingFamily 0 (mono/stereo, no
// channel mapping table) is supported; any other family is rejected as
// unsupported rather than silently mis-decoded (spec §3.4 item "Opus+dOps"
// edge case).
type DOps struct {
	Version              uint8
	OutputChannelCount    uint8
	PreSkip               uint16
	InputSampleRate       uint32
	OutputGain            int16
	ChannelMappingFamily  uint8
}

func (b *DOps) Type() BoxType    { return TypeDOps }
func (b *DOps) PayloadSize() int { return 1 + 1 + 2 + 4 + 2 + 1 }
func (b *DOps) MarshalPayload(buf []byte, pos *int) error {
	WriteUint8(buf, pos, b.Version)
	WriteUint8(buf, pos, b.OutputChannelCount)
	WriteUint16(buf, pos, b.PreSkip)
	WriteUint32(buf, pos, b.InputSampleRate)
	WriteUint16(buf, pos, uint16(b.OutputGain))
	WriteUint8(buf, pos, b.ChannelMappingFamily)
	return nil
}

func decodeDOps(buf []byte, pos *int, end int) (Box, error) {
	var b DOps
	var err error
	if b.Version, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	if b.OutputChannelCount, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	if b.PreSkip, err = ReadUint16(buf, pos); err != nil {
		return nil, err
	}
	if b.InputSampleRate, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	gain, err := ReadUint16(buf, pos)
	if err != nil {
		return nil, err
	}
	b.OutputGain = int16(gain)
	if b.ChannelMappingFamily, err = ReadUint8(buf, pos); err != nil {
		return nil, err
	}
	if b.ChannelMappingFamily != 0 {
		return nil, errUnsupported("dOps channel mapping family %d not supported", b.ChannelMappingFamily)
	}
	return &b, nil
}

// --- fLaC + dfLa ---

// FLaC is the FLAC Audio Sample Entry (spec §3.4).
type FLaC struct {
	audioSampleEntryFields
}

func (b *FLaC) Type() BoxType    { return TypeFLaC }
func (b *FLaC) PayloadSize() int { return audioSampleEntryFixedSize }
func (b *FLaC) MarshalPayload(buf []byte, pos *int) error {
	writeAudioSampleEntryFields(buf, pos, b.audioSampleEntryFields)
	return nil
}

func decodeFLaC(buf []byte, pos *int, end int) (Box, error) {
	f, err := readAudioSampleEntryFields(buf, pos)
	if err != nil {
		return nil, err
	}
	return &FLaC{audioSampleEntryFields: f}, nil
}

// FlacMetadataBlock is one FLAC metadata block carried inside dfLa. Block
// type 0 (STREAMINFO) must be first (spec §3.4 item "fLaC+dfLa" edge case).
type FlacMetadataBlock struct {
	Last      bool
	BlockType Uint[uint8] // 7 bits
	Data      []byte
}

// DfLa is the FLACSpecificBox, a FullBox wrapping the FLAC metadata block
// chain starting with STREAMINFO (spec §3.4).
type DfLa struct {
	FullBoxHeader
	Blocks []FlacMetadataBlock
}

const flacStreamInfoBlockType = 0

func (b *DfLa) Type() BoxType { return TypeDfLa }
func (b *DfLa) PayloadSize() int {
	n := 4
	for _, blk := range b.Blocks {
		n += 4 + len(blk.Data)
	}
	return n
}
func (b *DfLa) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	for i, blk := range b.Blocks {
		last := i == len(b.Blocks)-1
		lastBit := NewUint[uint8](boolToUint8(last), 1, 7)
		typeField := NewUint(blk.BlockType.Get(), 7, 0)
		WriteUint8(buf, pos, lastBit.ToBits()|typeField.ToBits())
		WriteUint24(buf, pos, uint32(len(blk.Data)))
		WriteBytes(buf, pos, blk.Data)
	}
	return nil
}

func decodeDfLa(buf []byte, pos *int, end int) (Box, error) {
	var b DfLa
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	first := true
	for *pos < end {
		header, err := ReadUint8(buf, pos)
		if err != nil {
			return nil, err
		}
		last := header&0x80 != 0
		blockType := NewUint[uint8](0, 7, 0).FromBits(header)
		if first && blockType.Get() != flacStreamInfoBlockType {
			return nil, errInvalidData("dfLa first metadata block must be STREAMINFO (type 0), got %d", blockType.Get())
		}
		first = false
		length, err := ReadUint24(buf, pos)
		if err != nil {
			return nil, err
		}
		data, err := ReadBytes(buf, pos, int(length))
		if err != nil {
			return nil, err
		}
		b.Blocks = append(b.Blocks, FlacMetadataBlock{
			Last:      last,
			BlockType: blockType,
			Data:      append([]byte(nil), data...),
		})
		if last {
			break
		}
	}
	return &b, nil
}
