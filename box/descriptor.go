package box

// --- MPEG-4 ES_Descriptor family (C3) ---
//
// Grounded on tetsuo-isobmff's descriptor.go for the tag+length-chain shape
// (tagToName, decodeDescriptor), adapted to the buf/pos cursor style the
// rest of this package uses and given a symmetric encoder, which the
// example lacked.

const (
	TagESDescr                 = 0x03
	TagDecoderConfigDescr      = 0x04
	TagDecSpecificInfoDescr    = 0x05
	TagSLConfigDescr           = 0x06
)

// descriptorLengthMaxBytes bounds the 7-bit continuation chain to 4 bytes,
// the maximum the MPEG-4 systems spec allows.
const descriptorLengthMaxBytes = 4

// writeDescriptorLength encodes n using the 7-bit continuation-bit chain
// (high bit set on every byte but the last).
func writeDescriptorLength(buf []byte, pos *int, n int) {
	var tmp [descriptorLengthMaxBytes]byte
	i := descriptorLengthMaxBytes
	for {
		i--
		tmp[i] = byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			break
		}
	}
	for j := i; j < descriptorLengthMaxBytes-1; j++ {
		WriteUint8(buf, pos, tmp[j]|0x80)
	}
	WriteUint8(buf, pos, tmp[descriptorLengthMaxBytes-1])
}

// descriptorLengthSize returns how many bytes writeDescriptorLength needs for n.
func descriptorLengthSize(n int) int {
	size := 1
	for n >= 0x80 {
		n >>= 7
		size++
	}
	return size
}

// readDescriptorLength decodes the 7-bit continuation-bit chain.
func readDescriptorLength(buf []byte, pos *int) (int, error) {
	length := 0
	for i := 0; i < descriptorLengthMaxBytes; i++ {
		b, err := ReadUint8(buf, pos)
		if err != nil {
			return 0, err
		}
		length = (length << 7) | int(b&0x7f)
		if b&0x80 == 0 {
			return length, nil
		}
	}
	return 0, errInvalidData("descriptor length chain exceeds 4 bytes")
}

// SlConfigDescriptor is the minimal "predefined" SL config carried by esds
// (spec §3.3); only the predefined=2 (MP4 fixed) form is supported.
type SlConfigDescriptor struct {
	Predefined uint8
}

func (d SlConfigDescriptor) size() int { return 1 }

func (d SlConfigDescriptor) encode(buf []byte, pos *int) {
	WriteUint8(buf, pos, TagSLConfigDescr)
	writeDescriptorLength(buf, pos, d.size())
	WriteUint8(buf, pos, d.Predefined)
}

func decodeSLConfigDescriptor(buf []byte, pos *int, end int) (SlConfigDescriptor, error) {
	predefined, err := ReadUint8(buf, pos)
	if err != nil {
		return SlConfigDescriptor{}, err
	}
	if predefined != 2 {
		return SlConfigDescriptor{}, errUnsupported("SLConfigDescr predefined %d != 2", predefined)
	}
	*pos = end
	return SlConfigDescriptor{Predefined: predefined}, nil
}

// DecoderSpecificInfo carries the opaque codec-specific bytes (AudioSpecificConfig
// for AAC, OpusHead extradata, etc) (spec §3.3).
type DecoderSpecificInfo struct {
	Data []byte
}

func (d DecoderSpecificInfo) size() int { return len(d.Data) }

func (d DecoderSpecificInfo) encode(buf []byte, pos *int) {
	WriteUint8(buf, pos, TagDecSpecificInfoDescr)
	writeDescriptorLength(buf, pos, d.size())
	WriteBytes(buf, pos, d.Data)
}

func decodeDecoderSpecificInfo(buf []byte, pos *int, end int) (DecoderSpecificInfo, error) {
	data, err := ReadBytes(buf, pos, end-*pos)
	if err != nil {
		return DecoderSpecificInfo{}, err
	}
	return DecoderSpecificInfo{Data: append([]byte(nil), data...)}, nil
}

// DecoderConfigDescriptor describes the codec, stream type, and buffer
// sizing for an elementary stream (spec §3.3).
type DecoderConfigDescriptor struct {
	ObjectTypeIndication uint8
	StreamType           Uint[uint8] // 6 bits
	UpStream             bool
	BufferSizeDB         Uint[uint32] // 24 bits
	MaxBitrate           uint32
	AvgBitrate           uint32
	DecoderSpecificInfo  *DecoderSpecificInfo
}

func (d DecoderConfigDescriptor) payloadSize() int {
	n := 1 + 1 + 3 + 4 + 4 // objectTypeIndication + flags byte + bufferSizeDB + maxBitrate + avgBitrate
	if d.DecoderSpecificInfo != nil {
		n += 1 + descriptorLengthSize(d.DecoderSpecificInfo.size()) + d.DecoderSpecificInfo.size()
	}
	return n
}

func (d DecoderConfigDescriptor) size() int { return d.payloadSize() }

func (d DecoderConfigDescriptor) encode(buf []byte, pos *int) {
	WriteUint8(buf, pos, TagDecoderConfigDescr)
	writeDescriptorLength(buf, pos, d.payloadSize())
	WriteUint8(buf, pos, d.ObjectTypeIndication)
	streamType := NewUint(d.StreamType.Get(), 6, 2)
	upstream := NewUint[uint8](boolToUint8(d.UpStream), 1, 1)
	reserved := NewUint[uint8](1, 1, 0)
	WriteUint8(buf, pos, streamType.ToBits()|upstream.ToBits()|reserved.ToBits())
	WriteUint24(buf, pos, d.BufferSizeDB.Get())
	WriteUint32(buf, pos, d.MaxBitrate)
	WriteUint32(buf, pos, d.AvgBitrate)
	if d.DecoderSpecificInfo != nil {
		d.DecoderSpecificInfo.encode(buf, pos)
	}
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func decodeDecoderConfigDescriptor(buf []byte, pos *int, end int) (DecoderConfigDescriptor, error) {
	var d DecoderConfigDescriptor
	var err error
	if d.ObjectTypeIndication, err = ReadUint8(buf, pos); err != nil {
		return d, err
	}
	flags, err := ReadUint8(buf, pos)
	if err != nil {
		return d, err
	}
	streamTypeField := NewUint[uint8](0, 6, 2)
	d.StreamType = streamTypeField.FromBits(flags)
	d.UpStream = flags&0x02 != 0
	bufSize, err := ReadUint24(buf, pos)
	if err != nil {
		return d, err
	}
	d.BufferSizeDB = NewUint(bufSize, 24, 0)
	if d.MaxBitrate, err = ReadUint32(buf, pos); err != nil {
		return d, err
	}
	if d.AvgBitrate, err = ReadUint32(buf, pos); err != nil {
		return d, err
	}
	for *pos < end {
		tag, tagEnd, terr := peekTag(buf, pos)
		if terr != nil {
			return d, terr
		}
		switch tag {
		case TagDecSpecificInfoDescr:
			dsi, derr := decodeDecoderSpecificInfo(buf, pos, tagEnd)
			if derr != nil {
				return d, derr
			}
			d.DecoderSpecificInfo = &dsi
		default:
			*pos = tagEnd
		}
	}
	return d, nil
}

// peekTag reads a descriptor's tag+length at *pos, advances *pos past the
// header, and returns the tag plus the absolute end offset of its payload.
func peekTag(buf []byte, pos *int) (tag uint8, payloadEnd int, err error) {
	tag, err = ReadUint8(buf, pos)
	if err != nil {
		return 0, 0, err
	}
	length, err := readDescriptorLength(buf, pos)
	if err != nil {
		return 0, 0, err
	}
	return tag, *pos + length, nil
}

// EsDescriptor is the top-level descriptor carried by an esds box (spec §3.3,
// §3.4 item "mp4a+esds").
type EsDescriptor struct {
	ESID                 uint16
	StreamDependenceFlag bool
	URLFlag              bool
	OCRStreamFlag        bool
	StreamPriority       Uint[uint8] // 5 bits
	DependsOnESID        uint16      // present iff StreamDependenceFlag
	URL                  string      // present iff URLFlag
	OCRESID              uint16      // present iff OCRStreamFlag
	DecoderConfig        DecoderConfigDescriptor
	SLConfig             SlConfigDescriptor
}

func (d EsDescriptor) flagsByte() uint8 {
	dep := NewUint[uint8](boolToUint8(d.StreamDependenceFlag), 1, 7)
	url := NewUint[uint8](boolToUint8(d.URLFlag), 1, 6)
	ocr := NewUint[uint8](boolToUint8(d.OCRStreamFlag), 1, 5)
	prio := NewUint(d.StreamPriority.Get(), 5, 0)
	return dep.ToBits() | url.ToBits() | ocr.ToBits() | prio.ToBits()
}

func (d EsDescriptor) payloadSize() int {
	n := 2 + 1 // ESID + flags
	if d.StreamDependenceFlag {
		n += 2
	}
	if d.URLFlag {
		n += 1 + len(d.URL)
	}
	if d.OCRStreamFlag {
		n += 2
	}
	n += 1 + descriptorLengthSize(d.DecoderConfig.size()) + d.DecoderConfig.size()
	n += 1 + descriptorLengthSize(d.SLConfig.size()) + d.SLConfig.size()
	return n
}

// Size returns the total on-wire size of the ES_Descriptor, tag+length included.
func (d EsDescriptor) Size() int {
	return 1 + descriptorLengthSize(d.payloadSize()) + d.payloadSize()
}

// Encode writes the full ES_Descriptor (tag, length, payload) at *pos.
func (d EsDescriptor) Encode(buf []byte, pos *int) {
	WriteUint8(buf, pos, TagESDescr)
	writeDescriptorLength(buf, pos, d.payloadSize())
	WriteUint16(buf, pos, d.ESID)
	WriteUint8(buf, pos, d.flagsByte())
	if d.StreamDependenceFlag {
		WriteUint16(buf, pos, d.DependsOnESID)
	}
	if d.URLFlag {
		WriteUint8(buf, pos, uint8(len(d.URL)))
		WriteBytes(buf, pos, []byte(d.URL))
	}
	if d.OCRStreamFlag {
		WriteUint16(buf, pos, d.OCRESID)
	}
	d.DecoderConfig.encode(buf, pos)
	d.SLConfig.encode(buf, pos)
}

// DecodeEsDescriptor decodes a full ES_Descriptor starting at *pos.
func DecodeEsDescriptor(buf []byte, pos *int, end int) (EsDescriptor, error) {
	tag, payloadEnd, err := peekTag(buf, pos)
	if err != nil {
		return EsDescriptor{}, err
	}
	if tag != TagESDescr {
		return EsDescriptor{}, errInvalidData("expected ES_DescrTag 0x03, got 0x%02x", tag)
	}
	if payloadEnd > end {
		return EsDescriptor{}, errInvalidData("ES_Descriptor length exceeds enclosing box")
	}

	var d EsDescriptor
	if d.ESID, err = ReadUint16(buf, pos); err != nil {
		return d, err
	}
	flags, err := ReadUint8(buf, pos)
	if err != nil {
		return d, err
	}
	d.StreamDependenceFlag = flags&0x80 != 0
	d.URLFlag = flags&0x40 != 0
	d.OCRStreamFlag = flags&0x20 != 0
	d.StreamPriority = NewUint[uint8](0, 5, 0).FromBits(flags)

	if d.StreamDependenceFlag {
		if d.DependsOnESID, err = ReadUint16(buf, pos); err != nil {
			return d, err
		}
	}
	if d.URLFlag {
		urlLen, uerr := ReadUint8(buf, pos)
		if uerr != nil {
			return d, uerr
		}
		urlBytes, uerr := ReadBytes(buf, pos, int(urlLen))
		if uerr != nil {
			return d, uerr
		}
		d.URL = string(urlBytes)
	}
	if d.OCRStreamFlag {
		if d.OCRESID, err = ReadUint16(buf, pos); err != nil {
			return d, err
		}
	}

	sawDecoderConfig := false
	sawSLConfig := false
	for *pos < payloadEnd {
		tag, tagEnd, terr := peekTag(buf, pos)
		if terr != nil {
			return d, terr
		}
		switch tag {
		case TagDecoderConfigDescr:
			dc, derr := decodeDecoderConfigDescriptor(buf, pos, tagEnd)
			if derr != nil {
				return d, derr
			}
			d.DecoderConfig = dc
			sawDecoderConfig = true
		case TagSLConfigDescr:
			sl, serr := decodeSLConfigDescriptor(buf, pos, tagEnd)
			if serr != nil {
				return d, serr
			}
			d.SLConfig = sl
			sawSLConfig = true
		default:
			*pos = tagEnd
		}
	}
	if !sawDecoderConfig {
		return d, errMissingBox("DecoderConfigDescr", "ESDescr")
	}
	if !sawSLConfig {
		return d, errMissingBox("SLConfigDescr", "ESDescr")
	}
	return d, nil
}
