package box

func init() {
	registerDecoder(TypeStts, decodeStts)
	registerDecoder(TypeCtts, decodeCtts)
	registerDecoder(TypeStsc, decodeStsc)
	registerDecoder(TypeStsz, decodeStsz)
	registerDecoder(TypeStco, decodeStco)
	registerDecoder(TypeCo64, decodeCo64)
	registerDecoder(TypeStss, decodeStss)
}

// --- stsd ---
//
// stsd's children (sample entries) are counted explicitly rather than
// filling the box to its end, unlike the other container boxes, so it gets
// a dedicated decode path (wired from DecodeNode in tree.go) instead of the
// generic IsContainerBox loop.

// Stsd is the Sample Description Box header (spec §3.2); its Children are
// the SampleEntry nodes (avc1, mp4a, etc).
type Stsd struct {
	FullBoxHeader
}

func (b *Stsd) Type() BoxType    { return TypeStsd }
func (b *Stsd) PayloadSize() int { return 4 + 4 }

// MarshalPayload always fails: Stsd carries no entry count. stsd nodes are
// built with NewStsd (or decoded by decodeStsdNode), whose stsdWithCount box
// writes entry_count from the node's sample entry children.
func (b *Stsd) MarshalPayload(buf []byte, pos *int) error {
	return errInvalidInput("Stsd must be marshaled via its owning Node (stsd.entryCount depends on Children)")
}

func decodeStsdNode(buf []byte, pos *int, boxEnd int) (*Node, error) {
	fbh, err := ReadFullBoxHeader(buf, pos)
	if err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	sb := &stsdWithCount{fbh: fbh}
	node := &Node{Box: sb}
	for i := uint32(0); i < count && *pos < boxEnd; i++ {
		child, err := DecodeNode(buf, pos, boxEnd)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	sb.count = uint32(len(node.Children))
	return node, nil
}

// stsdWithCount is the encode/decode Box backing an stsd Node; it writes
// entry_count from len(Children) supplied by NewStsd, keeping Stsd itself
// free of a Children dependency.
type stsdWithCount struct {
	fbh   FullBoxHeader
	count uint32
}

func (b *stsdWithCount) Type() BoxType    { return TypeStsd }
func (b *stsdWithCount) PayloadSize() int { return 4 + 4 }
func (b *stsdWithCount) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.fbh)
	WriteUint32(buf, pos, b.count)
	return nil
}

// NewStsd builds the stsd Node from its sample entry children.
func NewStsd(entries ...*Node) *Node {
	return &Node{
		Box:      &stsdWithCount{count: uint32(len(entries))},
		Children: entries,
	}
}

// --- stts ---

// SttsEntry is one run of samples sharing a delta (spec §3.2, §4.6.1).
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Stts is the Decoding Time to Sample Box.
type Stts struct {
	FullBoxHeader
	Entries []SttsEntry
}

func (b *Stts) Type() BoxType    { return TypeStts }
func (b *Stts) PayloadSize() int { return 4 + 4 + len(b.Entries)*8 }
func (b *Stts) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.Entries)))
	for _, e := range b.Entries {
		WriteUint32(buf, pos, e.SampleCount)
		WriteUint32(buf, pos, e.SampleDelta)
	}
	return nil
}

func decodeStts(buf []byte, pos *int, end int) (Box, error) {
	var b Stts
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		sc, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		sd, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.Entries = append(b.Entries, SttsEntry{SampleCount: sc, SampleDelta: sd})
	}
	return &b, nil
}

// --- ctts ---

// CttsEntry is one run of samples sharing a composition-time offset. Version
// 1 offsets are signed, allowing B-frame reordering without the version-0
// unsigned-wraparound hack (spec §9.2 supplemented feature).
type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

// Ctts is the Composition Time to Sample Box.
type Ctts struct {
	FullBoxHeader
	Entries []CttsEntry
}

func (b *Ctts) Type() BoxType    { return TypeCtts }
func (b *Ctts) PayloadSize() int { return 4 + 4 + len(b.Entries)*8 }
func (b *Ctts) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.Entries)))
	for _, e := range b.Entries {
		WriteUint32(buf, pos, e.SampleCount)
		WriteUint32(buf, pos, uint32(e.SampleOffset))
	}
	return nil
}

func decodeCtts(buf []byte, pos *int, end int) (Box, error) {
	var b Ctts
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		sc, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		so, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.Entries = append(b.Entries, CttsEntry{SampleCount: sc, SampleOffset: int32(so)})
	}
	return &b, nil
}

// --- stsc ---

// StscEntry is one run of chunks sharing a samples-per-chunk count and
// sample description index (spec §3.2, §4.6.1).
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// Stsc is the Sample to Chunk Box.
type Stsc struct {
	FullBoxHeader
	Entries []StscEntry
}

func (b *Stsc) Type() BoxType    { return TypeStsc }
func (b *Stsc) PayloadSize() int { return 4 + 4 + len(b.Entries)*12 }
func (b *Stsc) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.Entries)))
	for _, e := range b.Entries {
		WriteUint32(buf, pos, e.FirstChunk)
		WriteUint32(buf, pos, e.SamplesPerChunk)
		WriteUint32(buf, pos, e.SampleDescriptionIndex)
	}
	return nil
}

func decodeStsc(buf []byte, pos *int, end int) (Box, error) {
	var b Stsc
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		fc, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		spc, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		sdi, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.Entries = append(b.Entries, StscEntry{FirstChunk: fc, SamplesPerChunk: spc, SampleDescriptionIndex: sdi})
	}
	return &b, nil
}

// --- stsz ---

// Stsz is the Sample Size Box (spec §3.2). SampleSize nonzero means every
// sample shares that size and EntrySizes is empty.
type Stsz struct {
	FullBoxHeader
	SampleSize  uint32
	SampleCount uint32
	EntrySizes  []uint32 // only when SampleSize == 0
}

func (b *Stsz) Type() BoxType { return TypeStsz }
func (b *Stsz) PayloadSize() int {
	n := 4 + 4 + 4
	if b.SampleSize == 0 {
		n += 4 * len(b.EntrySizes)
	}
	return n
}
func (b *Stsz) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, b.SampleSize)
	WriteUint32(buf, pos, b.SampleCount)
	if b.SampleSize == 0 {
		for _, s := range b.EntrySizes {
			WriteUint32(buf, pos, s)
		}
	}
	return nil
}

func decodeStsz(buf []byte, pos *int, end int) (Box, error) {
	var b Stsz
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	if b.SampleSize, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.SampleCount, err = ReadUint32(buf, pos); err != nil {
		return nil, err
	}
	if b.SampleSize == 0 {
		for i := uint32(0); i < b.SampleCount; i++ {
			s, err := ReadUint32(buf, pos)
			if err != nil {
				return nil, err
			}
			if err := checkBounds(*pos, end); err != nil {
				return nil, err
			}
			b.EntrySizes = append(b.EntrySizes, s)
		}
	}
	return &b, nil
}

// --- stco / co64 ---

// Stco is the 32-bit Chunk Offset Box.
type Stco struct {
	FullBoxHeader
	ChunkOffsets []uint32
}

func (b *Stco) Type() BoxType    { return TypeStco }
func (b *Stco) PayloadSize() int { return 4 + 4 + 4*len(b.ChunkOffsets) }
func (b *Stco) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.ChunkOffsets)))
	for _, o := range b.ChunkOffsets {
		WriteUint32(buf, pos, o)
	}
	return nil
}

func decodeStco(buf []byte, pos *int, end int) (Box, error) {
	var b Stco
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		o, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.ChunkOffsets = append(b.ChunkOffsets, o)
	}
	return &b, nil
}

// Co64 is the 64-bit Chunk Offset Box, used once accumulated mdat contents
// would push an offset past 2^32-1 (spec §3.2, §9.1).
type Co64 struct {
	FullBoxHeader
	ChunkOffsets []uint64
}

func (b *Co64) Type() BoxType    { return TypeCo64 }
func (b *Co64) PayloadSize() int { return 4 + 4 + 8*len(b.ChunkOffsets) }
func (b *Co64) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.ChunkOffsets)))
	for _, o := range b.ChunkOffsets {
		WriteUint64(buf, pos, o)
	}
	return nil
}

func decodeCo64(buf []byte, pos *int, end int) (Box, error) {
	var b Co64
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		o, err := ReadUint64(buf, pos)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.ChunkOffsets = append(b.ChunkOffsets, o)
	}
	return &b, nil
}

// --- stss ---

// Stss is the Sync Sample Box, listing 1-based sample numbers of keyframes.
// Absent entirely when every sample is a sync sample (spec §3.2).
type Stss struct {
	FullBoxHeader
	SampleNumbers []uint32
}

func (b *Stss) Type() BoxType    { return TypeStss }
func (b *Stss) PayloadSize() int { return 4 + 4 + 4*len(b.SampleNumbers) }
func (b *Stss) MarshalPayload(buf []byte, pos *int) error {
	WriteFullBoxHeader(buf, pos, b.FullBoxHeader)
	WriteUint32(buf, pos, uint32(len(b.SampleNumbers)))
	for _, n := range b.SampleNumbers {
		WriteUint32(buf, pos, n)
	}
	return nil
}

func decodeStss(buf []byte, pos *int, end int) (Box, error) {
	var b Stss
	var err error
	if b.FullBoxHeader, err = ReadFullBoxHeader(buf, pos); err != nil {
		return nil, err
	}
	count, err := ReadUint32(buf, pos)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		n, err := ReadUint32(buf, pos)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(*pos, end); err != nil {
			return nil, err
		}
		b.SampleNumbers = append(b.SampleNumbers, n)
	}
	return &b, nil
}
