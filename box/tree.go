package box

// --- Box tree (C4) ---
//
// Generalizes the teacher's ImmutableBox/Boxes pair (box.go) to also
// decode: a Box now encodes only its own header-less payload, and Node
// (the teacher's Boxes) owns header framing plus recursive traversal, so
// that the same size-then-marshal two-pass the teacher uses for
// variable-length boxes works uniformly for every box type instead of
// being hand-rolled per box.

// Box is a single box's payload codec: everything between the box header
// and its first child (or end of box, for a leaf).
type Box interface {
	Type() BoxType
	// PayloadSize is the encoded size of this box's own fields, excluding
	// the leading size+type (+largesize) (+extended_type) header.
	PayloadSize() int
	// MarshalPayload writes this box's own fields (not the header, not
	// children) at *pos.
	MarshalPayload(buf []byte, pos *int) error
}

// decodeFunc decodes one box's payload from buf[*pos:end]. It may stop
// short of end: DecodeNode then decodes the rest as child boxes (sample
// entries) or skips it as trailing padding.
type decodeFunc func(buf []byte, pos *int, end int) (Box, error)

// decoders maps each registered box type to its payload decoder; types not
// in it decode as UnknownBox.
var decoders = map[BoxType]decodeFunc{}

func registerDecoder(t BoxType, fn decodeFunc) { decoders[t] = fn }

// Node is one node of a decoded or to-be-encoded box tree: a payload Box
// plus its children, mirroring the teacher's Boxes struct.
type Node struct {
	Box      Box
	Children []*Node
}

// headerSizeForType returns the header length a box of type t would use to
// encode total bytes, picking the 64-bit largesize form only when needed.
func headerSizeForType(t BoxType, total uint64) int {
	h := Header{Size: total, Type: t}
	return h.HeaderSize()
}

// Size returns this node's total encoded size, header and children included.
func (n *Node) Size() int {
	payload := n.Box.PayloadSize()
	children := 0
	for _, c := range n.Children {
		children += c.Size()
	}
	hdr := headerSizeForType(n.Box.Type(), uint64(headerSize32+payload+children))
	total := hdr + payload + children
	// Re-resolve once more in case crossing the 32-bit boundary changed the
	// header width itself (the two-pass spec.md's header codec calls for).
	hdr2 := headerSizeForType(n.Box.Type(), uint64(hdr+payload+children))
	if hdr2 != hdr {
		total = hdr2 + payload + children
	}
	return total
}

// Marshal encodes this node (header, payload, children) at *pos.
func (n *Node) Marshal(buf []byte, pos *int) error {
	total := uint64(n.Size())
	h := Header{Size: total, Type: n.Box.Type()}
	if err := WriteHeader(buf, pos, h); err != nil {
		return err
	}
	if err := n.Box.MarshalPayload(buf, pos); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := c.Marshal(buf, pos); err != nil {
			return err
		}
	}
	return nil
}

// Append is a small fluent helper for building trees in synthesis code.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Leaf wraps a Box with no children.
func Leaf(b Box) *Node { return &Node{Box: b} }

// UnknownBox preserves an unrecognized or intentionally-opaque box's raw
// payload bytes verbatim (spec §3.2's requirement that an unknown box round
// trips byte-for-byte).
type UnknownBox struct {
	BoxType BoxType
	Payload []byte
}

func (b *UnknownBox) Type() BoxType    { return b.BoxType }
func (b *UnknownBox) PayloadSize() int { return len(b.Payload) }
func (b *UnknownBox) MarshalPayload(buf []byte, pos *int) error {
	WriteBytes(buf, pos, b.Payload)
	return nil
}

// DecodeNode decodes one box (header, payload, and any children) starting
// at *pos. end bounds the enclosing box or buffer.
func DecodeNode(buf []byte, pos *int, end int) (*Node, error) {
	start := *pos
	h, err := ReadHeader(buf, pos, end)
	if err != nil {
		return nil, err
	}
	boxEnd := start + int(h.Size)
	if boxEnd > end {
		return nil, errInvalidData("box %q overruns enclosing range", h.Type)
	}
	payloadStart := *pos

	if h.Type == TypeStsd {
		return decodeStsdNode(buf, pos, boxEnd)
	}

	if IsContainerBox(h.Type) {
		b := &containerMarker{boxType: h.Type}
		node := &Node{Box: b}
		for *pos < boxEnd {
			child, err := DecodeNode(buf, pos, boxEnd)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
		return node, nil
	}

	if IsOpaquePayload(h.Type) {
		payload, err := ReadBytes(buf, pos, boxEnd-payloadStart)
		if err != nil {
			return nil, err
		}
		return &Node{Box: &UnknownBox{BoxType: h.Type, Payload: append([]byte(nil), payload...)}}, nil
	}

	dec, ok := decoders[h.Type]
	if !ok {
		payload, err := ReadBytes(buf, pos, boxEnd-payloadStart)
		if err != nil {
			return nil, err
		}
		return &Node{Box: &UnknownBox{BoxType: h.Type, Payload: append([]byte(nil), payload...)}}, nil
	}
	b, err := dec(buf, pos, boxEnd)
	if err != nil {
		return nil, err
	}

	if hasTrailingChildren(h.Type) {
		node := &Node{Box: b}
		for *pos < boxEnd {
			child, err := DecodeNode(buf, pos, boxEnd)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
		return node, nil
	}

	if *pos > boxEnd {
		return nil, errInvalidData("box %q decoder read past its payload end", h.Type)
	}
	if *pos < boxEnd {
		// Tolerate trailing padding some producers leave inside a box
		// (mirrors ReadUtf8String's end-of-box tolerance); snap forward.
		*pos = boxEnd
	}
	return &Node{Box: b}, nil
}

// hasTrailingChildren reports whether a box type decodes a fixed-size
// payload followed by zero or more ordinary child boxes filling the rest of
// its range (sample entries: avc1+avcC, hev1/hvc1+hvcC, vp08/vp09+vpcC,
// av01+av1C, mp4a+esds, Opus+dOps, fLaC+dfLa), as opposed to a plain leaf
// or the count-prefixed stsd container.
func hasTrailingChildren(t BoxType) bool {
	switch t {
	case TypeAvc1, TypeHev1, TypeHvc1, TypeVp08, TypeVp09, TypeAv01, TypeMp4a, TypeOpus, TypeFLaC:
		return true
	}
	return false
}

// DecodeTopLevel decodes every sibling box in buf from pos 0 to len(buf),
// the entry point for parsing a whole MP4 file.
func DecodeTopLevel(buf []byte) ([]*Node, error) {
	var nodes []*Node
	pos := 0
	for pos < len(buf) {
		n, err := DecodeNode(buf, &pos, len(buf))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// containerMarker is the Box implementation used for pure container nodes
// (moov, trak, mdia, minf, dinf, stbl, edts, mvex, moof, traf, mfra), which
// carry no fields of their own.
type containerMarker struct{ boxType BoxType }

func (c *containerMarker) Type() BoxType                                { return c.boxType }
func (c *containerMarker) PayloadSize() int                             { return 0 }
func (c *containerMarker) MarshalPayload(buf []byte, pos *int) error { return nil }

// Container builds an encode-side Node for a pure container box type.
func Container(t BoxType, children ...*Node) *Node {
	return &Node{Box: &containerMarker{boxType: t}, Children: children}
}

// Find returns the first direct child whose box type is t, or nil.
func (n *Node) Find(t BoxType) *Node {
	for _, c := range n.Children {
		if c.Box.Type() == t {
			return c
		}
	}
	return nil
}

// FindAll returns every direct child whose box type is t.
func (n *Node) FindAll(t BoxType) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Box.Type() == t {
			out = append(out, c)
		}
	}
	return out
}
