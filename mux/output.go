package mux

// OffsetBytes is one "write these bytes at this absolute file offset"
// record. Both muxers hand these back instead of performing I/O
// themselves: a classic muxer's Finalize always produces exactly two (moov,
// final mdat header), a hybrid muxer's NextOutput drains an ordered queue
// that can include in-place rewrites of bytes the caller already wrote
// (spec §4.6/§4.7's output interface, §6.2's FinalizedBoxes/next_output).
type OffsetBytes struct {
	Offset uint64
	Bytes  []byte
}

// FinalizedBoxes is the result of a classic muxer's Finalize call: every
// record the caller must write, in order, to complete the file, plus
// whether faststart placement was used (spec §6.2).
type FinalizedBoxes struct {
	pairs     []OffsetBytes
	faststart bool
}

// OffsetAndBytesPairs returns every (offset, bytes) record the caller must
// write to finish the file.
func (f *FinalizedBoxes) OffsetAndBytesPairs() []OffsetBytes { return f.pairs }

// IsFaststartEnabled reports whether moov was placed ahead of mdat in a
// reserved "free" slot instead of appended at end of file (spec §4.6
// "Placement policy").
func (f *FinalizedBoxes) IsFaststartEnabled() bool { return f.faststart }

// mdatHeaderSize is the number of bytes both muxers reserve up front for an
// mdat header, room for the largesize form. box.WriteHeader writes the
// compact 8-byte form whenever the size fits in 32 bits; the remaining
// bytes are then zero and part of the mdat payload. Either form can be
// back-patched in place once the payload's true length is known without
// relocating anything written after it (spec §4.6, §4.7).
const mdatHeaderSize = 16
