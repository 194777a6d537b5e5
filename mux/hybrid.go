package mux

import (
	"time"

	"github.com/streammux/isobmff/box"
)

// Mp4HybridFileMuxerOptions configures a hybrid muxer's construction and
// fragment-cutting policy (spec §6.2).
type Mp4HybridFileMuxerOptions struct {
	ReservedMoovBoxSize int
	CreationTimestamp   time.Time
	// FragmentDuration is the target fragment length; the zero value means
	// the spec's default of 2s.
	FragmentDuration time.Duration
}

// Mp4HybridFileMuxer emits fragmented MP4 (moof+mdat) as samples arrive,
// then rewrites the file into classic layout on Finalize by overwriting the
// region right after ftyp with a single mdat header that spans every byte
// written since (every fragment, and whatever init moov/free bytes used to
// sit there), followed by a classic moov appended at the end (spec §4.7).
//
// Output flows exclusively through NextOutput: the muxer performs no I/O
// itself (spec §4.7 "Output interface"). A fragment's samples are held
// in memory only until that fragment is cut — bounded by FragmentDuration,
// not by the whole capture, unlike the now-removed whole-file mdat buffer
// this package used to carry for the classic muxer.
//
// Grounded on the teacher's hls/segmenter.go writeH264/writeH264Entry
// (segment-on-sync-sample-after-threshold), generalized into the spec's
// 4-rule audio/video cut state machine instead of a single reference-track
// threshold.
type Mp4HybridFileMuxer struct {
	tracks  []TrackConfig
	options Mp4HybridFileMuxerOptions

	tables []*sampleTable // whole-capture accumulation, for the final classic moov

	outputQueue []OffsetBytes
	fileLen     uint64 // bytes appended so far (not counting in-place rewrites)

	freeBoxOffset uint64
	reserved      bool
	ftypEnd       uint64

	sequenceNumber     uint32
	pending            [][]Sample
	fragBaseDecodeTime []uint64 // per track, cumulative ticks at the open fragment's start

	fragmentHasVideo bool
	elapsed          [2]time.Duration // indexed by TrackKind
	pendingCut       bool

	finalized bool
}

// NewMp4HybridFileMuxer constructs a hybrid muxer and queues its ftyp+moov
// (with mvex/trex) initialization segment as the first NextOutput record.
func NewMp4HybridFileMuxer(tracks []TrackConfig, options Mp4HybridFileMuxerOptions) (*Mp4HybridFileMuxer, error) {
	for _, t := range tracks {
		if t.SampleEntry == nil {
			return nil, &MissingSampleEntryError{TrackID: t.TrackID}
		}
		if t.Timescale == 0 {
			return nil, &TimescaleMismatchError{TrackID: t.TrackID, Timescale: t.Timescale}
		}
	}
	if options.FragmentDuration == 0 {
		options.FragmentDuration = 2 * time.Second
	}
	m := &Mp4HybridFileMuxer{
		tracks:             tracks,
		options:            options,
		pending:            make([][]Sample, len(tracks)),
		fragBaseDecodeTime: make([]uint64, len(tracks)),
	}
	for range tracks {
		m.tables = append(m.tables, &sampleTable{})
	}

	ftyp := box.Leaf(&box.Ftyp{
		MajorBrand:       mkBrand("iso5"),
		MinorVersion:     512,
		CompatibleBrands: []box.BoxType{mkBrand("iso5"), mkBrand("iso6"), mkBrand("mp41")},
	})
	m.ftypEnd = uint64(ftyp.Size())

	total := ftyp.Size()
	var free *box.Node
	if options.ReservedMoovBoxSize > 0 {
		m.reserved = true
		m.freeBoxOffset = uint64(total)
		free = box.NewFree(options.ReservedMoovBoxSize)
		total += free.Size()
	}
	moov := m.buildInitMoov()
	total += moov.Size()

	buf := make([]byte, total)
	pos := 0
	if err := ftyp.Marshal(buf, &pos); err != nil {
		return nil, err
	}
	if free != nil {
		if err := free.Marshal(buf, &pos); err != nil {
			return nil, err
		}
	}
	if err := moov.Marshal(buf, &pos); err != nil {
		return nil, err
	}
	m.queueAppend(0, buf)
	return m, nil
}

// NextOutput drains the next pending (offset, bytes) record the caller must
// write, or reports false once the queue is empty (spec §4.7's
// next_output() -> Option<(offset, bytes)>). Records are ordered: a rewrite
// of earlier bytes is always queued after the record it rewrites.
func (m *Mp4HybridFileMuxer) NextOutput() (OffsetBytes, bool) {
	if len(m.outputQueue) == 0 {
		return OffsetBytes{}, false
	}
	next := m.outputQueue[0]
	m.outputQueue = m.outputQueue[1:]
	return next, true
}

func (m *Mp4HybridFileMuxer) queueAppend(offset uint64, b []byte) {
	m.outputQueue = append(m.outputQueue, OffsetBytes{Offset: offset, Bytes: b})
	if end := offset + uint64(len(b)); end > m.fileLen {
		m.fileLen = end
	}
}

func (m *Mp4HybridFileMuxer) queueOverwrite(offset uint64, b []byte) {
	m.outputQueue = append(m.outputQueue, OffsetBytes{Offset: offset, Bytes: b})
}

func (m *Mp4HybridFileMuxer) buildInitMoov() *box.Node {
	mvhd := box.Leaf(&box.Mvhd{
		Timescale:   1_000_000,
		Rate:        box.FixedPointNumber[int16, uint16]{Integer: 1},
		Volume:      box.FixedPointNumber[int8, uint8]{Integer: 1},
		Matrix:      identityMatrix(),
		NextTrackID: nextTrackID(m.tracks),
	})
	children := []*box.Node{mvhd}
	trexes := make([]*box.Node, 0, len(m.tracks))
	for _, tc := range m.tracks {
		children = append(children, m.buildInitTrak(tc))
		trexes = append(trexes, box.Leaf(&box.Trex{
			TrackID:                       tc.TrackID,
			DefaultSampleDescriptionIndex: 1,
		}))
	}
	children = append(children, box.Container(box.TypeMvex, trexes...))
	return box.Container(box.TypeMoov, children...)
}

func (m *Mp4HybridFileMuxer) buildInitTrak(tc TrackConfig) *box.Node {
	tkhd := box.Leaf(&box.Tkhd{
		FullBoxHeader: box.FullBoxHeader{Flags: box.TkhdFlagTrackEnabled | box.TkhdFlagTrackInMovie},
		TrackID:       tc.TrackID,
		Volume:        trakVolume(tc.Kind),
		Matrix:        identityMatrix(),
	})
	mdhd := box.Leaf(&box.Mdhd{Timescale: tc.Timescale, Language: box.LanguageUnd()})
	hdlr := box.Leaf(&box.Hdlr{HandlerType: tc.HandlerType, Name: append([]byte(tc.HandlerName), 0)})
	var mediaHeader *box.Node
	if tc.Kind == TrackVideo {
		mediaHeader = box.Leaf(&box.Vmhd{FullBoxHeader: box.FullBoxHeader{Flags: 1}})
	} else {
		mediaHeader = box.Leaf(&box.Smhd{})
	}
	stbl := box.Container(box.TypeStbl,
		box.NewStsd(tc.SampleEntry),
		box.Leaf(&box.Stts{}),
		box.Leaf(&box.Stsc{}),
		box.Leaf(&box.Stsz{}),
		box.Leaf(&box.Stco{}),
	)
	minf := box.Container(box.TypeMinf, mediaHeader, box.Container(box.TypeDinf, box.NewSelfContainedDref()), stbl)
	mdia := box.Container(box.TypeMdia, mdhd, hdlr, minf)
	return box.Container(box.TypeTrak, tkhd, mdia)
}

// AppendSample appends a sample to trackIndex's open fragment, cutting the
// currently open fragment first if the 4-rule state machine says so (spec
// §4.7):
//
//  1. (not modeled here: a track's sample_entry is fixed for the muxer's
//     whole lifetime via TrackConfig, so it can never change mid-capture.)
//  2. If a cut is pending: cut now iff the incoming sample is a video
//     keyframe (when the open fragment has video), else cut unconditionally.
//  3. Else, if the open fragment has video and the incoming sample is a
//     video keyframe and accepting it would bring max(elapsed_audio,
//     elapsed_video) to or past FragmentDuration, cut now.
//  4. Otherwise, no cut.
//
// After accepting a sample, a cut is marked pending once
// max(elapsed_audio, elapsed_video) reaches FragmentDuration, guaranteeing
// the next fragment starts on a video keyframe when the capture has video.
func (m *Mp4HybridFileMuxer) AppendSample(trackIndex int, s Sample) error {
	if m.finalized {
		return &AlreadyFinalizedError{}
	}
	if trackIndex < 0 || trackIndex >= len(m.tracks) {
		return &UnknownTrackError{TrackIndex: trackIndex}
	}
	tc := m.tracks[trackIndex]
	sampleDur := ticksToDuration(s.Duration, tc.Timescale)

	if m.shouldCutBefore(tc, s, sampleDur) {
		if err := m.cutFragment(); err != nil {
			return err
		}
	}

	m.pending[trackIndex] = append(m.pending[trackIndex], s)
	if tc.Kind == TrackVideo {
		m.fragmentHasVideo = true
	}
	m.elapsed[tc.Kind] += sampleDur
	if maxDuration(m.elapsed[TrackVideo], m.elapsed[TrackAudio]) >= m.options.FragmentDuration {
		m.pendingCut = true
	}
	return nil
}

func (m *Mp4HybridFileMuxer) shouldCutBefore(tc TrackConfig, s Sample, sampleDur time.Duration) bool {
	if !m.fragmentOpen() {
		return false
	}
	if m.pendingCut {
		if m.fragmentHasVideo {
			return tc.Kind == TrackVideo && s.Flags.Sync
		}
		return true
	}
	if m.fragmentHasVideo && tc.Kind == TrackVideo && s.Flags.Sync {
		wouldBe := maxDuration(m.elapsed[TrackVideo]+sampleDur, m.elapsed[TrackAudio])
		if wouldBe >= m.options.FragmentDuration {
			return true
		}
	}
	return false
}

func (m *Mp4HybridFileMuxer) fragmentOpen() bool {
	for _, p := range m.pending {
		if len(p) > 0 {
			return true
		}
	}
	return false
}

func ticksToDuration(ticks, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	return time.Duration(ticks) * time.Second / time.Duration(timescale)
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// cutFragment emits one moof+mdat record covering every track's pending
// samples, records each sample's true absolute file offset into the
// whole-capture sampleTable (for the final classic moov), and resets
// per-fragment state.
func (m *Mp4HybridFileMuxer) cutFragment() error {
	if !m.fragmentOpen() {
		return nil
	}
	m.sequenceNumber++
	mfhd := box.Leaf(&box.Mfhd{SequenceNumber: m.sequenceNumber})

	trafs := make([]*box.Node, len(m.tracks))
	runSizes := make([]int, len(m.tracks))
	for i, tc := range m.tracks {
		traf, size := m.buildTraf(tc, m.pending[i], m.fragBaseDecodeTime[i])
		trafs[i] = traf
		runSizes[i] = size
	}
	moof := box.Container(box.TypeMoof, append([]*box.Node{mfhd}, trafs...)...)
	moofSize := moof.Size()

	dataOffset := int32(moofSize + mdatHeaderSize)
	runStart := make([]int32, len(m.tracks))
	for i := range m.tracks {
		runStart[i] = dataOffset
		if trun := trafs[i].Find(box.TypeTrun); trun != nil {
			trun.Box.(*box.Trun).DataOffset = dataOffset
		}
		dataOffset += int32(runSizes[i])
	}

	var mdatTotal int
	for _, s := range runSizes {
		mdatTotal += s
	}

	buf := make([]byte, moofSize+mdatHeaderSize+mdatTotal)
	pos := 0
	if err := moof.Marshal(buf, &pos); err != nil {
		return err
	}
	if err := box.WriteHeader(buf, &pos, box.Header{Size: uint64(mdatHeaderSize + mdatTotal), Type: box.TypeMdat}); err != nil {
		return err
	}
	// WriteHeader may use the compact 8-byte form; sample data still starts
	// after the full reserved header, where dataOffset points.
	pos = moofSize + mdatHeaderSize
	fragmentFileOffset := m.fileLen
	for i := range m.tracks {
		within := 0
		for j, s := range m.pending[i] {
			copy(buf[pos:], s.Data)
			pos += len(s.Data)

			absOffset := fragmentFileOffset + uint64(runStart[i]) + uint64(within)
			m.tables[i].addSample(s.Duration, s.CTSOffset, uint32(len(s.Data)), s.Flags.Sync, j == 0, absOffset)
			within += len(s.Data)
		}
	}

	m.queueAppend(m.fileLen, buf)

	for i := range m.tracks {
		m.fragBaseDecodeTime[i] += trackDuration(m.pending[i])
		m.pending[i] = nil
	}
	m.elapsed[TrackVideo] = 0
	m.elapsed[TrackAudio] = 0
	m.fragmentHasVideo = false
	m.pendingCut = false

	if m.reserved {
		m.writeMoovSnapshot()
	}
	return nil
}

func trackDuration(samples []Sample) uint64 {
	var d uint64
	for _, s := range samples {
		d += uint64(s.Duration)
	}
	return d
}

// writeMoovSnapshot rewrites the reserved free slot with a moov (plus mvex)
// describing the capture so far, for readers that open the file mid-
// capture, backfilling any leftover room with a residual free box. Skipped
// silently when the snapshot no longer fits (spec §4.7 "Snapshot moov
// updates").
func (m *Mp4HybridFileMuxer) writeMoovSnapshot() {
	moov := m.buildSnapshotMoov()
	if moov.Size() > m.options.ReservedMoovBoxSize {
		return
	}
	buf := make([]byte, m.options.ReservedMoovBoxSize)
	pos := 0
	if err := moov.Marshal(buf, &pos); err != nil {
		return
	}
	if pad := m.options.ReservedMoovBoxSize - pos; pad > 0 {
		if err := box.NewFree(pad).Marshal(buf, &pos); err != nil {
			return
		}
	}
	m.queueOverwrite(m.freeBoxOffset, buf)
}

func (m *Mp4HybridFileMuxer) buildSnapshotMoov() *box.Node {
	moov := m.BuildClassicMoov()
	trexes := make([]*box.Node, len(m.tracks))
	for i, tc := range m.tracks {
		trexes[i] = box.Leaf(&box.Trex{TrackID: tc.TrackID, DefaultSampleDescriptionIndex: 1})
	}
	moov.Append(box.Container(box.TypeMvex, trexes...))
	return moov
}

func (m *Mp4HybridFileMuxer) buildTraf(tc TrackConfig, samples []Sample, baseMediaDecodeTime uint64) (*box.Node, int) {
	tfhd := box.Leaf(&box.Tfhd{
		FullBoxHeader: box.FullBoxHeader{Flags: box.TfhdDefaultBaseIsMoof},
		TrackID:       tc.TrackID,
	})
	tfdt := box.Leaf(&box.Tfdt{
		FullBoxHeader:       box.FullBoxHeader{Version: 1},
		BaseMediaDecodeTime: baseMediaDecodeTime,
	})
	trun := &box.Trun{
		FullBoxHeader: box.FullBoxHeader{
			Flags: box.TrunDataOffsetPresent | box.TrunSampleDurationPresent |
				box.TrunSampleSizePresent | box.TrunSampleFlagsPresent |
				box.TrunSampleCompositionTimeOffsetPresent,
			Version: 1,
		},
	}
	dataSize := 0
	for _, s := range samples {
		trun.Entries = append(trun.Entries, box.TrunEntry{
			SampleDuration:              s.Duration,
			SampleSize:                  uint32(len(s.Data)),
			SampleFlags:                 sampleFlagsWord(s.Flags.Sync),
			SampleCompositionTimeOffset: s.CTSOffset,
		})
		dataSize += len(s.Data)
	}
	traf := box.Container(box.TypeTraf, tfhd, tfdt, box.Leaf(trun))
	return traf, dataSize
}

// sampleFlagsWord packs the sample_depends_on/is_non_sync_sample bits the
// way ISO/IEC 14496-12 trun entries expect: a sync sample depends on no
// other sample and is marked as such.
func sampleFlagsWord(sync bool) uint32 {
	if sync {
		return 0x02000000 // sample_depends_on = 2 (does not depend on others), is_non_sync_sample = 0
	}
	return 0x01010000 // sample_depends_on = 1, is_non_sync_sample = 1
}

// Finalize flushes any open fragment, then rewrites the file from
// fragmented to classic layout: a single mdat header is queued to overwrite
// the bytes starting right after ftyp, declaring a payload that spans every
// byte written since (the init moov/free region and every moof/mdat
// fragment, now all opaque payload to a classic reader), followed by a
// classic moov (without mvex) appended at the current end of file (spec
// §4.7 Finalize; §9.2 notes the resulting byte-range overlap is
// intentional, not a format violation).
func (m *Mp4HybridFileMuxer) Finalize() error {
	if m.finalized {
		return &AlreadyFinalizedError{}
	}
	m.finalized = true
	if err := m.cutFragment(); err != nil {
		return err
	}

	// The header's own 16 bytes are carved out of [ftypEnd, fileLen), not
	// additional to it: the header overwrites the first 16 bytes of
	// whatever used to live there (the init moov/free region), so the
	// box's total size is the whole span, not the span plus a header.
	mdatTotalSize := m.fileLen - m.ftypEnd
	mdatHeader := make([]byte, mdatHeaderSize)
	hp := 0
	if err := box.WriteHeader(mdatHeader, &hp, box.Header{Size: mdatTotalSize, Type: box.TypeMdat}); err != nil {
		return err
	}
	m.queueOverwrite(m.ftypEnd, mdatHeader)

	moov := m.BuildClassicMoov()
	moovBuf := make([]byte, moov.Size())
	pos := 0
	if err := moov.Marshal(moovBuf, &pos); err != nil {
		return err
	}
	m.queueAppend(m.fileLen, moovBuf)
	return nil
}

// BuildClassicMoov assembles a classic (non-fragmented) moov describing
// every sample accumulated across the whole capture so far, with stco
// chunk offsets already absolute within the final rewritten file (one
// chunk per track per fragment).
func (m *Mp4HybridFileMuxer) BuildClassicMoov() *box.Node {
	traks := make([]*box.Node, len(m.tracks))
	for i, tc := range m.tracks {
		traks[i] = m.buildTrakFromTable(tc, m.tables[i])
	}
	mvhd := box.Leaf(&box.Mvhd{
		Timescale:   1_000_000,
		Duration:    longestTrackDurationMicros(m.tracks, m.tables),
		Rate:        box.FixedPointNumber[int16, uint16]{Integer: 1},
		Volume:      box.FixedPointNumber[int8, uint8]{Integer: 1},
		Matrix:      identityMatrix(),
		NextTrackID: nextTrackID(m.tracks),
	})
	return box.Container(box.TypeMoov, append([]*box.Node{mvhd}, traks...)...)
}

func (m *Mp4HybridFileMuxer) buildTrakFromTable(tc TrackConfig, table *sampleTable) *box.Node {
	tkhd := box.Leaf(&box.Tkhd{
		FullBoxHeader: box.FullBoxHeader{Flags: box.TkhdFlagTrackEnabled | box.TkhdFlagTrackInMovie},
		TrackID:       tc.TrackID,
		Duration:      table.totalDuration(),
		Volume:        trakVolume(tc.Kind),
		Matrix:        identityMatrix(),
	})
	mdhd := box.Leaf(&box.Mdhd{Timescale: tc.Timescale, Duration: table.totalDuration(), Language: box.LanguageUnd()})
	hdlr := box.Leaf(&box.Hdlr{HandlerType: tc.HandlerType, Name: append([]byte(tc.HandlerName), 0)})
	var mediaHeader *box.Node
	if tc.Kind == TrackVideo {
		mediaHeader = box.Leaf(&box.Vmhd{FullBoxHeader: box.FullBoxHeader{Flags: 1}})
	} else {
		mediaHeader = box.Leaf(&box.Smhd{})
	}
	stbl := table.buildStbl(box.NewStsd(tc.SampleEntry))
	minf := box.Container(box.TypeMinf, mediaHeader, box.Container(box.TypeDinf, box.NewSelfContainedDref()), stbl)
	mdia := box.Container(box.TypeMdia, mdhd, hdlr, minf)
	return box.Container(box.TypeTrak, tkhd, mdia)
}
