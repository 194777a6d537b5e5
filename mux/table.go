package mux

import "github.com/streammux/isobmff/box"

// sampleTable accumulates one track's stts/ctts/stsc/stsz/stco(or co64)/stss
// run-length tables as samples arrive, shared between the classic and
// hybrid muxers (spec §9.1's shared chunk-accumulation logic, grounded on
// the teacher's writeVideoSample/writeAudioSample run-length merging in
// mp4muxer/muxer.go).
type sampleTable struct {
	stts []box.SttsEntry
	ctts []box.CttsEntry
	stsc []box.StscEntry
	stsz []uint32
	stco []uint64
	stss []uint32

	hasCtts       bool
	chunkOpen     bool
	sampleCount   uint32
}

// addSample records one sample starting a new chunk when startsChunk is
// true (a chunk boundary the muxer decides externally, e.g. on every
// sample for the teacher's one-sample-per-chunk policy, or once per
// fragment for the hybrid muxer).
func (t *sampleTable) addSample(duration uint32, ctsOffset int32, size uint32, sync, startsChunk bool, chunkOffset uint64) {
	if n := len(t.stts); n > 0 && t.stts[n-1].SampleDelta == duration {
		t.stts[n-1].SampleCount++
	} else {
		t.stts = append(t.stts, box.SttsEntry{SampleCount: 1, SampleDelta: duration})
	}

	if ctsOffset != 0 {
		t.hasCtts = true
	}
	if n := len(t.ctts); n > 0 && t.ctts[n-1].SampleOffset == ctsOffset {
		t.ctts[n-1].SampleCount++
	} else {
		t.ctts = append(t.ctts, box.CttsEntry{SampleCount: 1, SampleOffset: ctsOffset})
	}

	if startsChunk || len(t.stco) == 0 {
		t.stco = append(t.stco, chunkOffset)
		t.stsc = append(t.stsc, box.StscEntry{
			FirstChunk:             uint32(len(t.stco)),
			SamplesPerChunk:        1,
			SampleDescriptionIndex: 1,
		})
	} else {
		t.stsc[len(t.stsc)-1].SamplesPerChunk++
	}

	t.stsz = append(t.stsz, size)
	t.sampleCount++
	if sync {
		t.stss = append(t.stss, t.sampleCount)
	}
}

// needsCo64 reports whether any recorded chunk offset exceeds the 32-bit
// stco range (spec §3.2, §9.1).
func (t *sampleTable) needsCo64() bool {
	for _, o := range t.stco {
		if o > 0xFFFFFFFF {
			return true
		}
	}
	return false
}

// rebaseOffsets adds base to every recorded chunk offset. Both muxers
// already record absolute file offsets through addSample.
func (t *sampleTable) rebaseOffsets(base uint64) {
	for i := range t.stco {
		t.stco[i] += base
	}
}

// buildStbl assembles the Sample Table Box for this track (spec §3.2,
// §4.6.1). stss is omitted entirely when every sample is a sync sample
// (length equals total samples), matching real encoders and the all-sync
// audio-only case.
func (t *sampleTable) buildStbl(stsd *box.Node) *box.Node {
	children := []*box.Node{
		stsd,
		box.Leaf(&box.Stts{Entries: t.stts}),
	}
	if len(t.stss) < int(t.sampleCount) {
		children = append(children, box.Leaf(&box.Stss{SampleNumbers: t.stss}))
	}
	if t.hasCtts {
		children = append(children, box.Leaf(&box.Ctts{Entries: t.ctts}))
	}
	children = append(children, box.Leaf(&box.Stsc{Entries: t.stsc}))
	children = append(children, box.Leaf(&box.Stsz{SampleSize: 0, SampleCount: t.sampleCount, EntrySizes: t.stsz}))
	if t.needsCo64() {
		children = append(children, box.Leaf(&box.Co64{ChunkOffsets: t.stco}))
	} else {
		offsets32 := make([]uint32, len(t.stco))
		for i, o := range t.stco {
			offsets32[i] = uint32(o)
		}
		children = append(children, box.Leaf(&box.Stco{ChunkOffsets: offsets32}))
	}
	return box.Container(box.TypeStbl, children...)
}

// totalDuration returns the sum of stts-run durations, in this track's
// timescale.
func (t *sampleTable) totalDuration() uint64 {
	var total uint64
	for _, e := range t.stts {
		total += uint64(e.SampleCount) * uint64(e.SampleDelta)
	}
	return total
}
