package mux

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streammux/isobmff/box"
)

func testVideoSampleEntry() *box.Node {
	entry := &box.Avc1{}
	entry.DataReferenceIndex = 1
	entry.Width = 640
	entry.Height = 480
	avcC := &box.AvcC{
		ConfigurationVersion: 1,
		Profile:              66,
		Level:                30,
		LengthSizeMinusOne:   box.NewUint[uint8](3, 2, 0),
		SPS:                  []box.AVCParameterSet{{NALUnit: []byte{0x67, 0x42, 0x00, 0x1e}}},
		PPS:                  []box.AVCParameterSet{{NALUnit: []byte{0x68, 0xce, 0x3c, 0x80}}},
	}
	return &box.Node{Box: entry, Children: []*box.Node{box.Leaf(avcC)}}
}

func testAudioSampleEntry() *box.Node {
	entry := &box.Mp4a{}
	entry.DataReferenceIndex = 1
	entry.ChannelCount = 2
	entry.SampleSize = 16
	entry.SampleRate = box.FixedPointNumber[uint16, uint16]{Integer: 48000}
	esds := &box.Esds{Descriptor: box.EsDescriptor{
		ESID: 1,
		DecoderConfig: box.DecoderConfigDescriptor{
			ObjectTypeIndication: 0x40,
			StreamType:           box.NewUint[uint8](0x05, 6, 2),
			DecoderSpecificInfo:  &box.DecoderSpecificInfo{Data: []byte{0x11, 0x90}},
		},
		SLConfig: box.SlConfigDescriptor{Predefined: 2},
	}}
	return &box.Node{Box: entry, Children: []*box.Node{box.Leaf(esds)}}
}

func testTracks() []TrackConfig {
	var video, audio box.BoxType
	copy(video[:], "vide")
	copy(audio[:], "soun")
	return []TrackConfig{
		{Kind: TrackVideo, TrackID: 1, Timescale: 90000, HandlerType: video, HandlerName: "video", SampleEntry: testVideoSampleEntry()},
		{Kind: TrackAudio, TrackID: 2, Timescale: 48000, HandlerType: audio, HandlerName: "audio", SampleEntry: testAudioSampleEntry()},
	}
}

// applyOffsetBytes applies a FinalizedBoxes' offset/bytes records to buf,
// growing it as needed, modeling what a real caller's file writes would do.
func applyOffsetBytes(buf []byte, pairs []OffsetBytes) []byte {
	for _, p := range pairs {
		end := p.Offset + uint64(len(p.Bytes))
		if end > uint64(len(buf)) {
			grown := make([]byte, end)
			copy(grown, buf)
			buf = grown
		}
		copy(buf[p.Offset:], p.Bytes)
	}
	return buf
}

func TestNewMp4FileMuxerValidatesTracks(t *testing.T) {
	_, err := NewMp4FileMuxer([]TrackConfig{{TrackID: 1, Timescale: 90000}}, Mp4FileMuxerOptions{})
	require.Error(t, err)
	var missing *MissingSampleEntryError
	require.ErrorAs(t, err, &missing)

	_, err = NewMp4FileMuxer([]TrackConfig{{TrackID: 1, SampleEntry: testVideoSampleEntry()}}, Mp4FileMuxerOptions{})
	require.Error(t, err)
	var mismatch *TimescaleMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestMp4FileMuxerFinalize(t *testing.T) {
	m, err := NewMp4FileMuxer(testTracks(), Mp4FileMuxerOptions{})
	require.NoError(t, err)

	buf := append([]byte(nil), m.InitialBoxesBytes()...)

	off := m.NextPosition()
	require.NoError(t, m.AppendSample(0, off, Sample{Duration: 3000, Data: []byte{1, 2, 3, 4}, Flags: SampleFlags{Sync: true}}))
	off = m.NextPosition()
	require.NoError(t, m.AppendSample(0, off, Sample{Duration: 3000, Data: []byte{5, 6}}))
	off = m.NextPosition()
	require.NoError(t, m.AppendSample(1, off, Sample{Duration: 1024, Data: []byte{7, 8, 9}, Flags: SampleFlags{Sync: true}}))

	finalized, err := m.Finalize()
	require.NoError(t, err)
	require.False(t, finalized.IsFaststartEnabled())
	buf = applyOffsetBytes(buf, finalized.OffsetAndBytesPairs())

	// a second Finalize/AppendSample must report AlreadyFinalizedError
	var already *AlreadyFinalizedError
	_, err = m.Finalize()
	require.ErrorAs(t, err, &already)
	err = m.AppendSample(0, 0, Sample{})
	require.ErrorAs(t, err, &already)

	nodes, err := box.DecodeTopLevel(buf)
	require.NoError(t, err)
	require.Len(t, nodes, 3) // ftyp, mdat, moov
	require.Equal(t, box.BoxType{'f', 't', 'y', 'p'}, nodes[0].Box.Type())
	require.Equal(t, box.BoxType{'m', 'd', 'a', 't'}, nodes[1].Box.Type())
	require.Equal(t, box.BoxType{'m', 'o', 'o', 'v'}, nodes[2].Box.Type())

	moov := nodes[2]
	traks := moov.FindAll(box.BoxType{'t', 'r', 'a', 'k'})
	require.Len(t, traks, 2)
}

func TestMp4FileMuxerUnknownTrack(t *testing.T) {
	m, err := NewMp4FileMuxer(testTracks(), Mp4FileMuxerOptions{})
	require.NoError(t, err)

	err = m.AppendSample(5, m.NextPosition(), Sample{})
	var unknown *UnknownTrackError
	require.ErrorAs(t, err, &unknown)
}

// TestMp4FileMuxerPositionMismatch exercises spec scenario S4: an
// AppendSample call whose dataOffset does not equal NextPosition must
// report PositionMismatchError and leave muxer state untouched.
func TestMp4FileMuxerPositionMismatch(t *testing.T) {
	m, err := NewMp4FileMuxer(testTracks(), Mp4FileMuxerOptions{})
	require.NoError(t, err)

	expected := int64(m.NextPosition())
	err = m.AppendSample(0, m.NextPosition()+100, Sample{Duration: 1, Data: []byte{1}, Flags: SampleFlags{Sync: true}})
	var mismatch *PositionMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, expected, mismatch.Expected)
	require.Equal(t, expected+100, mismatch.Got)

	// the rejected append must not have advanced next_position
	require.Equal(t, uint64(expected), m.NextPosition())
}

// TestMp4FileMuxerFaststart exercises spec scenario S2: a large enough
// reservation places moov at the reserved free slot, padded with a
// residual free box, instead of at end of file.
func TestMp4FileMuxerFaststart(t *testing.T) {
	m, err := NewMp4FileMuxer(testTracks(), Mp4FileMuxerOptions{ReservedMoovBoxSize: 8192})
	require.NoError(t, err)

	buf := append([]byte(nil), m.InitialBoxesBytes()...)
	off := m.NextPosition()
	require.NoError(t, m.AppendSample(0, off, Sample{Duration: 3000, Data: []byte{1, 2}, Flags: SampleFlags{Sync: true}}))
	off = m.NextPosition()
	require.NoError(t, m.AppendSample(0, off, Sample{Duration: 3000, Data: []byte{3, 4}, Flags: SampleFlags{Sync: true}}))
	off = m.NextPosition()
	require.NoError(t, m.AppendSample(1, off, Sample{Duration: 1024, Data: []byte{5}, Flags: SampleFlags{Sync: true}}))

	finalized, err := m.Finalize()
	require.NoError(t, err)
	require.True(t, finalized.IsFaststartEnabled())
	buf = applyOffsetBytes(buf, finalized.OffsetAndBytesPairs())

	nodes, err := box.DecodeTopLevel(buf)
	require.NoError(t, err)
	require.Equal(t, box.BoxType{'f', 't', 'y', 'p'}, nodes[0].Box.Type())
	require.Equal(t, box.BoxType{'m', 'o', 'o', 'v'}, nodes[1].Box.Type())
	// the reservation leaves a residual free box padding up to mdat
	require.Equal(t, box.BoxType{'f', 'r', 'e', 'e'}, nodes[2].Box.Type())
	require.Equal(t, box.BoxType{'m', 'd', 'a', 't'}, nodes[3].Box.Type())
}
