package mux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streammux/isobmff/box"
)

// drainAll applies every pending NextOutput record onto buf and returns the
// grown result, modeling a caller that writes output as it's produced.
func drainAll(t *testing.T, m *Mp4HybridFileMuxer, buf []byte) []byte {
	t.Helper()
	for {
		out, ok := m.NextOutput()
		if !ok {
			return buf
		}
		buf = applyOffsetBytes(buf, []OffsetBytes{out})
	}
}

func TestMp4HybridFileMuxerCutsOnSyncSampleAfterThreshold(t *testing.T) {
	m, err := NewMp4HybridFileMuxer(testTracks(), Mp4HybridFileMuxerOptions{FragmentDuration: time.Duration(6000) * time.Second / 90000})
	require.NoError(t, err)

	var out []byte
	out = drainAll(t, m, out)
	headerLen := len(out)
	require.Greater(t, headerLen, 0)

	// three video samples: I, P, then another I past the threshold
	require.NoError(t, m.AppendSample(0, Sample{Duration: 3000, Data: []byte{1, 2}, Flags: SampleFlags{Sync: true}}))
	require.NoError(t, m.AppendSample(0, Sample{Duration: 3000, Data: []byte{3, 4}}))
	require.NoError(t, m.AppendSample(0, Sample{Duration: 3000, Data: []byte{5, 6}, Flags: SampleFlags{Sync: true}}))

	out = drainAll(t, m, out)
	afterCut := len(out)
	require.Greater(t, afterCut, headerLen, "expected a fragment to have been written before the new GOP started")

	require.NoError(t, m.Finalize())
	out = drainAll(t, m, out)
	require.Greater(t, len(out), afterCut, "expected Finalize to flush the trailing fragment")

	nodes, err := box.DecodeTopLevel(out)
	require.NoError(t, err)
	// ftyp, mdat (rewritten over the init moov+fragments), moov
	require.Equal(t, box.BoxType{'f', 't', 'y', 'p'}, nodes[0].Box.Type())
	require.Equal(t, box.BoxType{'m', 'd', 'a', 't'}, nodes[1].Box.Type())
	require.Equal(t, box.BoxType{'m', 'o', 'o', 'v'}, nodes[2].Box.Type())
}

func TestMp4HybridFileMuxerBuildClassicMoov(t *testing.T) {
	m, err := NewMp4HybridFileMuxer(testTracks(), Mp4HybridFileMuxerOptions{FragmentDuration: time.Duration(6000) * time.Second / 90000})
	require.NoError(t, err)
	require.NoError(t, m.AppendSample(0, Sample{Duration: 3000, Data: []byte{1, 2}, Flags: SampleFlags{Sync: true}}))
	require.NoError(t, m.AppendSample(1, Sample{Duration: 1024, Data: []byte{3}, Flags: SampleFlags{Sync: true}}))
	require.NoError(t, m.Finalize())

	moov := m.BuildClassicMoov()
	require.Equal(t, box.BoxType{'m', 'o', 'o', 'v'}, moov.Box.Type())
	require.Len(t, moov.FindAll(box.BoxType{'t', 'r', 'a', 'k'}), 2)
}

func TestMp4HybridFileMuxerFinalizeTwiceErrors(t *testing.T) {
	m, err := NewMp4HybridFileMuxer(testTracks(), Mp4HybridFileMuxerOptions{FragmentDuration: time.Duration(6000) * time.Second / 90000})
	require.NoError(t, err)
	require.NoError(t, m.AppendSample(0, Sample{Duration: 3000, Data: []byte{1}, Flags: SampleFlags{Sync: true}}))
	require.NoError(t, m.Finalize())

	var already *AlreadyFinalizedError
	require.ErrorAs(t, m.Finalize(), &already)
}

// TestMp4HybridFileMuxerFragmentsOnKeyframeBoundary exercises spec scenario
// S6: 60 video samples at timescale 30 (1s = 30 ticks), keyframes at
// {0, 30, 45}. The first fragment (samples [0,30)) is cut mid-capture, on
// the keyframe at index 30 once elapsed duration reaches the 1s threshold;
// the second (samples [30,60)) is only flushed at Finalize, since no
// keyframe arrives after its own threshold is crossed at sample 59.
func TestMp4HybridFileMuxerFragmentsOnKeyframeBoundary(t *testing.T) {
	var video box.BoxType
	copy(video[:], "vide")
	tracks := []TrackConfig{
		{Kind: TrackVideo, TrackID: 1, Timescale: 30, HandlerType: video, HandlerName: "video", SampleEntry: testVideoSampleEntry()},
	}
	m, err := NewMp4HybridFileMuxer(tracks, Mp4HybridFileMuxerOptions{FragmentDuration: time.Second})
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		sync := i == 0 || i == 30 || i == 45
		require.NoError(t, m.AppendSample(0, Sample{Duration: 1, Data: []byte{byte(i)}, Flags: SampleFlags{Sync: sync}}))
	}

	require.Equal(t, uint32(1), m.sequenceNumber, "one fragment should have been cut mid-capture")
	require.Equal(t, uint64(30), m.fragBaseDecodeTime[0], "the still-open second fragment's base decode time")

	require.NoError(t, m.Finalize())
	require.Equal(t, uint32(2), m.sequenceNumber, "Finalize must flush the trailing fragment")
}
