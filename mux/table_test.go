package mux

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streammux/isobmff/box"
)

func TestSampleTableRunLengthMerging(t *testing.T) {
	var tbl sampleTable
	tbl.addSample(3000, 0, 10, true, true, 0)
	tbl.addSample(3000, 0, 20, false, true, 10)
	tbl.addSample(1500, 0, 15, false, true, 30)

	require.Len(t, tbl.stts, 2)
	require.Equal(t, uint32(2), tbl.stts[0].SampleCount)
	require.Equal(t, uint32(3000), tbl.stts[0].SampleDelta)
	require.Equal(t, uint32(1), tbl.stts[1].SampleCount)
	require.Equal(t, uint32(1500), tbl.stts[1].SampleDelta)

	require.Equal(t, []uint32{10, 20, 15}, tbl.stsz)
	require.Equal(t, []uint64{0, 10, 30}, tbl.stco)
	require.Equal(t, []uint32{1}, tbl.stss)
	require.Equal(t, uint64(7500), tbl.totalDuration())
}

func TestSampleTableStscChunking(t *testing.T) {
	var tbl sampleTable
	tbl.addSample(1000, 0, 1, true, true, 0)  // chunk 1
	tbl.addSample(1000, 0, 1, false, false, 1) // still chunk 1
	tbl.addSample(1000, 0, 1, true, true, 2)  // chunk 2

	require.Len(t, tbl.stco, 2)
	require.Len(t, tbl.stsc, 2)
	require.Equal(t, uint32(2), tbl.stsc[0].SamplesPerChunk)
	require.Equal(t, uint32(1), tbl.stsc[1].SamplesPerChunk)
}

func TestSampleTableNeedsCo64(t *testing.T) {
	var tbl sampleTable
	tbl.addSample(1000, 0, 1, true, true, 0)
	require.False(t, tbl.needsCo64())

	tbl.stco[0] = 1 << 33
	require.True(t, tbl.needsCo64())
}

func TestSampleTableBuildStblOmitsStssWhenAllSync(t *testing.T) {
	var tbl sampleTable
	tbl.addSample(1000, 0, 1, true, true, 0)
	tbl.addSample(1000, 0, 1, true, true, 1)

	stbl := tbl.buildStbl(box.NewStsd(testVideoSampleEntry()))
	require.Nil(t, stbl.Find(box.BoxType{'s', 't', 's', 's'}))
}

func TestSampleTableBuildStblKeepsStssWhenMixed(t *testing.T) {
	var tbl sampleTable
	tbl.addSample(1000, 0, 1, true, true, 0)
	tbl.addSample(1000, 0, 1, false, true, 1)

	stbl := tbl.buildStbl(box.NewStsd(testVideoSampleEntry()))
	require.NotNil(t, stbl.Find(box.BoxType{'s', 't', 's', 's'}))
}

func TestSampleTableRebaseOffsets(t *testing.T) {
	var tbl sampleTable
	tbl.addSample(1000, 0, 1, true, true, 0)
	tbl.addSample(1000, 0, 1, true, true, 10)
	tbl.rebaseOffsets(1000)
	require.Equal(t, []uint64{1000, 1010}, tbl.stco)
}
