package box

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeMarshalDecodeRoundTrip(t *testing.T) {
	mvhd := Leaf(&Mvhd{
		Timescale:   1000,
		Duration:    5000,
		Rate:        FixedPointNumber[int16, uint16]{Integer: 1},
		Volume:      FixedPointNumber[int8, uint8]{Integer: 1},
		Matrix:      [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000},
		NextTrackID: 2,
	})
	moov := Container(TypeMoov, mvhd)

	buf := make([]byte, moov.Size())
	pos := 0
	require.NoError(t, moov.Marshal(buf, &pos))
	require.Equal(t, len(buf), pos)

	nodes, err := DecodeTopLevel(buf)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, TypeMoov, nodes[0].Box.Type())
	require.Len(t, nodes[0].Children, 1)

	got, ok := nodes[0].Children[0].Box.(*Mvhd)
	require.True(t, ok)
	require.Equal(t, uint32(1000), got.Timescale)
	require.Equal(t, uint64(5000), got.Duration)
	require.Equal(t, uint32(2), got.NextTrackID)
}

func TestDecodeNodeRejectsTruncatedBox(t *testing.T) {
	// a header claiming 16 bytes but only 8 are actually present
	buf := []byte{0x00, 0x00, 0x00, 0x10, 'f', 'r', 'e', 'e'}
	pos := 0
	_, err := DecodeNode(buf, &pos, len(buf))
	require.Error(t, err)
}

func TestFindAndFindAll(t *testing.T) {
	stts := Leaf(&Stts{Entries: []SttsEntry{{SampleCount: 1, SampleDelta: 1000}}})
	stsc := Leaf(&Stsc{Entries: []StscEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1}}})
	stbl := Container(TypeStbl, stts, stsc)

	require.NotNil(t, stbl.Find(TypeStts))
	require.Nil(t, stbl.Find(TypeStsz))
	require.Len(t, stbl.FindAll(TypeStts), 1)
}

func TestFreePadding(t *testing.T) {
	free := NewFree(16)
	require.Equal(t, 16, free.Size())
}
