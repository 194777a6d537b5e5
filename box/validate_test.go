package box

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validStbl() *Node {
	entry := Leaf(&Free{})
	return Container(TypeStbl,
		NewStsd(entry),
		Leaf(&Stts{Entries: []SttsEntry{{SampleCount: 1, SampleDelta: 1000}}}),
		Leaf(&Stsc{Entries: []StscEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1}}}),
		Leaf(&Stsz{SampleSize: 4, SampleCount: 1}),
		Leaf(&Stco{ChunkOffsets: []uint32{0}}),
	)
}

func validTrak() *Node {
	minf := Container(TypeMinf,
		Leaf(&Vmhd{}),
		Container(TypeDinf, NewSelfContainedDref()),
		validStbl(),
	)
	mdia := Container(TypeMdia, Leaf(&Mdhd{}), Leaf(&Hdlr{}), minf)
	return Container(TypeTrak, Leaf(&Tkhd{}), mdia)
}

func validMoov() *Node {
	return Container(TypeMoov, Leaf(&Mvhd{}), validTrak())
}

func validMoof() *Node {
	traf := Container(TypeTraf, Leaf(&Tfhd{}), Leaf(&Trun{}))
	return Container(TypeMoof, Leaf(&Mfhd{}), traf)
}

func roundTrip(t *testing.T, n *Node) *Node {
	t.Helper()
	buf := make([]byte, n.Size())
	pos := 0
	require.NoError(t, n.Marshal(buf, &pos))
	nodes, err := DecodeTopLevel(buf)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	return nodes[0]
}

func TestValidateTopLevelAcceptsCompleteTree(t *testing.T) {
	moov := roundTrip(t, validMoov())
	moof := roundTrip(t, validMoof())
	require.NoError(t, ValidateTopLevel([]*Node{moov, moof}))
}

func TestValidateMoovMissingMvhd(t *testing.T) {
	moov := roundTrip(t, Container(TypeMoov, validTrak()))
	err := ValidateTopLevel([]*Node{moov})
	var missing *MissingBoxError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "mvhd", missing.Child)
	require.Equal(t, "moov", missing.Parent)
}

func TestValidateMoovRequiresAtLeastOneTrak(t *testing.T) {
	moov := roundTrip(t, Container(TypeMoov, Leaf(&Mvhd{})))
	err := ValidateTopLevel([]*Node{moov})
	var missing *MissingBoxError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "trak", missing.Child)
}

func TestValidateStblMissingChunkOffsetBox(t *testing.T) {
	entry := Leaf(&Free{})
	stbl := Container(TypeStbl,
		NewStsd(entry),
		Leaf(&Stts{}),
		Leaf(&Stsc{}),
		Leaf(&Stsz{}),
		// no stco/co64
	)
	minf := Container(TypeMinf, Container(TypeDinf, NewSelfContainedDref()), stbl)
	mdia := Container(TypeMdia, Leaf(&Mdhd{}), Leaf(&Hdlr{}), minf)
	trak := Container(TypeTrak, Leaf(&Tkhd{}), mdia)
	moov := roundTrip(t, Container(TypeMoov, Leaf(&Mvhd{}), trak))

	err := ValidateTopLevel([]*Node{moov})
	var missing *MissingBoxError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "stco|co64", missing.Child)
	require.Equal(t, "stbl", missing.Parent)
}

func TestValidateStblRejectsBothChunkOffsetBoxes(t *testing.T) {
	entry := Leaf(&Free{})
	stbl := Container(TypeStbl,
		NewStsd(entry),
		Leaf(&Stts{}),
		Leaf(&Stsc{}),
		Leaf(&Stsz{}),
		Leaf(&Stco{ChunkOffsets: []uint32{0}}),
		Leaf(&Co64{ChunkOffsets: []uint64{0}}),
	)
	minf := Container(TypeMinf, Container(TypeDinf, NewSelfContainedDref()), stbl)
	mdia := Container(TypeMdia, Leaf(&Mdhd{}), Leaf(&Hdlr{}), minf)
	trak := Container(TypeTrak, Leaf(&Tkhd{}), mdia)
	moov := roundTrip(t, Container(TypeMoov, Leaf(&Mvhd{}), trak))

	err := ValidateTopLevel([]*Node{moov})
	var invalid *InvalidDataError
	require.ErrorAs(t, err, &invalid)
}

func TestValidateMoofMissingTrun(t *testing.T) {
	traf := Container(TypeTraf, Leaf(&Tfhd{}))
	moof := roundTrip(t, Container(TypeMoof, Leaf(&Mfhd{}), traf))

	err := ValidateTopLevel([]*Node{moof})
	var missing *MissingBoxError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "trun", missing.Child)
	require.Equal(t, "traf", missing.Parent)
}
