package box

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteUint(t *testing.T) {
	testCases := []struct {
		name string
		val  uint64
		size int
		read func([]byte, *int) (uint64, error)
		write func([]byte, *int, uint64)
	}{
		{
			name: "uint24",
			val:  0x123456,
			size: 3,
			read: func(buf []byte, pos *int) (uint64, error) {
				v, err := ReadUint24(buf, pos)
				return uint64(v), err
			},
			write: func(buf []byte, pos *int, v uint64) { WriteUint24(buf, pos, uint32(v)) },
		},
		{
			name: "uint48",
			val:  0x123456789abc,
			size: 6,
			read: func(buf []byte, pos *int) (uint64, error) {
				return ReadUint48(buf, pos)
			},
			write: func(buf []byte, pos *int, v uint64) { WriteUint48(buf, pos, v) },
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, tc.size)
			pos := 0
			tc.write(buf, &pos, tc.val)
			require.Equal(t, tc.size, pos)

			pos = 0
			got, err := tc.read(buf, &pos)
			require.NoError(t, err)
			require.Equal(t, tc.val, got)
		})
	}
}

func TestReadUint48Underrun(t *testing.T) {
	buf := make([]byte, 4)
	pos := 0
	_, err := ReadUint48(buf, &pos)
	require.Error(t, err)
}

func TestUint(t *testing.T) {
	u := NewUint[uint8](0x1f, 5, 0)
	require.Equal(t, uint8(0x1f), u.Get())

	// values wider than the field are truncated on construction
	truncated := NewUint[uint8](0xff, 5, 0)
	require.Equal(t, uint8(0x1f), truncated.Get())

	_, err := CheckedNewUint[uint8](0xff, 5, 0)
	require.Error(t, err)
}

func TestFixedPointNumberEncoding(t *testing.T) {
	f := FixedPointNumber[int16, uint16]{Integer: 1, Fraction: 0x8000}
	buf := make([]byte, 4)
	pos := 0
	WriteUint16(buf, &pos, uint16(f.Integer))
	WriteUint16(buf, &pos, f.Fraction)
	require.Equal(t, []byte{0x00, 0x01, 0x80, 0x00}, buf)
}

func TestMp4EpochConversion(t *testing.T) {
	const unixSeconds = 1700000000
	mp4Time := FromUnixSeconds(unixSeconds)
	require.Equal(t, Mp4FileTime(unixSeconds+mp4Epoch), mp4Time)
	require.Equal(t, int64(unixSeconds), mp4Time.UnixSeconds())
}
