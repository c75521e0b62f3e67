package encoding

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type cell struct {
	Header uint32
	Value  uint32
	Raw    uint
	Flags  [2]uint8
	Seq    uint16
	cached int `encoding:"ignore"`
}

func TestSize(t *testing.T) {
	require.Equal(t, 16, Size(4, cell{}))
	require.Equal(t, 20, Size(8, &cell{}))
	require.Equal(t, 4, Size(4, nil))
}

func TestEncodeLayout(t *testing.T) {
	b := &Buffer{Word: 4}
	require.NoError(t, Encode(b, &cell{Header: 0x2A, Value: 0x11223344, Raw: 0x48000000, Flags: [2]uint8{1, 2}, Seq: 0xBEEF, cached: 9}))
	require.Equal(t, []byte{
		0x2A, 0, 0, 0,
		0x44, 0x33, 0x22, 0x11,
		0, 0, 0, 0x48,
		1, 2,
		0xEF, 0xBE,
	}, b.Data)
	require.EqualValues(t, 16, b.Offset())
}

func TestEncodeValue(t *testing.T) {
	b := &Buffer{Word: 4}
	require.NoError(t, Encode(b, cell{Header: 0x2A, Seq: 0x0102}))
	require.Len(t, b.Data, 16)
	require.Equal(t, []byte{0x2A, 0, 0, 0}, b.Data[:4])
	require.Equal(t, []byte{0x02, 0x01}, b.Data[14:])
}

func TestDecode(t *testing.T) {
	b := &Buffer{Word: 4, Order: binary.BigEndian, Data: []byte{
		0, 0, 0, 0x2A,
		0x11, 0x22, 0x33, 0x44,
		0x48, 0, 0, 0,
		1, 2,
		0xBE, 0xEF,
	}}
	var c cell
	require.NoError(t, Decode(b, &c))
	require.Equal(t, cell{Header: 0x2A, Value: 0x11223344, Raw: 0x48000000, Flags: [2]uint8{1, 2}, Seq: 0xBEEF}, c)

	require.ErrorIs(t, Decode(b, &c), ErrShortStream)
	require.ErrorIs(t, Decode(b, c), ErrNotPointer)
}

func TestBufferSkip(t *testing.T) {
	b := &Buffer{Word: 4}
	require.NoError(t, b.Skip(4))
	require.NoError(t, Encode(b, struct{ A uint32 }{7}))
	require.Equal(t, []byte{0, 0, 0, 0, 7, 0, 0, 0}, b.Data)
}
