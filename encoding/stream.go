package encoding

import "encoding/binary"

type Stream interface {
	WordSize() int
	ByteOrder() binary.ByteOrder
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

// Buffer is an in-memory Stream, mostly useful for building object images
// before they are copied into a space.
type Buffer struct {
	Data  []byte
	Word  int
	Order binary.ByteOrder
	off   int
}

func (b *Buffer) WordSize() int {
	return b.Word
}

func (b *Buffer) ByteOrder() binary.ByteOrder {
	if b.Order == nil {
		return binary.LittleEndian
	}
	return b.Order
}

func (b *Buffer) Offset() uint64 {
	return uint64(b.off)
}

func (b *Buffer) Skip(n int) error {
	b.grow(n)
	b.off += n
	return nil
}

func (b *Buffer) Read(p []byte) (int, error) {
	if b.off+len(p) > len(b.Data) {
		return 0, ErrShortStream
	}
	n := copy(p, b.Data[b.off:])
	b.off += n
	return n, nil
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.grow(len(p))
	n := copy(b.Data[b.off:], p)
	b.off += n
	return n, nil
}

func (b *Buffer) grow(n int) {
	if end := b.off + n; end > len(b.Data) {
		b.Data = append(b.Data, make([]byte, end-len(b.Data))...)
	}
}
