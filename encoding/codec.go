package encoding

import (
	"encoding/binary"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type handler = func(Stream, unsafe.Pointer) error

type handlerData struct {
	decode handler
	encode handler
	size   int
}

var (
	process sync.Map
	padNull [8]byte
)

// Size reports how many bytes val occupies once laid out with the given
// word size.
func Size(wordSize int, val any) int {
	typ := reflect2.TypeOf(val)
	if typ == nil {
		return wordSize
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.(reflect2.PtrType).Elem()
	}
	return getCodec(typ, wordSize).size
}

// Decode fills the struct pointed to by val from the stream.
func Decode(stream Stream, val any) error {
	typ := reflect2.TypeOf(val)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return ErrNotPointer
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return ErrNotPointer
	}
	return getCodec(typ.(reflect2.PtrType).Elem(), stream.WordSize()).decode(stream, ptr)
}

// Encode writes val (a struct or a pointer to one) to the stream.
func Encode(stream Stream, val any) error {
	typ := reflect2.TypeOf(val)
	if typ == nil {
		_, err := stream.Write(padNull[:stream.WordSize()])
		return err
	}
	if typ.Kind() == reflect.Ptr {
		ptr := reflect2.PtrOf(val)
		if ptr == nil {
			return ErrNotPointer
		}
		return getCodec(typ.(reflect2.PtrType).Elem(), stream.WordSize()).encode(stream, ptr)
	}
	// Interface data of a non-pointer value already points at a copy.
	return getCodec(typ, stream.WordSize()).encode(stream, reflect2.PtrOf(val))
}

func getCodec(typ reflect2.Type, ws int) *handlerData {
	key := [2]uintptr{uintptr(ws), typ.RType()}
	if v, ok := process.Load(key); ok {
		return v.(*handlerData)
	}
	dec, enc, size := build(typ, ws)
	data := &handlerData{dec, enc, size.Size()}
	process.Store(key, data)
	return data
}

func build(typ reflect2.Type, ws int) (handler, handler, structSize) {
	switch typ.Kind() {
	case reflect.Uint8, reflect.Int8, reflect.Bool:
		return scalar(1, func(o binary.ByteOrder, b []byte, p unsafe.Pointer) { *(*uint8)(p) = b[0] },
			func(o binary.ByteOrder, b []byte, p unsafe.Pointer) { b[0] = *(*uint8)(p) })
	case reflect.Uint16, reflect.Int16:
		return scalar(2, func(o binary.ByteOrder, b []byte, p unsafe.Pointer) { *(*uint16)(p) = o.Uint16(b) },
			func(o binary.ByteOrder, b []byte, p unsafe.Pointer) { o.PutUint16(b, *(*uint16)(p)) })
	case reflect.Uint32, reflect.Int32:
		return scalar(4, func(o binary.ByteOrder, b []byte, p unsafe.Pointer) { *(*uint32)(p) = o.Uint32(b) },
			func(o binary.ByteOrder, b []byte, p unsafe.Pointer) { o.PutUint32(b, *(*uint32)(p)) })
	case reflect.Uint64, reflect.Int64:
		return scalar(8, func(o binary.ByteOrder, b []byte, p unsafe.Pointer) { *(*uint64)(p) = o.Uint64(b) },
			func(o binary.ByteOrder, b []byte, p unsafe.Pointer) { o.PutUint64(b, *(*uint64)(p)) })
	case reflect.Uint, reflect.Int, reflect.Uintptr:
		return word(ws)
	case reflect.Array:
		return buildArray(typ.(reflect2.ArrayType), ws)
	case reflect.Struct:
		return buildStruct(typ.(reflect2.StructType), ws)
	}
	panic(ErrUnsupportedType)
}

func scalar(size int, get, put func(binary.ByteOrder, []byte, unsafe.Pointer)) (handler, handler, structSize) {
	return func(stream Stream, ptr unsafe.Pointer) error {
			var buf [8]byte
			if _, err := stream.Read(buf[:size]); err != nil {
				return err
			}
			get(stream.ByteOrder(), buf[:size], ptr)
			return nil
		}, func(stream Stream, ptr unsafe.Pointer) error {
			var buf [8]byte
			put(stream.ByteOrder(), buf[:size], ptr)
			_, err := stream.Write(buf[:size])
			return err
		}, structSize{size}
}

// word handles platform-sized integers: they occupy exactly one machine
// word in the stream, whatever the host size is.
func word(ws int) (handler, handler, structSize) {
	return func(stream Stream, ptr unsafe.Pointer) error {
			var buf [8]byte
			if _, err := stream.Read(buf[:ws]); err != nil {
				return err
			}
			var v uint64
			if ws == 4 {
				v = uint64(stream.ByteOrder().Uint32(buf[:4]))
			} else {
				v = stream.ByteOrder().Uint64(buf[:8])
			}
			*(*uint)(ptr) = uint(v)
			return nil
		}, func(stream Stream, ptr unsafe.Pointer) error {
			var buf [8]byte
			v := uint64(*(*uint)(ptr))
			if ws == 4 {
				stream.ByteOrder().PutUint32(buf[:4], uint32(v))
			} else {
				stream.ByteOrder().PutUint64(buf[:8], v)
			}
			_, err := stream.Write(buf[:ws])
			return err
		}, structSize{ws}
}

func buildArray(typ reflect2.ArrayType, ws int) (handler, handler, structSize) {
	dec, enc, elemSize := build(typ.Elem(), ws)
	count := typ.Len()
	size := make(structSize, 0, count*len(elemSize))
	for i := 0; i < count; i++ {
		size = size.Add(elemSize)
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
			for i := 0; i < count; i++ {
				if err := dec(stream, typ.UnsafeGetIndex(ptr, i)); err != nil {
					return err
				}
			}
			return nil
		}, func(stream Stream, ptr unsafe.Pointer) error {
			for i := 0; i < count; i++ {
				if err := enc(stream, typ.UnsafeGetIndex(ptr, i)); err != nil {
					return err
				}
			}
			return nil
		}, size
}

type structField struct {
	field  reflect2.StructField
	decode handler
	encode handler
}

// buildStruct lays fields out back to back in declaration order; heap
// layouts are word arrays so no implicit padding is inserted. Fields
// tagged `encoding:"ignore"` are not part of the layout.
func buildStruct(typ reflect2.StructType, ws int) (handler, handler, structSize) {
	var (
		fields []structField
		size   structSize
	)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			continue
		}
		dec, enc, fieldSize := build(field.Type(), ws)
		size = size.Add(fieldSize)
		fields = append(fields, structField{field, dec, enc})
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
			for _, f := range fields {
				if err := f.decode(stream, f.field.UnsafeGet(ptr)); err != nil {
					return err
				}
			}
			return nil
		}, func(stream Stream, ptr unsafe.Pointer) error {
			for _, f := range fields {
				if err := f.encode(stream, f.field.UnsafeGet(ptr)); err != nil {
					return err
				}
			}
			return nil
		}, size
}
