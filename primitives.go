package fudge

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// registerBuiltins wires up the codec for every built-in TypeID (C2). It is
// called once by NewDictionary; individual Read/Write closures are kept
// small and tag-free, matching the teacher's per-type encode*/decode helpers
// in encode.go/decode.go, generalized to the tagged (typeId, payload) model
// instead of Sereal's self-describing tag byte.
func registerBuiltins(d *Dictionary) {
	d.Register(&Codec{TypeID: TypeIndicator, Kind: KindFixed, FixedSize: 0, DefaultKind: reflect.Invalid,
		Read: func(p []byte) (interface{}, error) { return Indicator{}, nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) { return buf, nil },
	})

	d.Register(&Codec{TypeID: TypeBoolean, Kind: KindFixed, FixedSize: 1, DefaultKind: reflect.Bool,
		Read: func(p []byte) (interface{}, error) { return p[0] != 0, nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			b, err := asBool(v)
			if err != nil {
				return nil, err
			}
			if b {
				return append(buf, 1), nil
			}
			return append(buf, 0), nil
		},
	})

	d.Register(&Codec{TypeID: TypeByte, Kind: KindFixed, FixedSize: 1, DefaultKind: reflect.Int8,
		Read: func(p []byte) (interface{}, error) { return int8(p[0]), nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			i, err := asInt(v, 8)
			if err != nil {
				return nil, err
			}
			return append(buf, byte(int8(i))), nil
		},
	})

	d.Register(&Codec{TypeID: TypeShort, Kind: KindFixed, FixedSize: 2, DefaultKind: reflect.Int16,
		Read: func(p []byte) (interface{}, error) { return int16(binary.BigEndian.Uint16(p)), nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			i, err := asInt(v, 16)
			if err != nil {
				return nil, err
			}
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(int16(i)))
			return append(buf, b[:]...), nil
		},
	})

	d.Register(&Codec{TypeID: TypeInt, Kind: KindFixed, FixedSize: 4, DefaultKind: reflect.Int32,
		Read: func(p []byte) (interface{}, error) { return int32(binary.BigEndian.Uint32(p)), nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			i, err := asInt(v, 32)
			if err != nil {
				return nil, err
			}
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(int32(i)))
			return append(buf, b[:]...), nil
		},
	})

	d.Register(&Codec{TypeID: TypeLong, Kind: KindFixed, FixedSize: 8, DefaultKind: reflect.Int64,
		Read: func(p []byte) (interface{}, error) { return int64(binary.BigEndian.Uint64(p)), nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			i, err := asInt(v, 64)
			if err != nil {
				return nil, err
			}
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(i))
			return append(buf, b[:]...), nil
		},
	})

	d.Register(&Codec{TypeID: TypeFloat, Kind: KindFixed, FixedSize: 4, DefaultKind: reflect.Float32,
		Read: func(p []byte) (interface{}, error) { return math.Float32frombits(binary.BigEndian.Uint32(p)), nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			f, err := asFloat(v, 32)
			if err != nil {
				return nil, err
			}
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], math.Float32bits(float32(f)))
			return append(buf, b[:]...), nil
		},
	})

	d.Register(&Codec{TypeID: TypeDouble, Kind: KindFixed, FixedSize: 8, DefaultKind: reflect.Float64,
		Read: func(p []byte) (interface{}, error) { return math.Float64frombits(binary.BigEndian.Uint64(p)), nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			f, err := asFloat(v, 64)
			if err != nil {
				return nil, err
			}
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
			return append(buf, b[:]...), nil
		},
	})

	d.Register(&Codec{TypeID: TypeString, Kind: KindVariable, DefaultKind: reflect.String,
		Read: func(p []byte) (interface{}, error) {
			if !utf8Valid(p) {
				return nil, MalformedError{Reason: "bad UTF-8 in string field"}
			}
			return string(p), nil
		},
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			return append(buf, []byte(s)...), nil
		},
	})

	d.Register(&Codec{TypeID: TypeByteArray, Kind: KindVariable, DefaultKind: reflect.Slice,
		Read:  func(p []byte) (interface{}, error) { return append([]byte{}, p...), nil },
		Write: func(buf []byte, v interface{}) ([]byte, error) { return appendBytes(buf, v) },
	})

	registerNumericArray(d, TypeShortArray, 2, reflect.Int16,
		func(buf []byte, i int64) []byte {
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(int16(i)))
			return append(buf, b[:]...)
		},
		func(p []byte) int64 { return int64(int16(binary.BigEndian.Uint16(p))) })

	registerNumericArray(d, TypeIntArray, 4, reflect.Int32,
		func(buf []byte, i int64) []byte {
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(int32(i)))
			return append(buf, b[:]...)
		},
		func(p []byte) int64 { return int64(int32(binary.BigEndian.Uint32(p))) })

	registerNumericArray(d, TypeLongArray, 8, reflect.Int64,
		func(buf []byte, i int64) []byte {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(i))
			return append(buf, b[:]...)
		},
		func(p []byte) int64 { return int64(binary.BigEndian.Uint64(p)) })

	d.Register(&Codec{TypeID: TypeFloatArray, Kind: KindVariable, DefaultKind: reflect.Slice,
		Read: func(p []byte) (interface{}, error) {
			n := len(p) / 4
			out := make([]float32, n)
			for i := 0; i < n; i++ {
				out[i] = math.Float32frombits(binary.BigEndian.Uint32(p[i*4:]))
			}
			return out, nil
		},
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			fs, err := asFloat32Slice(v)
			if err != nil {
				return nil, err
			}
			for _, f := range fs {
				var b [4]byte
				binary.BigEndian.PutUint32(b[:], math.Float32bits(f))
				buf = append(buf, b[:]...)
			}
			return buf, nil
		},
	})

	d.Register(&Codec{TypeID: TypeDoubleArray, Kind: KindVariable, DefaultKind: reflect.Slice,
		Read: func(p []byte) (interface{}, error) {
			n := len(p) / 8
			out := make([]float64, n)
			for i := 0; i < n; i++ {
				out[i] = math.Float64frombits(binary.BigEndian.Uint64(p[i*8:]))
			}
			return out, nil
		},
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			fs, err := asFloat64Slice(v)
			if err != nil {
				return nil, err
			}
			for _, f := range fs {
				var b [8]byte
				binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
				buf = append(buf, b[:]...)
			}
			return buf, nil
		},
	})

	d.Register(&Codec{TypeID: TypeDateTime, Kind: KindFixed, FixedSize: 14, DefaultKind: reflect.Struct,
		Read:  func(p []byte) (interface{}, error) { return decodeDateTime(p) },
		Write: func(buf []byte, v interface{}) ([]byte, error) { return encodeDateTime(buf, v) },
	})

	for id, n := range fixedByteArrayLengths {
		id, n := id, n
		d.Register(&Codec{TypeID: id, Kind: KindFixed, FixedSize: n, DefaultKind: reflect.Slice,
			Read: func(p []byte) (interface{}, error) { return append([]byte(nil), p...), nil },
			Write: func(buf []byte, v interface{}) ([]byte, error) {
				b, err := asFixedBytes(v, n)
				if err != nil {
					return nil, err
				}
				return append(buf, b...), nil
			},
		})
	}

	d.PreferType(reflect.TypeOf(bool(false)), TypeBoolean)
	d.PreferType(reflect.TypeOf(int8(0)), TypeByte)
	d.PreferType(reflect.TypeOf(int16(0)), TypeShort)
	d.PreferType(reflect.TypeOf(int32(0)), TypeInt)
	d.PreferType(reflect.TypeOf(int(0)), TypeLong)
	d.PreferType(reflect.TypeOf(int64(0)), TypeLong)
	d.PreferType(reflect.TypeOf(float32(0)), TypeFloat)
	d.PreferType(reflect.TypeOf(float64(0)), TypeDouble)
	d.PreferType(reflect.TypeOf(""), TypeString)
	d.PreferType(reflect.TypeOf([]byte(nil)), TypeByteArray)
	d.PreferType(reflect.TypeOf([]int16(nil)), TypeShortArray)
	d.PreferType(reflect.TypeOf([]int32(nil)), TypeIntArray)
	d.PreferType(reflect.TypeOf([]int64(nil)), TypeLongArray)
	d.PreferType(reflect.TypeOf([]float32(nil)), TypeFloatArray)
	d.PreferType(reflect.TypeOf([]float64(nil)), TypeDoubleArray)
	d.PreferType(reflect.TypeOf(DateTime{}), TypeDateTime)
}

func registerNumericArray(d *Dictionary, id TypeID, width int, _ reflect.Kind,
	encode func([]byte, int64) []byte, decode func([]byte) int64) {

	d.Register(&Codec{TypeID: id, Kind: KindVariable, DefaultKind: reflect.Slice,
		Read: func(p []byte) (interface{}, error) {
			n := len(p) / width
			switch id {
			case TypeShortArray:
				out := make([]int16, n)
				for i := 0; i < n; i++ {
					out[i] = int16(decode(p[i*width:]))
				}
				return out, nil
			case TypeIntArray:
				out := make([]int32, n)
				for i := 0; i < n; i++ {
					out[i] = int32(decode(p[i*width:]))
				}
				return out, nil
			default:
				out := make([]int64, n)
				for i := 0; i < n; i++ {
					out[i] = decode(p[i*width:])
				}
				return out, nil
			}
		},
		Write: func(buf []byte, v interface{}) ([]byte, error) {
			ints, err := asIntSlice(v)
			if err != nil {
				return nil, err
			}
			for _, i := range ints {
				buf = encode(buf, i)
			}
			return buf, nil
		},
	})
}

// Indicator is the zero-payload "present but null" value (spec.md GLOSSARY).
type Indicator struct{}

func utf8Valid(b []byte) bool {
	for len(b) > 0 {
		r := b[0]
		switch {
		case r < 0x80:
			b = b[1:]
		case r&0xE0 == 0xC0:
			if len(b) < 2 {
				return false
			}
			b = b[2:]
		case r&0xF0 == 0xE0:
			if len(b) < 3 {
				return false
			}
			b = b[3:]
		case r&0xF8 == 0xF0:
			if len(b) < 4 {
				return false
			}
			b = b[4:]
		default:
			return false
		}
	}
	return true
}

func asBool(v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), nil
	}
	return false, fmt.Errorf("fudge: cannot write %T as boolean", v)
}

func asInt(v interface{}, bits int) (int64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("fudge: cannot write %T as %d-bit integer", v, bits)
}

func asFloat(v interface{}, bits int) (float64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	}
	return 0, fmt.Errorf("fudge: cannot write %T as %d-bit float", v, bits)
}

func asString(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", fmt.Errorf("fudge: cannot write %T as string", v)
}

func appendBytes(buf []byte, v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return append(buf, x...), nil
	case UnknownValue:
		return append(buf, x.Bytes...), nil
	}
	return nil, fmt.Errorf("fudge: cannot write %T as byte array", v)
}

func asFixedBytes(v interface{}, n int) ([]byte, error) {
	b, err := appendBytes(nil, v)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("fudge: fixed byte array wants %d bytes, got %d", n, len(b))
	}
	return b, nil
}

func asIntSlice(v interface{}) ([]int64, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("fudge: cannot write %T as integer array", v)
	}
	out := make([]int64, rv.Len())
	for i := range out {
		ev := rv.Index(i)
		switch ev.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out[i] = ev.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out[i] = int64(ev.Uint())
		default:
			return nil, fmt.Errorf("fudge: non-integer element in integer array: %s", ev.Kind())
		}
	}
	return out, nil
}

func asFloat32Slice(v interface{}) ([]float32, error) {
	if fs, ok := v.([]float32); ok {
		return fs, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("fudge: cannot write %T as float array", v)
	}
	out := make([]float32, rv.Len())
	for i := range out {
		out[i] = float32(rv.Index(i).Float())
	}
	return out, nil
}

func asFloat64Slice(v interface{}) ([]float64, error) {
	if fs, ok := v.([]float64); ok {
		return fs, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("fudge: cannot write %T as double array", v)
	}
	out := make([]float64, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Float()
	}
	return out, nil
}
