// Package codec implements the minimal CBOR subset and the COSE_Sign1
// envelope used for transparency-log receipts. Only unsigned integers,
// negative integers, byte strings, text strings, arrays and maps are
// supported; heads are always minimal-length and decoding rejects anything
// else outright.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnsupportedType = errors.New("cbor: unsupported type")
	ErrTruncated       = errors.New("cbor: truncated input")
	ErrMalformed       = errors.New("cbor: malformed item")
	ErrTrailingBytes   = errors.New("cbor: trailing bytes")
)

const (
	majorUnsigned = 0
	majorNegative = 1
	majorBytes    = 2
	majorText     = 3
	majorArray    = 4
	majorMap      = 5
)

const maxHeadValue = math.MaxUint32

// Encode serializes a value into canonical CBOR. Supported dynamic types:
// int/int64/uint64, []byte, string, []any and map[any]any. Map entries are
// emitted in bytewise order of their encoded keys so equal maps encode to
// equal bytes.
func Encode(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := encodeValue(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses exactly one CBOR item and fails on trailing bytes. Decoded
// shapes use the canonical dynamic types: uint64 for major 0, int64 for
// major 1, []byte, string, []any and map[any]any.
func Decode(data []byte) (any, error) {
	v, rest, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ErrTrailingBytes
	}
	return v, nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch value := v.(type) {
	case uint64:
		return encodeHead(buf, majorUnsigned, value)
	case int:
		return encodeInt(buf, int64(value))
	case int64:
		return encodeInt(buf, value)
	case []byte:
		if err := encodeHead(buf, majorBytes, uint64(len(value))); err != nil {
			return err
		}
		buf.Write(value)
		return nil
	case string:
		if err := encodeHead(buf, majorText, uint64(len(value))); err != nil {
			return err
		}
		buf.WriteString(value)
		return nil
	case []any:
		if err := encodeHead(buf, majorArray, uint64(len(value))); err != nil {
			return err
		}
		for _, item := range value {
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		return nil
	case map[any]any:
		return encodeMap(buf, value)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

func encodeInt(buf *bytes.Buffer, v int64) error {
	if v >= 0 {
		return encodeHead(buf, majorUnsigned, uint64(v))
	}
	return encodeHead(buf, majorNegative, uint64(-1-v))
}

func encodeMap(buf *bytes.Buffer, m map[any]any) error {
	type entry struct {
		key   []byte
		value any
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		kb := &bytes.Buffer{}
		if err := encodeValue(kb, k); err != nil {
			return err
		}
		entries = append(entries, entry{key: kb.Bytes(), value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
	if err := encodeHead(buf, majorMap, uint64(len(m))); err != nil {
		return err
	}
	for _, e := range entries {
		buf.Write(e.key)
		if err := encodeValue(buf, e.value); err != nil {
			return err
		}
	}
	return nil
}

func encodeHead(buf *bytes.Buffer, major byte, value uint64) error {
	if value > maxHeadValue {
		return fmt.Errorf("%w: value exceeds 32-bit head", ErrUnsupportedType)
	}
	mt := major << 5
	switch {
	case value < 24:
		buf.WriteByte(mt | byte(value))
	case value <= math.MaxUint8:
		buf.WriteByte(mt | 24)
		buf.WriteByte(byte(value))
	case value <= math.MaxUint16:
		buf.WriteByte(mt | 25)
		buf.WriteByte(byte(value >> 8))
		buf.WriteByte(byte(value))
	default:
		buf.WriteByte(mt | 26)
		buf.WriteByte(byte(value >> 24))
		buf.WriteByte(byte(value >> 16))
		buf.WriteByte(byte(value >> 8))
		buf.WriteByte(byte(value))
	}
	return nil
}

func decodeValue(data []byte) (any, []byte, error) {
	if len(data) == 0 {
		return nil, nil, ErrTruncated
	}
	major := data[0] >> 5
	value, rest, err := decodeHead(data)
	if err != nil {
		return nil, nil, err
	}

	switch major {
	case majorUnsigned:
		return value, rest, nil
	case majorNegative:
		if value > math.MaxInt64 {
			return nil, nil, fmt.Errorf("%w: negative integer overflow", ErrMalformed)
		}
		return -1 - int64(value), rest, nil
	case majorBytes:
		b, rest, err := takeBytes(rest, value)
		if err != nil {
			return nil, nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, rest, nil
	case majorText:
		b, rest, err := takeBytes(rest, value)
		if err != nil {
			return nil, nil, err
		}
		return string(b), rest, nil
	case majorArray:
		items := make([]any, 0, sizeHint(value))
		for i := uint64(0); i < value; i++ {
			var item any
			item, rest, err = decodeValue(rest)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, item)
		}
		return items, rest, nil
	case majorMap:
		m := make(map[any]any, sizeHint(value))
		for i := uint64(0); i < value; i++ {
			var key, val any
			key, rest, err = decodeValue(rest)
			if err != nil {
				return nil, nil, err
			}
			if !validMapKey(key) {
				return nil, nil, fmt.Errorf("%w: unhashable map key", ErrMalformed)
			}
			val, rest, err = decodeValue(rest)
			if err != nil {
				return nil, nil, err
			}
			if _, dup := m[key]; dup {
				return nil, nil, fmt.Errorf("%w: duplicate map key", ErrMalformed)
			}
			m[key] = val
		}
		return m, rest, nil
	default:
		return nil, nil, fmt.Errorf("%w: major type %d", ErrMalformed, major)
	}
}

func decodeHead(data []byte) (uint64, []byte, error) {
	info := data[0] & 0x1f
	switch {
	case info < 24:
		return uint64(info), data[1:], nil
	case info == 24:
		if len(data) < 2 {
			return 0, nil, ErrTruncated
		}
		v := uint64(data[1])
		if v < 24 {
			return 0, nil, fmt.Errorf("%w: non-minimal head", ErrMalformed)
		}
		return v, data[2:], nil
	case info == 25:
		if len(data) < 3 {
			return 0, nil, ErrTruncated
		}
		v := uint64(data[1])<<8 | uint64(data[2])
		if v <= math.MaxUint8 {
			return 0, nil, fmt.Errorf("%w: non-minimal head", ErrMalformed)
		}
		return v, data[3:], nil
	case info == 26:
		if len(data) < 5 {
			return 0, nil, ErrTruncated
		}
		v := uint64(data[1])<<24 | uint64(data[2])<<16 | uint64(data[3])<<8 | uint64(data[4])
		if v <= math.MaxUint16 {
			return 0, nil, fmt.Errorf("%w: non-minimal head", ErrMalformed)
		}
		return v, data[5:], nil
	default:
		// 8-byte heads and indefinite lengths are outside the subset.
		return 0, nil, fmt.Errorf("%w: unsupported head info %d", ErrMalformed, info)
	}
}

func takeBytes(data []byte, n uint64) ([]byte, []byte, error) {
	if uint64(len(data)) < n {
		return nil, nil, ErrTruncated
	}
	return data[:n], data[n:], nil
}

func validMapKey(key any) bool {
	switch key.(type) {
	case uint64, int64, string:
		return true
	default:
		return false
	}
}

// sizeHint caps pre-allocation so a forged head cannot force a huge alloc.
func sizeHint(n uint64) int {
	if n > 1024 {
		return 1024
	}
	return int(n)
}
