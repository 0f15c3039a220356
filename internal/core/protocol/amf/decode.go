// If you are AI: This file implements the AMF0/AMF3 decoder, including the
// mid-stream AMF0-to-AMF3 switch used by RTMP command objects.

package amf

import (
	"errors"
	"fmt"
	"math"

	"rtmprelay/internal/core/protocol/wire"
)

// ErrShortBuffer is returned when the decoder runs out of input mid-value.
var ErrShortBuffer = errors.New("amf: short buffer")

// Decoder reads a sequence of AMF values from a byte slice. A Decoder starts in
// AMF0 mode; encountering the in-band switch marker (0x11) at the start of a value
// switches it to AMF3 mode for the remainder of the stream. The switch is one-way:
// once in AMF3 mode a decoder never reverts to AMF0, matching the behavior of the
// command parser this module replaces.
type Decoder struct {
	buf     []byte
	pos     int
	version int // 0 or 3
}

// NewDecoder creates a Decoder over buf, starting in AMF0 mode.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Len returns the number of unread bytes remaining.
func (d *Decoder) Len() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrShortBuffer
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) readN(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, ErrShortBuffer
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadValue decodes the next AMF value, honoring the decoder's current version
// and the in-band AMF0-to-AMF3 switch marker.
func (d *Decoder) ReadValue() (Value, error) {
	marker, err := d.readByte()
	if err != nil {
		return Value{}, err
	}
	if d.version == 0 && marker == amf0SwitchAMF3 {
		d.version = 3
		marker, err = d.readByte()
		if err != nil {
			return Value{}, err
		}
	}
	if d.version == 3 {
		return d.readAMF3(marker)
	}
	return d.readAMF0(marker)
}

func (d *Decoder) readAMF0(marker byte) (Value, error) {
	switch marker {
	case amf0Number:
		return d.readNumber()
	case amf0Boolean:
		b, err := d.readByte()
		if err != nil {
			return Value{}, err
		}
		return Boolean(b != 0), nil
	case amf0String:
		s, err := d.readShortString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case amf0Object:
		obj, err := d.readObjectBody()
		if err != nil {
			return Value{}, err
		}
		return FromObject(obj), nil
	case amf0EcmaArray:
		if _, err := d.readN(4); err != nil { // associative-count, unused on decode
			return Value{}, err
		}
		obj, err := d.readObjectBody()
		if err != nil {
			return Value{}, err
		}
		return FromEcmaArray(obj), nil
	case amf0Null:
		return Null(), nil
	case amf0Undefined:
		return Undefined(), nil
	default:
		return Value{}, fmt.Errorf("amf: unsupported AMF0 marker 0x%02x", marker)
	}
}

// readObjectBody reads key/value pairs until the empty-key object-end sentinel.
func (d *Decoder) readObjectBody() (*Object, error) {
	obj := NewObject()
	for {
		key, err := d.readShortString()
		if err != nil {
			return nil, err
		}
		if key == "" {
			end, err := d.readByte()
			if err != nil {
				return nil, err
			}
			if end != amf0ObjectEnd {
				return nil, fmt.Errorf("amf: expected object-end marker, got 0x%02x", end)
			}
			return obj, nil
		}
		val, err := d.ReadValue()
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
}

func (d *Decoder) readNumber() (Value, error) {
	b, err := d.readN(8)
	if err != nil {
		return Value{}, err
	}
	bits := uint64(wire.BE32(b[0:4]))<<32 | uint64(wire.BE32(b[4:8]))
	return Number(math.Float64frombits(bits)), nil
}

func (d *Decoder) readShortString() (string, error) {
	lb, err := d.readN(2)
	if err != nil {
		return "", err
	}
	n := int(wire.BE16(lb))
	if n == 0 {
		return "", nil
	}
	b, err := d.readN(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readAMF3 decodes a value whose marker has already been consumed, once the
// decoder is in AMF3 mode. Object and Array reuse the AMF0 object/ECMA-array wire
// framing; only the primitive markers below are genuinely AMF3-specific.
func (d *Decoder) readAMF3(marker byte) (Value, error) {
	switch marker {
	case amf3Undefined:
		return Undefined(), nil
	case amf3Null:
		return Null(), nil
	case amf3False:
		return Boolean(false), nil
	case amf3True:
		return Boolean(true), nil
	case amf3Integer:
		i, err := d.readAMF3Integer()
		if err != nil {
			return Value{}, err
		}
		return Integer(i), nil
	case amf3Double:
		return d.readNumber()
	case amf3String:
		s, err := d.readAMF3String()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case amf0Object:
		obj, err := d.readObjectBody()
		if err != nil {
			return Value{}, err
		}
		return FromObject(obj), nil
	case amf0EcmaArray:
		if _, err := d.readN(4); err != nil {
			return Value{}, err
		}
		obj, err := d.readObjectBody()
		if err != nil {
			return Value{}, err
		}
		return FromEcmaArray(obj), nil
	default:
		return Value{}, fmt.Errorf("amf: unsupported AMF3 marker 0x%02x", marker)
	}
}

// readAMF3Integer decodes AMF3's variable-length 29-bit integer: up to three bytes
// using the high bit as a continuation flag, with the fourth byte (if present)
// contributing a full 8 bits instead of 7.
func (d *Decoder) readAMF3Integer() (int32, error) {
	var result int32
	for i := 0; i < 3; i++ {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		if b&0x80 == 0 {
			result = (result << 7) | int32(b)
			return signExtend29(result), nil
		}
		result = (result << 7) | int32(b&0x7f)
	}
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	result = (result << 8) | int32(b)
	return signExtend29(result), nil
}

func signExtend29(v int32) int32 {
	const bits = 29
	v &= (1 << bits) - 1
	if v&(1<<(bits-1)) != 0 {
		v -= 1 << bits
	}
	return v
}

// readAMF3String decodes an AMF3 string: a 29-bit integer length with the
// reference bit (bit 0) set and the byte length in the remaining bits, followed
// by that many UTF-8 bytes. The reference/inline table bit is never honored —
// strings are always read inline.
func (d *Decoder) readAMF3String() (string, error) {
	raw, err := d.readAMF3Integer()
	if err != nil {
		return "", err
	}
	n := int(raw) >> 1
	if n == 0 {
		return "", nil
	}
	b, err := d.readN(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCommand decodes a full RTMP command message body: a sequential run of AMF
// values (name, transaction id, command object, optional arguments) with no
// enclosing array wrapper, continuing until the buffer is exhausted.
func DecodeCommand(body []byte) ([]Value, error) {
	d := NewDecoder(body)
	var values []Value
	for d.Len() > 0 {
		v, err := d.ReadValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
