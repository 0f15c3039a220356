// If you are AI: This file implements the AMF0/AMF3 encoder, mirroring the
// decoder's framing decisions (AMF0-shaped object framing reused in AMF3 mode).

package amf

import (
	"errors"
	"math"

	"rtmprelay/internal/core/protocol/wire"
)

// ErrAMF0Integer is returned when encoding an Integer value while in AMF0 mode.
// AMF0 has no integer type; integers only ever appear in AMF3-encoded data.
var ErrAMF0Integer = errors.New("amf: AMF0 does not have integers")

// Encoder appends AMF-encoded values to an internal buffer. Like Decoder, it
// starts in AMF0 mode and, once switched to AMF3 via WriteAMF3Switch, never
// reverts.
type Encoder struct {
	buf     []byte
	version int
}

// NewEncoder creates an Encoder starting in AMF0 mode.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated encoded output.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// WriteAMF3Switch writes the in-band 0x11 marker and switches the encoder to AMF3
// mode for all subsequent values.
func (e *Encoder) WriteAMF3Switch() {
	e.buf = append(e.buf, amf0SwitchAMF3)
	e.version = 3
}

// WriteValue encodes v according to the encoder's current mode.
func (e *Encoder) WriteValue(v Value) error {
	if e.version == 3 {
		return e.writeAMF3(v)
	}
	return e.writeAMF0(v)
}

func (e *Encoder) writeAMF0(v Value) error {
	switch v.typ {
	case TypeNumber:
		e.buf = append(e.buf, amf0Number)
		e.writeDouble(v.number)
		return nil
	case TypeInteger:
		return ErrAMF0Integer
	case TypeBoolean:
		e.buf = append(e.buf, amf0Boolean)
		if v.boolean {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 0)
		}
		return nil
	case TypeString:
		e.buf = append(e.buf, amf0String)
		e.writeShortString(v.str)
		return nil
	case TypeObject:
		e.buf = append(e.buf, amf0Object)
		return e.writeObjectBody(v.object)
	case TypeEcmaArray:
		e.buf = append(e.buf, amf0EcmaArray)
		e.buf = append(e.buf, 0, 0, 0, 0) // associative-count, unused by readers
		return e.writeObjectBody(v.object)
	case TypeNull:
		e.buf = append(e.buf, amf0Null)
		return nil
	case TypeUndefined:
		e.buf = append(e.buf, amf0Undefined)
		return nil
	default:
		return errors.New("amf: unknown value type")
	}
}

func (e *Encoder) writeObjectBody(obj *Object) error {
	for _, key := range obj.Keys() {
		val, _ := obj.Get(key)
		e.writeShortString(key)
		if err := e.WriteValue(val); err != nil {
			return err
		}
	}
	e.writeShortString("")
	e.buf = append(e.buf, amf0ObjectEnd)
	return nil
}

func (e *Encoder) writeAMF3(v Value) error {
	switch v.typ {
	case TypeUndefined:
		e.buf = append(e.buf, amf3Undefined)
		return nil
	case TypeNull:
		e.buf = append(e.buf, amf3Null)
		return nil
	case TypeBoolean:
		if v.boolean {
			e.buf = append(e.buf, amf3True)
		} else {
			e.buf = append(e.buf, amf3False)
		}
		return nil
	case TypeInteger:
		e.buf = append(e.buf, amf3Integer)
		e.writeAMF3Integer(v.integer)
		return nil
	case TypeNumber:
		e.buf = append(e.buf, amf3Double)
		e.writeDouble(v.number)
		return nil
	case TypeString:
		e.buf = append(e.buf, amf3String)
		e.writeAMF3String(v.str)
		return nil
	case TypeObject:
		e.buf = append(e.buf, amf0Object)
		return e.writeObjectBody(v.object)
	case TypeEcmaArray:
		e.buf = append(e.buf, amf0EcmaArray)
		e.buf = append(e.buf, 0, 0, 0, 0)
		return e.writeObjectBody(v.object)
	default:
		return errors.New("amf: unknown value type")
	}
}

// writeDouble appends an IEEE-754 big-endian double. This is a portable
// implementation using math.Float64bits; it does not rely on the host's native
// byte order the way a raw memcpy of a double would.
func (e *Encoder) writeDouble(f float64) {
	bits := math.Float64bits(f)
	var b [8]byte
	wire.PutBE32(b[0:4], uint32(bits>>32))
	wire.PutBE32(b[4:8], uint32(bits))
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) writeShortString(s string) {
	var lb [2]byte
	wire.PutBE16(lb[:], uint16(len(s)))
	e.buf = append(e.buf, lb[:]...)
	e.buf = append(e.buf, s...)
}

// writeAMF3Integer encodes a 29-bit integer using AMF3's 7-bit continuation
// scheme, mirroring readAMF3Integer's layout.
func (e *Encoder) writeAMF3Integer(v int32) {
	u := uint32(v) & 0x1fffffff
	switch {
	case u < 0x80:
		e.buf = append(e.buf, byte(u))
	case u < 0x4000:
		e.buf = append(e.buf, byte(u>>7)|0x80, byte(u&0x7f))
	case u < 0x200000:
		e.buf = append(e.buf, byte(u>>14)|0x80, byte((u>>7)&0x7f)|0x80, byte(u&0x7f))
	default:
		e.buf = append(e.buf,
			byte(u>>22)|0x80,
			byte((u>>15)&0x7f)|0x80,
			byte((u>>8)&0x7f)|0x80,
			byte(u),
		)
	}
}

// writeAMF3String encodes the length as (len<<1)|1 (the reference bit is always
// set to indicate an inline, non-referenced string) followed by the raw bytes.
func (e *Encoder) writeAMF3String(s string) {
	e.writeAMF3Integer(int32(len(s))<<1 | 1)
	e.buf = append(e.buf, s...)
}

// EncodeCommand encodes a full RTMP command message body: the given values
// written sequentially with no enclosing array wrapper, matching the wire shape
// RTMP command messages use (name, transaction id, command object, arguments...).
func EncodeCommand(values []Value) ([]byte, error) {
	e := NewEncoder()
	for _, v := range values {
		if err := e.WriteValue(v); err != nil {
			return nil, err
		}
	}
	return e.Bytes(), nil
}
