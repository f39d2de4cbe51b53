package regs

import (
	"encoding/binary"
	"fmt"
)

// Value is the content of one register slot, up to 128 bits wide.
// Values narrower than 128 bits live in Lo.
type Value struct {
	Hi, Lo uint64
}

// Uint64 returns a Value holding x.
func Uint64(x uint64) Value {
	return Value{Lo: x}
}

// Fits reports whether v can be represented in w bits.
func (v Value) Fits(w Width) bool {
	switch w {
	case Width32:
		return v.Hi == 0 && v.Lo>>32 == 0
	case Width64:
		return v.Hi == 0
	case Width128:
		return true
	}
	return false
}

// AppendBytes appends the big-endian representation of v, w/8 bytes long,
// to dst. Bits that do not fit in w are dropped.
func (v Value) AppendBytes(dst []byte, w Width) []byte {
	switch w {
	case Width32:
		return binary.BigEndian.AppendUint32(dst, uint32(v.Lo))
	case Width64:
		return binary.BigEndian.AppendUint64(dst, v.Lo)
	case Width128:
		dst = binary.BigEndian.AppendUint64(dst, v.Hi)
		return binary.BigEndian.AppendUint64(dst, v.Lo)
	}
	return dst
}

// ValueFromBytes decodes the big-endian representation of a w bits wide
// value. It fails if len(b) is not w/8.
func ValueFromBytes(w Width, b []byte) (Value, error) {
	if !w.Valid() {
		return Value{}, fmt.Errorf("%w: %d bits", ErrUnsupportedWidth, uint32(w))
	}
	if len(b) != w.Bytes() {
		return Value{}, fmt.Errorf("value of %d bits needs %d bytes, got %d", uint32(w), w.Bytes(), len(b))
	}
	switch w {
	case Width32:
		return Value{Lo: uint64(binary.BigEndian.Uint32(b))}, nil
	case Width64:
		return Value{Lo: binary.BigEndian.Uint64(b)}, nil
	default:
		return Value{Hi: binary.BigEndian.Uint64(b[:8]), Lo: binary.BigEndian.Uint64(b[8:])}, nil
	}
}

// Text renders v as zero-padded lowercase hexadecimal, two digits per
// byte of w.
func (v Value) Text(w Width) string {
	switch w {
	case Width32:
		return fmt.Sprintf("%08x", uint32(v.Lo))
	case Width64:
		return fmt.Sprintf("%016x", v.Lo)
	case Width128:
		return fmt.Sprintf("%016x%016x", v.Hi, v.Lo)
	}
	return fmt.Sprintf("%x", v.Lo)
}
