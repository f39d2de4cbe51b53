// Package traceformat implements the self-describing binary trace file.
//
// A trace starts with a 4 byte magic number, followed by records. Every
// record is framed as
//
//	[kind u32][size u32][payload: size bytes]
//
// The first record is always a register definition, whose payload is
//
//	[count u32] { [width u32][namelen u32][name] } * count
//
// It is followed by any number of register dumps, carrying the raw value
// of every register, width/8 bytes each, in definition order. The last
// record is an End record with an empty payload. All integers are
// big-endian.
package traceformat

import (
	"errors"
	"fmt"
)

// Magic identifies a trace file.
const Magic uint32 = 0x54524345 // "TRCE"

// Kind is the type of a record.
type Kind uint32

const (
	KindRegisterDefinition Kind = 1
	KindRegisterDump       Kind = 2
	KindEnd                Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindRegisterDefinition:
		return "register-definition"
	case KindRegisterDump:
		return "register-dump"
	case KindEnd:
		return "end"
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// recordHeaderSize is the size of the kind and size fields of a record.
const recordHeaderSize = 8

var (
	// ErrInvalidMagic means the input does not start with Magic.
	ErrInvalidMagic = errors.New("invalid magic")
	// ErrMissingHeader means the first record is not a register definition.
	ErrMissingHeader = errors.New("expected register definition")
	// ErrFraming means the declared size of a record does not match its
	// content. Nothing after it can be trusted.
	ErrFraming = errors.New("record size mismatch")
	// ErrUnexpectedEOF means the input ended before the End record.
	ErrUnexpectedEOF = errors.New("unexpected end of trace")

	// ErrWriterState is returned when records are written out of order.
	ErrWriterState = errors.New("record written out of order")
	// ErrTraceClosed is returned when writing after the End record.
	ErrTraceClosed = errors.New("trace already ended")
)
