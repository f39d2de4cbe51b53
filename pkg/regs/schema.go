// Package regs describes the register slots captured by the tracer and
// the values stored in them.
package regs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedWidth is returned when a register slot declares a bit
// width other than 32, 64 or 128.
var ErrUnsupportedWidth = errors.New("unsupported register width")

// Width is the size of a register slot in bits.
type Width uint32

const (
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Valid reports whether w is one of the supported widths.
func (w Width) Valid() bool {
	switch w {
	case Width32, Width64, Width128:
		return true
	}
	return false
}

// Bytes returns the number of bytes a value of width w occupies on the wire.
func (w Width) Bytes() int {
	return int(w) / 8
}

// Slot is a named register position in a Schema.
// Names are labels for display only, they do not need to be unique.
type Slot struct {
	Name  string
	Width Width
}

func (s Slot) String() string {
	return fmt.Sprintf("%s:%d", s.Name, s.Width)
}

// Schema is the ordered, immutable list of register slots that defines the
// layout of every register dump in a trace.
type Schema struct {
	slots []Slot
}

// NewSchema returns a schema made of slots, in order. Any slot with an
// unsupported width is rejected here so that dumps never have to deal
// with it.
func NewSchema(slots ...Slot) (*Schema, error) {
	for i, slot := range slots {
		if !slot.Width.Valid() {
			return nil, fmt.Errorf("slot %d (%q): %w: %d bits", i, slot.Name, ErrUnsupportedWidth, uint32(slot.Width))
		}
	}
	s := &Schema{slots: make([]Slot, len(slots))}
	copy(s.slots, slots)
	return s, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for
// statically known tables.
func MustSchema(slots ...Slot) *Schema {
	s, err := NewSchema(slots...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of slots.
func (s *Schema) Len() int {
	return len(s.slots)
}

// Slot returns the i-th slot.
func (s *Schema) Slot(i int) Slot {
	return s.slots[i]
}

// Slots returns a copy of the slot list.
func (s *Schema) Slots() []Slot {
	r := make([]Slot, len(s.slots))
	copy(r, s.slots)
	return r
}

// DumpSize is the payload size of one register dump record.
func (s *Schema) DumpSize() int {
	n := 0
	for _, slot := range s.slots {
		n += slot.Width.Bytes()
	}
	return n
}

// DefinitionSize is the payload size of the register definition record
// describing s: the slot count followed by width, name length and name
// bytes of every slot.
func (s *Schema) DefinitionSize() int {
	n := 4
	for _, slot := range s.slots {
		n += 4 + 4 + len(slot.Name)
	}
	return n
}

// Equal reports whether s and o have the same slots in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.slots) != len(o.slots) {
		return false
	}
	for i := range s.slots {
		if s.slots[i] != o.slots[i] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, slot := range s.slots {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(slot.String())
	}
	b.WriteByte(']')
	return b.String()
}
