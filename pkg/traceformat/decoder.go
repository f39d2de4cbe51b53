package traceformat

import (
	"errors"
	"fmt"
	"io"

	"github.com/pekd/trace86/pkg/codec"
	"github.com/pekd/trace86/pkg/logflags"
	"github.com/pekd/trace86/pkg/regs"
)

// maxPreallocSlots bounds the slots allocated for a register definition
// before they are read.
const maxPreallocSlots = 64

type decoderState uint8

const (
	expectMagic decoderState = iota
	expectHeader
	readRecords
	done
	failed
)

// SlotValue is the raw content of one register in a dump.
type SlotValue struct {
	Slot regs.Slot
	Raw  []byte
}

// Value decodes the raw bytes of sv.
func (sv SlotValue) Value() regs.Value {
	v, _ := regs.ValueFromBytes(sv.Slot.Width, sv.Raw)
	return v
}

// Text renders the value of sv as fixed-width hexadecimal.
func (sv SlotValue) Text() string {
	return sv.Value().Text(sv.Slot.Width)
}

// Row is one decoded register dump.
type Row struct {
	// Index is the position of the dump among the dumps of the trace.
	Index int
	// Offset is the file offset of the dump record.
	Offset int64
	Values []SlotValue
}

// Decoder reads a trace. It validates the magic number and the register
// definition, then returns one Row per register dump until the End record.
// Any error is terminal.
type Decoder struct {
	r      *codec.Reader
	state  decoderState
	err    error
	schema *regs.Schema
	rows   int
	log    logflags.Logger
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: codec.NewReader(r), log: logflags.FormatLogger()}
}

// eof converts a short read into ErrUnexpectedEOF, keeping the original
// error in the chain.
func eof(err error) error {
	if err == io.EOF {
		return ErrUnexpectedEOF
	}
	if errors.Is(err, codec.ErrTruncatedInput) {
		return fmt.Errorf("%w: %w", ErrUnexpectedEOF, err)
	}
	return err
}

func (d *Decoder) fail(err error) error {
	d.state = failed
	d.err = err
	return err
}

// Schema returns the register schema declared by the trace, reading the
// magic number and the register definition if they were not read yet.
func (d *Decoder) Schema() (*regs.Schema, error) {
	if d.state == failed {
		return nil, d.err
	}
	if d.state == expectMagic {
		magic, err := d.r.U32()
		if err != nil {
			return nil, d.fail(eof(err))
		}
		if magic != Magic {
			return nil, d.fail(fmt.Errorf("%w: %#08x", ErrInvalidMagic, magic))
		}
		d.state = expectHeader
	}
	if d.state == expectHeader {
		schema, err := d.readHeader()
		if err != nil {
			return nil, d.fail(err)
		}
		d.schema = schema
		d.state = readRecords
	}
	return d.schema, nil
}

func (d *Decoder) readHeader() (*regs.Schema, error) {
	off := d.r.Offset()
	kind, size, err := d.recordHeader()
	if err != nil {
		return nil, err
	}
	if kind != KindRegisterDefinition {
		return nil, fmt.Errorf("%w at offset %d: found %v", ErrMissingHeader, off, kind)
	}

	// The payload is decoded through a window of the declared size. Running
	// out of window means the entries overrun the declared size, running
	// out of input before that means the trace is truncated.
	lr := &io.LimitedReader{R: d.r, N: int64(size)}
	pr := codec.NewReader(lr)
	short := func(err error) error {
		if err != io.EOF && !errors.Is(err, codec.ErrTruncatedInput) {
			return err
		}
		if lr.N == 0 || errors.Is(err, codec.ErrOverBound) {
			return fmt.Errorf("%w in register definition at offset %d: entries overrun the declared %d bytes: %w", ErrFraming, off, size, err)
		}
		return eof(err)
	}

	count, err := pr.U32()
	if err != nil {
		return nil, short(err)
	}
	if 4+8*uint64(count) > uint64(size) {
		return nil, fmt.Errorf("%w in register definition at offset %d: %d registers cannot fit in %d bytes", ErrFraming, off, count, size)
	}
	// count is only as good as the input behind it
	slots := make([]regs.Slot, 0, min(count, maxPreallocSlots))
	for i := uint32(0); i < count; i++ {
		width, err := pr.U32()
		if err != nil {
			return nil, short(err)
		}
		name, err := pr.Bytes(max(lr.N-4, 0))
		if err != nil {
			return nil, short(err)
		}
		slots = append(slots, regs.Slot{Name: string(name), Width: regs.Width(width)})
	}
	if consumed := pr.Offset(); consumed != int64(size) {
		return nil, fmt.Errorf("%w in register definition at offset %d: declared %d bytes, decoded %d", ErrFraming, off, size, consumed)
	}
	schema, err := regs.NewSchema(slots...)
	if err != nil {
		return nil, fmt.Errorf("register definition at offset %d: %w", off, err)
	}
	d.log.Debugf("register definition: %v", schema)
	return schema, nil
}

func (d *Decoder) recordHeader() (Kind, uint32, error) {
	kind, err := d.r.U32()
	if err != nil {
		return 0, 0, eof(err)
	}
	size, err := d.r.U32()
	if err != nil {
		if err == io.EOF {
			err = codec.ErrTruncatedInput
		}
		return 0, 0, eof(err)
	}
	return Kind(kind), size, nil
}

// Next returns the next register dump. It returns io.EOF once the End
// record has been read; bytes after the End record are never read.
func (d *Decoder) Next() (*Row, error) {
	if _, err := d.Schema(); err != nil {
		return nil, err
	}
	for {
		switch d.state {
		case done:
			return nil, io.EOF
		case failed:
			return nil, d.err
		}
		off := d.r.Offset()
		kind, size, err := d.recordHeader()
		if err != nil {
			return nil, d.fail(err)
		}
		start := d.r.Offset()
		var row *Row
		switch kind {
		case KindRegisterDump:
			row, err = d.readDump(off)
		case KindEnd:
			d.state = done
		default:
			if logflags.Format() {
				d.log.Debugf("skipping %d bytes of %v at offset %d", size, kind, off)
			}
			err = d.r.Skip(int64(size))
		}
		if err != nil {
			return nil, d.fail(eof(err))
		}
		if consumed := d.r.Offset() - start; consumed != int64(size) {
			return nil, d.fail(fmt.Errorf("%w in %v record at offset %d: declared %d bytes, decoded %d", ErrFraming, kind, off, size, consumed))
		}
		if row != nil {
			return row, nil
		}
	}
}

func (d *Decoder) readDump(off int64) (*Row, error) {
	row := &Row{Index: d.rows, Offset: off, Values: make([]SlotValue, d.schema.Len())}
	for i := range row.Values {
		slot := d.schema.Slot(i)
		raw, err := d.r.Full(slot.Width.Bytes())
		if err != nil {
			return nil, err
		}
		row.Values[i] = SlotValue{Slot: slot, Raw: raw}
	}
	d.rows++
	return row, nil
}

// Decode reads a whole trace from r, calling fn for every register dump.
// It returns the schema declared by the trace and the number of dumps.
func Decode(r io.Reader, fn func(*Row) error) (*regs.Schema, int, error) {
	d := NewDecoder(r)
	schema, err := d.Schema()
	if err != nil {
		return nil, 0, err
	}
	n := 0
	for {
		row, err := d.Next()
		if err == io.EOF {
			return schema, n, nil
		}
		if err != nil {
			return schema, n, err
		}
		n++
		if fn != nil {
			if err := fn(row); err != nil {
				return schema, n, err
			}
		}
	}
}
