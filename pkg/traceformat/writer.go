package traceformat

import (
	"fmt"
	"io"
	"os"

	"github.com/pekd/trace86/pkg/codec"
	"github.com/pekd/trace86/pkg/regs"
)

type writerState uint8

const (
	writerNew writerState = iota
	writerRecording
	writerEnded
)

// Writer appends records to a trace. Each call emits exactly one Write on
// the underlying writer, so the order of records in the file is the order
// of calls.
type Writer struct {
	w       io.Writer
	schema  *regs.Schema
	state   writerState
	records int
	buf     []byte
}

// NewWriter returns a Writer that writes a trace for schema to w.
func NewWriter(w io.Writer, schema *regs.Schema) *Writer {
	return &Writer{w: w, schema: schema}
}

// Schema returns the schema the writer encodes.
func (w *Writer) Schema() *regs.Schema {
	return w.schema
}

// Records returns the number of records written, including the header.
func (w *Writer) Records() int {
	return w.records
}

// Ended reports whether the End record has been written.
func (w *Writer) Ended() bool {
	return w.state == writerEnded
}

func (w *Writer) check(want writerState) error {
	switch {
	case w.state == writerEnded:
		return ErrTraceClosed
	case w.state != want:
		return ErrWriterState
	}
	return nil
}

func (w *Writer) emit() error {
	_, err := w.w.Write(w.buf)
	if err != nil {
		return err
	}
	w.records++
	return nil
}

func (w *Writer) record(kind Kind, size int) {
	w.buf = codec.AppendU32(w.buf, uint32(kind))
	w.buf = codec.AppendU32(w.buf, uint32(size))
}

// WriteHeader writes the magic number followed by the register definition
// record. It must be the first call.
func (w *Writer) WriteHeader() error {
	if err := w.check(writerNew); err != nil {
		return err
	}
	w.buf = codec.AppendU32(w.buf[:0], Magic)
	w.record(KindRegisterDefinition, w.schema.DefinitionSize())
	w.buf = codec.AppendU32(w.buf, uint32(w.schema.Len()))
	for i := 0; i < w.schema.Len(); i++ {
		slot := w.schema.Slot(i)
		w.buf = codec.AppendU32(w.buf, uint32(slot.Width))
		w.buf = codec.AppendBytes(w.buf, []byte(slot.Name))
	}
	if err := w.emit(); err != nil {
		return err
	}
	w.state = writerRecording
	return nil
}

// WriteDump writes one register dump. values must hold one value per
// schema slot, in schema order, each fitting its slot.
func (w *Writer) WriteDump(values []regs.Value) error {
	if err := w.check(writerRecording); err != nil {
		return err
	}
	if len(values) != w.schema.Len() {
		return fmt.Errorf("register dump has %d values, schema has %d slots", len(values), w.schema.Len())
	}
	w.buf = w.buf[:0]
	w.record(KindRegisterDump, w.schema.DumpSize())
	for i, v := range values {
		slot := w.schema.Slot(i)
		if !v.Fits(slot.Width) {
			return fmt.Errorf("value %s does not fit register %s", v.Text(regs.Width128), slot)
		}
		w.buf = v.AppendBytes(w.buf, slot.Width)
	}
	return w.emit()
}

// WriteEnd writes the End record. No record can be written after it.
func (w *Writer) WriteEnd() error {
	if err := w.check(writerRecording); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	w.record(KindEnd, 0)
	if err := w.emit(); err != nil {
		return err
	}
	w.state = writerEnded
	return nil
}

// FileWriter is a Writer backed by a file.
type FileWriter struct {
	*Writer
	f *os.File
}

// Create creates (or truncates) the trace file at path.
func Create(path string, schema *regs.Schema) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &FileWriter{Writer: NewWriter(f, schema), f: f}, nil
}

// Close terminates the trace with an End record, if the header was written
// and the trace was not ended yet, and closes the file.
func (fw *FileWriter) Close() error {
	var err error
	if fw.state == writerRecording {
		err = fw.WriteEnd()
	}
	if cerr := fw.f.Close(); err == nil {
		err = cerr
	}
	return err
}
