// Package terminal renders decoded trace rows for a human reader.
package terminal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/pekd/trace86/pkg/regs"
	"github.com/pekd/trace86/pkg/traceformat"
)

const (
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiRed     = 31
	ansiGreen   = 32
	ansiYellow  = 33
	ansiBlue    = 34
	ansiMagenta = 35
	ansiCyan    = 36
)

// DefaultChangedColor is the color of registers that changed since the
// previous row.
const DefaultChangedColor = ansiYellow

// PrinterConfig changes how rows are printed.
type PrinterConfig struct {
	// Color highlights registers that changed since the previous row.
	Color bool
	// ChangedColor is the ANSI color code used by Color, 0 for the
	// default.
	ChangedColor int
	// OnlyChanged prints only the registers that changed since the
	// previous row, prefixed by the row index.
	OnlyChanged bool
}

// Printer writes rows one line each.
type Printer struct {
	out  io.Writer
	conf PrinterConfig
	prev [][]byte
	buf  bytes.Buffer
}

// NewPrinter returns a printer writing to out.
func NewPrinter(out io.Writer, conf PrinterConfig) *Printer {
	if conf.ChangedColor == 0 {
		conf.ChangedColor = DefaultChangedColor
	}
	return &Printer{out: out, conf: conf}
}

// PrintHeader writes a description of the register schema.
func (p *Printer) PrintHeader(schema *regs.Schema) error {
	p.buf.Reset()
	fmt.Fprintf(&p.buf, "%d registers, %d bytes per dump\n", schema.Len(), schema.DumpSize())
	for i, slot := range schema.Slots() {
		fmt.Fprintf(&p.buf, "%4d %-8s %3d\n", i, slot.Name, slot.Width)
	}
	_, err := p.out.Write(p.buf.Bytes())
	return err
}

// PrintRow writes "name=value " for every register of row, followed by a
// newline.
func (p *Printer) PrintRow(row *traceformat.Row) error {
	p.buf.Reset()
	first := p.prev == nil
	if first {
		p.prev = make([][]byte, len(row.Values))
	}
	if p.conf.OnlyChanged {
		fmt.Fprintf(&p.buf, "#%d ", row.Index)
	}
	for i, sv := range row.Values {
		changed := first || i >= len(p.prev) || !bytes.Equal(p.prev[i], sv.Raw)
		if i < len(p.prev) {
			p.prev[i] = append(p.prev[i][:0], sv.Raw...)
		}
		if p.conf.OnlyChanged && !changed {
			continue
		}
		highlight := p.conf.Color && changed && !first
		if highlight {
			fmt.Fprintf(&p.buf, terminalHighlightEscapeCode, p.conf.ChangedColor)
		}
		p.buf.WriteString(sv.Slot.Name)
		p.buf.WriteByte('=')
		p.buf.WriteString(sv.Text())
		if highlight {
			p.buf.WriteString(terminalResetEscapeCode)
		}
		p.buf.WriteByte(' ')
	}
	p.buf.WriteByte('\n')
	_, err := p.out.Write(p.buf.Bytes())
	return err
}

// ParseColor converts a color name to an ANSI color code.
func ParseColor(name string) (int, error) {
	switch strings.ToLower(name) {
	case "", "yellow":
		return ansiYellow, nil
	case "red":
		return ansiRed, nil
	case "green":
		return ansiGreen, nil
	case "blue":
		return ansiBlue, nil
	case "magenta":
		return ansiMagenta, nil
	case "cyan":
		return ansiCyan, nil
	}
	return 0, fmt.Errorf("unknown color %q", name)
}

// UseColor decides whether output to f should be colored. mode is one of
// "auto", "always" or "never"; auto colors terminals unless TERM is dumb.
func UseColor(mode string, f *os.File) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "", "auto":
		if strings.ToLower(os.Getenv("TERM")) == "dumb" {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	}
	return false, fmt.Errorf("invalid color mode %q, must be auto, always or never", mode)
}

// Stdout returns a writer for standard output that is capable of
// interpreting ANSI escape codes for terminal colors.
func Stdout() io.Writer {
	return colorable.NewColorableStdout()
}
