package regs

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewSchemaRejectsWidth(t *testing.T) {
	for _, w := range []Width{0, 8, 16, 48, 256} {
		_, err := NewSchema(Slot{"rax", Width64}, Slot{"bad", w})
		if !errors.Is(err, ErrUnsupportedWidth) {
			t.Fatalf("width %d: expected ErrUnsupportedWidth; but was <%v>", w, err)
		}
	}
}

func TestSchemaSizes(t *testing.T) {
	s := MustSchema(Slot{"rax", Width64}, Slot{"mxcsr", Width32}, Slot{"xmm0", Width128})
	if s.DumpSize() != 8+4+16 {
		t.Fatalf("expected dump size 28; but was %d", s.DumpSize())
	}
	// count + 3*(width+namelen) + names
	if want := 4 + 3*8 + len("rax") + len("mxcsr") + len("xmm0"); s.DefinitionSize() != want {
		t.Fatalf("expected definition size %d; but was %d", want, s.DefinitionSize())
	}
}

func TestAMD64Schema(t *testing.T) {
	s := AMD64()
	if s.Len() != 37 {
		t.Fatalf("expected 37 slots; but was %d", s.Len())
	}
	if s.DumpSize() != 20*8+4+16*16 {
		t.Fatalf("expected dump size 420; but was %d", s.DumpSize())
	}
	if got := s.Slot(31).Name; got != "xmm10" {
		t.Fatalf("expected slot 31 to be xmm10; but was %q", got)
	}
	if !s.Equal(AMD64()) {
		t.Fatalf("expected AMD64 schemas to be equal")
	}
	other := MustSchema(s.Slots()[:36]...)
	if s.Equal(other) {
		t.Fatalf("expected schemas of different length to differ")
	}
}

func TestSlotsIsACopy(t *testing.T) {
	s := MustSchema(Slot{"rax", Width64})
	slots := s.Slots()
	slots[0].Name = "rbx"
	if s.Slot(0).Name != "rax" {
		t.Fatalf("schema was modified through Slots()")
	}
}

func TestValueFits(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		w    Width
		fits bool
	}{
		{"small in 32", Uint64(0x1f80), Width32, true},
		{"33 bits in 32", Uint64(1 << 32), Width32, false},
		{"max 64", Uint64(^uint64(0)), Width64, true},
		{"hi in 64", Value{Hi: 1}, Width64, false},
		{"hi in 128", Value{Hi: ^uint64(0), Lo: 1}, Width128, true},
		{"bad width", Uint64(0), Width(48), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.Fits(tc.w); got != tc.fits {
				t.Fatalf("expected %v; but was %v", tc.fits, got)
			}
		})
	}
}

func TestValueBytes(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		w    Width
		raw  []byte
		text string
	}{
		{"32", Uint64(0x1f80), Width32, []byte{0, 0, 0x1f, 0x80}, "00001f80"},
		{"64", Uint64(1), Width64, []byte{0, 0, 0, 0, 0, 0, 0, 1}, "0000000000000001"},
		{"128", Value{Hi: 0x0102030405060708, Lo: 0x090a0b0c0d0e0f10}, Width128,
			[]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
			"0102030405060708090a0b0c0d0e0f10"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := tc.v.AppendBytes(nil, tc.w)
			if !bytes.Equal(raw, tc.raw) {
				t.Fatalf("expected bytes %x; but was %x", tc.raw, raw)
			}
			v, err := ValueFromBytes(tc.w, raw)
			if err != nil {
				t.Fatal(err)
			}
			if v != tc.v {
				t.Fatalf("expected %#v; but was %#v", tc.v, v)
			}
			if got := v.Text(tc.w); got != tc.text {
				t.Fatalf("expected %q; but was %q", tc.text, got)
			}
		})
	}
}

func TestValueFromBytesLength(t *testing.T) {
	if _, err := ValueFromBytes(Width64, make([]byte, 4)); err == nil {
		t.Fatalf("expected an error for a short value")
	}
	if _, err := ValueFromBytes(Width(24), make([]byte, 3)); !errors.Is(err, ErrUnsupportedWidth) {
		t.Fatalf("expected ErrUnsupportedWidth; but was <%v>", err)
	}
}
