//go:build linux && amd64

package linker

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"testing"
	"unsafe"
)

func relaInfo(symIdx uint32, typ elf.R_X86_64) uint64 {
	return uint64(symIdx)<<32 | uint64(uint32(typ))
}

// relocImage anchors an Image's load bias on a writable Go buffer so
// relocation targets land inside it.
func relocImage(t *testing.T, specs []symSpec) (*fakeImage, []byte) {
	t.Helper()
	f := newFakeImage(specs)
	buf := make([]byte, 256)
	f.img.LoadBias = uintptr(unsafe.Pointer(&buf[0]))
	return f, buf
}

func TestApplyRelaRelative(t *testing.T) {
	f, buf := relocImage(t, lookupSpecs)
	ns := &Namespace{}

	r := &elf.Rela64{Off: 0x10, Info: relaInfo(0, elf.R_X86_64_RELATIVE), Addend: 0x1234}
	if err := ns.applyRela(&f.img, r); err != nil {
		t.Fatalf("applyRela: %v", err)
	}

	got := binary.LittleEndian.Uint64(buf[0x10:])
	if want := uint64(f.img.LoadBias) + 0x1234; got != want {
		t.Fatalf("RELATIVE wrote %#x, want %#x", got, want)
	}
}

func TestApplyRelaAbsoluteAndSlots(t *testing.T) {
	f, buf := relocImage(t, lookupSpecs)
	ns := &Namespace{}

	// "add" is symbol index 1 in lookupSpecs, defined at value 0x1000.
	wantS := uint64(f.img.LoadBias) + 0x1000

	cases := []struct {
		name string
		typ  elf.R_X86_64
		add  int64
		want uint64
	}{
		{"R_X86_64_64", elf.R_X86_64_64, 8, wantS + 8},
		{"GLOB_DAT", elf.R_X86_64_GLOB_DAT, 0, wantS},
		{"JMP_SLOT", elf.R_X86_64_JMP_SLOT, 0, wantS},
	}
	for i, c := range cases {
		off := uint64(0x20 + i*8)
		r := &elf.Rela64{Off: off, Info: relaInfo(1, c.typ), Addend: c.add}
		if err := ns.applyRela(&f.img, r); err != nil {
			t.Fatalf("%s: applyRela: %v", c.name, err)
		}
		if got := binary.LittleEndian.Uint64(buf[off:]); got != c.want {
			t.Errorf("%s wrote %#x, want %#x", c.name, got, c.want)
		}
	}
}

func TestApplyRelaCopy(t *testing.T) {
	f, buf := relocImage(t, lookupSpecs)
	ns := &Namespace{}

	// Source bytes live at the "global_counter" definition (value 0x2000
	// is out of the buffer, so redefine a symbol pointing into it).
	src := []byte{0xde, 0xad, 0xbe, 0xef}
	copy(buf[0x80:], src)
	f.syms[6].Value = 0x80 // global_counter
	f.syms[6].Size = uint64(len(src))

	r := &elf.Rela64{Off: 0x40, Info: relaInfo(6, elf.R_X86_64_COPY)}
	if err := ns.applyRela(&f.img, r); err != nil {
		t.Fatalf("applyRela: %v", err)
	}
	for i, b := range src {
		if buf[0x40+i] != b {
			t.Fatalf("COPY byte %d = %#x, want %#x", i, buf[0x40+i], b)
		}
	}
}

func TestApplyRelaWeakUndefinedWritesZero(t *testing.T) {
	specs := append([]symSpec(nil), lookupSpecs...)
	specs = append(specs, symSpec{name: "weak_missing", bind: elf.STB_WEAK, shndx: elf.SHN_UNDEF})
	f, buf := relocImage(t, specs)
	ns := &Namespace{}

	binary.LittleEndian.PutUint64(buf[0x50:], 0xfefefefefefefefe)
	r := &elf.Rela64{Off: 0x50, Info: relaInfo(uint32(len(specs)), elf.R_X86_64_GLOB_DAT)}
	if err := ns.applyRela(&f.img, r); err != nil {
		t.Fatalf("applyRela: %v", err)
	}
	if got := binary.LittleEndian.Uint64(buf[0x50:]); got != 0 {
		t.Fatalf("weak undefined slot = %#x, want 0", got)
	}
}

func TestApplyRelaStrictUnresolvedFails(t *testing.T) {
	specs := append([]symSpec(nil), lookupSpecs...)
	specs = append(specs, symSpec{name: "missing_strong", bind: elf.STB_GLOBAL, shndx: elf.SHN_UNDEF})
	f, _ := relocImage(t, specs)

	// The host resolver will also miss a name like this, so strict mode
	// must turn the miss into an error.
	ns := &Namespace{strict: true}
	r := &elf.Rela64{Off: 0x60, Info: relaInfo(uint32(len(specs)), elf.R_X86_64_JMP_SLOT)}
	err := ns.applyRela(&f.img, r)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("applyRela in strict mode = %v, want ErrNotFound", err)
	}
}

func TestApplyRelaUnknownTypeSkipped(t *testing.T) {
	f, buf := relocImage(t, lookupSpecs)
	ns := &Namespace{}

	binary.LittleEndian.PutUint64(buf[0x70:], 0x1111111111111111)
	r := &elf.Rela64{Off: 0x70, Info: relaInfo(0, elf.R_X86_64_TPOFF64)}
	if err := ns.applyRela(&f.img, r); err != nil {
		t.Fatalf("applyRela: %v", err)
	}
	if got := binary.LittleEndian.Uint64(buf[0x70:]); got != 0x1111111111111111 {
		t.Fatalf("unknown relocation modified the target: %#x", got)
	}
}
