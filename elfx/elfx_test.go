//go:build unix

package elfx

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// craftImage builds the smallest well-formed ELF64 shared object this
// package will accept: one PT_LOAD program header and a section-name
// string table.
func craftImage(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	le := binary.LittleEndian

	hdr := elf.Header64{
		Type:      uint16(elf.ET_DYN),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     64,
		Shoff:     144,
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     1,
		Shentsize: 64,
		Shnum:     2,
		Shstrndx:  1,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	if err := binary.Write(&buf, le, hdr); err != nil {
		t.Fatalf("write header: %v", err)
	}

	phdr := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R),
		Filesz: 0x80,
		Memsz:  0x80,
		Align:  0x1000,
	}
	if err := binary.Write(&buf, le, phdr); err != nil {
		t.Fatalf("write program header: %v", err)
	}

	// section-name string table at offset 120
	shstrtab := []byte("\x00.shstrtab\x00")
	buf.Write(shstrtab)
	buf.Write(make([]byte, 144-buf.Len()))

	sections := []elf.Section64{
		{},
		{
			Name: 1,
			Type: uint32(elf.SHT_STRTAB),
			Off:  120,
			Size: uint64(len(shstrtab)),
		},
	}
	for _, sh := range sections {
		if err := binary.Write(&buf, le, sh); err != nil {
			t.Fatalf("write section header: %v", err)
		}
	}

	return buf.Bytes()
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crafted.so")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestOpenParsesCraftedImage(t *testing.T) {
	f, err := Open(writeTemp(t, craftImage(t)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	hdr := f.Header()
	if elf.Type(hdr.Type) != elf.ET_DYN {
		t.Errorf("Type = %v, want ET_DYN", elf.Type(hdr.Type))
	}
	if elf.Machine(hdr.Machine) != elf.EM_X86_64 {
		t.Errorf("Machine = %v, want EM_X86_64", elf.Machine(hdr.Machine))
	}

	if got := len(f.Progs()); got != 1 {
		t.Fatalf("Progs count = %d, want 1", got)
	}
	if ph := f.FindProg(elf.PT_LOAD); ph == nil {
		t.Fatal("FindProg(PT_LOAD) = nil")
	}
	if ph := f.FindProg(elf.PT_DYNAMIC); ph != nil {
		t.Fatal("FindProg(PT_DYNAMIC) found a segment in an image without one")
	}

	sh := f.FindSection(".shstrtab")
	if sh == nil {
		t.Fatal("FindSection(.shstrtab) = nil")
	}
	if got := f.SectionName(sh); got != ".shstrtab" {
		t.Errorf("SectionName = %q, want .shstrtab", got)
	}
	data, err := f.SectionData(sh)
	if err != nil {
		t.Fatalf("SectionData: %v", err)
	}
	if len(data) != 11 {
		t.Errorf("SectionData length = %d, want 11", len(data))
	}

	var info bytes.Buffer
	f.WriteInfo(&info)
	for _, want := range []string{"LOAD", ".shstrtab", "EM_X86_64"} {
		if !strings.Contains(info.String(), want) {
			t.Errorf("WriteInfo output missing %q:\n%s", want, info.String())
		}
	}
}

func TestOpenRejectsNonELF(t *testing.T) {
	_, err := Open(writeTemp(t, []byte("this is not an ELF image, not even close")))
	if !errors.Is(err, ErrBadImage) {
		t.Fatalf("Open error = %v, want ErrBadImage", err)
	}
}

func TestValidateHeaderRejections(t *testing.T) {
	good := craftImage(t)

	mutate := func(f func(b []byte)) []byte {
		b := append([]byte(nil), good...)
		f(b)
		return b
	}

	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"short", []byte{0x7f, 'E', 'L', 'F'}, "short header"},
		{"bad magic", mutate(func(b []byte) { b[0] = 'M' }), "not an ELF"},
		{"32-bit", mutate(func(b []byte) { b[elf.EI_CLASS] = byte(elf.ELFCLASS32) }), "not a 64-bit"},
		{"big-endian", mutate(func(b []byte) { b[elf.EI_DATA] = byte(elf.ELFDATA2MSB) }), "little-endian"},
		{"relocatable", mutate(func(b []byte) { b[16] = byte(elf.ET_REL) }), "shared object"},
		{"wrong machine", mutate(func(b []byte) { b[18] = byte(elf.EM_AARCH64) }), "machine"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateHeader(c.data)
			if !errors.Is(err, ErrBadImage) {
				t.Fatalf("ValidateHeader = %v, want ErrBadImage", err)
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %q", err, c.want)
			}
		})
	}

	if err := ValidateHeader(good); err != nil {
		t.Fatalf("ValidateHeader on well-formed image: %v", err)
	}
}
