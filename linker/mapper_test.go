//go:build linux && amd64

package linker

import (
	"debug/elf"
	"testing"

	"golang.org/x/sys/unix"
)

func TestPageAlignment(t *testing.T) {
	ps := pageSize
	cases := []struct {
		in          uintptr
		floor, ceil uintptr
	}{
		{0, 0, 0},
		{1, 0, ps},
		{ps - 1, 0, ps},
		{ps, ps, ps},
		{ps + 1, ps, 2 * ps},
		{3*ps + 123, 3 * ps, 4 * ps},
	}
	for _, c := range cases {
		if got := pageFloor(c.in); got != c.floor {
			t.Errorf("pageFloor(%#x) = %#x, want %#x", c.in, got, c.floor)
		}
		if got := pageCeil(c.in); got != c.ceil {
			t.Errorf("pageCeil(%#x) = %#x, want %#x", c.in, got, c.ceil)
		}
	}
}

func TestLoadSpan(t *testing.T) {
	load := func(vaddr, memsz uint64) elf.Prog64 {
		return elf.Prog64{Type: uint32(elf.PT_LOAD), Vaddr: vaddr, Memsz: memsz}
	}

	progs := []elf.Prog64{
		{Type: uint32(elf.PT_PHDR), Vaddr: 0x40, Memsz: 0x1f8},
		load(0x0, 0x6e0),
		load(0x1000, 0x155),
		{Type: uint32(elf.PT_DYNAMIC), Vaddr: 0x3e00, Memsz: 0x1a0},
		load(0x3de0, 0x248),
	}

	minVaddr, size := loadSpan(progs)
	if minVaddr != 0 {
		t.Fatalf("minVaddr = %#x, want 0", minVaddr)
	}
	// highest end is 0x3de0+0x248 = 0x4028, page-ceiled to 0x5000
	if want := pageCeil(0x4028); size != want {
		t.Fatalf("size = %#x, want %#x", size, want)
	}
}

func TestLoadSpanNoLoadableSegments(t *testing.T) {
	progs := []elf.Prog64{
		{Type: uint32(elf.PT_DYNAMIC), Vaddr: 0x3e00, Memsz: 0x1a0},
	}
	if _, size := loadSpan(progs); size != 0 {
		t.Fatalf("size = %#x, want 0", size)
	}
	if _, size := loadSpan(nil); size != 0 {
		t.Fatalf("size of empty table = %#x, want 0", size)
	}
}

func TestElfProt(t *testing.T) {
	cases := []struct {
		flags uint32
		want  int
	}{
		{uint32(elf.PF_R), unix.PROT_READ},
		{uint32(elf.PF_R | elf.PF_X), unix.PROT_READ | unix.PROT_EXEC},
		{uint32(elf.PF_R | elf.PF_W), unix.PROT_READ | unix.PROT_WRITE},
		{uint32(elf.PF_R | elf.PF_W | elf.PF_X), unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC},
		{0, 0},
	}
	for _, c := range cases {
		if got := elfProt(c.flags); got != c.want {
			t.Errorf("elfProt(%#x) = %#x, want %#x", c.flags, got, c.want)
		}
	}
}

func TestProtString(t *testing.T) {
	if got := protString(unix.PROT_READ | unix.PROT_EXEC); got != "R-X" {
		t.Fatalf("protString = %q, want R-X", got)
	}
	if got := protString(0); got != "---" {
		t.Fatalf("protString = %q, want ---", got)
	}
}
