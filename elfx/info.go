//go:build unix

package elfx

import (
	"debug/elf"
	"fmt"
	"io"
)

// WriteInfo prints a human-readable summary of the image: header fields,
// the program header table, and the section list. Section headers are used
// for diagnostics only; the loader itself works from program headers.
func (f *File) WriteInfo(w io.Writer) {
	hdr := f.Header()

	fmt.Fprintln(w, "=== ELF Header ===")
	fmt.Fprintf(w, "Type:            %s\n", elf.Type(hdr.Type))
	fmt.Fprintf(w, "Machine:         %s\n", elf.Machine(hdr.Machine))
	fmt.Fprintf(w, "Entry:           %#x\n", hdr.Entry)
	fmt.Fprintf(w, "Program headers: %d\n", hdr.Phnum)
	fmt.Fprintf(w, "Section headers: %d\n", hdr.Shnum)

	fmt.Fprintln(w, "\n=== Program Headers ===")
	for i := range f.progs {
		ph := &f.progs[i]
		fmt.Fprintf(w, "[%2d] %-12s offset=%#08x vaddr=%#08x filesz=%#06x memsz=%#06x flags=%s\n",
			i, progTypeString(elf.ProgType(ph.Type)),
			ph.Off, ph.Vaddr, ph.Filesz, ph.Memsz,
			progFlagString(elf.ProgFlag(ph.Flags)))
	}

	if len(f.sections) > 0 {
		fmt.Fprintln(w, "\n=== Sections ===")
		for i := range f.sections {
			sh := &f.sections[i]
			fmt.Fprintf(w, "[%2d] %-20s addr=%#08x size=%#06x\n",
				i, f.SectionName(sh), sh.Addr, sh.Size)
		}
	}
}

func progTypeString(t elf.ProgType) string {
	switch t {
	case elf.PT_NULL:
		return "NULL"
	case elf.PT_LOAD:
		return "LOAD"
	case elf.PT_DYNAMIC:
		return "DYNAMIC"
	case elf.PT_INTERP:
		return "INTERP"
	case elf.PT_NOTE:
		return "NOTE"
	case elf.PT_PHDR:
		return "PHDR"
	case elf.PT_GNU_EH_FRAME:
		return "GNU_EH_FRAME"
	case elf.PT_GNU_STACK:
		return "GNU_STACK"
	case elf.PT_GNU_RELRO:
		return "GNU_RELRO"
	default:
		return fmt.Sprintf("OTHER(%#x)", uint32(t))
	}
}

func progFlagString(fl elf.ProgFlag) string {
	buf := []byte{'-', '-', '-'}
	if fl&elf.PF_R != 0 {
		buf[0] = 'R'
	}
	if fl&elf.PF_W != 0 {
		buf[1] = 'W'
	}
	if fl&elf.PF_X != 0 {
		buf[2] = 'X'
	}
	return string(buf)
}
