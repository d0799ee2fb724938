//go:build linux && amd64

package linker

import (
	"debug/elf"
	"fmt"
	"unsafe"

	"github.com/minidl/minidl/internal/logx"
)

const (
	dynEntSize  = unsafe.Sizeof(elf.Dyn64{})
	relaEntSize = unsafe.Sizeof(elf.Rela64{})
	symEntSize  = unsafe.Sizeof(elf.Sym64{})
	ptrSize     = unsafe.Sizeof(uintptr(0))
)

// parseDynamic walks the mapped PT_DYNAMIC array up to its DT_NULL
// terminator and records bias-adjusted pointers to the symbol and string
// tables, hash tables, relocation tables, and init/fini hooks. Unknown tags
// are ignored.
func (img *Image) parseDynamic() error {
	if img.dynamic == 0 {
		return fmt.Errorf("%w: %s: no dynamic section", ErrBadFormat, img.Name)
	}

	for p := img.dynamic; ; p += dynEntSize {
		d := (*elf.Dyn64)(unsafe.Pointer(p))
		tag := elf.DynTag(d.Tag)
		if tag == elf.DT_NULL {
			break
		}

		switch tag {
		case elf.DT_SYMTAB:
			img.symtab = img.LoadBias + uintptr(d.Val)
		case elf.DT_STRTAB:
			img.strtab = img.LoadBias + uintptr(d.Val)
		case elf.DT_STRSZ:
			img.strtabSize = uintptr(d.Val)

		case elf.DT_HASH:
			img.hash = img.LoadBias + uintptr(d.Val)
		case elf.DT_GNU_HASH:
			img.gnuHash = img.LoadBias + uintptr(d.Val)

		case elf.DT_RELA:
			img.rela = img.LoadBias + uintptr(d.Val)
		case elf.DT_RELASZ:
			img.relaCount = int(uintptr(d.Val) / relaEntSize)
		case elf.DT_JMPREL:
			img.pltRela = img.LoadBias + uintptr(d.Val)
		case elf.DT_PLTRELSZ:
			img.pltRelaCount = int(uintptr(d.Val) / relaEntSize)

		case elf.DT_INIT:
			img.initFunc = img.LoadBias + uintptr(d.Val)
		case elf.DT_FINI:
			img.finiFunc = img.LoadBias + uintptr(d.Val)
		case elf.DT_INIT_ARRAY:
			img.initArray = img.LoadBias + uintptr(d.Val)
		case elf.DT_INIT_ARRAYSZ:
			img.initArrayCount = int(uintptr(d.Val) / ptrSize)
		case elf.DT_FINI_ARRAY:
			img.finiArray = img.LoadBias + uintptr(d.Val)
		case elf.DT_FINI_ARRAYSZ:
			img.finiArrayCount = int(uintptr(d.Val) / ptrSize)

		default:
			logx.Debugf("%s: ignoring dynamic tag %s", img.Name, tag)
		}
	}

	if img.symtab == 0 || img.strtab == 0 {
		return fmt.Errorf("%w: %s: missing symbol table or string table", ErrBadFormat, img.Name)
	}

	return nil
}
