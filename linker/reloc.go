//go:build linux && amd64

package linker

import (
	"debug/elf"
	"fmt"
	"unsafe"

	"github.com/minidl/minidl/internal/logx"
)

// relocate applies the image's RELA table and then its PLT-RELA table.
// PLT entries are bound eagerly; there is no lazy resolution.
func (ns *Namespace) relocate(img *Image) error {
	if img.rela != 0 {
		for i := 0; i < img.relaCount; i++ {
			r := (*elf.Rela64)(unsafe.Pointer(img.rela + uintptr(i)*relaEntSize))
			if err := ns.applyRela(img, r); err != nil {
				return err
			}
		}
	}
	if img.pltRela != 0 {
		for i := 0; i < img.pltRelaCount; i++ {
			r := (*elf.Rela64)(unsafe.Pointer(img.pltRela + uintptr(i)*relaEntSize))
			if err := ns.applyRela(img, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyRela patches a single relocation site. For entries with a symbol,
// a definition in this image wins; otherwise the global search order
// (loaded images, then host runtime) supplies the address. An unresolved
// non-weak symbol is a warning by default and a load failure in strict
// mode; a weak miss writes zero.
func (ns *Namespace) applyRela(img *Image, r *elf.Rela64) error {
	typ := elf.R_X86_64(uint32(r.Info))
	symIdx := uint32(r.Info >> 32)

	target := img.LoadBias + uintptr(r.Off)

	var symAddr uintptr
	var symSize uintptr
	if symIdx != 0 {
		sym := img.symAt(symIdx)
		symSize = uintptr(sym.Size)
		if elf.SectionIndex(sym.Shndx) != elf.SHN_UNDEF {
			symAddr = img.LoadBias + uintptr(sym.Value)
		} else {
			symAddr = ns.FindGlobal(img.symName(sym))
		}
		if symAddr == 0 && elf.ST_BIND(sym.Info) != elf.STB_WEAK {
			name := img.symName(sym)
			if ns.strict {
				return fmt.Errorf("%w: %s: undefined symbol %s", ErrNotFound, img.Name, name)
			}
			logx.Warnf("%s: cannot find symbol: %s", img.Name, name)
		}
	}

	switch typ {
	case elf.R_X86_64_NONE:

	case elf.R_X86_64_64:
		// S + A
		*(*uint64)(unsafe.Pointer(target)) = uint64(symAddr) + uint64(r.Addend)

	case elf.R_X86_64_GLOB_DAT, elf.R_X86_64_JMP_SLOT:
		// S
		*(*uint64)(unsafe.Pointer(target)) = uint64(symAddr)

	case elf.R_X86_64_RELATIVE:
		// B + A
		*(*uint64)(unsafe.Pointer(target)) = uint64(img.LoadBias) + uint64(r.Addend)

	case elf.R_X86_64_COPY:
		if symAddr != 0 && symSize != 0 {
			dst := unsafe.Slice((*byte)(unsafe.Pointer(target)), symSize)
			src := unsafe.Slice((*byte)(unsafe.Pointer(symAddr)), symSize)
			copy(dst, src)
		}

	default:
		logx.Warnf("%s: unsupported relocation type %d at %#x", img.Name, uint32(typ), r.Off)
	}

	return nil
}
