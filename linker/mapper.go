//go:build linux && amd64

package linker

import (
	"debug/elf"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/minidl/minidl/elfx"
	"github.com/minidl/minidl/internal/logx"
)

var pageSize = uintptr(unix.Getpagesize())

func pageFloor(x uintptr) uintptr { return x &^ (pageSize - 1) }
func pageCeil(x uintptr) uintptr  { return pageFloor(x + pageSize - 1) }

// loadSpan computes the page-aligned virtual-address span covered by the
// object's PT_LOAD segments. It returns the page-floored minimum vaddr and
// the total span size; size is zero when there are no loadable segments.
func loadSpan(progs []elf.Prog64) (minVaddr, size uintptr) {
	lo := ^uintptr(0)
	var hi uintptr
	for i := range progs {
		ph := &progs[i]
		if elf.ProgType(ph.Type) != elf.PT_LOAD {
			continue
		}
		if v := uintptr(ph.Vaddr); v < lo {
			lo = v
		}
		if end := uintptr(ph.Vaddr + ph.Memsz); end > hi {
			hi = end
		}
	}
	if lo > hi {
		return 0, 0
	}
	lo = pageFloor(lo)
	hi = pageCeil(hi)
	return lo, hi - lo
}

// elfProt translates PF_* segment flags into PROT_* mapping flags.
func elfProt(flags uint32) int {
	prot := 0
	if elf.ProgFlag(flags)&elf.PF_R != 0 {
		prot |= unix.PROT_READ
	}
	if elf.ProgFlag(flags)&elf.PF_W != 0 {
		prot |= unix.PROT_WRITE
	}
	if elf.ProgFlag(flags)&elf.PF_X != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

// mapSegments reserves one contiguous inaccessible region spanning all
// PT_LOAD segments, then overlays each segment at its fixed offset within
// the reservation from the backing file, zero-extending to p_memsz to
// realize BSS. It records the runtime addresses of the program-header table
// and the dynamic array.
func (ns *Namespace) mapSegments(f *elfx.File, img *Image) error {
	progs := f.Progs()

	minVaddr, loadSize := loadSpan(progs)
	if loadSize == 0 {
		return fmt.Errorf("%w: %s: no loadable segments", ErrBadFormat, img.Name)
	}

	base, err := unix.MmapPtr(-1, 0, nil, loadSize,
		unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return fmt.Errorf("%w: reserve %#x bytes for %s: %v", ErrMapFailure, loadSize, img.Name, err)
	}

	img.Base = uintptr(base)
	img.Size = loadSize
	img.LoadBias = img.Base - minVaddr

	logx.Debugf("%s: base=%#x load_bias=%#x span=%#x", img.Name, img.Base, img.LoadBias, loadSize)

	for i := range progs {
		ph := &progs[i]
		if elf.ProgType(ph.Type) != elf.PT_LOAD {
			continue
		}

		segStart := img.LoadBias + uintptr(ph.Vaddr)
		segEnd := segStart + uintptr(ph.Memsz)
		segPageStart := pageFloor(segStart)
		segFileEnd := segStart + uintptr(ph.Filesz)
		filePageStart := pageFloor(uintptr(ph.Off))
		prot := elfProt(ph.Flags)

		// Overlay the file-backed portion inside the reservation.
		// MAP_FIXED replaces the PROT_NONE pages, so nothing outside
		// [segPageStart, segFileEnd) changes accessibility.
		if segFileEnd > segPageStart {
			_, err := unix.MmapPtr(f.Fd(), int64(filePageStart),
				unsafe.Pointer(segPageStart), segFileEnd-segPageStart,
				prot, unix.MAP_PRIVATE|unix.MAP_FIXED)
			if err != nil {
				return fmt.Errorf("%w: segment %d of %s at %#x: %v", ErrMapFailure, i, img.Name, segPageStart, err)
			}
		}

		// Realize BSS: zero the file-backed tail up to the next page
		// boundary, then back any remaining pages with anonymous zero
		// memory.
		if ph.Memsz > ph.Filesz {
			zeroStart := segFileEnd
			zeroPageEnd := pageCeil(zeroStart)
			if zeroStart < zeroPageEnd {
				tail := unsafe.Slice((*byte)(unsafe.Pointer(zeroStart)), zeroPageEnd-zeroStart)
				clear(tail)
			}
			if segPageEnd := pageCeil(segEnd); segPageEnd > zeroPageEnd {
				_, err := unix.MmapPtr(-1, 0,
					unsafe.Pointer(zeroPageEnd), segPageEnd-zeroPageEnd,
					prot, unix.MAP_PRIVATE|unix.MAP_FIXED|unix.MAP_ANONYMOUS)
				if err != nil {
					return fmt.Errorf("%w: bss for segment %d of %s: %v", ErrMapFailure, i, img.Name, err)
				}
			}
		}

		logx.Debugf("%s: segment vaddr=%#x memsz=%#x flags=%s", img.Name,
			ph.Vaddr, ph.Memsz, protString(prot))
	}

	hdr := f.Header()
	img.Phnum = int(hdr.Phnum)
	for i := range progs {
		switch elf.ProgType(progs[i].Type) {
		case elf.PT_PHDR:
			img.Phdr = img.LoadBias + uintptr(progs[i].Vaddr)
		case elf.PT_DYNAMIC:
			img.dynamic = img.LoadBias + uintptr(progs[i].Vaddr)
		}
	}
	if img.Phdr == 0 {
		img.Phdr = img.LoadBias + uintptr(hdr.Phoff)
	}

	return nil
}

func protString(prot int) string {
	buf := []byte{'-', '-', '-'}
	if prot&unix.PROT_READ != 0 {
		buf[0] = 'R'
	}
	if prot&unix.PROT_WRITE != 0 {
		buf[1] = 'W'
	}
	if prot&unix.PROT_EXEC != 0 {
		buf[2] = 'X'
	}
	return string(buf)
}
