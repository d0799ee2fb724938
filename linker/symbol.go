//go:build linux && amd64

package linker

import (
	"debug/elf"
	"unsafe"
)

// linearScanCap bounds the fallback scan when an image carries no hash
// table at all and the symbol count is unknown.
const linearScanCap = 256

// elfHashName is the hash function of the SysV ELF hash section.
func elfHashName(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h<<4 + uint32(name[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
			h &^= g
		}
	}
	return h
}

// gnuHashName is the DJB-variant hash of the GNU hash section.
func gnuHashName(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = h<<5 + h + uint32(name[i])
	}
	return h
}

func (img *Image) symAt(idx uint32) *elf.Sym64 {
	return (*elf.Sym64)(unsafe.Pointer(img.symtab + uintptr(idx)*symEntSize))
}

// symNameIs compares the NUL-terminated string at st_name with want without
// allocating. Names indexing past the string table never match.
func (img *Image) symNameIs(sym *elf.Sym64, want string) bool {
	off := uintptr(sym.Name)
	if img.strtabSize != 0 && off+uintptr(len(want)) >= img.strtabSize {
		return false
	}
	p := img.strtab + off
	for i := 0; i < len(want); i++ {
		if *(*byte)(unsafe.Pointer(p + uintptr(i))) != want[i] {
			return false
		}
	}
	return *(*byte)(unsafe.Pointer(p + uintptr(len(want)))) == 0
}

// symName reads the NUL-terminated name of sym from the string table.
func (img *Image) symName(sym *elf.Sym64) string {
	off := uintptr(sym.Name)
	if img.strtabSize != 0 && off >= img.strtabSize {
		return ""
	}
	p := img.strtab + off
	n := uintptr(0)
	for img.strtabSize == 0 || off+n < img.strtabSize {
		if *(*byte)(unsafe.Pointer(p + n)) == 0 {
			break
		}
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

// defined reports whether sym is a definition this image can export:
// present in a section and bound globally or weakly.
func defined(sym *elf.Sym64) bool {
	if elf.SectionIndex(sym.Shndx) == elf.SHN_UNDEF {
		return false
	}
	bind := elf.ST_BIND(sym.Info)
	return bind == elf.STB_GLOBAL || bind == elf.STB_WEAK
}

// gnuLookup searches the GNU hash table: bloom prefilter, then bucket, then
// a chain walk comparing the upper hash bits before the string compare.
func (img *Image) gnuLookup(name string) *elf.Sym64 {
	if img.gnuHash == 0 {
		return nil
	}

	words := (*[4]uint32)(unsafe.Pointer(img.gnuHash))
	nbuckets := uintptr(words[0])
	symOffset := uintptr(words[1])
	bloomSize := uintptr(words[2])
	bloomShift := words[3]
	if nbuckets == 0 || bloomSize == 0 {
		return nil
	}

	bloom := img.gnuHash + 16
	buckets := bloom + bloomSize*8
	chain := buckets + nbuckets*4

	h1 := gnuHashName(name)

	word := *(*uint64)(unsafe.Pointer(bloom + (uintptr(h1)/64%bloomSize)*8))
	mask := uint64(1)<<(h1%64) | uint64(1)<<((h1>>bloomShift)%64)
	if word&mask != mask {
		return nil
	}

	n := *(*uint32)(unsafe.Pointer(buckets + (uintptr(h1)%nbuckets)*4))
	if n == 0 {
		return nil
	}

	for {
		h2 := *(*uint32)(unsafe.Pointer(chain + uintptr(n-uint32(symOffset))*4))
		if (h1^h2)>>1 == 0 {
			sym := img.symAt(n)
			if img.symNameIs(sym, name) && defined(sym) {
				return sym
			}
		}
		if h2&1 != 0 {
			return nil
		}
		n++
	}
}

// elfLookup searches the SysV hash table by walking the bucket's chain.
func (img *Image) elfLookup(name string) *elf.Sym64 {
	if img.hash == 0 {
		return nil
	}

	nbucket := *(*uint32)(unsafe.Pointer(img.hash))
	if nbucket == 0 {
		return nil
	}
	bucket := img.hash + 8
	chain := bucket + uintptr(nbucket)*4

	h := elfHashName(name)
	for n := *(*uint32)(unsafe.Pointer(bucket + (uintptr(h)%uintptr(nbucket))*4)); n != 0; {
		sym := img.symAt(n)
		if img.symNameIs(sym, name) && defined(sym) {
			return sym
		}
		n = *(*uint32)(unsafe.Pointer(chain + uintptr(n)*4))
	}
	return nil
}

// symbolCount derives the symbol-table length from the SysV hash table's
// nchain word; without a hash table a fixed cap bounds linear scans.
func (img *Image) symbolCount() uint32 {
	if img.hash != 0 {
		return *(*uint32)(unsafe.Pointer(img.hash + 4))
	}
	return linearScanCap
}

// linearLookup scans the symbol table entry by entry. It is the fallback
// when no hash table exists and the cross-check for the hashed paths.
func (img *Image) linearLookup(name string) *elf.Sym64 {
	count := img.symbolCount()
	for i := uint32(1); i < count; i++ {
		sym := img.symAt(i)
		if sym.Name == 0 {
			continue
		}
		if !img.symNameIs(sym, name) {
			continue
		}
		if !defined(sym) {
			continue
		}
		return sym
	}
	return nil
}

// Lookup resolves name to a runtime address within this image. GNU hash is
// preferred, then the SysV hash, then a bounded linear scan when the image
// carries no hash table. Only defined global or weak symbols qualify.
func (img *Image) Lookup(name string) uintptr {
	if img == nil || img.symtab == 0 || img.strtab == 0 {
		return 0
	}

	if sym := img.gnuLookup(name); sym != nil {
		return img.LoadBias + uintptr(sym.Value)
	}
	if sym := img.elfLookup(name); sym != nil {
		return img.LoadBias + uintptr(sym.Value)
	}
	if img.gnuHash == 0 && img.hash == 0 {
		if sym := img.linearLookup(name); sym != nil {
			return img.LoadBias + uintptr(sym.Value)
		}
	}
	return 0
}

// FindGlobal searches every loaded image, newest first, and falls back to
// the host runtime's default namespace, so references into the host C
// library resolve against the already-linked process image.
func (ns *Namespace) FindGlobal(name string) uintptr {
	for img := ns.head; img != nil; img = img.next {
		if addr := img.Lookup(name); addr != 0 {
			return addr
		}
	}
	return hostLookup(name)
}
