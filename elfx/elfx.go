//go:build unix

// Package elfx provides a read-only, memory-mapped view of an ELF64 image.
//
// The package is a pure parser: it validates the ELF header, exposes typed
// views of the program-header and section-header tables, and never mutates
// process address space. Loading and linking live in package linker.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrBadImage reports an image that is not a loadable little-endian
// ELF64/x86-64 shared object or executable.
var ErrBadImage = errors.New("elfx: bad ELF image")

const (
	ehdrSize = int(unsafe.Sizeof(elf.Header64{}))
	phdrSize = int(unsafe.Sizeof(elf.Prog64{}))
	shdrSize = int(unsafe.Sizeof(elf.Section64{}))
)

// File is a shared object mapped read-only for parsing. The typed views it
// hands out point into the mapping and are invalid after Close.
type File struct {
	Path string

	fd   int
	data []byte

	hdr      *elf.Header64
	progs    []elf.Prog64
	sections []elf.Section64
	shstrtab []byte
}

// Open maps the file at path read-only and validates its ELF header.
func Open(path string) (*File, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("elfx: open %s: %w", path, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("elfx: stat %s: %w", path, err)
	}
	if st.Size < int64(ehdrSize) {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: file too small for an ELF header", ErrBadImage, path)
	}

	data, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("elfx: mmap %s: %w", path, err)
	}

	f := &File{Path: path, fd: fd, data: data}
	if err := f.parse(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) parse() error {
	if err := ValidateHeader(f.data); err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	f.hdr = (*elf.Header64)(unsafe.Pointer(&f.data[0]))

	if f.hdr.Phoff != 0 && f.hdr.Phnum > 0 {
		if int(f.hdr.Phentsize) != phdrSize {
			return fmt.Errorf("%w: %s: program header entry size %d", ErrBadImage, f.Path, f.hdr.Phentsize)
		}
		raw, err := f.view(f.hdr.Phoff, uint64(f.hdr.Phnum)*uint64(phdrSize))
		if err != nil {
			return fmt.Errorf("%w: %s: program header table out of bounds", ErrBadImage, f.Path)
		}
		f.progs = unsafe.Slice((*elf.Prog64)(unsafe.Pointer(&raw[0])), int(f.hdr.Phnum))
	}

	if f.hdr.Shoff != 0 && f.hdr.Shnum > 0 {
		if int(f.hdr.Shentsize) != shdrSize {
			return fmt.Errorf("%w: %s: section header entry size %d", ErrBadImage, f.Path, f.hdr.Shentsize)
		}
		raw, err := f.view(f.hdr.Shoff, uint64(f.hdr.Shnum)*uint64(shdrSize))
		if err != nil {
			return fmt.Errorf("%w: %s: section header table out of bounds", ErrBadImage, f.Path)
		}
		f.sections = unsafe.Slice((*elf.Section64)(unsafe.Pointer(&raw[0])), int(f.hdr.Shnum))

		if idx := int(f.hdr.Shstrndx); idx != int(elf.SHN_UNDEF) && idx < len(f.sections) {
			sh := &f.sections[idx]
			if raw, err := f.view(sh.Off, sh.Size); err == nil {
				f.shstrtab = raw
			}
		}
	}

	return nil
}

// ValidateHeader checks the ELF identification and type/machine fields the
// loader depends on: magic, 64-bit class, little-endian data, ET_DYN or
// ET_EXEC, and EM_X86_64.
func ValidateHeader(data []byte) error {
	if len(data) < ehdrSize {
		return fmt.Errorf("%w: short header", ErrBadImage)
	}
	if data[0] != elf.ELFMAG[0] || data[1] != elf.ELFMAG[1] ||
		data[2] != elf.ELFMAG[2] || data[3] != elf.ELFMAG[3] {
		return fmt.Errorf("%w: not an ELF file", ErrBadImage)
	}
	if elf.Class(data[elf.EI_CLASS]) != elf.ELFCLASS64 {
		return fmt.Errorf("%w: not a 64-bit ELF", ErrBadImage)
	}
	if elf.Data(data[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return fmt.Errorf("%w: not little-endian", ErrBadImage)
	}

	hdr := (*elf.Header64)(unsafe.Pointer(&data[0]))
	if t := elf.Type(hdr.Type); t != elf.ET_DYN && t != elf.ET_EXEC {
		return fmt.Errorf("%w: not a shared object or executable (type %s)", ErrBadImage, t)
	}
	if m := elf.Machine(hdr.Machine); m != elf.EM_X86_64 {
		return fmt.Errorf("%w: unsupported machine %s", ErrBadImage, m)
	}
	return nil
}

// view returns data[off:off+size] with overflow-safe bounds checks.
func (f *File) view(off, size uint64) ([]byte, error) {
	end := off + size
	if end < off || end > uint64(len(f.data)) {
		return nil, fmt.Errorf("elfx: range [%#x, %#x) outside file of %d bytes", off, end, len(f.data))
	}
	return f.data[off:end:end], nil
}

// Header returns the ELF header of the mapped file.
func (f *File) Header() *elf.Header64 { return f.hdr }

// Progs returns the program header table, or nil if the file has none.
func (f *File) Progs() []elf.Prog64 { return f.progs }

// Sections returns the section header table, or nil if the file has none.
func (f *File) Sections() []elf.Section64 { return f.sections }

// FindProg returns the first program header of the given type.
func (f *File) FindProg(typ elf.ProgType) *elf.Prog64 {
	for i := range f.progs {
		if elf.ProgType(f.progs[i].Type) == typ {
			return &f.progs[i]
		}
	}
	return nil
}

// SectionName resolves a section's name through the section-name string
// table. Returns "" when the table or the name is absent.
func (f *File) SectionName(sh *elf.Section64) string {
	if sh == nil || f.shstrtab == nil {
		return ""
	}
	off := int(sh.Name)
	if off >= len(f.shstrtab) {
		return ""
	}
	end := off
	for end < len(f.shstrtab) && f.shstrtab[end] != 0 {
		end++
	}
	return string(f.shstrtab[off:end])
}

// FindSection returns the section header with the given name.
func (f *File) FindSection(name string) *elf.Section64 {
	for i := range f.sections {
		if f.SectionName(&f.sections[i]) == name {
			return &f.sections[i]
		}
	}
	return nil
}

// SectionData returns the file bytes backing a section header.
func (f *File) SectionData(sh *elf.Section64) ([]byte, error) {
	if sh == nil {
		return nil, errors.New("elfx: nil section header")
	}
	return f.view(sh.Off, sh.Size)
}

// Bytes exposes the raw read-only mapping.
func (f *File) Bytes() []byte { return f.data }

// Fd returns the open file descriptor backing the mapping, for callers that
// establish further file-backed mappings of the same object.
func (f *File) Fd() int { return f.fd }

// Close unmaps the parse-time view and closes the backing descriptor. The
// live load mapping, if any, is unaffected.
func (f *File) Close() {
	if f.data != nil {
		_ = unix.Munmap(f.data)
		f.data = nil
	}
	if f.fd >= 0 {
		_ = unix.Close(f.fd)
		f.fd = -1
	}
	f.hdr = nil
	f.progs = nil
	f.sections = nil
	f.shstrtab = nil
}
