//go:build linux && amd64

// Package linker is the loader engine: it maps ELF64 shared objects into the
// current process, resolves their symbols against previously loaded images
// and the host's default namespace, applies x86-64 relocations, and runs
// module constructors and destructors.
//
// The engine is single-threaded by design. A Namespace and the Images it
// owns must be confined to one goroutine or serialized by the caller.
package linker

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/xyproto/env/v2"
	"golang.org/x/sys/unix"

	"github.com/minidl/minidl/elfx"
	"github.com/minidl/minidl/internal/logx"
)

// Image describes one loaded shared object. It mirrors the classic soinfo
// record: the reserved region, the load bias, and bias-adjusted pointers
// into the object's dynamic structures.
type Image struct {
	Name     string
	Base     uintptr
	Size     uintptr
	LoadBias uintptr

	Phdr  uintptr
	Phnum int

	dynamic uintptr

	symtab     uintptr
	strtab     uintptr
	strtabSize uintptr

	hash    uintptr
	gnuHash uintptr

	rela      uintptr
	relaCount int

	pltRela      uintptr
	pltRelaCount int

	initFunc       uintptr
	finiFunc       uintptr
	initArray      uintptr
	initArrayCount int
	finiArray      uintptr
	finiArrayCount int

	refCount int
	next     *Image
}

// RefCount returns the image's current reference count.
func (img *Image) RefCount() int { return img.refCount }

// Namespace owns the list of loaded images. The list doubles as the global
// symbol-search order: newest image first, host runtime last.
type Namespace struct {
	head *Image

	// strict makes an unresolved non-weak relocation fail the load
	// instead of logging and writing zero.
	strict bool
}

// NewNamespace returns an empty namespace. The MINIDL_STRICT_RELOC
// environment variable turns unresolved non-weak relocations into load
// failures.
func NewNamespace() *Namespace {
	return &Namespace{strict: env.Bool("MINIDL_STRICT_RELOC")}
}

// Images returns the loaded images in search order (newest first).
func (ns *Namespace) Images() []*Image {
	var out []*Image
	for img := ns.head; img != nil; img = img.next {
		out = append(out, img)
	}
	return out
}

// Load maps the shared object at path, interprets its dynamic section, and
// applies its relocations. On success the image is published to the
// namespace with a reference count of one; constructors have NOT run yet,
// call CallConstructors next. On failure nothing is published and any
// partial mapping is released.
func (ns *Namespace) Load(path string) (*Image, error) {
	logx.Infof("loading %s", path)

	f, err := elfx.Open(path)
	if err != nil {
		if errors.Is(err, elfx.ErrBadImage) {
			return nil, badFormat(err)
		}
		return nil, fmt.Errorf("minidl: open %s: %w", path, err)
	}
	defer f.Close()

	img := &Image{Name: path}
	if err := ns.mapSegments(f, img); err != nil {
		img.release()
		return nil, err
	}
	if err := img.parseDynamic(); err != nil {
		img.release()
		return nil, err
	}
	if err := ns.relocate(img); err != nil {
		img.release()
		return nil, err
	}

	img.refCount = 1
	img.next = ns.head
	ns.head = img

	logx.Infof("loaded %s: base=%#x size=%#x bias=%#x", path, img.Base, img.Size, img.LoadBias)
	return img, nil
}

// Unload drops one reference. When the count reaches zero it runs the
// image's destructors, unlinks it from the namespace, and unmaps the
// reserved region.
func (ns *Namespace) Unload(img *Image) error {
	if img == nil {
		return fmt.Errorf("%w: unload of nil image", ErrInternal)
	}

	img.refCount--
	if img.refCount > 0 {
		return nil
	}

	ns.CallDestructors(img)

	for p := &ns.head; *p != nil; p = &(*p).next {
		if *p == img {
			*p = img.next
			break
		}
	}

	err := img.release()
	logx.Infof("unloaded %s", img.Name)
	return err
}

// release unmaps the reserved region, if one was established.
func (img *Image) release() error {
	if img.Base == 0 || img.Size == 0 {
		return nil
	}
	err := unix.MunmapPtr(unsafe.Pointer(img.Base), img.Size)
	img.Base = 0
	img.Size = 0
	if err != nil {
		return fmt.Errorf("%w: munmap %s: %v", ErrInternal, img.Name, err)
	}
	return nil
}

func badFormat(err error) error {
	return fmt.Errorf("%w: %v", ErrBadFormat, err)
}
