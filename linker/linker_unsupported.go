//go:build !(linux && amd64)

package linker

import "fmt"

type Image struct {
	Name     string
	Base     uintptr
	Size     uintptr
	LoadBias uintptr
}

func (img *Image) RefCount() int { return 0 }

func (img *Image) Lookup(name string) uintptr { return 0 }

type Namespace struct{}

func NewNamespace() *Namespace { return &Namespace{} }

func (ns *Namespace) Images() []*Image { return nil }

func (ns *Namespace) Load(path string) (*Image, error) {
	return nil, fmt.Errorf("%w: the loader requires linux/amd64", ErrNotSupported)
}

func (ns *Namespace) Unload(img *Image) error {
	return fmt.Errorf("%w: the loader requires linux/amd64", ErrNotSupported)
}

func (ns *Namespace) CallConstructors(img *Image) {}

func (ns *Namespace) CallDestructors(img *Image) {}

func (ns *Namespace) FindGlobal(name string) uintptr { return 0 }

func Call(addr uintptr, args ...uintptr) uintptr { return 0 }

func GoString(ptr uintptr) string { return "" }
