// Package minidl is a minimal userspace dynamic linker for ELF64 shared
// objects on linux/amd64. It exposes the classic four-call runtime-loading
// surface over the engine in package linker: Open maps, links, and
// constructs an image; Lookup resolves a symbol to its runtime address;
// Close tears the image down; LastError reports and clears the most recent
// failure, dlerror-style.
//
// The package is deliberately thread-unsafe, like the loader it models:
// callers that share a Linker across goroutines must serialize access.
package minidl

import (
	"errors"
	"fmt"

	"github.com/minidl/minidl/linker"
)

// Flag is the dlopen-style flags bitmask. All flags are recognized and
// accepted; binding is always eager in this loader, and every image is
// part of the global search order.
type Flag int

const (
	BindLazy   Flag = 0x0001
	BindNow    Flag = 0x0002
	BindLocal  Flag = 0x0000
	BindGlobal Flag = 0x0100
)

// Next is the sentinel handle for "search after the caller's image". It is
// recognized but unimplemented; Lookup on it sets a NotSupported error.
// The nil handle plays the role of the default sentinel: Lookup(nil, name)
// searches every loaded image and then the host runtime.
var Next = new(linker.Image)

// Linker owns a namespace of loaded images and the last-error slot. The
// zero value is not usable; construct with New.
type Linker struct {
	ns *linker.Namespace

	errMsg string
	hasErr bool
}

// New returns a linker with an empty namespace and a clear error slot.
func New() *Linker {
	return &Linker{ns: linker.NewNamespace()}
}

func (l *Linker) setError(format string, args ...any) {
	l.errMsg = fmt.Sprintf(format, args...)
	l.hasErr = true
}

// ClearError drops any stored error.
func (l *Linker) ClearError() {
	l.hasErr = false
	l.errMsg = ""
}

// LastError returns the message of the most recent failure and clears it,
// or "" when no failure occurred since the last successful call or read.
func (l *Linker) LastError() string {
	if !l.hasErr {
		return ""
	}
	l.hasErr = false
	return l.errMsg
}

// Open loads the shared object at path, runs its constructors, and returns
// its handle. On failure it returns nil with the error slot set; nothing is
// left mapped or published.
func (l *Linker) Open(path string, flags Flag) *linker.Image {
	if path == "" {
		l.setError("dlopen: path is empty")
		return nil
	}
	_ = flags // recognized; binding is always eager

	img, err := l.ns.Load(path)
	if err != nil {
		l.setError("dlopen: %v", err)
		return nil
	}

	l.ns.CallConstructors(img)
	l.ClearError()
	return img
}

// Lookup resolves symbol to a runtime address. A nil handle searches
// globally (loaded images newest first, then the host runtime); the Next
// sentinel is recognized but unsupported. Returns 0 with the error slot
// set when the symbol cannot be found.
func (l *Linker) Lookup(h *linker.Image, symbol string) uintptr {
	if symbol == "" {
		l.setError("dlsym: symbol is empty")
		return 0
	}

	if h == Next {
		l.setError("dlsym: %v: RTLD_NEXT", linker.ErrNotSupported)
		return 0
	}

	if h == nil {
		addr := l.ns.FindGlobal(symbol)
		if addr == 0 {
			l.setError("dlsym: %v: %s", linker.ErrNotFound, symbol)
			return 0
		}
		l.ClearError()
		return addr
	}

	addr := h.Lookup(symbol)
	if addr == 0 {
		l.setError("dlsym: %v in %s: %s", linker.ErrNotFound, h.Name, symbol)
		return 0
	}
	l.ClearError()
	return addr
}

// Close drops one reference to the image; the last reference runs its
// destructors and unmaps it. Returns nil on success.
func (l *Linker) Close(h *linker.Image) error {
	if h == nil || h == Next {
		l.setError("dlclose: invalid handle")
		return errors.New("dlclose: invalid handle")
	}
	if err := l.ns.Unload(h); err != nil {
		l.setError("dlclose: %v", err)
		return err
	}
	l.ClearError()
	return nil
}

// Images returns the loaded images in global search order.
func (l *Linker) Images() []*linker.Image { return l.ns.Images() }

// std is the process-default linker behind the package-level calls.
var std = New()

// Open loads a shared object into the process-default linker.
func Open(path string, flags Flag) *linker.Image { return std.Open(path, flags) }

// Lookup resolves a symbol through the process-default linker.
func Lookup(h *linker.Image, symbol string) uintptr { return std.Lookup(h, symbol) }

// Close releases a handle obtained from the process-default linker.
func Close(h *linker.Image) error { return std.Close(h) }

// LastError reads and clears the process-default linker's error slot.
func LastError() string { return std.LastError() }
