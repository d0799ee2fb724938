//go:build linux && amd64

package linker

import (
	"unsafe"

	"github.com/minidl/minidl/internal/logx"
)

// Some toolchains emit null or all-ones sentinel entries in the init/fini
// arrays; calling through those would fault.
func validFuncPtr(p uintptr) bool {
	return p != 0 && p != ^uintptr(0)
}

// CallConstructors runs the image's module constructors: the legacy DT_INIT
// entry point first, then every DT_INIT_ARRAY entry in array order.
func (ns *Namespace) CallConstructors(img *Image) {
	if img == nil {
		return
	}

	if validFuncPtr(img.initFunc) {
		logx.Debugf("%s: calling DT_INIT at %#x", img.Name, img.initFunc)
		cCall0(img.initFunc)
	}

	if img.initArray != 0 && img.initArrayCount > 0 {
		logx.Debugf("%s: calling DT_INIT_ARRAY (%d entries)", img.Name, img.initArrayCount)
		entries := unsafe.Slice((*uintptr)(unsafe.Pointer(img.initArray)), img.initArrayCount)
		for i, fn := range entries {
			if validFuncPtr(fn) {
				logx.Debugf("%s: init_array[%d] at %#x", img.Name, i, fn)
				cCall0(fn)
			}
		}
	}
}

// CallDestructors runs the image's destructors in the reverse order of
// construction: DT_FINI_ARRAY back to front, then the legacy DT_FINI.
func (ns *Namespace) CallDestructors(img *Image) {
	if img == nil {
		return
	}

	if img.finiArray != 0 && img.finiArrayCount > 0 {
		logx.Debugf("%s: calling DT_FINI_ARRAY (%d entries)", img.Name, img.finiArrayCount)
		entries := unsafe.Slice((*uintptr)(unsafe.Pointer(img.finiArray)), img.finiArrayCount)
		for i := len(entries) - 1; i >= 0; i-- {
			if validFuncPtr(entries[i]) {
				logx.Debugf("%s: fini_array[%d] at %#x", img.Name, i, entries[i])
				cCall0(entries[i])
			}
		}
	}

	if validFuncPtr(img.finiFunc) {
		logx.Debugf("%s: calling DT_FINI at %#x", img.Name, img.finiFunc)
		cCall0(img.finiFunc)
	}
}
