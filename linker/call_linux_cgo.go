//go:build linux && cgo && amd64

package linker

/*
#include <stdint.h>

typedef uintptr_t (*minidl_fn0)(void);
typedef uintptr_t (*minidl_fn1)(uintptr_t);
typedef uintptr_t (*minidl_fn2)(uintptr_t, uintptr_t);
typedef uintptr_t (*minidl_fn3)(uintptr_t, uintptr_t, uintptr_t);

static uintptr_t minidl_call0(uintptr_t fn) {
	return ((minidl_fn0)fn)();
}

static uintptr_t minidl_call1(uintptr_t fn, uintptr_t a0) {
	return ((minidl_fn1)fn)(a0);
}

static uintptr_t minidl_call2(uintptr_t fn, uintptr_t a0, uintptr_t a1) {
	return ((minidl_fn2)fn)(a0, a1);
}

static uintptr_t minidl_call3(uintptr_t fn, uintptr_t a0, uintptr_t a1, uintptr_t a2) {
	return ((minidl_fn3)fn)(a0, a1, a2);
}
*/
import "C"

func cCall0(fn uintptr) uintptr {
	return uintptr(C.minidl_call0(C.uintptr_t(fn)))
}

func cCall1(fn, a0 uintptr) uintptr {
	return uintptr(C.minidl_call1(C.uintptr_t(fn), C.uintptr_t(a0)))
}

func cCall2(fn, a0, a1 uintptr) uintptr {
	return uintptr(C.minidl_call2(C.uintptr_t(fn), C.uintptr_t(a0), C.uintptr_t(a1)))
}

func cCall3(fn, a0, a1, a2 uintptr) uintptr {
	return uintptr(C.minidl_call3(C.uintptr_t(fn), C.uintptr_t(a0), C.uintptr_t(a1), C.uintptr_t(a2)))
}
