//go:build linux && amd64

package linker

import (
	"errors"
	"strings"
	"unsafe"

	"github.com/minidl/minidl/internal/logx"
)

// Call invokes the C function at addr with up to three integer arguments
// and returns its integer result. Addresses come from Lookup or FindGlobal;
// calling anything else is undefined.
func Call(addr uintptr, args ...uintptr) uintptr {
	switch len(args) {
	case 0:
		return cCall0(addr)
	case 1:
		return cCall1(addr, args[0])
	case 2:
		return cCall2(addr, args[0], args[1])
	case 3:
		return cCall3(addr, args[0], args[1], args[2])
	default:
		logx.Errorf("call with %d arguments not supported", len(args))
		return 0
	}
}

// GoString copies the NUL-terminated C string at ptr into a Go string.
func GoString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	const maxLen = 1 << 20
	buf := make([]byte, 0, 64)
	for i := 0; i < maxLen; i++ {
		ch := *(*byte)(unsafe.Pointer(ptr + uintptr(i)))
		if ch == 0 {
			return string(buf)
		}
		buf = append(buf, ch)
	}
	return string(buf)
}

func cStringBytes(s string) ([]byte, error) {
	if strings.ContainsRune(s, '\x00') {
		return nil, errors.New("string contains NUL")
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b, nil
}

func cStringPtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
