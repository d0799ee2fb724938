//go:build linux && amd64

package linker

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/minidl/minidl/internal/logx"
)

// The host fallback resolves names the loaded images cannot: it locates the
// process's libc from /proc/self/maps, finds dlsym and dlerror inside it,
// and then queries dlsym(RTLD_DEFAULT, name) so that references into the
// host C runtime (printf, malloc, ...) bind to the already-linked copies.

const rtldDefault = 0

type hostAPI struct {
	dlsym   uintptr
	dlerror uintptr
}

var (
	hostOnce sync.Once
	host     hostAPI
	hostErr  error
)

// hostLookup queries the host runtime's default symbol namespace. Returns
// zero when the host has no definition or the runtime API is unavailable.
func hostLookup(name string) uintptr {
	api, err := getHostAPI()
	if err != nil {
		logx.Debugf("host resolver unavailable: %v", err)
		return 0
	}

	cName, err := cStringBytes(name)
	if err != nil {
		return 0
	}

	// clear stale dlerror
	_ = cCall0(api.dlerror)
	addr := cCall2(api.dlsym, rtldDefault, cStringPtr(cName))
	runtime.KeepAlive(cName)
	return addr
}

func getHostAPI() (*hostAPI, error) {
	hostOnce.Do(func() {
		hostErr = initHostAPI()
	})
	if hostErr != nil {
		return nil, hostErr
	}
	return &host, nil
}

func initHostAPI() error {
	libcPath, baseAddr, err := findRuntimeLibc()
	if err != nil {
		return err
	}

	dlsymOff, err := findELFSymbolOffset(libcPath, "dlsym")
	if err != nil {
		return fmt.Errorf("resolve libc symbol dlsym: %w", err)
	}
	dlerrorOff, err := findELFSymbolOffset(libcPath, "dlerror")
	if err != nil {
		return fmt.Errorf("resolve libc symbol dlerror: %w", err)
	}

	host = hostAPI{
		dlsym:   baseAddr + dlsymOff,
		dlerror: baseAddr + dlerrorOff,
	}
	return nil
}

type procMapEntry struct {
	start  uintptr
	offset uintptr
	path   string
}

func findRuntimeLibc() (string, uintptr, error) {
	entries, err := readProcMaps()
	if err != nil {
		return "", 0, err
	}

	bestScore := -1
	var best procMapEntry
	for _, entry := range entries {
		score := libcPathScore(entry.path)
		if score > bestScore {
			bestScore = score
			best = entry
		}
	}
	if bestScore < 0 || best.path == "" {
		return "", 0, errors.New("failed to locate runtime libc mapping")
	}
	if best.start < best.offset {
		return "", 0, fmt.Errorf("invalid libc mapping base for %s", best.path)
	}
	return best.path, best.start - best.offset, nil
}

func libcPathScore(path string) int {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "libc.so"):
		return 100
	case strings.Contains(p, "libc-"):
		return 95
	case strings.Contains(p, "ld-musl"):
		return 90
	case strings.Contains(p, "musl"):
		return 85
	case strings.Contains(p, "ld-linux"):
		return 80
	default:
		return -1
	}
}

func readProcMaps() ([]procMapEntry, error) {
	raw, err := os.ReadFile("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("read /proc/self/maps: %w", err)
	}

	lines := strings.Split(string(raw), "\n")
	entries := make([]procMapEntry, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) < 5 {
			continue
		}
		// Only executable mappings carry the code we will call into.
		if !strings.Contains(fields[1], "x") {
			continue
		}

		rangeParts := strings.SplitN(fields[0], "-", 2)
		if len(rangeParts) != 2 {
			continue
		}
		start, startErr := parseHexUintptr(rangeParts[0])
		offset, offsetErr := parseHexUintptr(fields[2])
		if startErr != nil || offsetErr != nil {
			continue
		}

		path := ""
		if len(fields) >= 6 {
			path = strings.Join(fields[5:], " ")
			path = strings.TrimSuffix(path, " (deleted)")
		}
		if path == "" || !strings.HasPrefix(path, "/") {
			continue
		}

		entries = append(entries, procMapEntry{start: start, offset: offset, path: path})
	}
	return entries, nil
}

func parseHexUintptr(s string) (uintptr, error) {
	var out uintptr
	for _, r := range s {
		out <<= 4
		switch {
		case r >= '0' && r <= '9':
			out += uintptr(r - '0')
		case r >= 'a' && r <= 'f':
			out += uintptr(r-'a') + 10
		case r >= 'A' && r <= 'F':
			out += uintptr(r-'A') + 10
		default:
			return 0, fmt.Errorf("invalid hex string %q", s)
		}
	}
	return out, nil
}

func findELFSymbolOffset(path string, symbol string) (uintptr, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open elf %s: %w", path, err)
	}
	defer f.Close()

	if syms, err := f.DynamicSymbols(); err == nil {
		if off, ok := matchSymbolOffset(syms, symbol); ok {
			return off, nil
		}
	}
	if syms, err := f.Symbols(); err == nil {
		if off, ok := matchSymbolOffset(syms, symbol); ok {
			return off, nil
		}
	}
	return 0, fmt.Errorf("symbol %s not found in %s", symbol, path)
}

func matchSymbolOffset(symbols []elf.Symbol, want string) (uintptr, bool) {
	for _, s := range symbols {
		if s.Value == 0 {
			continue
		}
		if s.Name == want || strings.HasPrefix(s.Name, want+"@") {
			return uintptr(s.Value), true
		}
	}
	return 0, false
}
