package minidl_test

import (
	"strings"
	"testing"

	"github.com/minidl/minidl"
)

func TestLastErrorStartsClear(t *testing.T) {
	l := minidl.New()
	if msg := l.LastError(); msg != "" {
		t.Fatalf("fresh linker LastError = %q, want empty", msg)
	}
}

func TestNextSentinelUnsupported(t *testing.T) {
	l := minidl.New()
	if addr := l.Lookup(minidl.Next, "anything"); addr != 0 {
		t.Fatalf("Lookup(Next) = %#x, want 0", addr)
	}
	msg := l.LastError()
	if !strings.Contains(msg, "not supported") {
		t.Fatalf("LastError = %q, want a not-supported message", msg)
	}
	if again := l.LastError(); again != "" {
		t.Fatalf("second LastError = %q, want empty", again)
	}
}

func TestCloseInvalidHandle(t *testing.T) {
	l := minidl.New()
	if err := l.Close(nil); err == nil {
		t.Fatal("Close(nil) succeeded")
	}
	if msg := l.LastError(); !strings.Contains(msg, "invalid handle") {
		t.Fatalf("LastError = %q, want invalid-handle message", msg)
	}
}

func TestLookupEmptySymbol(t *testing.T) {
	l := minidl.New()
	if addr := l.Lookup(nil, ""); addr != 0 {
		t.Fatalf("Lookup(\"\") = %#x, want 0", addr)
	}
	if l.LastError() == "" {
		t.Fatal("LastError empty after empty-symbol lookup")
	}
}

func TestOpenEmptyPath(t *testing.T) {
	l := minidl.New()
	if img := l.Open("", minidl.BindNow); img != nil {
		t.Fatal("Open(\"\") succeeded")
	}
	if l.LastError() == "" {
		t.Fatal("LastError empty after failed open")
	}
}
