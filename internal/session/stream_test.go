package session

import (
	"testing"
	"unicode/utf8"
)

func TestAssemblerHoldsSplitRune(t *testing.T) {
	a := &Assembler{}
	a.Push([]byte{0xC3}) // first byte of é
	if out, ok := a.Drain(); ok {
		t.Fatalf("drained incomplete sequence: %q", out)
	}
	if a.Pending() != 1 {
		t.Fatalf("expected 1 pending byte, got %d", a.Pending())
	}
	a.Push([]byte{0xA9})
	out, ok := a.Drain()
	if !ok || out != "é" {
		t.Fatalf("expected é, got %q (ok=%v)", out, ok)
	}
	if a.Pending() != 0 {
		t.Fatalf("expected empty buffer, got %d pending", a.Pending())
	}
}

func TestAssemblerRoundTripAtEverySplit(t *testing.T) {
	const text = "héllo 世界 🙂 done"
	raw := []byte(text)

	for split := 0; split <= len(raw); split++ {
		a := &Assembler{}
		var got string

		a.Push(raw[:split])
		if out, ok := a.Drain(); ok {
			got += out
		}
		a.Push(raw[split:])
		if out, ok := a.Drain(); ok {
			got += out
		}
		got += a.Flush()

		if got != text {
			t.Fatalf("split at %d: got %q, want %q", split, got, text)
		}
	}
}

func TestAssemblerNeverEmitsInvalidUTF8(t *testing.T) {
	raw := []byte("aé界🙂z")
	a := &Assembler{}
	for _, b := range raw {
		a.Push([]byte{b})
		if out, ok := a.Drain(); ok && !utf8.ValidString(out) {
			t.Fatalf("drained invalid UTF-8: %q", out)
		}
	}
	if tail := a.Flush(); !utf8.ValidString(tail) {
		t.Fatalf("flushed invalid UTF-8: %q", tail)
	}
}

func TestAssemblerFlushDropsIncompleteTail(t *testing.T) {
	a := &Assembler{}
	a.Push([]byte("ok"))
	a.Push([]byte{0xE4, 0xB8}) // truncated 世
	if out := a.Flush(); out != "ok" {
		t.Fatalf("expected %q, got %q", "ok", out)
	}
	if a.Pending() != 0 {
		t.Fatalf("flush left %d pending bytes", a.Pending())
	}
}

func TestAssemblerHoldsMalformedByte(t *testing.T) {
	a := &Assembler{}
	a.Push([]byte{0xFF, 'a'})
	if out, ok := a.Drain(); ok {
		t.Fatalf("drained past malformed byte: %q", out)
	}
	if out := a.Flush(); out != "" {
		t.Fatalf("flushed past malformed byte: %q", out)
	}
}
