package main

import "testing"

func TestEscapeRawOutput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a\nb", `a\nb`},
		{"tab\there", `tab\there`},
		{`back\slash`, `back\\slash`},
		{"bell\x07", "bell\\u0007"},
	}
	for _, tt := range tests {
		if got := escapeRawOutput(tt.in); got != tt.want {
			t.Errorf("escapeRawOutput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStreamWriterQuietAccumulates(t *testing.T) {
	w := NewStreamWriter(StreamQuiet, false)
	for _, chunk := range []string{"a", "b", "c"} {
		if err := w.Write(chunk); err != nil {
			t.Fatal(err)
		}
	}
	if got := w.accumulator.String(); got != "abc" {
		t.Fatalf("expected accumulated %q, got %q", "abc", got)
	}
}
