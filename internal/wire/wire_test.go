package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte(`{"id":7,"title":"x"}`)
	b := Encode(2, 41, payload)

	tag, seq, got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if tag != 2 || seq != 41 {
		t.Fatalf("tag/seq mismatch: tag=%d seq=%d", tag, seq)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	b := Encode(1, 0, nil)
	_, seq, payload, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if seq != 0 || len(payload) != 0 {
		t.Fatalf("unexpected decode: seq=%d payload=%q", seq, payload)
	}
}

func TestDecodeRejectsTrailing(t *testing.T) {
	b := Encode(1, 3, []byte("abc"))
	b = append(b, 0xFF)
	if _, _, _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for trailing bytes, got %v", err)
	}
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	cases := map[string][]byte{
		"empty":       nil,
		"short":       []byte("CTLG"),
		"bad magic":   append([]byte("XXXX"), Encode(1, 1, []byte("v"))[4:]...),
		"bad version": func() []byte { b := Encode(1, 1, []byte("v")); b[4] = 9; return b }(),
		"truncated":   Encode(1, 1, []byte("value"))[:20],
	}
	for name, b := range cases {
		if _, _, _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}
