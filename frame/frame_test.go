package frame

import (
	"bytes"
	"testing"
)

func TestBuildAndParseRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("A"),
		[]byte("HI"),
		[]byte("hello world"),
		{0x00, 0x01, 0xff},
	}
	for _, payload := range cases {
		built := Build(payload)
		got, want, got2, consumed, err := Parse(built)
		if err != nil {
			t.Fatalf("Parse(%v) unexpected error: %v", built, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("Parse(%v) payload = %v, want %v", built, got, payload)
		}
		if want != got2 {
			t.Errorf("Parse(%v) BCC mismatch: want %#x got %#x", built, want, got2)
		}
		if consumed != len(built) {
			t.Errorf("Parse(%v) consumed = %d, want %d", built, consumed, len(built))
		}
	}
}

func TestBuildKnownBCC(t *testing.T) {
	// Scenario 1 from the spec: payload "A" -> STX A ETX 0x42.
	got := Build([]byte("A"))
	want := []byte{STX, 'A', ETX, 0x42}
	if !bytes.Equal(got, want) {
		t.Errorf("Build(\"A\") = %#v, want %#v", got, want)
	}

	// Scenario 2 from the spec: payload "HI" -> BCC 0x02.
	got = Build([]byte("HI"))
	want = []byte{STX, 'H', 'I', ETX, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("Build(\"HI\") = %#v, want %#v", got, want)
	}
}

func TestParseIncomplete(t *testing.T) {
	cases := [][]byte{
		{},
		{STX},
		{STX, 'A'},
		{STX, 'A', ETX},
	}
	for _, buf := range cases {
		if _, _, _, _, err := Parse(buf); err != ErrIncomplete {
			t.Errorf("Parse(%v) = %v, want ErrIncomplete", buf, err)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	cases := [][]byte{
		{ACK},
		{STX, ETX, 0x00},
	}
	for _, buf := range cases {
		if _, _, _, _, err := Parse(buf); err != ErrMalformed {
			t.Errorf("Parse(%v) = %v, want ErrMalformed", buf, err)
		}
	}
}

func TestParseChecksumMismatch(t *testing.T) {
	buf := []byte{STX, 'H', 'I', ETX, 0x00}
	payload, want, got, consumed, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse unexpected error: %v", err)
	}
	if string(payload) != "HI" {
		t.Errorf("payload = %q, want %q", payload, "HI")
	}
	if want == got {
		t.Errorf("expected BCC mismatch, want %#x got %#x", want, got)
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
}
