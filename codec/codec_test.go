package codec

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := map[string]interface{}{
		"device": "ttyUSB0",
		"count":  uint64(3),
	}
	encoded, err := EncodeStructured(in)
	if err != nil {
		t.Fatalf("EncodeStructured: %v", err)
	}
	out, err := DecodeStructured(encoded)
	if err != nil {
		t.Fatalf("DecodeStructured: %v", err)
	}
	if out["device"] != in["device"] {
		t.Errorf("device = %v, want %v", out["device"], in["device"])
	}
}

func TestDecodeMalformedReturnsError(t *testing.T) {
	if _, err := DecodeStructured([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected error decoding malformed CBOR")
	}
}
