package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/TheusHen/rf433/rf433/crypto"
)

var testKey = crypto.Key{Mode: crypto.KeyModeHMAC, Material: []byte("s\x00\x00\x00\x00\x00\x00\x00\x00")}

func TestFixedProfileRoundTrip(t *testing.T) {
	c, err := NewCodec(RadioProfile)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	payload, err := c.Pad([]byte("on"))
	if err != nil {
		t.Fatalf("Pad: %v", err)
	}
	if !bytes.Equal(payload, []byte{'o', 'n', 0, 0, 0, 0}) {
		t.Fatalf("unexpected padding %x", payload)
	}
	digest := c.Digest(payload, 0x2a, testKey)
	wire, err := c.EncodeWire(payload, 0x2a, digest)
	if err != nil {
		t.Fatalf("EncodeWire: %v", err)
	}
	if len(wire) != 13 {
		t.Fatalf("wire length = %d, want 13", len(wire))
	}
	p, err := c.DecodeWire(wire)
	if err != nil {
		t.Fatalf("DecodeWire: %v", err)
	}
	if !bytes.Equal(p.Payload, payload) || p.Seq != 0x2a || !bytes.Equal(p.Digest, digest) {
		t.Fatalf("decoded packet mismatch")
	}
	if !c.Verify(p, testKey) {
		t.Fatalf("Verify failed")
	}
}

func TestFixedProfileLengths(t *testing.T) {
	c, _ := NewCodec(RadioProfile)
	if _, err := c.Pad(make([]byte, 7)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	for _, n := range []int{0, 12, 14, 20} {
		if _, err := c.DecodeWire(make([]byte, n)); !errors.Is(err, ErrMalformedPacket) {
			t.Fatalf("length %d: expected ErrMalformedPacket, got %v", n, err)
		}
	}
}

func TestVariableProfileLengths(t *testing.T) {
	c, _ := NewCodec(NetworkProfile)
	if _, err := c.Pad(nil); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	for _, n := range []int{0, 1, 8} {
		if _, err := c.DecodeWire(make([]byte, n)); !errors.Is(err, ErrMalformedPacket) {
			t.Fatalf("length %d: expected ErrMalformedPacket, got %v", n, err)
		}
	}
	p, err := c.DecodeWire([]byte("x\x05abcdefg"))
	if err != nil {
		t.Fatalf("DecodeWire: %v", err)
	}
	if string(p.Payload) != "x" || p.Seq != 5 || string(p.Digest) != "abcdefg" {
		t.Fatalf("unexpected split %+v", p)
	}

	bounded, _ := NewCodec(Profile{Name: "bounded", MaxPayload: 4, DigestSize: 7})
	if _, err := bounded.Pad([]byte("12345")); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestVerifyRejectsTamper(t *testing.T) {
	c, _ := NewCodec(NetworkProfile)
	digest := c.Digest([]byte("1234"), 0, testKey)
	wire, _ := c.EncodeWire([]byte("1234"), 0, digest)
	wire[0] = '2'
	p, _ := c.DecodeWire(wire)
	if c.Verify(p, testKey) {
		t.Fatalf("tampered payload verified")
	}
}

func TestEncodeWireChecksDigest(t *testing.T) {
	c, _ := NewCodec(NetworkProfile)
	if _, err := c.EncodeWire([]byte("x"), 0, []byte("short")); err != ErrDigestSize {
		t.Fatalf("expected ErrDigestSize, got %v", err)
	}
}

func TestProfileValidate(t *testing.T) {
	bad := []Profile{
		{DigestSize: 0},
		{DigestSize: 33},
		{DigestSize: 6, PayloadSize: -1},
	}
	for _, p := range bad {
		if _, err := NewCodec(p); !errors.Is(err, ErrInvalidProfile) {
			t.Fatalf("profile %+v: expected ErrInvalidProfile, got %v", p, err)
		}
	}
	if _, err := ProfileByName("radio"); err != nil {
		t.Fatalf("ProfileByName(radio): %v", err)
	}
	if _, err := ProfileByName("laser"); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
}
