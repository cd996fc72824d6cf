package gateway

import (
	"bytes"
	"errors"
)

// DefaultPort is the UDP port transmitters listen on.
const DefaultPort = 433

// Header prefixes every rf433 datagram.
var Header = []byte("NC")

var ErrNotDatagram = errors.New("gateway: not an rf433 datagram")

// EncodeDatagram prefixes frame with Header.
func EncodeDatagram(frame []byte) []byte {
	out := make([]byte, 0, len(Header)+len(frame))
	out = append(out, Header...)
	return append(out, frame...)
}

// DecodeDatagram strips Header. The returned slice aliases b.
func DecodeDatagram(b []byte) ([]byte, error) {
	if len(b) <= len(Header) || !bytes.HasPrefix(b, Header) {
		return nil, ErrNotDatagram
	}
	return b[len(Header):], nil
}
