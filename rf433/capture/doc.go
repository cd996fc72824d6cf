// Package capture reads and writes LZ4-compressed streams of radio packets.
//
// Each record is laid out as
//
//	1 byte:  data length
//	1 byte:  flags
//	N bytes: data
//
// Captures serve two purposes: the gateway can tap every packet it sees into
// one, and GenerateVectors produces a conformance stream that Verify replays
// against a receiving authenticator.
package capture
