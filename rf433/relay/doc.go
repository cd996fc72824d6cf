// Package relay carries raw rf433 packets between gateways and repeaters
// over QUIC streams.
//
// Packets are forwarded as protocol frames without being verified or
// modified: every receiver authenticates them with its own state, so a
// relay can neither forge nor usefully replay traffic.
package relay
