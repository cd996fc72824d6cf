// Package gateway moves rf433 frames between UDP and a radio transmitter.
//
// A Receiver reads datagrams, optionally strips Reed-Solomon parity and
// authenticates the packet, then hands the frame on. A Dispatcher queues
// frames for a Transmitter and spaces transmissions so that consecutive
// radio bursts do not collide.
package gateway
