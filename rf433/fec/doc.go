// Package fec adds Reed-Solomon parity to fixed-size radio packets.
//
// Every byte of a packet is one data shard, so a frame of N packet bytes
// and P parity bytes survives the loss of any P bytes whose positions are
// known to the receiver (erasures), for instance bytes whose pulse timing
// was ambiguous. Unknown corruption is detected by Verify and left to the
// digest check of the authenticator.
package fec
