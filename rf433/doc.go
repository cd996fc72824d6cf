// Package rf433 authenticates short messages sent over one-way broadcast
// links such as 433MHz radio.
//
// Each packet carries its payload, one byte of sequence information and a
// truncated digest. Receivers accept a packet at most once and tolerate up
// to 255 lost packets between two accepted ones. Two key schedules are
// available: auth.ModeDirect keys every index from the shared secret, while
// auth.ModeChain walks a hash chain and erases consumed keys.
//
// Link ties an authenticator to a state file so that the sequence position
// survives restarts. The subpackages provide the building blocks:
//
//	auth       key schedules, replay window and the Authenticator
//	protocol   packet profiles, the wire codec and relay frames
//	crypto     digests and secret derivation
//	fec        Reed-Solomon parity for radio frames
//	capture    compressed packet captures and conformance vectors
//	statefile  atomic persistence of secret and schedule state
//	gateway    UDP receive loop and rate-limited transmit queue
//	relay      forwarding packets to remote repeaters over QUIC
//	discovery  locating repeaters
//	config     daemon settings
package rf433
