package config

// DefaultConfigFileContent is written by rf433d -export.
const DefaultConfigFileContent = `
[auth]
# key schedule: direct or chain
mode = direct

# packet profile: radio (13 byte frames) or network (variable payload)
profile = radio

# secret and sequence position, rewritten after every packet
statefile = ~/.rf433.dat

[gateway]
# UDP address datagrams are received on
listen = :433

# UDP address of the radio bridge; frames are dropped when unset
# transmit = 127.0.0.1:4330

# gap between two radio bursts
sendinterval = 2.5s

# transmissions per frame
repeats = 1

# Reed-Solomon parity bytes appended to radio frames, 0 disables
fecparity = 0

# authenticate frames before transmitting them
verify = yes

# record every packet and its verdict
# capture = ~/.rf433.cap

[relay]
# QUIC address to accept relayed packets on
# listen = :4331

# comma separated repeaters to forward transmitted frames to
# repeater = 192.0.2.10:4331

# announce this node and discover repeaters with mdns
mdns = no
name = rf433

[log]
# disabled, error, warn, info, debug or trace
level = info
`
