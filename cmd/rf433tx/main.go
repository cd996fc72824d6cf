// rf433tx authenticates one payload with the local state file and sends it
// to an rf433d gateway or radio bridge.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/TheusHen/rf433/rf433"
	"github.com/TheusHen/rf433/rf433/config"
	"github.com/TheusHen/rf433/rf433/fec"
	"github.com/TheusHen/rf433/rf433/gateway"
	"github.com/TheusHen/rf433/rf433/statefile"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: rf433tx [flags] payload\n")
	flag.PrintDefaults()
}

func _main() error {
	state := flag.String("state", statefile.DefaultPath, "state file")
	to := flag.String("to", "127.0.0.1:"+strconv.Itoa(gateway.DefaultPort),
		"gateway address")
	parity := flag.Int("fec", 0, "Reed-Solomon parity bytes, 0 disables")
	isHex := flag.Bool("x", false, "payload is hex encoded")
	repeats := flag.Int("n", 1, "transmissions")
	level := flag.String("log", "warn", "log level")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	payload := []byte(flag.Arg(0))
	if *isHex {
		var err error
		if payload, err = hex.DecodeString(flag.Arg(0)); err != nil {
			return fmt.Errorf("payload invalid: %v", err)
		}
	}

	settings := config.New()
	settings.LogLevel = *level
	if _, err := config.ParseLogLevel(*level); err != nil {
		return err
	}

	link, err := rf433.OpenLink(rf433.LinkConfig{
		StateFile:     *state,
		LoggerFactory: settings.LoggerFactory(),
	})
	if err != nil {
		return err
	}

	frame, err := link.Encode(payload)
	if err != nil {
		return err
	}
	if *parity > 0 {
		codec, err := fec.NewCodec(len(frame), *parity)
		if err != nil {
			return err
		}
		if frame, err = codec.Encode(frame); err != nil {
			return err
		}
	}

	tx, err := gateway.DialUDPTransmitter(*to)
	if err != nil {
		return err
	}
	defer tx.Close()
	for i := 0; i < *repeats; i++ {
		if err := tx.Transmit(frame); err != nil {
			return err
		}
	}
	fmt.Printf("%x\n", frame)
	return nil
}

func main() {
	if err := _main(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
